// Package scheduler runs the bot's periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"bostossauro/internal/database"
	"bostossauro/internal/usage"
)

// maintenanceTimeout bounds each maintenance run; VACUUM on a large log can
// take a while but must not hang forever.
const maintenanceTimeout = 5 * time.Minute

// Scheduler owns the cron jobs: nightly database maintenance and a daily
// usage snapshot in the logs, both in the small hours when the chats sleep.
type Scheduler struct {
	log     *slog.Logger
	cron    gocron.Scheduler
	store   database.Store
	tracker usage.Tracker
}

// New builds the scheduler and registers its jobs. Start must be called to
// begin execution.
func New(store database.Store, tracker usage.Tracker, log *slog.Logger) (*Scheduler, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	s := &Scheduler{
		log:     log.With("component", "scheduler"),
		cron:    cron,
		store:   store,
		tracker: tracker,
	}

	if _, err := cron.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(4, 0, 0))),
		gocron.NewTask(s.runMaintenance),
	); err != nil {
		return nil, fmt.Errorf("failed to register maintenance job: %w", err)
	}

	if _, err := cron.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(23, 55, 0))),
		gocron.NewTask(s.logUsageSnapshot),
	); err != nil {
		return nil, fmt.Errorf("failed to register usage snapshot job: %w", err)
	}

	return s, nil
}

// Start begins job execution in the scheduler's own goroutines.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Scheduler started", "jobs", len(s.cron.Jobs()))
}

// Stop shuts the scheduler down, waiting for running jobs.
func (s *Scheduler) Stop() error {
	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("failed to shut down scheduler: %w", err)
	}
	return nil
}

func (s *Scheduler) runMaintenance() {
	ctx, cancel := context.WithTimeout(context.Background(), maintenanceTimeout)
	defer cancel()

	if err := s.store.RunSQLMaintenance(ctx); err != nil {
		s.log.ErrorContext(ctx, "Scheduled maintenance failed", "error", err)
	}
}

// logUsageSnapshot records the day's per-model call counts just before the
// counters roll over at midnight.
func (s *Scheduler) logUsageSnapshot() {
	snapshot := s.tracker.Snapshot()
	total := 0
	for _, n := range snapshot {
		total += n
	}
	s.log.Info("Daily AI usage snapshot", "total_calls", total, "per_model", snapshot)
}
