// Package usage tracks per-model daily call counts in a small JSON file.
// Counts reset wholesale when the stored date differs from today's date.
package usage

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// dateLayout is the pt-BR day-first date used to key daily counters.
const dateLayout = "02/01/2006"

// Tracker answers quota-available queries and records model usage.
type Tracker interface {
	// HasQuota reports whether the model has been called fewer than limit
	// times today.
	HasQuota(model string, limit int) bool

	// Increment records one call for the model.
	Increment(model string) error

	// IncrementIfBelow atomically records one call if the model is still
	// under limit, reporting whether the call was recorded.
	IncrementIfBelow(model string, limit int) (bool, error)

	// HasAnyQuota reports whether any model in the limit table still has quota.
	HasAnyQuota(limits map[string]int, defaultLimit int) bool

	// Snapshot returns today's counts keyed by model name.
	Snapshot() map[string]int
}

type fileState struct {
	Date   string         `json:"date"`
	Counts map[string]int `json:"counts"`
}

// fileTracker persists counts to a JSON file. All access goes through a
// mutex; the single-process assumption makes file locking unnecessary.
type fileTracker struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// NewFileTracker creates a Tracker persisting to the given path.
func NewFileTracker(path string, logger *slog.Logger) Tracker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &fileTracker{
		path:   path,
		logger: logger.With("component", "usage"),
		now:    time.Now,
	}
}

func (t *fileTracker) today() string {
	return t.now().Format(dateLayout)
}

// load reads the state file, resetting counts when the stored date is stale.
// Caller must hold t.mu.
func (t *fileTracker) load() fileState {
	fresh := fileState{Date: t.today(), Counts: map[string]int{}}

	data, err := os.ReadFile(t.path)
	if err != nil {
		if !os.IsNotExist(err) {
			t.logger.Warn("Failed to read usage file, starting fresh", "path", t.path, "error", err)
		}
		return fresh
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		t.logger.Warn("Corrupt usage file, starting fresh", "path", t.path, "error", err)
		return fresh
	}
	if state.Date != fresh.Date {
		return fresh
	}
	if state.Counts == nil {
		state.Counts = map[string]int{}
	}
	return state
}

// save writes the state file. Caller must hold t.mu.
func (t *fileTracker) save(state fileState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal usage state: %w", err)
	}
	if err := os.WriteFile(t.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write usage file %s: %w", t.path, err)
	}
	return nil
}

func (t *fileTracker) HasQuota(model string, limit int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.load()
	return state.Counts[model] < limit
}

func (t *fileTracker) Increment(model string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.load()
	state.Counts[model]++
	if err := t.save(state); err != nil {
		t.logger.Error("Failed to persist usage increment", "model", model, "error", err)
		return err
	}
	t.logger.Debug("Usage incremented", "model", model, "count", state.Counts[model])
	return nil
}

func (t *fileTracker) IncrementIfBelow(model string, limit int) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.load()
	if state.Counts[model] >= limit {
		return false, nil
	}
	state.Counts[model]++
	if err := t.save(state); err != nil {
		return false, err
	}
	return true, nil
}

func (t *fileTracker) HasAnyQuota(limits map[string]int, defaultLimit int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.load()
	for model, limit := range limits {
		if limit <= 0 {
			limit = defaultLimit
		}
		if state.Counts[model] < limit {
			return true
		}
	}
	return false
}

func (t *fileTracker) Snapshot() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.load()
	counts := make(map[string]int, len(state.Counts))
	for model, n := range state.Counts {
		counts[model] = n
	}
	return counts
}
