package bot

import (
	"fmt"
	"log/slog"

	"bostossauro/internal/usage"
)

// Candidate model lists per command, earlier entries preferred. Cheaper and
// faster models come first; the large general model is the last resort.
var commandModels = map[Command][]string{
	CommandChat:      {"gemini-2.5-flash-lite", "gemini-2.5-flash", "gemini-2.5-pro"},
	CommandAsk:       {"gemini-2.5-flash-lite", "gemini-2.5-flash", "gemini-2.5-pro"},
	CommandSummarize: {"gemini-2.5-flash", "gemini-2.5-pro"},
	CommandTranslate: {"gemini-2.5-flash-lite", "gemini-2.5-flash"},
	CommandRecall:    {"gemini-2.5-flash", "gemini-2.5-pro"},
}

// legacyFlashModel is still sent by old saved shortcuts; it promotes to the
// current flash model instead of failing selection.
const (
	legacyFlashModel  = "gemini-1.5-flash"
	currentFlashModel = "gemini-2.5-flash"
)

// Selector picks a model for a command, respecting the static preference
// order and remaining daily quota. It has no side effects: usage is
// incremented only after a successful AI call.
type Selector struct {
	log          *slog.Logger
	tracker      usage.Tracker
	modelLimits  map[string]int
	defaultLimit int
}

// NewSelector creates a Selector using the given quota tracker and the
// per-model daily limit table (defaultLimit applies to unlisted models).
func NewSelector(tracker usage.Tracker, modelLimits map[string]int, defaultLimit int, log *slog.Logger) *Selector {
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	return &Selector{
		log:          log.With("component", "selector"),
		tracker:      tracker,
		modelLimits:  modelLimits,
		defaultLimit: defaultLimit,
	}
}

// LimitFor returns the daily quota for a model.
func (s *Selector) LimitFor(model string) int {
	if limit, ok := s.modelLimits[model]; ok && limit > 0 {
		return limit
	}
	return s.defaultLimit
}

// Select returns the first candidate model that still has quota today.
// A forced model becomes candidate #1, with the legacy flash alias promoted
// to the current flash model. When every candidate is exhausted the recall
// path fails with ErrRecallUnavailable so callers can degrade just that
// feature; every other command fails with ErrAllQuotasExhausted.
func (s *Selector) Select(cmd Command, forced string) (string, error) {
	candidates := commandModels[cmd]
	if forced != "" {
		if forced == legacyFlashModel {
			forced = currentFlashModel
		}
		candidates = append([]string{forced}, candidates...)
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no candidate models for command %s", cmd)
	}

	for _, model := range candidates {
		if s.tracker.HasQuota(model, s.LimitFor(model)) {
			s.log.Debug("Model selected", "command", cmd.String(), "model", model)
			return model, nil
		}
	}

	s.log.Warn("No model with remaining quota", "command", cmd.String(), "candidates", len(candidates))
	if cmd == CommandRecall {
		return "", ErrRecallUnavailable
	}
	return "", ErrAllQuotasExhausted
}

// HasAnyQuota reports whether any known model still has quota today. This is
// the bot's online/offline signal.
func (s *Selector) HasAnyQuota() bool {
	limits := make(map[string]int)
	for _, models := range commandModels {
		for _, model := range models {
			limits[model] = s.LimitFor(model)
		}
	}
	return s.tracker.HasAnyQuota(limits, s.defaultLimit)
}
