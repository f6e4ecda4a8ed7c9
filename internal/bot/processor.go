package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bostossauro/internal/database"
	"bostossauro/internal/gemini"
	"bostossauro/internal/usage"
)

// Processor runs one AI round trip: select a model, generate, account quota,
// then split the raw reply into the user-facing text and the memory update.
type Processor struct {
	log      *slog.Logger
	ai       gemini.Client
	selector *Selector
	tracker  usage.Tracker
	store    database.Store
}

// NewProcessor wires the AI client, model selector, quota tracker and store.
func NewProcessor(ai gemini.Client, selector *Selector, tracker usage.Tracker, store database.Store, log *slog.Logger) *Processor {
	return &Processor{
		log:      log.With("component", "processor"),
		ai:       ai,
		selector: selector,
		tracker:  tracker,
		store:    store,
	}
}

// Process sends the prompt to the first model with quota and returns the
// user-facing reply. Quota is charged only after a successful generation.
// When the reply carries a memory section it is persisted for senderID; a
// persistence failure is logged but never fails the reply.
func (p *Processor) Process(ctx context.Context, cmd Command, senderID, prompt, forcedModel string) (string, error) {
	model, err := p.selector.Select(cmd, forcedModel)
	if err != nil {
		return "", err
	}

	raw, err := p.ai.Generate(ctx, model, prompt)
	if err != nil {
		return "", fmt.Errorf("generation with %s failed: %w", model, err)
	}
	// The tracker logs its own persistence failures; an unsaved count is not
	// worth failing the reply over.
	_ = p.tracker.Increment(model)

	reply, memory := SplitMemory(raw)
	if reply == "" {
		p.log.WarnContext(ctx, "Empty AI reply", "command", cmd.String(), "model", model)
		return "", ErrAI
	}

	if memory != "" && senderID != "" {
		if err := p.store.UpdateUserMemory(ctx, senderID, memory); err != nil {
			p.log.ErrorContext(ctx, "Failed to persist user memory",
				"sender_id", senderID, "error", err)
		}
	}

	p.log.InfoContext(ctx, "AI reply generated",
		"command", cmd.String(), "model", model, "reply_len", len(reply), "has_memory", memory != "")
	return reply, nil
}

// SplitMemory separates an AI reply into the visible part and the memory
// payload after the separator. Both halves come back trimmed; a reply without
// the separator returns the whole text and an empty memory.
func SplitMemory(raw string) (reply, memory string) {
	before, after, found := strings.Cut(raw, MemorySeparator)
	if !found {
		return strings.TrimSpace(raw), ""
	}
	return strings.TrimSpace(before), strings.TrimSpace(after)
}
