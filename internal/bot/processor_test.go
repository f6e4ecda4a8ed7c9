package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProcessor(ai *fakeAI, tracker *fakeTracker, store *fakeStore) *Processor {
	selector := newTestSelector(tracker)
	return NewProcessor(ai, selector, tracker, store, testLogger())
}

func TestProcessSplitsReplyAndMemory(t *testing.T) {
	ai := &fakeAI{responses: []string{
		"Fala, Zé! 🦖 Tudo certo.\n===MEMORIA===\nZé gosta de RPG e joga de bardo.",
	}}
	tracker := newFakeTracker()
	store := newFakeStore()
	p := newTestProcessor(ai, tracker, store)

	reply, err := p.Process(context.Background(), CommandChat, "ze@s.whatsapp.net", "prompt", "")
	require.NoError(t, err)

	assert.Equal(t, "Fala, Zé! 🦖 Tudo certo.", reply)
	assert.NotContains(t, reply, MemorySeparator)
	assert.Equal(t, "Zé gosta de RPG e joga de bardo.", store.memory["ze@s.whatsapp.net"])
}

func TestProcessWithoutSeparatorKeepsWholeReply(t *testing.T) {
	ai := &fakeAI{responses: []string{"Resposta inteira sem memória."}}
	store := newFakeStore()
	p := newTestProcessor(ai, newFakeTracker(), store)

	reply, err := p.Process(context.Background(), CommandChat, "ze@s.whatsapp.net", "prompt", "")
	require.NoError(t, err)

	assert.Equal(t, "Resposta inteira sem memória.", reply)
	assert.Empty(t, store.memory)
}

func TestProcessEmptyPayloadIsError(t *testing.T) {
	ai := &fakeAI{responses: []string{"   \n  "}}
	p := newTestProcessor(ai, newFakeTracker(), newFakeStore())

	_, err := p.Process(context.Background(), CommandChat, "ze@s.whatsapp.net", "prompt", "")
	assert.ErrorIs(t, err, ErrAI)
}

func TestProcessChargesQuotaOnlyOnSuccess(t *testing.T) {
	t.Run("success increments", func(t *testing.T) {
		ai := &fakeAI{responses: []string{"oi"}}
		tracker := newFakeTracker()
		p := newTestProcessor(ai, tracker, newFakeStore())

		_, err := p.Process(context.Background(), CommandChat, "ze@s.whatsapp.net", "prompt", "")
		require.NoError(t, err)
		assert.Equal(t, 1, tracker.Snapshot()["gemini-2.5-flash-lite"])
	})

	t.Run("backend failure does not increment", func(t *testing.T) {
		ai := &fakeAI{err: errors.New("connection reset")}
		tracker := newFakeTracker()
		p := newTestProcessor(ai, tracker, newFakeStore())

		_, err := p.Process(context.Background(), CommandChat, "ze@s.whatsapp.net", "prompt", "")
		require.Error(t, err)
		assert.Empty(t, tracker.Snapshot())
	})
}

func TestProcessBackendErrorPropagates(t *testing.T) {
	backendErr := errors.New("the model is overloaded")
	ai := &fakeAI{err: backendErr}
	p := newTestProcessor(ai, newFakeTracker(), newFakeStore())

	_, err := p.Process(context.Background(), CommandChat, "ze@s.whatsapp.net", "prompt", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, backendErr)

	// The dispatch boundary classifies it as overload by message content.
	text, classified := ReplyForError(err)
	assert.True(t, classified)
	assert.Equal(t, msgAIOverload, text)
}

func TestSplitMemory(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantReply  string
		wantMemory string
	}{
		{"with separator", "resposta\n===MEMORIA===\nnotas", "resposta", "notas"},
		{"no separator", "só resposta", "só resposta", ""},
		{"empty memory", "resposta\n===MEMORIA===\n  ", "resposta", ""},
		{"separator first", "===MEMORIA===\nnotas", "", "notas"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, memory := SplitMemory(tt.raw)
			assert.Equal(t, tt.wantReply, reply)
			assert.Equal(t, tt.wantMemory, memory)
		})
	}
}
