package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"bostossauro/internal/database"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore is an in-memory database.Store. Messages are kept in insertion
// (chronological) order; reads return newest first like the real store.
type fakeStore struct {
	mu sync.Mutex

	messages  map[string][]database.Message
	profiles  map[string]*database.UserProfile
	nextID    uint
	externals map[string]bool

	recallRows  []map[string]any
	recallErr   error
	lastRecall  string
	memory      map[string]string
	bans        map[string]int64
	counterHits int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		messages:  make(map[string][]database.Message),
		profiles:  make(map[string]*database.UserProfile),
		externals: make(map[string]bool),
		memory:    make(map[string]string),
		bans:      make(map[string]int64),
	}
}

func (s *fakeStore) seedMessages(conversationID string, n int) {
	for i := 0; i < n; i++ {
		_ = s.InsertMessage(context.Background(), &database.Message{
			ConversationID: conversationID,
			Timestamp:      int64(1700000000 + i),
			SenderID:       fmt.Sprintf("user%d@s.whatsapp.net", i%3),
			SenderName:     fmt.Sprintf("Pessoa %d", i%3),
			Content:        fmt.Sprintf("mensagem %d", i),
			ExternalID:     fmt.Sprintf("seed-%s-%d", conversationID, i),
		})
	}
}

func (s *fakeStore) Ping(context.Context) error { return nil }

func (s *fakeStore) InsertMessage(_ context.Context, message *database.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.externals[message.ExternalID] {
		return nil
	}
	s.externals[message.ExternalID] = true
	s.nextID++
	message.ID = s.nextID
	s.messages[message.ConversationID] = append(s.messages[message.ConversationID], *message)
	return nil
}

func (s *fakeStore) CountMessages(_ context.Context, conversationID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages[conversationID]), nil
}

func (s *fakeStore) GetRecentMessages(_ context.Context, conversationID string, limit int, excludeMarker string) ([]database.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.messages[conversationID]
	var out []database.Message
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		if excludeMarker != "" && strings.Contains(all[i].Content, excludeMarker) {
			continue
		}
		out = append(out, all[i])
	}
	return out, nil
}

func (s *fakeStore) GetSenderMessages(_ context.Context, conversationID, senderID string, limit int) ([]database.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.messages[conversationID]
	var out []database.Message
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		if all[i].SenderID == senderID {
			out = append(out, all[i])
		}
	}
	return out, nil
}

func (s *fakeStore) QueryRecallRows(_ context.Context, sqlText string) ([]map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRecall = sqlText
	return s.recallRows, s.recallErr
}

func (s *fakeStore) GetOrCreateUser(_ context.Context, userID, displayName string) (*database.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if profile, ok := s.profiles[userID]; ok {
		if displayName != "" {
			profile.DisplayName = displayName
		}
		clone := *profile
		return &clone, nil
	}
	profile := &database.UserProfile{
		UserID:      userID,
		DisplayName: displayName,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	s.profiles[userID] = profile
	clone := *profile
	return &clone, nil
}

func (s *fakeStore) UpdateUserMemory(_ context.Context, userID, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memory[userID] = notes
	if profile, ok := s.profiles[userID]; ok {
		profile.MemoryNotes = notes
	}
	return nil
}

func (s *fakeStore) UpdateUserBan(_ context.Context, userID string, until int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bans[userID] = until
	if profile, ok := s.profiles[userID]; ok {
		profile.BannedUntil = until
	}
	return nil
}

func (s *fakeStore) UpdateUserCounters(_ context.Context, profile *database.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counterHits++
	if stored, ok := s.profiles[profile.UserID]; ok {
		stored.DailyAICount = profile.DailyAICount
		stored.DailyTranslateCount = profile.DailyTranslateCount
		stored.LastUsageDate = profile.LastUsageDate
	}
	return nil
}

func (s *fakeStore) RunSQLMaintenance(context.Context) error { return nil }

// fakeTracker is an in-memory usage.Tracker.
type fakeTracker struct {
	mu     sync.Mutex
	counts map[string]int
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{counts: make(map[string]int)}
}

func (t *fakeTracker) HasQuota(model string, limit int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[model] < limit
}

func (t *fakeTracker) Increment(model string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[model]++
	return nil
}

func (t *fakeTracker) IncrementIfBelow(model string, limit int) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.counts[model] >= limit {
		return false, nil
	}
	t.counts[model]++
	return true, nil
}

func (t *fakeTracker) HasAnyQuota(limits map[string]int, defaultLimit int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for model, limit := range limits {
		if limit <= 0 {
			limit = defaultLimit
		}
		if t.counts[model] < limit {
			return true
		}
	}
	return false
}

func (t *fakeTracker) Snapshot() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}

func (t *fakeTracker) exhaust(model string, limit int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[model] = limit
}

// fakeAI returns scripted responses in order and records prompts.
type fakeAI struct {
	mu        sync.Mutex
	responses []string
	err       error
	prompts   []string
	models    []string
}

func (a *fakeAI) Generate(_ context.Context, modelName, prompt string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prompts = append(a.prompts, prompt)
	a.models = append(a.models, modelName)
	if a.err != nil {
		return "", a.err
	}
	if len(a.responses) == 0 {
		return "", nil
	}
	resp := a.responses[0]
	a.responses = a.responses[1:]
	return resp, nil
}

func (a *fakeAI) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.prompts)
}

type sentText struct {
	conversationID string
	text           string
}

// fakeTransport records everything the dispatcher sends.
type fakeTransport struct {
	mu        sync.Mutex
	texts     []sentText
	stickers  [][]byte
	reactions []string
	nextID    int
}

func (t *fakeTransport) SendText(_ context.Context, conversationID, text string, _ *SendOptions) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.texts = append(t.texts, sentText{conversationID: conversationID, text: text})
	t.nextID++
	return fmt.Sprintf("out-%d", t.nextID), nil
}

func (t *fakeTransport) SendSticker(_ context.Context, conversationID string, data []byte) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stickers = append(t.stickers, data)
	t.nextID++
	return fmt.Sprintf("out-%d", t.nextID), nil
}

func (t *fakeTransport) React(_ context.Context, _, _, _, emoji string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reactions = append(t.reactions, emoji)
	return nil
}

func (t *fakeTransport) sentTexts() []sentText {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]sentText, len(t.texts))
	copy(out, t.texts)
	return out
}

func (t *fakeTransport) lastText() string {
	texts := t.sentTexts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1].text
}

// fakeMedia serves one in-memory sticker.
type fakeMedia struct {
	sticker []byte
	err     error
}

func (m *fakeMedia) Sticker(string) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.sticker, nil
}

func (m *fakeMedia) CanConvertPDF() bool { return false }
