package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAdminJID = "admin@s.whatsapp.net"
	testGroupJID = "grupo@g.us"
	testUserJID  = "ze@s.whatsapp.net"
)

type dispatcherFixture struct {
	d         *Dispatcher
	store     *fakeStore
	transport *fakeTransport
	tracker   *fakeTracker
	ai        *fakeAI
	media     *fakeMedia
	clock     time.Time
}

func newDispatcherFixture(t *testing.T, ai *fakeAI) *dispatcherFixture {
	t.Helper()

	store := newFakeStore()
	tracker := newFakeTracker()
	transport := &fakeTransport{}
	media := &fakeMedia{sticker: []byte("webp-bytes")}
	selector := newTestSelector(tracker)
	log := testLogger()

	f := &dispatcherFixture{
		store:     store,
		transport: transport,
		tracker:   tracker,
		ai:        ai,
		media:     media,
		clock:     time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC),
	}

	d := NewDispatcher(
		store,
		NewPromptBuilder(store, log),
		NewProcessor(ai, selector, tracker, store, log),
		NewRecaller(ai, selector, tracker, store, log),
		selector,
		tracker,
		nil, nil, nil,
		media,
		Options{
			AdminJID:            testAdminJID,
			SpamCooldown:        10 * time.Second,
			DailyAILimit:        30,
			DailyTranslateLimit: 10,
		},
		log,
	)
	d.SetTransport(transport)
	d.now = func() time.Time { return f.clock }
	d.roll = func(n int) int { return n } // always max, deterministic

	f.d = d
	return f
}

func (f *dispatcherFixture) advance(dur time.Duration) {
	f.clock = f.clock.Add(dur)
}

var inboundSeq int

func inbound(conversationID, senderID, text string) Inbound {
	inboundSeq++
	return Inbound{
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderName:     "Zé",
		Text:           text,
		ExternalID:     fmt.Sprintf("in-%d", inboundSeq),
		Timestamp:      time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC),
		IsGroup:        conversationID == testGroupJID,
	}
}

func TestDiceEndToEnd(t *testing.T) {
	f := newDispatcherFixture(t, &fakeAI{})

	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!d20"))

	texts := f.transport.sentTexts()
	require.Len(t, texts, 1)
	assert.Regexp(t, regexp.MustCompile(`🎲 O dado caiu em: \*20\* \n`), texts[0].text)
	assert.Contains(t, texts[0].text, "SORTE GRANDE")
	assert.Zero(t, f.ai.calls())

	// Inbound and outbound both land in the message log.
	count, _ := f.store.CountMessages(context.Background(), testGroupJID)
	assert.Equal(t, 2, count)
}

func TestDiceInvalidArgument(t *testing.T) {
	f := newDispatcherFixture(t, &fakeAI{})

	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!dxyz"))
	assert.Equal(t, msgInvalidDice, f.transport.lastText())
}

func TestAskWithTooLittleHistory(t *testing.T) {
	f := newDispatcherFixture(t, &fakeAI{responses: []string{"nunca chamado"}})
	f.store.seedMessages(testUserJID, 2)

	f.d.Handle(context.Background(), inbound(testUserJID, testUserJID, "!gpt oi"))

	assert.Equal(t, msgTooFewMessages, f.transport.lastText())
	assert.Zero(t, f.ai.calls(), "quota must not be spent without enough history")
}

func TestAskHappyPath(t *testing.T) {
	ai := &fakeAI{responses: []string{
		"Porque sim, Zé. 🦖\n===MEMORIA===\nZé pergunta coisas de física.",
	}}
	f := newDispatcherFixture(t, ai)
	f.store.seedMessages(testGroupJID, 10)

	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!gpt por que o céu é azul?"))

	assert.Equal(t, "Porque sim, Zé. 🦖", f.transport.lastText())
	assert.Equal(t, "Zé pergunta coisas de física.", f.store.memory[testUserJID])
	assert.Equal(t, 1, f.tracker.Snapshot()["gemini-2.5-flash-lite"])

	// The bot's own reply joins the history under its display name.
	recent, _ := f.store.GetRecentMessages(context.Background(), testGroupJID, 1, "")
	require.Len(t, recent, 1)
	assert.Equal(t, botDisplayName, recent[0].SenderName)
}

func TestUnknownCommandReplies(t *testing.T) {
	f := newDispatcherFixture(t, &fakeAI{responses: []string{"nunca chamado"}})
	f.store.seedMessages(testGroupJID, 10)

	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!xablau"))
	assert.Equal(t, msgUnknownCmd, f.transport.lastText())

	// Private chats get the same answer instead of the free-form chat
	// fallback, so a typo never burns the user's daily AI quota.
	f.store.seedMessages(testUserJID, 10)
	f.d.Handle(context.Background(), inbound(testUserJID, testUserJID, "!sei lá"))
	assert.Equal(t, msgUnknownCmd, f.transport.lastText())

	assert.Zero(t, f.ai.calls())
	assert.Zero(t, f.store.counterHits)
}

func TestUnprefixedGroupTextIsInert(t *testing.T) {
	f := newDispatcherFixture(t, &fakeAI{})

	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "bom dia grupo"))

	assert.Empty(t, f.transport.sentTexts())
	assert.Zero(t, f.ai.calls())
	count, _ := f.store.CountMessages(context.Background(), testGroupJID)
	assert.Equal(t, 1, count, "inert messages still get logged")
}

func TestGroupReplyToBotBecomesChat(t *testing.T) {
	ai := &fakeAI{responses: []string{"Tô vivo. 🦕"}}
	f := newDispatcherFixture(t, ai)
	f.store.seedMessages(testGroupJID, 10)

	in := inbound(testGroupJID, testUserJID, "cê tá vivo aí?")
	in.QuotedText = "resposta antiga do bot"
	in.QuotedFromBot = true
	f.d.Handle(context.Background(), in)

	assert.Equal(t, []string{"👀"}, f.transport.reactions)
	assert.Equal(t, "Tô vivo. 🦕", f.transport.lastText())
	require.Equal(t, 1, f.ai.calls())
	assert.Contains(t, f.ai.prompts[0], "resposta antiga do bot")
}

func TestPrivateUnprefixedTextBecomesChat(t *testing.T) {
	ai := &fakeAI{responses: []string{"Oi, Zé."}}
	f := newDispatcherFixture(t, ai)
	f.store.seedMessages(testUserJID, 10)

	f.d.Handle(context.Background(), inbound(testUserJID, testUserJID, "oi dino"))

	assert.Equal(t, "Oi, Zé.", f.transport.lastText())
	assert.Equal(t, 1, f.ai.calls())
}

func TestBannedUserIsRejected(t *testing.T) {
	f := newDispatcherFixture(t, &fakeAI{})
	_, err := f.store.GetOrCreateUser(context.Background(), testUserJID, "Zé")
	require.NoError(t, err)
	require.NoError(t, f.store.UpdateUserBan(context.Background(), testUserJID, f.clock.Add(7*time.Minute).Unix()))

	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!menu"))

	assert.Contains(t, f.transport.lastText(), "castigo")
	assert.Contains(t, f.transport.lastText(), "7 minuto(s)")
}

func TestSpamCooldownConsumesSlot(t *testing.T) {
	ai := &fakeAI{responses: []string{"um", "dois", "três"}}
	f := newDispatcherFixture(t, ai)
	f.store.seedMessages(testGroupJID, 10)

	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!gpt um"))
	assert.Equal(t, "um", f.transport.lastText())

	f.advance(5 * time.Second)
	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!gpt dois"))
	assert.Contains(t, f.transport.lastText(), "apressado")

	// The rejected attempt restarted the window, so 7s after it (12s after
	// the accepted one) is still inside the cooldown.
	f.advance(7 * time.Second)
	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!gpt tres"))
	assert.Contains(t, f.transport.lastText(), "apressado")

	f.advance(11 * time.Second)
	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!gpt quatro"))
	assert.Equal(t, "dois", f.transport.lastText())
}

func TestSpamCooldownDoesNotGateDice(t *testing.T) {
	f := newDispatcherFixture(t, &fakeAI{})

	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!d6"))
	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!d6"))

	texts := f.transport.sentTexts()
	require.Len(t, texts, 2)
	for _, sent := range texts {
		assert.Contains(t, sent.text, "🎲")
	}
}

func TestDailyUserQuota(t *testing.T) {
	ai := &fakeAI{responses: []string{"um", "dois", "três"}}
	f := newDispatcherFixture(t, ai)
	f.store.seedMessages(testGroupJID, 10)
	f.d.opts.DailyAILimit = 2

	for i := 0; i < 3; i++ {
		f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!gpt oi"))
		f.advance(time.Minute)
	}

	assert.Equal(t, msgUserQuota, f.transport.lastText())
	assert.Equal(t, 2, f.ai.calls())
}

func TestDailyQuotaResetsNextDay(t *testing.T) {
	ai := &fakeAI{responses: []string{"um", "dois"}}
	f := newDispatcherFixture(t, ai)
	f.store.seedMessages(testGroupJID, 10)
	f.d.opts.DailyAILimit = 1

	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!gpt oi"))
	assert.Equal(t, "um", f.transport.lastText())

	f.advance(time.Minute)
	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!gpt oi"))
	assert.Equal(t, msgUserQuota, f.transport.lastText())

	f.advance(24 * time.Hour)
	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!gpt oi"))
	assert.Equal(t, "dois", f.transport.lastText())
}

func TestAllQuotasExhaustedSendsOfflineSticker(t *testing.T) {
	f := newDispatcherFixture(t, &fakeAI{})
	f.store.seedMessages(testGroupJID, 10)
	for model, limit := range testModelLimits {
		f.tracker.exhaust(model, limit)
	}

	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!gpt oi"))

	require.Len(t, f.transport.stickers, 1)
	assert.Equal(t, []byte("webp-bytes"), f.transport.stickers[0])
	assert.Empty(t, f.transport.sentTexts())
}

func TestAllQuotasExhaustedTextFallback(t *testing.T) {
	f := newDispatcherFixture(t, &fakeAI{})
	f.store.seedMessages(testGroupJID, 10)
	f.media.err = errors.New("asset missing")
	for model, limit := range testModelLimits {
		f.tracker.exhaust(model, limit)
	}

	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!gpt oi"))
	assert.Equal(t, msgOffline, f.transport.lastText())
}

func TestOverloadErrorMapsToFriendlyText(t *testing.T) {
	ai := &fakeAI{err: errors.New("rpc error: the model is overloaded")}
	f := newDispatcherFixture(t, ai)
	f.store.seedMessages(testGroupJID, 10)

	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!gpt oi"))
	assert.Equal(t, msgAIOverload, f.transport.lastText())
}

func TestSummarizeSendsAckThenSummary(t *testing.T) {
	ai := &fakeAI{responses: []string{SummaryMarker + "\n- falaram de dados o dia todo"}}
	f := newDispatcherFixture(t, ai)
	f.store.seedMessages(testGroupJID, 10)

	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!resumo curto"))

	texts := f.transport.sentTexts()
	require.Len(t, texts, 2)
	assert.Equal(t, msgSummarizeAck, texts[0].text)
	assert.Contains(t, texts[1].text, SummaryMarker)
	require.Equal(t, 1, f.ai.calls())
	assert.Contains(t, f.ai.prompts[0], "120 palavras")
}

func TestRecallEndToEnd(t *testing.T) {
	ai := &fakeAI{responses: []string{
		"SELECT timestamp, sender_name, content FROM messages WHERE conversation_id = 'grupo@g.us' LIMIT 10",
		"O Zé comprou um dado novo semana passada. 🦖",
	}}
	f := newDispatcherFixture(t, ai)
	f.store.seedMessages(testGroupJID, 10)
	f.store.recallRows = []map[string]any{
		{"timestamp": int64(1700000000), "sender_name": "Zé", "content": "comprei um dado novo"},
	}

	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!lembrar o que o Zé comprou"))

	assert.Equal(t, "O Zé comprou um dado novo semana passada. 🦖", f.transport.lastText())
	require.Equal(t, 2, f.ai.calls())
	assert.Contains(t, f.ai.prompts[1], "comprei um dado novo")
}

func TestRecallRequiresHistory(t *testing.T) {
	f := newDispatcherFixture(t, &fakeAI{})
	f.store.seedMessages(testGroupJID, 3)

	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!lembrar algo"))

	assert.Equal(t, msgTooFewMessages, f.transport.lastText())
	assert.Zero(t, f.ai.calls())
}

func TestAdminCommandFromNonAdminIsSilent(t *testing.T) {
	f := newDispatcherFixture(t, &fakeAI{})

	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!status"))
	assert.Empty(t, f.transport.sentTexts())
}

func TestStatusFromAdmin(t *testing.T) {
	f := newDispatcherFixture(t, &fakeAI{})
	require.NoError(t, f.tracker.Increment("gemini-2.5-pro"))
	require.NoError(t, f.tracker.Increment("gemini-2.5-flash"))

	f.d.Handle(context.Background(), inbound(testGroupJID, testAdminJID, "!status"))

	text := f.transport.lastText()
	assert.Contains(t, text, "🟢 Online")
	assert.Contains(t, text, "gemini-2.5-flash: 1/250")
	assert.Contains(t, text, "gemini-2.5-pro: 1/50")
	// Models are listed alphabetically regardless of increment order.
	assert.Less(t,
		strings.Index(text, "gemini-2.5-flash:"), strings.Index(text, "gemini-2.5-pro:"))
}

func TestTimeoutBansMentionedUser(t *testing.T) {
	f := newDispatcherFixture(t, &fakeAI{})

	in := inbound(testGroupJID, testAdminJID, "!timeout @ze 15")
	in.Mentions = []string{testUserJID}
	f.d.Handle(context.Background(), in)

	assert.Contains(t, f.transport.lastText(), "15 minuto(s)")
	assert.Equal(t, f.clock.Add(15*time.Minute).Unix(), f.store.bans[testUserJID])
}

func TestTimeoutWithoutMinutes(t *testing.T) {
	f := newDispatcherFixture(t, &fakeAI{})

	in := inbound(testGroupJID, testAdminJID, "!timeout @ze")
	in.Mentions = []string{testUserJID}
	f.d.Handle(context.Background(), in)

	assert.Equal(t, msgNotANumber, f.transport.lastText())
}

func TestMenuAndHelp(t *testing.T) {
	f := newDispatcherFixture(t, &fakeAI{})

	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!menu"))
	assert.Contains(t, f.transport.lastText(), "Os comandos até agora")

	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!ajuda d"))
	assert.Contains(t, f.transport.lastText(), "Rola dados de RPG")

	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!ajuda naoexiste"))
	assert.Contains(t, f.transport.lastText(), "Que comando é esse")
}

func TestNotesWithoutMemory(t *testing.T) {
	f := newDispatcherFixture(t, &fakeAI{})

	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!notas"))
	assert.Equal(t, msgNoNotes, f.transport.lastText())
}

func TestNotesShowsStoredMemory(t *testing.T) {
	f := newDispatcherFixture(t, &fakeAI{})
	_, err := f.store.GetOrCreateUser(context.Background(), testUserJID, "Zé")
	require.NoError(t, err)
	require.NoError(t, f.store.UpdateUserMemory(context.Background(), testUserJID, "Zé joga de bardo."))

	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!notas"))
	assert.Contains(t, f.transport.lastText(), "Zé joga de bardo.")
}

func TestCurrencyWithoutService(t *testing.T) {
	f := newDispatcherFixture(t, &fakeAI{})

	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!cotacao real dolar 10"))
	assert.Equal(t, msgKeyUnavailable, f.transport.lastText())
}

func TestTranslateUsesOwnQuota(t *testing.T) {
	ai := &fakeAI{responses: []string{"good morning", "good night"}}
	f := newDispatcherFixture(t, ai)
	f.d.opts.DailyTranslateLimit = 1

	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!tradutor ingles bom dia"))
	assert.Equal(t, "good morning", f.transport.lastText())

	f.advance(time.Minute)
	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!tradutor ingles boa noite"))
	assert.Equal(t, msgTranslateQuota, f.transport.lastText())
}

func TestStickerWithoutMediaShowsHelp(t *testing.T) {
	f := newDispatcherFixture(t, &fakeAI{})

	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!s"))
	assert.Contains(t, f.transport.lastText(), "COMANDO: !s")
}

func TestPDFUnavailable(t *testing.T) {
	f := newDispatcherFixture(t, &fakeAI{})

	f.d.Handle(context.Background(), inbound(testGroupJID, testUserJID, "!pdf"))
	assert.Equal(t, msgPDFUnavailable, f.transport.lastText())
}
