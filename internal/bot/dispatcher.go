package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"bostossauro/internal/database"
	"bostossauro/internal/usage"
)

// botDisplayName is the sender name stored for the bot's own messages.
const botDisplayName = "Bostossauro"

const (
	msgSummarizeAck   = "🤖 Ces falam demais, preciso ler tudo. Me dá um tempinho... ⏳"
	msgOffline        = "Desonline... 😴"
	msgNoNotes        = "📝 Não anotei nada sobre você ainda. Fala mais comigo que eu começo a fofocar."
	msgStickerBroken  = "🛠️ Minha máquina de figurinhas quebrou. Tenta de novo mais tarde."
	msgPDFUnavailable = "🛠️ Conversor de PDF em manutenção. Reclama com o dev."
)

const dateLayout = "02/01/2006"

// Reply is one outbound answer. Text and Sticker are mutually exclusive.
type Reply struct {
	Text    string
	Sticker []byte
}

// Options carries the dispatcher's policy knobs, taken from configuration.
type Options struct {
	AdminJID            string
	SpamCooldown        time.Duration
	DailyAILimit        int
	DailyTranslateLimit int
}

// Dispatcher is the single entry point for inbound messages. It persists
// every message, classifies it, enforces ban/admin/spam/quota policy in that
// order, routes to the right handler, and maps any typed failure to its
// user-facing reply exactly once.
type Dispatcher struct {
	log       *slog.Logger
	store     database.Store
	prompts   *PromptBuilder
	processor *Processor
	recaller  *Recaller
	selector  *Selector
	tracker   usage.Tracker
	transport Transport

	weather   WeatherService
	currency  CurrencyService
	gameStats GameStatsService
	media     MediaProvider

	opts Options

	mu       sync.Mutex
	lastSeen map[string]time.Time
	selfID   string

	now  func() time.Time
	roll func(n int) int
}

// NewDispatcher wires the dispatcher. Service dependencies (weather,
// currency, gameStats) may be nil when their API keys are absent; the
// corresponding commands then answer with the key-unavailable message.
// The transport is attached separately via SetTransport.
func NewDispatcher(
	store database.Store,
	prompts *PromptBuilder,
	processor *Processor,
	recaller *Recaller,
	selector *Selector,
	tracker usage.Tracker,
	weather WeatherService,
	currency CurrencyService,
	gameStats GameStatsService,
	media MediaProvider,
	opts Options,
	log *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		log:       log.With("component", "dispatcher"),
		store:     store,
		prompts:   prompts,
		processor: processor,
		recaller:  recaller,
		selector:  selector,
		tracker:   tracker,
		weather:   weather,
		currency:  currency,
		gameStats: gameStats,
		media:     media,
		opts:      opts,
		lastSeen:  make(map[string]time.Time),
		now:       time.Now,
		roll:      func(n int) int { return rand.IntN(n) + 1 },
	}
}

// SetTransport installs the outbound transport. The transport layer itself
// needs the dispatcher for inbound events, so it is attached after
// construction and before the session connects.
func (d *Dispatcher) SetTransport(t Transport) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transport = t
}

// SetSelfID records the bot's own JID once the transport session is up, so
// outbound messages are persisted under the right sender.
func (d *Dispatcher) SetSelfID(jid string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selfID = jid
}

func (d *Dispatcher) selfSenderID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.selfID == "" {
		return "bot"
	}
	return d.selfID
}

// Handle processes one inbound message end to end. It never returns an
// error: every failure either becomes a reply or is logged here.
func (d *Dispatcher) Handle(ctx context.Context, in Inbound) {
	if strings.TrimSpace(in.Text) == "" {
		if !in.HasMedia {
			return
		}
	} else {
		d.persistInbound(ctx, in)
	}

	cmd, args := ParseCommand(in.Text)
	if cmd == CommandNone {
		// Text with the "!" marker but no known verb gets the unknown-command
		// reply instead of falling through to chat (and spending AI quota).
		if strings.HasPrefix(strings.TrimSpace(in.Text), "!") {
			d.log.InfoContext(ctx, "Unknown command",
				"conversation_id", in.ConversationID, "sender_id", in.SenderID)
			d.send(ctx, in, Reply{Text: msgUnknownCmd}, d.log)
			return
		}
		// Unprefixed text: free-form chat in private, or in a group only when
		// the message quotes the bot. Anything else is just logged history.
		if in.IsGroup && !in.QuotedFromBot {
			return
		}
		cmd, args = CommandChat, strings.TrimSpace(in.Text)
		if args == "" {
			return
		}
	}

	log := d.log.With("command", cmd.String(), "conversation_id", in.ConversationID, "sender_id", in.SenderID)
	log.InfoContext(ctx, "Command received")

	if in.QuotedFromBot && cmd == CommandChat {
		if err := d.transport.React(ctx, in.ConversationID, in.SenderID, in.ExternalID, "👀"); err != nil {
			log.WarnContext(ctx, "Failed to react to reply", "error", err)
		}
	}

	profile, err := d.checkPreconditions(ctx, cmd, in)
	if err == nil && profile == nil {
		// Admin-only command from a non-admin: silent no-op.
		return
	}

	var reply Reply
	if err == nil {
		reply, err = d.dispatch(ctx, cmd, args, in, profile)
	}

	if err != nil {
		if errors.Is(err, ErrAllQuotasExhausted) {
			d.sendOffline(ctx, in, log)
			return
		}
		text, classified := ReplyForError(err)
		if !classified {
			log.ErrorContext(ctx, "Command failed", "error", err)
		} else {
			log.InfoContext(ctx, "Command rejected", "reason", err)
		}
		reply = Reply{Text: text}
	}

	d.send(ctx, in, reply, log)
}

func (d *Dispatcher) persistInbound(ctx context.Context, in Inbound) {
	ts := in.Timestamp
	if ts.IsZero() {
		ts = d.now()
	}
	msg := &database.Message{
		ConversationID: in.ConversationID,
		Timestamp:      ts.Unix(),
		SenderID:       in.SenderID,
		SenderName:     in.SenderName,
		Content:        in.Text,
		ExternalID:     in.ExternalID,
	}
	if err := d.store.InsertMessage(ctx, msg); err != nil {
		d.log.ErrorContext(ctx, "Failed to persist inbound message",
			"conversation_id", in.ConversationID, "error", err)
	}
}

// send delivers the reply (quoting the triggering message) and persists the
// bot's own message so it becomes part of the conversation history.
func (d *Dispatcher) send(ctx context.Context, in Inbound, reply Reply, log *slog.Logger) {
	if reply.Text == "" && reply.Sticker == nil {
		return
	}

	opts := &SendOptions{QuotedExternalID: in.ExternalID, QuotedSenderID: in.SenderID}

	if reply.Sticker != nil {
		if _, err := d.transport.SendSticker(ctx, in.ConversationID, reply.Sticker); err != nil {
			log.ErrorContext(ctx, "Failed to send sticker", "error", err)
		}
		return
	}

	externalID, err := d.transport.SendText(ctx, in.ConversationID, reply.Text, opts)
	if err != nil {
		log.ErrorContext(ctx, "Failed to send reply", "error", err)
		return
	}

	out := &database.Message{
		ConversationID: in.ConversationID,
		Timestamp:      d.now().Unix(),
		SenderID:       d.selfSenderID(),
		SenderName:     botDisplayName,
		Content:        reply.Text,
		ExternalID:     externalID,
	}
	if err := d.store.InsertMessage(ctx, out); err != nil {
		log.ErrorContext(ctx, "Failed to persist outbound message", "error", err)
	}
}

// sendOffline answers total quota exhaustion with the sleeping sticker, or
// its text fallback when the asset is missing.
func (d *Dispatcher) sendOffline(ctx context.Context, in Inbound, log *slog.Logger) {
	log.InfoContext(ctx, "All model quotas exhausted, going offline")
	if d.media != nil {
		if data, err := d.media.Sticker("desonline"); err == nil {
			d.send(ctx, in, Reply{Sticker: data}, log)
			return
		} else {
			log.WarnContext(ctx, "Offline sticker unavailable", "error", err)
		}
	}
	d.send(ctx, in, Reply{Text: msgOffline}, log)
}

// checkPreconditions runs the policy gates in their fixed order: profile,
// ban, admin, spam cooldown, daily user quota. A nil profile with a nil
// error means "drop silently" (non-admin on an admin command).
func (d *Dispatcher) checkPreconditions(ctx context.Context, cmd Command, in Inbound) (*database.UserProfile, error) {
	profile, err := d.store.GetOrCreateUser(ctx, in.SenderID, in.SenderName)
	if err != nil {
		return nil, fmt.Errorf("failed to load user profile: %w", err)
	}

	now := d.now()
	if profile.BannedUntil > now.Unix() {
		remaining := time.Duration(profile.BannedUntil-now.Unix()) * time.Second
		minutes := int(remaining.Minutes())
		if remaining%time.Minute != 0 {
			minutes++
		}
		return nil, &UserBannedError{MinutesRemaining: minutes}
	}

	if cmd.IsAdminOnly() && in.SenderID != d.opts.AdminJID {
		d.log.InfoContext(ctx, "Admin command from non-admin ignored",
			"command", cmd.String(), "sender_id", in.SenderID)
		return nil, nil
	}

	if cmd.IsConversational() {
		if err := d.checkSpam(in.SenderID, now); err != nil {
			return nil, err
		}
		if err := d.consumeDailyQuota(ctx, cmd, profile, now); err != nil {
			return nil, err
		}
	}

	return profile, nil
}

// checkSpam enforces the per-sender cooldown. The attempt itself stamps the
// clock, so hammering the bot keeps the window closed.
func (d *Dispatcher) checkSpam(senderID string, now time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	last, seen := d.lastSeen[senderID]
	d.lastSeen[senderID] = now
	if !seen {
		return nil
	}

	elapsed := now.Sub(last)
	if elapsed < d.opts.SpamCooldown {
		remaining := d.opts.SpamCooldown - elapsed
		seconds := int(remaining.Seconds())
		if remaining%time.Second != 0 {
			seconds++
		}
		return &SpamDetectedError{SecondsRemaining: seconds}
	}
	return nil
}

// consumeDailyQuota resets stale counters, checks the applicable per-user cap
// and charges one use. Translation has its own counter and cap.
func (d *Dispatcher) consumeDailyQuota(ctx context.Context, cmd Command, profile *database.UserProfile, now time.Time) error {
	today := now.Format(dateLayout)
	if profile.LastUsageDate != today {
		profile.LastUsageDate = today
		profile.DailyAICount = 0
		profile.DailyTranslateCount = 0
	}

	if cmd == CommandTranslate {
		if profile.DailyTranslateCount >= d.opts.DailyTranslateLimit {
			return ErrTranslateQuotaExceeded
		}
		profile.DailyTranslateCount++
	} else {
		if profile.DailyAICount >= d.opts.DailyAILimit {
			return ErrUserQuotaExceeded
		}
		profile.DailyAICount++
	}

	if err := d.store.UpdateUserCounters(ctx, profile); err != nil {
		return fmt.Errorf("failed to persist usage counters: %w", err)
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, cmd Command, args string, in Inbound, profile *database.UserProfile) (Reply, error) {
	switch cmd {
	case CommandChat, CommandAsk:
		return d.handleConversation(ctx, cmd, args, in, profile)
	case CommandSummarize:
		return d.handleSummarize(ctx, args, in, profile)
	case CommandRecall:
		return d.handleRecall(ctx, args, in, profile)
	case CommandTranslate:
		return d.handleTranslate(ctx, args, in)
	case CommandDice:
		return Reply{Text: rollDice(args, d.roll)}, nil
	case CommandMenu:
		return Reply{Text: menuText}, nil
	case CommandHelp:
		return Reply{Text: helpFor(args)}, nil
	case CommandNotes:
		return d.handleNotes(profile), nil
	case CommandCurrency:
		return d.handleCurrency(ctx, args)
	case CommandWeather:
		return d.handleWeather(ctx, args)
	case CommandGameStats:
		return d.handleGameStats(ctx, args)
	case CommandTimeout:
		return d.handleTimeout(ctx, args, in)
	case CommandStatus:
		return d.handleStatus(ctx), nil
	case CommandPDF:
		return d.handlePDF(in), nil
	case CommandSticker:
		return d.handleSticker(in), nil
	}
	return Reply{}, nil
}

func (d *Dispatcher) handleConversation(ctx context.Context, cmd Command, args string, in Inbound, profile *database.UserProfile) (Reply, error) {
	if args == "" {
		return Reply{}, ErrMissingArgs
	}

	complement := ""
	if in.QuotedText != "" {
		complement = in.QuotedText
	}

	prompt, err := d.prompts.Build(ctx, PromptInput{
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		SenderName:     in.SenderName,
		IsGroup:        in.IsGroup,
		Command:        cmd,
		Args:           args,
		Complement:     complement,
		Memory:         profile.MemoryNotes,
	})
	if err != nil {
		return Reply{}, err
	}

	text, err := d.processor.Process(ctx, cmd, in.SenderID, prompt, "")
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: text}, nil
}

// handleSummarize sends an acknowledgement before the slow AI call so the
// group knows the bot is working, then delivers the summary.
func (d *Dispatcher) handleSummarize(ctx context.Context, args string, in Inbound, profile *database.UserProfile) (Reply, error) {
	prompt, err := d.prompts.Build(ctx, PromptInput{
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		SenderName:     in.SenderName,
		IsGroup:        in.IsGroup,
		Command:        CommandSummarize,
		Args:           args,
		Memory:         profile.MemoryNotes,
	})
	if err != nil {
		return Reply{}, err
	}

	d.send(ctx, in, Reply{Text: msgSummarizeAck}, d.log)

	text, err := d.processor.Process(ctx, CommandSummarize, in.SenderID, prompt, "")
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: text}, nil
}

// handleRecall runs the two-stage flow: AI-generated SQL over the message
// log, then a second AI call answering from the matched rows.
func (d *Dispatcher) handleRecall(ctx context.Context, args string, in Inbound, profile *database.UserProfile) (Reply, error) {
	if args == "" {
		return Reply{}, ErrMissingArgs
	}

	count, err := d.store.CountMessages(ctx, in.ConversationID)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to count conversation history: %w", err)
	}
	if count < minContextMessages {
		return Reply{}, ErrTooFewMessages
	}

	history, err := d.recaller.FetchHistory(ctx, in.ConversationID, args)
	if err != nil {
		return Reply{}, err
	}

	prompt, err := d.prompts.Build(ctx, PromptInput{
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		SenderName:     in.SenderName,
		IsGroup:        in.IsGroup,
		Command:        CommandRecall,
		Args:           args,
		Complement:     history,
		Memory:         profile.MemoryNotes,
	})
	if err != nil {
		return Reply{}, err
	}

	text, err := d.processor.Process(ctx, CommandRecall, in.SenderID, prompt, "")
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: text}, nil
}

// handleTranslate is the one AI command with no conversation context: just a
// direct translation instruction.
func (d *Dispatcher) handleTranslate(ctx context.Context, args string, in Inbound) (Reply, error) {
	language, text, found := strings.Cut(args, " ")
	if text == "" && in.QuotedText != "" {
		text = in.QuotedText
		found = true
	}
	if !found || strings.TrimSpace(text) == "" || language == "" {
		return Reply{}, ErrMissingArgs
	}

	prompt := fmt.Sprintf("Traduza o texto a seguir para %s. Responda apenas com a tradução, sem comentários.\n\nTexto: %q", language, strings.TrimSpace(text))
	reply, err := d.processor.Process(ctx, CommandTranslate, in.SenderID, prompt, "")
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: reply}, nil
}

func (d *Dispatcher) handleNotes(profile *database.UserProfile) Reply {
	notes := strings.TrimSpace(profile.MemoryNotes)
	if notes == "" {
		return Reply{Text: msgNoNotes}
	}
	return Reply{Text: fmt.Sprintf("📝 *O que eu sei sobre você:*\n\n%s", notes)}
}

func (d *Dispatcher) handleCurrency(ctx context.Context, args string) (Reply, error) {
	if d.currency == nil {
		return Reply{}, ErrServiceKeyUnavailable
	}
	fields := strings.Fields(args)
	if len(fields) < 3 {
		return Reply{}, ErrMissingArgs
	}

	text, err := d.currency.Convert(ctx, fields[0], fields[1], fields[2])
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: text}, nil
}

// handleWeather routes "!clima cidade amanhã" to the forecast and everything
// else to current conditions.
func (d *Dispatcher) handleWeather(ctx context.Context, args string) (Reply, error) {
	if d.weather == nil {
		return Reply{}, ErrServiceKeyUnavailable
	}
	city := strings.TrimSpace(args)
	if city == "" {
		return Reply{}, ErrMissingArgs
	}

	lower := strings.ToLower(city)
	forecast := false
	for _, suffix := range []string{" amanhã", " amanha"} {
		if strings.HasSuffix(lower, suffix) {
			city = strings.TrimSpace(city[:len(city)-len(suffix)])
			forecast = true
			break
		}
	}
	if city == "" {
		return Reply{}, ErrMissingArgs
	}

	var (
		text string
		err  error
	)
	if forecast {
		text, err = d.weather.Forecast(ctx, city)
	} else {
		text, err = d.weather.Current(ctx, city)
	}
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: text}, nil
}

func (d *Dispatcher) handleGameStats(ctx context.Context, args string) (Reply, error) {
	if d.gameStats == nil {
		return Reply{}, ErrServiceKeyUnavailable
	}
	if strings.TrimSpace(args) == "" {
		return Reply{}, ErrMissingArgs
	}

	text, err := d.gameStats.Lookup(ctx, args)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: text}, nil
}

// handleTimeout bans the first mentioned user for the given number of
// minutes. Only reachable by the admin (gated in checkPreconditions).
func (d *Dispatcher) handleTimeout(ctx context.Context, args string, in Inbound) (Reply, error) {
	if len(in.Mentions) == 0 {
		return Reply{}, ErrMissingArgs
	}
	target := in.Mentions[0]

	minutes := 0
	for _, field := range strings.Fields(args) {
		if n, err := strconv.Atoi(field); err == nil && n > 0 {
			minutes = n
			break
		}
	}
	if minutes == 0 {
		return Reply{}, ErrNotANumber
	}

	until := d.now().Add(time.Duration(minutes) * time.Minute).Unix()
	if err := d.store.UpdateUserBan(ctx, target, until); err != nil {
		return Reply{}, err
	}

	d.log.InfoContext(ctx, "User timed out", "target", target, "minutes", minutes)
	return Reply{Text: fmt.Sprintf("🚫 Pronto. O engraçadinho vai ficar %d minuto(s) no cantinho do pensamento.", minutes)}, nil
}

// handleStatus reports quota state per model plus the online/offline flag.
func (d *Dispatcher) handleStatus(ctx context.Context) Reply {
	state := "🟢 Online"
	if !d.selector.HasAnyQuota() {
		state = "🔴 Desonline (cotas esgotadas)"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📊 *Status do Bostossauro*\n%s\n\n*Uso de hoje:*\n", state))

	snapshot := d.tracker.Snapshot()
	if len(snapshot) == 0 {
		sb.WriteString("Nenhuma chamada de IA ainda hoje.")
	} else {
		models := make([]string, 0, len(snapshot))
		for model := range snapshot {
			models = append(models, model)
		}
		sort.Strings(models)
		for _, model := range models {
			sb.WriteString(fmt.Sprintf("• %s: %d/%d\n", model, snapshot[model], d.selector.LimitFor(model)))
		}
	}
	return Reply{Text: strings.TrimSpace(sb.String())}
}

func (d *Dispatcher) handlePDF(in Inbound) Reply {
	if d.media == nil || !d.media.CanConvertPDF() {
		return Reply{Text: msgPDFUnavailable}
	}
	if !in.HasMedia && in.QuotedText == "" {
		return Reply{Text: helpFor("pdf")}
	}
	return Reply{Text: msgPDFUnavailable}
}

func (d *Dispatcher) handleSticker(in Inbound) Reply {
	if !in.HasMedia {
		return Reply{Text: helpFor("sticker")}
	}
	return Reply{Text: msgStickerBroken}
}
