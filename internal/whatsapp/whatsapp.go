// Package whatsapp adapts the whatsmeow client to the bot core: it owns the
// session, pairing, and the event loop, translating wire events into the
// transport-agnostic types the dispatcher consumes.
package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"bostossauro/internal/bot"
)

// Dispatcher is what the adapter needs from the bot core.
type Dispatcher interface {
	Handle(ctx context.Context, in bot.Inbound)
	SetSelfID(jid string)
}

// Adapter implements bot.Transport over a whatsmeow client.
type Adapter struct {
	log        *slog.Logger
	client     *whatsmeow.Client
	dispatcher Dispatcher

	mu     sync.Mutex
	selfID types.JID
}

// New opens (or creates) the session store at sessionPath and builds the
// client. Connect must be called before any send.
func New(ctx context.Context, sessionPath string, dispatcher Dispatcher, log *slog.Logger) (*Adapter, error) {
	logger := log.With("component", "whatsapp")

	container, err := sqlstore.New(ctx, "sqlite",
		fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)", sessionPath),
		newWALogger(logger.With("subsystem", "session_store")))
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load device: %w", err)
	}

	a := &Adapter{
		log:        logger,
		dispatcher: dispatcher,
	}
	a.client = whatsmeow.NewClient(device, newWALogger(logger.With("subsystem", "client")))
	a.client.AddEventHandler(a.handleEvent)
	return a, nil
}

// Connect establishes the socket session. On first run it prints the pairing
// QR code to the terminal and blocks until the phone scans it.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.client.Store.ID == nil {
		qrChan, err := a.client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("failed to get QR channel: %w", err)
		}
		if err := a.client.Connect(); err != nil {
			return fmt.Errorf("failed to connect for pairing: %w", err)
		}

		for evt := range qrChan {
			switch evt.Event {
			case "code":
				a.log.Info("Scan the QR code with WhatsApp to pair")
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)
			case "success":
				a.log.Info("Pairing successful")
			default:
				a.log.Debug("QR event", "event", evt.Event)
			}
		}
		return nil
	}

	if err := a.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	return nil
}

// Disconnect tears down the socket session.
func (a *Adapter) Disconnect() {
	a.client.Disconnect()
}

func (a *Adapter) handleEvent(evt any) {
	ctx := context.Background()

	switch v := evt.(type) {
	case *events.Connected:
		if a.client.Store.ID != nil {
			self := a.client.Store.ID.ToNonAD()
			a.mu.Lock()
			a.selfID = self
			a.mu.Unlock()
			a.dispatcher.SetSelfID(self.String())
			a.log.Info("Connected", "jid", self.String())
		}

	case *events.Message:
		in, ok := a.toInbound(v)
		if !ok {
			return
		}
		a.dispatcher.Handle(ctx, in)

	case *events.LoggedOut:
		a.log.Warn("Logged out by server, session must be re-paired", "reason", v.Reason)
	}
}

// toInbound flattens a wire message into the core's view of it. Messages the
// bot sent itself and empty protocol events are skipped.
func (a *Adapter) toInbound(evt *events.Message) (bot.Inbound, bool) {
	if evt.Info.IsFromMe {
		return bot.Inbound{}, false
	}

	msg := evt.Message
	if msg == nil {
		return bot.Inbound{}, false
	}

	text := msg.GetConversation()
	var contextInfo *waE2E.ContextInfo
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		text = ext.GetText()
		contextInfo = ext.GetContextInfo()
	}

	hasMedia := false
	if img := msg.GetImageMessage(); img != nil {
		hasMedia = true
		if text == "" {
			text = img.GetCaption()
		}
		if contextInfo == nil {
			contextInfo = img.GetContextInfo()
		}
	}
	if doc := msg.GetDocumentMessage(); doc != nil {
		hasMedia = true
		if text == "" {
			text = doc.GetCaption()
		}
	}
	if vid := msg.GetVideoMessage(); vid != nil {
		hasMedia = true
		if text == "" {
			text = vid.GetCaption()
		}
	}

	if text == "" && !hasMedia {
		return bot.Inbound{}, false
	}

	in := bot.Inbound{
		ConversationID: evt.Info.Chat.String(),
		SenderID:       evt.Info.Sender.ToNonAD().String(),
		SenderName:     evt.Info.PushName,
		Text:           text,
		ExternalID:     evt.Info.ID,
		Timestamp:      evt.Info.Timestamp,
		IsGroup:        evt.Info.IsGroup,
		HasMedia:       hasMedia,
	}

	if contextInfo != nil {
		in.Mentions = contextInfo.GetMentionedJID()
		if quoted := contextInfo.GetQuotedMessage(); quoted != nil {
			in.QuotedText = quoted.GetConversation()
			if ext := quoted.GetExtendedTextMessage(); ext != nil {
				in.QuotedText = ext.GetText()
			}
			in.QuotedFromBot = a.isSelf(contextInfo.GetParticipant())
		}
	}

	return in, true
}

func (a *Adapter) isSelf(jid string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.selfID.IsEmpty() || jid == "" {
		return false
	}
	parsed, err := types.ParseJID(jid)
	if err != nil {
		return false
	}
	return parsed.ToNonAD().User == a.selfID.User
}

// SendText sends a text message, quoting the original when opts carries a
// quoted id, and returns the assigned message id.
func (a *Adapter) SendText(ctx context.Context, conversationID, text string, opts *bot.SendOptions) (string, error) {
	to, err := types.ParseJID(conversationID)
	if err != nil {
		return "", fmt.Errorf("invalid conversation jid %s: %w", conversationID, err)
	}

	var msg *waE2E.Message
	if opts != nil && opts.QuotedExternalID != "" {
		msg = &waE2E.Message{
			ExtendedTextMessage: &waE2E.ExtendedTextMessage{
				Text: proto.String(text),
				ContextInfo: &waE2E.ContextInfo{
					StanzaID:      proto.String(opts.QuotedExternalID),
					Participant:   proto.String(opts.QuotedSenderID),
					QuotedMessage: &waE2E.Message{Conversation: proto.String("")},
					MentionedJID:  opts.Mentions,
				},
			},
		}
	} else {
		msg = &waE2E.Message{Conversation: proto.String(text)}
	}

	resp, err := a.client.SendMessage(ctx, to, msg)
	if err != nil {
		return "", fmt.Errorf("failed to send message to %s: %w", conversationID, err)
	}
	return resp.ID, nil
}

// SendSticker uploads the webp payload and sends it as a sticker.
func (a *Adapter) SendSticker(ctx context.Context, conversationID string, data []byte) (string, error) {
	to, err := types.ParseJID(conversationID)
	if err != nil {
		return "", fmt.Errorf("invalid conversation jid %s: %w", conversationID, err)
	}

	uploaded, err := a.client.Upload(ctx, data, whatsmeow.MediaImage)
	if err != nil {
		return "", fmt.Errorf("failed to upload sticker: %w", err)
	}

	msg := &waE2E.Message{
		StickerMessage: &waE2E.StickerMessage{
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
			Mimetype:      proto.String("image/webp"),
		},
	}

	resp, err := a.client.SendMessage(ctx, to, msg)
	if err != nil {
		return "", fmt.Errorf("failed to send sticker to %s: %w", conversationID, err)
	}
	return resp.ID, nil
}

// React attaches an emoji reaction to an existing message.
func (a *Adapter) React(ctx context.Context, conversationID, senderID, externalID, emoji string) error {
	chat, err := types.ParseJID(conversationID)
	if err != nil {
		return fmt.Errorf("invalid conversation jid %s: %w", conversationID, err)
	}
	sender, err := types.ParseJID(senderID)
	if err != nil {
		return fmt.Errorf("invalid sender jid %s: %w", senderID, err)
	}

	reaction := a.client.BuildReaction(chat, sender, externalID, emoji)
	if _, err := a.client.SendMessage(ctx, chat, reaction); err != nil {
		return fmt.Errorf("failed to send reaction: %w", err)
	}
	return nil
}
