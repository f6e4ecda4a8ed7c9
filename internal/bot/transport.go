// Package bot contains the core of the bot: command classification and
// dispatch, prompt formulation, model selection, AI response processing,
// and the recall (AI-generated SQL) sub-flow.
package bot

import (
	"context"
	"time"
)

// Inbound is the transport-agnostic view of one received message.
type Inbound struct {
	ConversationID string
	SenderID       string
	SenderName     string
	Text           string
	ExternalID     string
	Timestamp      time.Time
	IsGroup        bool

	// QuotedText is the text of the message this one replies to, if any.
	QuotedText string
	// QuotedFromBot reports whether the quoted message was sent by the bot.
	QuotedFromBot bool

	Mentions []string
	HasMedia bool
}

// SendOptions carries optional send parameters.
type SendOptions struct {
	QuotedExternalID string
	QuotedSenderID   string
	Mentions         []string
}

// Transport is the outbound messaging surface the core needs. The socket
// session, reconnection, and wire protocol live behind it.
type Transport interface {
	// SendText sends a text message and returns the transport-assigned
	// external message id.
	SendText(ctx context.Context, conversationID, text string, opts *SendOptions) (string, error)

	// SendSticker sends a webp sticker and returns the external message id.
	SendSticker(ctx context.Context, conversationID string, data []byte) (string, error)

	// React attaches an emoji reaction to an existing message.
	React(ctx context.Context, conversationID, senderID, externalID, emoji string) error
}

// WeatherService answers current-weather and next-day-forecast queries.
type WeatherService interface {
	Current(ctx context.Context, city string) (string, error)
	Forecast(ctx context.Context, city string) (string, error)
}

// CurrencyService converts an amount between two currencies.
type CurrencyService interface {
	Convert(ctx context.Context, from, to, amount string) (string, error)
}

// GameStatsService looks up competitive stats for a "Nick #Tag" identity.
type GameStatsService interface {
	Lookup(ctx context.Context, query string) (string, error)
}

// MediaProvider produces media payloads for media-backed commands. The core
// only decides whether media can be produced; rendering lives elsewhere.
type MediaProvider interface {
	// Sticker returns the named sticker asset as webp bytes.
	Sticker(name string) ([]byte, error)

	// CanConvertPDF reports whether PDF conversion is available.
	CanConvertPDF() bool
}
