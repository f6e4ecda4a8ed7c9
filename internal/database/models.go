package database

import "time"

// Message represents one message in a WhatsApp conversation, either received
// from a participant or sent by the bot itself. The message log is append-only
// and is the source for conversation context and the recall feature.
type Message struct {
	ID uint `db:"id"`

	ConversationID string `db:"conversation_id"`
	Timestamp      int64  `db:"timestamp"` // unix seconds
	SenderID       string `db:"sender_id"`
	SenderName     string `db:"sender_name"`
	Content        string `db:"content"`

	// ExternalID is the transport-assigned message id. It is unique; inserting
	// a duplicate is silently ignored so redelivered messages don't duplicate rows.
	ExternalID string `db:"external_id"`
}

// UserProfile holds per-user state mutated by the bot: ban status, daily
// usage counters, and the free-text memory the AI maintains about the user.
type UserProfile struct {
	UserID      string `db:"user_id"`
	DisplayName string `db:"display_name"`

	// BannedUntil is a unix timestamp; zero or past means not banned.
	BannedUntil int64 `db:"banned_until"`

	DailyAICount        int    `db:"daily_ai_count"`
	DailyTranslateCount int    `db:"daily_translate_count"`
	LastUsageDate       string `db:"last_usage_date"` // dd/mm/yyyy

	// MemoryNotes is the AI-authored summary of what the bot knows about
	// this user, updated after each conversational exchange.
	MemoryNotes string `db:"memory_notes"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
