package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// maxRecentLimit caps history queries to keep prompt sizes bounded.
const maxRecentLimit = 500

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// InsertMessage inserts a new message record. The insert is idempotent on
	// ExternalID: a duplicate is silently ignored, not an error.
	InsertMessage(ctx context.Context, message *Message) error

	// CountMessages returns how many messages are stored for a conversation.
	CountMessages(ctx context.Context, conversationID string) (int, error)

	// GetRecentMessages retrieves the most recent 'limit' messages for a
	// conversation, most recent first. When excludeMarker is non-empty,
	// messages containing it are skipped (keeps old summaries out of prompts).
	GetRecentMessages(ctx context.Context, conversationID string, limit int, excludeMarker string) ([]Message, error)

	// GetSenderMessages retrieves the sender's most recent messages within a
	// conversation, most recent first.
	GetSenderMessages(ctx context.Context, conversationID, senderID string, limit int) ([]Message, error)

	// QueryRecallRows executes a raw SELECT against the read-only pool and
	// returns the rows as column-keyed maps. Used only by the recall sub-flow.
	QueryRecallRows(ctx context.Context, sqlText string) ([]map[string]any, error)

	// GetOrCreateUser loads a user profile, lazily creating it on first contact.
	GetOrCreateUser(ctx context.Context, userID, displayName string) (*UserProfile, error)

	// UpdateUserMemory replaces the user's AI-maintained memory notes.
	UpdateUserMemory(ctx context.Context, userID, notes string) error

	// UpdateUserBan sets the user's banned-until timestamp (unix seconds).
	UpdateUserBan(ctx context.Context, userID string, until int64) error

	// UpdateUserCounters persists the daily usage counters and their date.
	UpdateUserCounters(ctx context.Context, profile *UserProfile) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
// It holds two pools: the main read-write pool and a read-only pool reserved
// for the recall sub-flow's AI-authored queries.
type sqlxStore struct {
	db     *sqlx.DB
	roDB   *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// roDB may be nil, in which case QueryRecallRows refuses to run.
func NewStore(db, roDB *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		roDB:   roDB,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) InsertMessage(ctx context.Context, message *Message) error {
	if message == nil {
		return fmt.Errorf("cannot save nil message")
	}
	if message.ConversationID == "" {
		return fmt.Errorf("message must have a non-empty conversation_id")
	}
	if message.SenderID == "" {
		return fmt.Errorf("message must have a non-empty sender_id")
	}
	if message.ExternalID == "" {
		return fmt.Errorf("message must have a non-empty external_id")
	}
	if message.Timestamp == 0 {
		message.Timestamp = time.Now().Unix()
	}

	query := `
        INSERT OR IGNORE INTO messages (conversation_id, timestamp, sender_id, sender_name, content, external_id)
        VALUES (:conversation_id, :timestamp, :sender_id, :sender_name, :content, :external_id);
    `

	result, err := s.db.NamedExecContext(ctx, query, message)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving message",
			"conversation_id", message.ConversationID, "sender_id", message.SenderID, "error", err)
		return fmt.Errorf("failed to save message (conversation %s): %w", message.ConversationID, err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		// Duplicate external id: the transport redelivered a message we
		// already have. This is the expected idempotent path.
		s.logger.DebugContext(ctx, "Duplicate message ignored",
			"conversation_id", message.ConversationID, "external_id", message.ExternalID)
		return nil
	}

	if id, err := result.LastInsertId(); err == nil {
		message.ID = uint(id) //nolint:gosec // row ids stay well within range
	}

	s.logger.DebugContext(ctx, "Message saved successfully",
		"conversation_id", message.ConversationID, "message_id", message.ID)
	return nil
}

func (s *sqlxStore) CountMessages(ctx context.Context, conversationID string) (int, error) {
	if conversationID == "" {
		return 0, fmt.Errorf("conversation_id cannot be empty")
	}

	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conversationID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error counting messages", "conversation_id", conversationID, "error", err)
		return 0, fmt.Errorf("failed to count messages for conversation %s: %w", conversationID, err)
	}
	return count, nil
}

func (s *sqlxStore) GetRecentMessages(ctx context.Context, conversationID string, limit int, excludeMarker string) ([]Message, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("conversation_id cannot be empty")
	}
	if limit <= 0 {
		limit = 50
		s.logger.DebugContext(ctx, "Invalid limit provided, using default",
			"conversation_id", conversationID, "default_limit", limit)
	} else if limit > maxRecentLimit {
		limit = maxRecentLimit
		s.logger.DebugContext(ctx, "Limit exceeded maximum value, capping",
			"conversation_id", conversationID, "capped_limit", limit)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var messages []Message
	var err error
	if excludeMarker != "" {
		query := `
            SELECT id, conversation_id, timestamp, sender_id, COALESCE(sender_name, '') AS sender_name, content, external_id
            FROM messages
            WHERE conversation_id = ? AND content NOT LIKE ?
            ORDER BY timestamp DESC
            LIMIT ?;
        `
		err = s.db.SelectContext(ctx, &messages, query, conversationID, "%"+excludeMarker+"%", limit)
	} else {
		query := `
            SELECT id, conversation_id, timestamp, sender_id, COALESCE(sender_name, '') AS sender_name, content, external_id
            FROM messages
            WHERE conversation_id = ?
            ORDER BY timestamp DESC
            LIMIT ?;
        `
		err = s.db.SelectContext(ctx, &messages, query, conversationID, limit)
	}

	if err != nil {
		s.logger.ErrorContext(ctx, "Error getting recent messages",
			"conversation_id", conversationID, "limit", limit, "error", err)
		return nil, fmt.Errorf("failed to get recent messages for conversation %s: %w", conversationID, err)
	}

	s.logger.DebugContext(ctx, "Fetched recent messages successfully",
		"conversation_id", conversationID, "count", len(messages))
	return messages, nil
}

func (s *sqlxStore) GetSenderMessages(ctx context.Context, conversationID, senderID string, limit int) ([]Message, error) {
	if conversationID == "" || senderID == "" {
		return nil, fmt.Errorf("conversation_id and sender_id cannot be empty")
	}
	if limit <= 0 || limit > maxRecentLimit {
		limit = 20
	}

	var messages []Message
	query := `
        SELECT id, conversation_id, timestamp, sender_id, COALESCE(sender_name, '') AS sender_name, content, external_id
        FROM messages
        WHERE conversation_id = ? AND sender_id = ?
        ORDER BY timestamp DESC
        LIMIT ?;
    `
	if err := s.db.SelectContext(ctx, &messages, query, conversationID, senderID, limit); err != nil {
		s.logger.ErrorContext(ctx, "Error getting sender messages",
			"conversation_id", conversationID, "sender_id", senderID, "error", err)
		return nil, fmt.Errorf("failed to get sender messages for %s: %w", senderID, err)
	}
	return messages, nil
}

func (s *sqlxStore) QueryRecallRows(ctx context.Context, sqlText string) ([]map[string]any, error) {
	if s.roDB == nil {
		return nil, fmt.Errorf("read-only pool not configured, refusing to run raw query")
	}
	if sqlText == "" {
		return nil, fmt.Errorf("empty recall query")
	}

	rows, err := s.roDB.QueryxContext(ctx, sqlText)
	if err != nil {
		s.logger.WarnContext(ctx, "Recall query failed", "error", err)
		return nil, fmt.Errorf("recall query failed: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.WarnContext(ctx, "Error closing recall rows", "error", closeErr)
		}
	}()

	var result []map[string]any
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan recall row: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recall row iteration failed: %w", err)
	}

	s.logger.DebugContext(ctx, "Recall query executed", "rows", len(result))
	return result, nil
}

func (s *sqlxStore) GetOrCreateUser(ctx context.Context, userID, displayName string) (*UserProfile, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id cannot be empty")
	}

	var profile UserProfile
	query := `SELECT user_id, display_name, banned_until, daily_ai_count, daily_translate_count,
	                 last_usage_date, memory_notes, created_at, updated_at
	          FROM user_profiles WHERE user_id = ?`

	err := s.db.GetContext(ctx, &profile, query, userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		now := time.Now().UTC()
		profile = UserProfile{
			UserID:      userID,
			DisplayName: displayName,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		insert := `
            INSERT OR IGNORE INTO user_profiles (user_id, display_name, banned_until, daily_ai_count,
                daily_translate_count, last_usage_date, memory_notes, created_at, updated_at)
            VALUES (:user_id, :display_name, 0, 0, 0, '', '', :created_at, :updated_at)
        `
		if _, insErr := s.db.NamedExecContext(ctx, insert, &profile); insErr != nil {
			s.logger.ErrorContext(ctx, "Error creating user profile", "user_id", userID, "error", insErr)
			return nil, fmt.Errorf("failed to create user profile for %s: %w", userID, insErr)
		}
		s.logger.InfoContext(ctx, "User profile created", "user_id", userID)
		return &profile, nil

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting user profile", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get user profile for %s: %w", userID, err)
	}

	if displayName != "" && displayName != profile.DisplayName {
		profile.DisplayName = displayName
		if _, updErr := s.db.ExecContext(ctx,
			`UPDATE user_profiles SET display_name = ?, updated_at = ? WHERE user_id = ?`,
			displayName, time.Now().UTC(), userID); updErr != nil {
			s.logger.WarnContext(ctx, "Failed to refresh display name", "user_id", userID, "error", updErr)
		}
	}

	return &profile, nil
}

func (s *sqlxStore) UpdateUserMemory(ctx context.Context, userID, notes string) error {
	if userID == "" {
		return fmt.Errorf("user_id cannot be empty")
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE user_profiles SET memory_notes = ?, updated_at = ? WHERE user_id = ?`,
		notes, time.Now().UTC(), userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating user memory", "user_id", userID, "error", err)
		return fmt.Errorf("failed to update memory for %s: %w", userID, err)
	}
	s.logger.DebugContext(ctx, "User memory updated", "user_id", userID, "notes_len", len(notes))
	return nil
}

func (s *sqlxStore) UpdateUserBan(ctx context.Context, userID string, until int64) error {
	if userID == "" {
		return fmt.Errorf("user_id cannot be empty")
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE user_profiles SET banned_until = ?, updated_at = ? WHERE user_id = ?`,
		until, time.Now().UTC(), userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating user ban", "user_id", userID, "error", err)
		return fmt.Errorf("failed to update ban for %s: %w", userID, err)
	}
	return nil
}

func (s *sqlxStore) UpdateUserCounters(ctx context.Context, profile *UserProfile) error {
	if profile == nil {
		return fmt.Errorf("cannot save nil user profile")
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE user_profiles SET daily_ai_count = ?, daily_translate_count = ?, last_usage_date = ?, updated_at = ?
		 WHERE user_id = ?`,
		profile.DailyAICount, profile.DailyTranslateCount, profile.LastUsageDate,
		time.Now().UTC(), profile.UserID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating user counters", "user_id", profile.UserID, "error", err)
		return fmt.Errorf("failed to update counters for %s: %w", profile.UserID, err)
	}
	return nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite.
	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}
