package internal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// TranscriptStore retains each session's transcript locally, so an answer that
// arrives after a session switch is kept with the session it belongs to
type TranscriptStore struct {
	db *sql.DB
}

// NewTranscriptStore creates a new TranscriptStore instance
func NewTranscriptStore(db *sql.DB) *TranscriptStore {
	return &TranscriptStore{db: db}
}

// Close closes the underlying database
func (s *TranscriptStore) Close() error {
	return s.db.Close()
}

// SaveTranscript replaces the stored transcript of a session
func (s *TranscriptStore) SaveTranscript(ctx context.Context, sessionID string, messages []Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM transcript_messages WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to clear transcript: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO transcript_messages (session_id, position, message_id, role, created_at, payload) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, msg := range messages {
		payload, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal message %s: %w", msg.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, sessionID, i, msg.ID, string(msg.Role), msg.Timestamp.UnixMilli(), string(payload)); err != nil {
			return fmt.Errorf("failed to insert message %s: %w", msg.ID, err)
		}
	}

	return tx.Commit()
}

// LoadTranscript loads a session's stored transcript in order.
// An unknown session yields an empty transcript.
func (s *TranscriptStore) LoadTranscript(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT payload FROM transcript_messages WHERE session_id = ? ORDER BY position", sessionID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		var msg Message
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			LogWarn("Skipping unreadable message in session %s: %v", sessionID, err)
			continue
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return messages, nil
}

// DeleteTranscript removes a session's stored transcript
func (s *TranscriptStore) DeleteTranscript(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM transcript_messages WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	return nil
}

// SessionIDs lists the sessions with a stored transcript
func (s *TranscriptStore) SessionIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT session_id FROM transcript_messages ORDER BY session_id")
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
