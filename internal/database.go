package internal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS transcript_messages (
		session_id TEXT NOT NULL,
		position   INTEGER NOT NULL,
		message_id TEXT NOT NULL,
		role       TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		payload    TEXT NOT NULL,
		PRIMARY KEY (session_id, position)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transcript_messages_message ON transcript_messages(session_id, message_id)`,
}

// OpenDatabase opens (creating if needed) the local transcript database
func OpenDatabase(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, &StorageError{Path: path, Op: "open", Err: err}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps :memory: databases shared and avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	for _, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, &StorageError{Path: path, Op: "migrate", Err: err}
		}
	}

	return db, nil
}
