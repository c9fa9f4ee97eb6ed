package testutil

import (
	"database/sql"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

// InsertRow inserts raw column values into table, bypassing any store logic
func InsertRow(t *testing.T, db *sql.DB, table string, columns []string, values ...interface{}) {
	t.Helper()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	query := "INSERT INTO " + table + " (" + strings.Join(columns, ", ") + ") VALUES (" + placeholders + ")"
	if _, err := db.Exec(query, values...); err != nil {
		t.Fatalf("Failed to insert into %s: %v", table, err)
	}
}

// CountRows returns the number of rows in table matching where
func CountRows(t *testing.T, db *sql.DB, table, where string, args ...interface{}) int {
	t.Helper()
	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("Failed to count rows in %s: %v", table, err)
	}
	return n
}
