package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Open opens (or creates) a SQLite database at the given path and enables WAL journal mode.
func Open(path string) (*sql.DB, error) {
	// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Single writer; readers share the WAL.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the recording table if it does not exist.
// Instants are unix microseconds (UTC) and lengths are microseconds so that
// ordering and aggregate arithmetic stay in integers.
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS recording (
            id TEXT PRIMARY KEY,
            file_path TEXT NOT NULL UNIQUE,
            begin_date INTEGER,
            audio_length INTEGER,
            source TEXT,
            sha256sum TEXT,
            disk_usage INTEGER
        );`,
		`CREATE INDEX IF NOT EXISTS recording_begin_date_idx ON recording (begin_date);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("sqlite schema: %w", err)
		}
	}
	return nil
}
