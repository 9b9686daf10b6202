package docstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: `
		CREATE TABLE IF NOT EXISTS documents (
			id       TEXT PRIMARY KEY,
			doc_type TEXT NOT NULL,
			body     TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_documents_type ON documents (doc_type);`,
	placeholder: func(int) string { return "?" },
}

// OpenSQLite opens (or creates) a SQLite document database at path.
func OpenSQLite(path string) (*SQLBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One connection keeps SQLite transactions serialized.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	return newSQLBackend(context.Background(), db, sqliteDialect)
}
