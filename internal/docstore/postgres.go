package docstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

const postgresOperationTimeout = 5 * time.Second

var postgresDialect = dialect{
	name: "postgres",
	schema: `
		CREATE TABLE IF NOT EXISTS documents (
			id       TEXT PRIMARY KEY,
			doc_type TEXT NOT NULL,
			body     TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_documents_type ON documents (doc_type);`,
	forUpdate:   " FOR UPDATE",
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
}

// OpenPostgres connects to PostgreSQL and ensures the documents table exists.
func OpenPostgres(dsn string) (*SQLBackend, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrInvalidInput
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), postgresOperationTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return newSQLBackend(ctx, db, postgresDialect)
}
