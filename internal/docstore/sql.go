package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// dialect captures the SQL differences between SQLite and PostgreSQL.
type dialect struct {
	name      string
	schema    string
	forUpdate string
	// placeholder returns the n-th (1-based) bind parameter.
	placeholder func(n int) string
}

func (d dialect) bind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(d.placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLBackend stores documents as JSON text in a single table.
type SQLBackend struct {
	db      *sql.DB
	dialect dialect
}

func newSQLBackend(ctx context.Context, db *sql.DB, d dialect) (*SQLBackend, error) {
	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec %s schema: %w", d.name, err)
	}
	return &SQLBackend{db: db, dialect: d}, nil
}

// Name implements Backend.
func (b *SQLBackend) Name() string { return b.dialect.name }

// View implements Backend.
func (b *SQLBackend) View(ctx context.Context, fn func(Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin read transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // nothing to commit

	return fn(&sqlTx{ctx: ctx, tx: tx, dialect: b.dialect})
}

// Update implements Backend.
func (b *SQLBackend) Update(ctx context.Context, fn func(Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&sqlTx{ctx: ctx, tx: tx, dialect: b.dialect, writable: true}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Close implements Backend.
func (b *SQLBackend) Close() error {
	return b.db.Close()
}

type sqlTx struct {
	ctx      context.Context
	tx       *sql.Tx
	dialect  dialect
	writable bool
}

func (t *sqlTx) Get(docID string) (Document, error) {
	query := `SELECT body FROM documents WHERE id = ?`
	if t.writable {
		query += t.dialect.forUpdate
	}

	var body string
	err := t.tx.QueryRowContext(t.ctx, t.dialect.bind(query), docID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound.WithMessage(fmt.Sprintf("document %q not found", docID))
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", docID, err)
	}
	return decodeBody(docID, body)
}

func (t *sqlTx) Put(doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", doc.ID(), err)
	}

	query := t.dialect.bind(`
		INSERT INTO documents (id, doc_type, body)
		VALUES (?, ?, ?)
		ON CONFLICT (id)
		DO UPDATE SET doc_type = EXCLUDED.doc_type, body = EXCLUDED.body`)
	if _, err := t.tx.ExecContext(t.ctx, query, doc.ID(), doc.Type(), string(data)); err != nil {
		return fmt.Errorf("put %s: %w", doc.ID(), err)
	}
	return nil
}

func (t *sqlTx) Delete(docID string) error {
	if _, err := t.tx.ExecContext(t.ctx, t.dialect.bind(`DELETE FROM documents WHERE id = ?`), docID); err != nil {
		return fmt.Errorf("delete %s: %w", docID, err)
	}
	return nil
}

func (t *sqlTx) Scan(fn func(Document) error) error {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT id, body FROM documents ORDER BY id`)
	if err != nil {
		return fmt.Errorf("scan documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var docID, body string
		if err := rows.Scan(&docID, &body); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		doc, err := decodeBody(docID, body)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return rows.Err()
}

func decodeBody(docID, body string) (Document, error) {
	var doc Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", docID, err)
	}
	return doc, nil
}
