package docstore

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Tx is a backend transaction. A Tx obtained from Backend.Update sees its
// own writes and commits atomically.
type Tx interface {
	// Get returns the document or ErrNotFound.
	Get(id string) (Document, error)
	// Put inserts or replaces a document.
	Put(doc Document) error
	// Delete removes a document. Missing documents are ignored.
	Delete(id string) error
	// Scan calls fn for every document in ID order.
	Scan(fn func(Document) error) error
}

// Backend stores documents.
type Backend interface {
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(Tx) error) error
	// Update runs fn in a read-write transaction, committing if fn returns nil.
	Update(ctx context.Context, fn func(Tx) error) error
	// Name identifies the backend in logs and health output.
	Name() string
	Close() error
}

// OpenBackend builds a backend from a DSN:
//
//	memory://               in-memory Badger
//	badger:///var/lib/media Badger on disk
//	sqlite:///tmp/media.db  SQLite (modernc)
//	postgres://user@host/db PostgreSQL (lib/pq)
//
// A bare filesystem path is treated as a Badger directory.
func OpenBackend(dsn string) (Backend, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%w: empty docstore DSN", ErrInvalidInput)
	}
	if !strings.Contains(dsn, "://") {
		return OpenBadger(dsn)
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: parse DSN: %v", ErrInvalidInput, err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "memory", "mem", "inmem":
		return OpenMemory()
	case "badger", "file":
		path, err := dsnPath(parsed)
		if err != nil {
			return nil, err
		}
		return OpenBadger(path)
	case "sqlite", "sqlite3":
		path, err := dsnPath(parsed)
		if err != nil {
			return nil, err
		}
		return OpenSQLite(path)
	case "postgres", "postgresql":
		return OpenPostgres(dsn)
	default:
		return nil, fmt.Errorf("%w: unsupported docstore scheme %q", ErrInvalidInput, parsed.Scheme)
	}
}

// dsnPath extracts a filesystem path from URLs such as sqlite:///abs/path
// or sqlite://relative/path.
func dsnPath(u *url.URL) (string, error) {
	path := u.Path
	if u.Host != "" {
		path = filepath.Join(u.Host, u.Path)
	}
	if path == "" {
		return "", fmt.Errorf("%w: DSN %q has no path", ErrInvalidInput, u.String())
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Clean(path), nil
}
