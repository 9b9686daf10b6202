package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/upnorway/sanity-plugin-media/internal/id"
)

// Client is the backing-store capability surface used by the tag services.
type Client interface {
	// Fetch returns every document matching q.
	Fetch(ctx context.Context, q Query) ([]Document, error)
	// Get returns a single document or ErrNotFound.
	Get(ctx context.Context, docID string) (Document, error)
	// Create inserts a document. The store assigns _id when absent, and
	// always assigns _rev and timestamps.
	Create(ctx context.Context, doc Document) (Document, error)
	// Patch starts a partial update of one document.
	Patch(docID string) *Patch
	// Transaction starts an atomic multi-document mutation.
	Transaction() *Transaction
	// Listen streams mutations affecting documents that match q until ctx
	// is done.
	Listen(ctx context.Context, q Query) (<-chan MutationEvent, error)
}

// Options configures a Store.
type Options struct {
	Logger *slog.Logger
	// Now overrides the clock used for document timestamps.
	Now func() time.Time
	// ListenerBuffer is the per-listener event buffer (default 256).
	ListenerBuffer int
}

// Store implements Client over a Backend. Commits are serialized so the
// realtime feed observes mutations in commit order.
type Store struct {
	backend Backend
	queries *queryCache
	hub     *listenerHub
	logger  *slog.Logger
	now     func() time.Time
	mu      sync.Mutex
}

var _ Client = (*Store)(nil)

// New wraps a backend.
func New(backend Backend, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	buffer := opts.ListenerBuffer
	if buffer <= 0 {
		buffer = 256
	}

	return &Store{
		backend: backend,
		queries: newQueryCache(),
		hub:     newListenerHub(logger, buffer),
		logger:  logger,
		now:     now,
	}
}

// Open builds a backend from dsn and wraps it.
func Open(dsn string, opts Options) (*Store, error) {
	backend, err := OpenBackend(dsn)
	if err != nil {
		return nil, err
	}
	s := New(backend, opts)
	s.logger.Info("document store opened", slog.String("backend", backend.Name()))
	return s, nil
}

// Backend returns the underlying backend name.
func (s *Store) Backend() string {
	return s.backend.Name()
}

// Close stops all listeners and closes the backend.
func (s *Store) Close() error {
	s.hub.close()
	return s.backend.Close()
}

// Ping verifies the backend can serve a read.
func (s *Store) Ping(ctx context.Context) error {
	return s.backend.View(ctx, func(tx Tx) error {
		_, err := tx.Get("__ping__")
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	})
}

// Fetch implements Client.
func (s *Store) Fetch(ctx context.Context, q Query) ([]Document, error) {
	cq, err := s.queries.compile(q)
	if err != nil {
		return nil, err
	}

	var docs []Document
	err = s.backend.View(ctx, func(tx Tx) error {
		return tx.Scan(func(doc Document) error {
			if cq.matches(doc) {
				docs = append(docs, doc)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	cq.sort(docs)
	return docs, nil
}

// Get implements Client.
func (s *Store) Get(ctx context.Context, docID string) (Document, error) {
	var doc Document
	err := s.backend.View(ctx, func(tx Tx) error {
		var err error
		doc, err = tx.Get(docID)
		return err
	})
	return doc, err
}

// Create implements Client.
func (s *Store) Create(ctx context.Context, doc Document) (Document, error) {
	results, err := s.commit(ctx, []mutation{{kind: mutationCreate, doc: doc}})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// Patch implements Client.
func (s *Store) Patch(docID string) *Patch {
	return &Patch{store: s, id: docID}
}

// Transaction implements Client.
func (s *Store) Transaction() *Transaction {
	return &Transaction{store: s}
}

// Listen implements Client.
func (s *Store) Listen(ctx context.Context, q Query) (<-chan MutationEvent, error) {
	cq, err := s.queries.compile(q)
	if err != nil {
		return nil, err
	}
	return s.hub.subscribe(ctx, cq)
}

type mutationKind int

const (
	mutationCreate mutationKind = iota
	mutationPatch
	mutationDelete
)

type mutation struct {
	doc   Document
	patch *Patch
	id    string
	kind  mutationKind
}

// commit applies mutations in one backend transaction. Either every
// mutation is applied or none is. Results hold the written document for
// each create and patch (nil for deletes).
func (s *Store) commit(ctx context.Context, muts []mutation) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	results := make([]Document, len(muts))
	var changes []change

	err := s.backend.Update(ctx, func(tx Tx) error {
		changes = changes[:0]
		for i, m := range muts {
			var c change
			var err error
			switch m.kind {
			case mutationCreate:
				c, err = applyCreate(tx, m.doc, now)
			case mutationPatch:
				c, err = applyPatch(tx, m.patch, now)
			case mutationDelete:
				c, err = applyDelete(tx, m.id)
			}
			if err != nil {
				return err
			}
			results[i] = c.result
			if c.id != "" {
				changes = append(changes, c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.hub.publish(changes, now)
	return results, nil
}

func applyCreate(tx Tx, input Document, now time.Time) (change, error) {
	if input.Type() == "" {
		return change{}, ErrInvalidInput.WithMessage("document _type is required")
	}

	doc, err := normalizeDocument(input)
	if err != nil {
		return change{}, err
	}

	if doc.ID() == "" {
		docID, err := id.ForDocumentType(doc.Type())
		if err != nil {
			return change{}, err
		}
		doc[FieldID] = docID
	} else if _, err := tx.Get(doc.ID()); err == nil {
		return change{}, ErrAlreadyExists.WithMessage(fmt.Sprintf("document %q already exists", doc.ID()))
	} else if !errors.Is(err, ErrNotFound) {
		return change{}, err
	}

	stamp := now.Format(time.RFC3339Nano)
	doc[FieldRev] = id.Revision()
	doc[FieldCreatedAt] = stamp
	doc[FieldUpdatedAt] = stamp

	if err := tx.Put(doc); err != nil {
		return change{}, err
	}
	return change{id: doc.ID(), result: doc.Clone()}, nil
}

func applyPatch(tx Tx, p *Patch, now time.Time) (change, error) {
	current, err := tx.Get(p.id)
	if err != nil {
		return change{}, err
	}
	if p.ifRevisionID != "" && current.Rev() != p.ifRevisionID {
		return change{}, &RevisionConflictError{
			DocumentID: p.id,
			Expected:   p.ifRevisionID,
			Current:    current.Rev(),
		}
	}

	next := current.Clone()
	for _, op := range p.ops {
		if err := op(next); err != nil {
			return change{}, err
		}
	}

	next[FieldID] = current.ID()
	next[FieldType] = current.Type()
	next[FieldCreatedAt] = current[FieldCreatedAt]
	next[FieldRev] = id.Revision()
	next[FieldUpdatedAt] = now.Format(time.RFC3339Nano)

	if err := tx.Put(next); err != nil {
		return change{}, err
	}
	return change{id: p.id, previous: current, result: next.Clone()}, nil
}

func applyDelete(tx Tx, docID string) (change, error) {
	current, err := tx.Get(docID)
	if errors.Is(err, ErrNotFound) {
		return change{}, nil
	}
	if err != nil {
		return change{}, err
	}
	if err := tx.Delete(docID); err != nil {
		return change{}, err
	}
	return change{id: docID, previous: current}, nil
}

func normalizeDocument(input Document) (Document, error) {
	v, err := normalizeValue(map[string]any(input))
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, ErrInvalidInput.WithMessage("document must be an object")
	}
	return Document(m), nil
}
