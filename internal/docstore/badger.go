package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const docPrefix = "doc:"

func docKey(id string) []byte {
	return []byte(docPrefix + id)
}

// BadgerBackend stores documents as JSON values in Badger.
type BadgerBackend struct {
	db   *badger.DB
	name string
}

// OpenBadger opens a Badger database in the given directory.
func OpenBadger(path string) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.SyncWrites = true
	opts.CompactL0OnClose = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	return &BadgerBackend{db: db, name: "badger"}, nil
}

// OpenMemory opens an in-memory Badger database. Data is lost on Close.
func OpenMemory() (*BadgerBackend, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory badger db: %w", err)
	}
	return &BadgerBackend{db: db, name: "memory"}, nil
}

// Name implements Backend.
func (b *BadgerBackend) Name() string { return b.name }

// View implements Backend.
func (b *BadgerBackend) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.View(func(txn *badger.Txn) error {
		return fn(&badgerTx{txn: txn})
	})
}

// Update implements Backend.
func (b *BadgerBackend) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return fn(&badgerTx{txn: txn})
	})
}

// Close implements Backend.
func (b *BadgerBackend) Close() error {
	return b.db.Close()
}

type badgerTx struct {
	txn *badger.Txn
}

func (t *badgerTx) Get(docID string) (Document, error) {
	item, err := t.txn.Get(docKey(docID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound.WithMessage(fmt.Sprintf("document %q not found", docID))
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", docID, err)
	}

	var doc Document
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &doc)
	})
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", docID, err)
	}
	return doc, nil
}

func (t *badgerTx) Put(doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", doc.ID(), err)
	}
	return t.txn.Set(docKey(doc.ID()), data)
}

func (t *badgerTx) Delete(docID string) error {
	return t.txn.Delete(docKey(docID))
}

func (t *badgerTx) Scan(fn func(Document) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(docPrefix)

	it := t.txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		var doc Document
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		})
		if err != nil {
			return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}
