package docstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
)

type patchOp func(Document) error

// Patch is a partial update of one document. Operations apply in the order
// they were added.
type Patch struct {
	store        *Store
	id           string
	ifRevisionID string
	ops          []patchOp
}

// ID returns the patched document ID.
func (p *Patch) ID() string { return p.id }

// Set writes each field. Keys may be dotted paths such as "name.current";
// they apply in sorted order so a parent path is written before its children.
func (p *Patch) Set(fields map[string]any) *Patch {
	for _, path := range slices.Sorted(maps.Keys(fields)) {
		value := fields[path]
		p.ops = append(p.ops, func(doc Document) error {
			if isSystemField(path) {
				return ErrInvalidInput.WithMessage(fmt.Sprintf("cannot set system field %q", path))
			}
			v, err := normalizeValue(value)
			if err != nil {
				return err
			}
			return doc.setPath(path, v)
		})
	}
	return p
}

// Unset removes each dotted path.
func (p *Patch) Unset(paths ...string) *Patch {
	for _, path := range paths {
		p.ops = append(p.ops, func(doc Document) error {
			if isSystemField(path) {
				return ErrInvalidInput.WithMessage(fmt.Sprintf("cannot unset system field %q", path))
			}
			doc.unsetPath(path)
			return nil
		})
	}
	return p
}

// RemoveReferences drops every entry of the array at path whose _ref is
// ref, leaving other entries in order.
func (p *Patch) RemoveReferences(path, ref string) *Patch {
	p.ops = append(p.ops, func(doc Document) error {
		doc.removeReferences(path, ref)
		return nil
	})
	return p
}

// IfRevisionID makes the patch fail with a revision conflict unless the
// document's current revision is rev.
func (p *Patch) IfRevisionID(rev string) *Patch {
	p.ifRevisionID = rev
	return p
}

// Commit applies the patch and returns the updated document.
func (p *Patch) Commit(ctx context.Context) (Document, error) {
	results, err := p.store.commit(ctx, []mutation{{kind: mutationPatch, id: p.id, patch: p}})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// Transaction is an atomic multi-document mutation.
type Transaction struct {
	store     *Store
	mutations []mutation
}

// Create adds a document creation.
func (t *Transaction) Create(doc Document) *Transaction {
	t.mutations = append(t.mutations, mutation{kind: mutationCreate, doc: doc})
	return t
}

// Patch adds a patch of docID built by fn.
func (t *Transaction) Patch(docID string, fn func(*Patch)) *Transaction {
	p := &Patch{store: t.store, id: docID}
	if fn != nil {
		fn(p)
	}
	t.mutations = append(t.mutations, mutation{kind: mutationPatch, id: docID, patch: p})
	return t
}

// Delete adds a document deletion.
func (t *Transaction) Delete(docID string) *Transaction {
	t.mutations = append(t.mutations, mutation{kind: mutationDelete, id: docID})
	return t
}

// Len returns the number of queued mutations.
func (t *Transaction) Len() int {
	return len(t.mutations)
}

// TransactionResult describes a committed transaction.
type TransactionResult struct {
	// Documents holds the written document per create or patch mutation,
	// in submission order.
	Documents []Document
	// DocumentIDs lists every mutated document ID in submission order.
	DocumentIDs []string
}

// Commit applies every mutation atomically. A failed revision precondition
// or missing patch target aborts the whole transaction.
func (t *Transaction) Commit(ctx context.Context) (TransactionResult, error) {
	if len(t.mutations) == 0 {
		return TransactionResult{}, nil
	}

	results, err := t.store.commit(ctx, t.mutations)
	if err != nil {
		return TransactionResult{}, err
	}

	out := TransactionResult{DocumentIDs: make([]string, 0, len(t.mutations))}
	for i, m := range t.mutations {
		switch m.kind {
		case mutationDelete:
			out.DocumentIDs = append(out.DocumentIDs, m.id)
		default:
			out.Documents = append(out.Documents, results[i])
			out.DocumentIDs = append(out.DocumentIDs, results[i].ID())
		}
	}
	return out, nil
}

func isSystemField(path string) bool {
	return strings.HasPrefix(path, "_") && !strings.Contains(path, ".")
}
