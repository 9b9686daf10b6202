// Package docstore is a transactional JSON document store with
// revision-gated writes, expression queries, and a realtime mutation feed.
package docstore

import (
	"encoding/json"
	"fmt"
	"strings"
)

// System field names present on every stored document.
const (
	FieldID        = "_id"
	FieldType      = "_type"
	FieldRev       = "_rev"
	FieldCreatedAt = "_createdAt"
	FieldUpdatedAt = "_updatedAt"
)

// Document is a JSON object. Nested objects are map[string]any and arrays
// are []any, exactly as produced by encoding/json.
type Document map[string]any

// ID returns the document ID.
func (d Document) ID() string {
	return d.str(FieldID)
}

// Type returns the document type.
func (d Document) Type() string {
	return d.str(FieldType)
}

// Rev returns the current revision token.
func (d Document) Rev() string {
	return d.str(FieldRev)
}

func (d Document) str(key string) string {
	v, _ := d[key].(string)
	return v
}

// Decode unmarshals the document into v.
func (d Document) Decode(v any) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode document %s: %w", d.ID(), err)
	}
	return nil
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneValue(map[string]any(d)).(map[string]any)
}

// Encode converts a struct or map into a Document.
func Encode(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return doc, nil
}

// Lookup resolves a dotted path such as "name.current".
func (d Document) Lookup(path string) (any, bool) {
	var cur any = map[string]any(d)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// setPath writes value at a dotted path, creating intermediate objects.
func (d Document) setPath(path string, value any) error {
	parts := strings.Split(path, ".")
	cur := map[string]any(d)
	for i, part := range parts[:len(parts)-1] {
		next, ok := cur[part]
		if !ok || next == nil {
			child := map[string]any{}
			cur[part] = child
			cur = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %s is not an object", ErrInvalidInput, strings.Join(parts[:i+1], "."))
		}
		cur = child
	}
	cur[parts[len(parts)-1]] = value
	return nil
}

// unsetPath removes the value at a dotted path. Missing paths are ignored.
func (d Document) unsetPath(path string) {
	parts := strings.Split(path, ".")
	cur := map[string]any(d)
	for _, part := range parts[:len(parts)-1] {
		child, ok := cur[part].(map[string]any)
		if !ok {
			return
		}
		cur = child
	}
	delete(cur, parts[len(parts)-1])
}

// removeReferences drops every entry of the array at path whose _ref equals
// ref. It reports how many entries were removed.
func (d Document) removeReferences(path, ref string) int {
	v, ok := d.Lookup(path)
	if !ok {
		return 0
	}
	items, ok := v.([]any)
	if !ok {
		return 0
	}

	kept := make([]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok && m["_ref"] == ref {
			continue
		}
		kept = append(kept, item)
	}
	removed := len(items) - len(kept)
	if removed > 0 {
		_ = d.setPath(path, kept)
	}
	return removed
}

// references reports whether any _ref anywhere in v equals target.
func references(v any, target string) bool {
	switch t := v.(type) {
	case map[string]any:
		if ref, ok := t["_ref"].(string); ok && ref == target {
			return true
		}
		for _, child := range t {
			if references(child, target) {
				return true
			}
		}
	case Document:
		return references(map[string]any(t), target)
	case []any:
		for _, child := range t {
			if references(child, target) {
				return true
			}
		}
	}
	return false
}

// normalizeValue converts typed Go values into their JSON object form so
// stored documents only hold maps, slices, and scalars.
func normalizeValue(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, float64:
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return out, nil
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = cloneValue(child)
		}
		return out
	case Document:
		return cloneValue(map[string]any(t))
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = cloneValue(child)
		}
		return out
	default:
		return v
	}
}
