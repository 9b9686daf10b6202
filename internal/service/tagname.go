package service

import (
	"context"
	"fmt"

	"github.com/upnorway/sanity-plugin-media/internal/docstore"
	"github.com/upnorway/sanity-plugin-media/internal/domain"
	"github.com/upnorway/sanity-plugin-media/internal/errors"
)

// NameAvailability is the outcome of a tag name check.
type NameAvailability int

// Name check outcomes.
const (
	NameAvailable NameAvailability = iota
	NameTaken
)

func (a NameAvailability) String() string {
	if a == NameTaken {
		return "conflict"
	}
	return "ok"
}

// tagNameFilter matches tag documents by name, drafts included.
const tagNameFilter = `_type == "` + domain.TagDocumentType + `" && name.current == $name`

// NameChecker guards tag creates and renames against duplicate names. The
// backing store does not enforce uniqueness of name.current itself.
type NameChecker struct {
	client docstore.Client
}

// NewNameChecker creates a name checker.
func NewNameChecker(client docstore.Client) *NameChecker {
	return &NameChecker{client: client}
}

// Availability reports whether any tag document already uses name.
func (c *NameChecker) Availability(ctx context.Context, name string) (NameAvailability, error) {
	docs, err := c.client.Fetch(ctx, docstore.Query{
		Filter: tagNameFilter,
		Params: map[string]any{"name": name},
	})
	if err != nil {
		return NameAvailable, fmt.Errorf("check tag name: %w", err)
	}
	if len(docs) > 0 {
		return NameTaken, nil
	}
	return NameAvailable, nil
}

// Ensure returns a name conflict error when name is taken.
func (c *NameChecker) Ensure(ctx context.Context, name string) error {
	availability, err := c.Availability(ctx, name)
	if err != nil {
		return err
	}
	if availability == NameTaken {
		return errors.NameConflict(name)
	}
	return nil
}
