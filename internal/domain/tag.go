package domain

import (
	"strings"
	"time"
)

// Document types stored in the backing document store.
const (
	TagDocumentType        = "media.tag"
	ImageAssetDocumentType = "sanity.imageAsset"
	FileAssetDocumentType  = "sanity.fileAsset"
	SlugType               = "slug"

	// DraftPrefix marks unpublished copies of a document. Draft tags are never
	// shown in the tag store.
	DraftPrefix = "drafts."
)

// AssetDocumentTypes lists every document type that can carry tag references.
var AssetDocumentTypes = []string{FileAssetDocumentType, ImageAssetDocumentType}

// Slug is a slug-like name structure. Current is the canonical string used
// for uniqueness checks and ordering.
type Slug struct {
	Type    string `json:"_type"`
	Current string `json:"current"`
}

// NewSlug builds a slug value for the given name.
func NewSlug(name string) Slug {
	return Slug{Type: SlugType, Current: name}
}

// Tag is a named document that assets reference for categorization.
// The ID is assigned by the backing store and never changes; Rev changes on
// every server-side mutation.
type Tag struct {
	CreatedAt time.Time `json:"_createdAt"`
	UpdatedAt time.Time `json:"_updatedAt"`
	ID        string    `json:"_id"`
	Type      string    `json:"_type"`
	Rev       string    `json:"_rev"`
	Name      Slug      `json:"name"`
}

// IsDraft reports whether the tag document is an unpublished draft.
func (t *Tag) IsDraft() bool {
	return strings.HasPrefix(t.ID, DraftPrefix)
}

// TagItem wraps a Tag with transient UI state owned by the tag store.
// It is never persisted remotely.
type TagItem struct {
	Error    *HTTPError `json:"error,omitempty"`
	Tag      Tag        `json:"tag"`
	Picked   bool       `json:"picked"`
	Updating bool       `json:"updating"`
}

// NewTagItem returns a fresh, unpicked store entry for a tag.
func NewTagItem(tag Tag) TagItem {
	return TagItem{Tag: tag}
}

// TagSelectOption maps a tag to a selectable option.
type TagSelectOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}
