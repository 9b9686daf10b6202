package search

import (
	"strings"

	"github.com/upnorway/sanity-plugin-media/internal/domain"
)

// TagDocument is the indexed form of a tag.
type TagDocument struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewTagDocument builds the indexed form of tag.
func NewTagDocument(tag domain.Tag) TagDocument {
	return TagDocument{ID: tag.ID, Name: tag.Name.Current}
}

// NewTagDocuments builds indexed forms for tags.
func NewTagDocuments(tags []domain.Tag) []TagDocument {
	docs := make([]TagDocument, 0, len(tags))
	for _, tag := range tags {
		docs = append(docs, NewTagDocument(tag))
	}
	return docs
}

// ToMap converts the document to the field names used by the mapping.
func (d TagDocument) ToMap() map[string]any {
	return map[string]any{
		"id":         d.ID,
		"name":       d.Name,
		"name_exact": strings.ToLower(d.Name),
	}
}
