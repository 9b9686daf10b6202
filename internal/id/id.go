// Package id generates document IDs and revision tokens.
package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Generate returns a prefixed NanoID such as "tag-V1StGXR8_Z5jdHi6B-myT".
// An empty prefix returns the bare NanoID.
func Generate(prefix string) (string, error) {
	nid, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	if prefix == "" {
		return nid, nil
	}
	return prefix + "-" + nid, nil
}

// MustGenerate is like Generate but panics if the system has no entropy.
func MustGenerate(prefix string) string {
	v, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return v
}

// ForDocumentType derives an ID prefix from a document type, so
// "media.tag" becomes "tag" and "sanity.imageAsset" becomes "imageAsset".
func ForDocumentType(docType string) (string, error) {
	prefix := docType
	if i := strings.LastIndex(docType, "."); i >= 0 {
		prefix = docType[i+1:]
	}
	return Generate(prefix)
}

// Revision returns a new opaque revision token. Every committed mutation
// stamps the document with a fresh one.
func Revision() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
