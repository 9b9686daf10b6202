// Package search keeps a full-text index of tag names in step with the tag
// store, for filtering the tag list.
package search

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// TagIndex wraps a Bleve index of tag names.
//
// Thread safety: All public methods are safe for concurrent use.
// The mutex guards Close against in-flight operations.
type TagIndex struct {
	index  bleve.Index
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the tag index.
type Options struct {
	Logger *slog.Logger // Logger for operations (uses stderr if nil)
	// DataPath is the directory for index storage. Empty keeps the index in
	// memory only.
	DataPath string
}

// mappingVersion is incremented whenever the index mapping changes.
// An on-disk index with a different version is rebuilt on open.
const mappingVersion = "tags-1"

// NewTagIndex creates or opens a tag index.
func NewTagIndex(opts Options) (*TagIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	if opts.DataPath == "" {
		index, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create in-memory index: %w", err)
		}
		return &TagIndex{index: index, logger: logger}, nil
	}

	index, err := openOnDisk(opts.DataPath, logger)
	if err != nil {
		return nil, err
	}
	return &TagIndex{index: index, logger: logger}, nil
}

// openOnDisk opens the index under dataPath, recreating it when it is
// unreadable or was built with another mapping. The tag store refills it on
// the next fetch, so a rebuild loses nothing.
func openOnDisk(dataPath string, logger *slog.Logger) (bleve.Index, error) {
	indexPath := filepath.Join(dataPath, "tags.bleve")
	versionPath := filepath.Join(dataPath, "tags.version")

	if _, statErr := os.Stat(indexPath); statErr == nil {
		version, readErr := os.ReadFile(versionPath)
		if readErr == nil && string(version) == mappingVersion {
			index, err := bleve.Open(indexPath)
			if err == nil {
				logger.Info("opened existing tag index", "path", indexPath)
				return index, nil
			}
			logger.Warn("failed to open existing tag index, will recreate",
				"path", indexPath,
				"error", err,
			)
		} else {
			logger.Info("tag index mapping version changed, will rebuild",
				"old_version", string(version),
				"new_version", mappingVersion,
			)
		}
		if err := os.RemoveAll(indexPath); err != nil {
			return nil, fmt.Errorf("remove old index: %w", err)
		}
	}

	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	index, err := bleve.New(indexPath, buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); err != nil {
		logger.Warn("failed to write tag index version file", "error", err)
	}
	logger.Info("created new tag index", "path", indexPath, "mapping_version", mappingVersion)
	return index, nil
}

// Close closes the index and releases resources.
func (i *TagIndex) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.index.Close()
}

// IndexTags indexes tags in one batch, replacing earlier entries with the
// same ID.
func (i *TagIndex) IndexTags(docs []TagDocument) error {
	if len(docs) == 0 {
		return nil
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	batch := i.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
			return fmt.Errorf("batch index %s: %w", doc.ID, err)
		}
	}
	return i.index.Batch(batch)
}

// DeleteTags removes tags from the index. Unknown IDs are ignored.
func (i *TagIndex) DeleteTags(ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	batch := i.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	return i.index.Batch(batch)
}

// DocumentCount returns the total number of indexed tags.
func (i *TagIndex) DocumentCount() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.DocCount()
}

// Reset replaces the index contents with docs in one batch.
func (i *TagIndex) Reset(docs []TagDocument) error {
	i.mu.RLock()
	defer i.mu.RUnlock()

	count, err := i.index.DocCount()
	if err != nil {
		return fmt.Errorf("count documents: %w", err)
	}

	keep := make(map[string]struct{}, len(docs))
	batch := i.index.NewBatch()
	for _, doc := range docs {
		keep[doc.ID] = struct{}{}
		if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
			return fmt.Errorf("batch index %s: %w", doc.ID, err)
		}
	}

	if count > 0 {
		req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(count), 0, false)
		res, err := i.index.Search(req)
		if err != nil {
			return fmt.Errorf("list documents: %w", err)
		}
		for _, hit := range res.Hits {
			if _, ok := keep[hit.ID]; !ok {
				batch.Delete(hit.ID)
			}
		}
	}

	return i.index.Batch(batch)
}
