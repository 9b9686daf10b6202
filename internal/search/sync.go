package search

import (
	"context"
	"log/slog"

	"github.com/upnorway/sanity-plugin-media/internal/domain"
	"github.com/upnorway/sanity-plugin-media/internal/tagstore"
)

// Syncer applies tag store transitions that change the tag set to the index.
type Syncer struct {
	index  *TagIndex
	store  *tagstore.Store
	logger *slog.Logger
}

// NewSyncer creates a syncer.
func NewSyncer(index *TagIndex, store *tagstore.Store, logger *slog.Logger) *Syncer {
	return &Syncer{index: index, store: store, logger: logger}
}

// syncedTypes are the transitions that add, rename, or drop tags.
var syncedTypes = []tagstore.ActionType{
	tagstore.TypeFetchComplete,
	tagstore.TypeCreateComplete,
	tagstore.TypeUpdateComplete,
	tagstore.TypeDeleteComplete,
	tagstore.TypeListenerCreateQueueComplete,
	tagstore.TypeListenerUpdateQueueComplete,
	tagstore.TypeListenerDeleteQueueComplete,
}

// Run indexes transitions until ctx is done. The index starts from the
// store's current tags.
func (s *Syncer) Run(ctx context.Context) error {
	sub := s.store.Subscribe(syncedTypes...)
	defer sub.Close()

	if err := s.index.Reset(NewTagDocuments(tagsOf(s.store.State()))); err != nil {
		s.logger.Warn("tag index seed failed", slog.String("error", err.Error()))
	}

	for {
		d, err := sub.Next(ctx)
		if err != nil {
			return nil
		}
		if err := s.Apply(d.Action); err != nil {
			s.logger.Warn("tag index update failed",
				slog.String("action", string(d.Action.Type())),
				slog.String("error", err.Error()))
		}
	}
}

// Apply updates the index for a single transition.
func (s *Syncer) Apply(a tagstore.Action) error {
	switch a := a.(type) {
	case tagstore.FetchComplete:
		return s.index.IndexTags(NewTagDocuments(a.Tags))
	case tagstore.CreateComplete:
		return s.index.IndexTags([]TagDocument{NewTagDocument(a.Tag)})
	case tagstore.UpdateComplete:
		return s.index.IndexTags([]TagDocument{NewTagDocument(a.Tag)})
	case tagstore.DeleteComplete:
		return s.index.DeleteTags([]string{a.TagID})
	case tagstore.ListenerCreateQueueComplete:
		return s.index.IndexTags(NewTagDocuments(a.Tags))
	case tagstore.ListenerUpdateQueueComplete:
		return s.index.IndexTags(NewTagDocuments(a.Tags))
	case tagstore.ListenerDeleteQueueComplete:
		return s.index.DeleteTags(a.TagIDs)
	}
	return nil
}

func tagsOf(state tagstore.State) []domain.Tag {
	items := tagstore.Tags(state)
	tags := make([]domain.Tag, 0, len(items))
	for _, item := range items {
		tags = append(tags, item.Tag)
	}
	return tags
}
