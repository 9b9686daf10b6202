package providers

import (
	"github.com/samber/do/v2"

	"github.com/upnorway/sanity-plugin-media/internal/logger"
	"github.com/upnorway/sanity-plugin-media/internal/search"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.TagIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the in-memory tag name index. The syncer
// rebuilds it from the tag store on start.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewTagIndex(search.Options{
		Logger: log.Component("search"),
	})
	if err != nil {
		return nil, err
	}

	log.Info("Search index initialized")

	return &SearchIndexHandle{TagIndex: index}, nil
}

// ProvideSearchSyncer provides the syncer that keeps the index in step with
// tag store transitions.
func ProvideSearchSyncer(i do.Injector) (*search.Syncer, error) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	store := do.MustInvoke[*TagStoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return search.NewSyncer(indexHandle.TagIndex, store.Store, log.Component("search")), nil
}
