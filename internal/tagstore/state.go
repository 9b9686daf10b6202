// Package tagstore holds the normalized client-side tag state and the
// single-writer container that applies transitions to it.
package tagstore

import (
	"maps"
	"slices"
	"strings"

	"github.com/upnorway/sanity-plugin-media/internal/domain"
)

// State is an immutable snapshot of the tag store. Every ID in AllIDs has
// an entry in ByIDs and vice versa. AllIDs is only re-ordered by Sort.
type State struct {
	ByIDs         map[string]domain.TagItem `json:"byIds"`
	CreatingError *domain.HTTPError         `json:"creatingError,omitempty"`
	FetchingError *domain.HTTPError         `json:"fetchingError,omitempty"`
	AllIDs        []string                  `json:"allIds"`
	// FetchCount is -1 until the first fetch completes.
	FetchCount       int  `json:"fetchCount"`
	Creating         bool `json:"creating"`
	Fetching         bool `json:"fetching"`
	PanelVisible     bool `json:"panelVisible"`
	OperationSuccess bool `json:"operationSuccess"`
	OperationFailure bool `json:"operationFailure"`
}

// Initial returns the empty store state.
func Initial() State {
	return State{
		ByIDs:        map[string]domain.TagItem{},
		AllIDs:       []string{},
		FetchCount:   -1,
		PanelVisible: true,
	}
}

// withItem applies fn to a copy of the entry for tagID. An absent ID leaves
// the state unchanged.
func (s State) withItem(tagID string, fn func(*domain.TagItem)) State {
	item, ok := s.ByIDs[tagID]
	if !ok {
		return s
	}
	fn(&item)

	byIDs := maps.Clone(s.ByIDs)
	byIDs[tagID] = item
	s.ByIDs = byIDs
	return s
}

// putTags inserts or replaces entries with fresh items. New IDs are appended
// to AllIDs once.
func (s State) putTags(tags []domain.Tag) State {
	if len(tags) == 0 {
		return s
	}

	byIDs := maps.Clone(s.ByIDs)
	allIDs := slices.Clone(s.AllIDs)
	for _, tag := range tags {
		if tag.ID == "" {
			continue
		}
		if _, ok := byIDs[tag.ID]; !ok {
			allIDs = append(allIDs, tag.ID)
		}
		byIDs[tag.ID] = domain.NewTagItem(tag)
	}

	s.ByIDs = byIDs
	s.AllIDs = allIDs
	return s
}

// refreshTags replaces the tag of entries that already exist.
func (s State) refreshTags(tags []domain.Tag) State {
	var byIDs map[string]domain.TagItem
	for _, tag := range tags {
		item, ok := s.ByIDs[tag.ID]
		if !ok {
			continue
		}
		if byIDs == nil {
			byIDs = maps.Clone(s.ByIDs)
		}
		item.Tag = tag
		byIDs[tag.ID] = item
	}
	if byIDs != nil {
		s.ByIDs = byIDs
	}
	return s
}

// removeIDs drops entries from both AllIDs and ByIDs.
func (s State) removeIDs(tagIDs ...string) State {
	drop := make(map[string]struct{}, len(tagIDs))
	for _, tagID := range tagIDs {
		if _, ok := s.ByIDs[tagID]; ok {
			drop[tagID] = struct{}{}
		}
	}
	if len(drop) == 0 {
		return s
	}

	byIDs := maps.Clone(s.ByIDs)
	for tagID := range drop {
		delete(byIDs, tagID)
	}
	s.AllIDs = slices.DeleteFunc(slices.Clone(s.AllIDs), func(tagID string) bool {
		_, ok := drop[tagID]
		return ok
	})
	s.ByIDs = byIDs
	return s
}

// sorted returns the state with AllIDs stably ordered by name.current,
// compared byte-wise.
func (s State) sorted() State {
	allIDs := slices.Clone(s.AllIDs)
	slices.SortStableFunc(allIDs, func(a, b string) int {
		return strings.Compare(s.ByIDs[a].Tag.Name.Current, s.ByIDs[b].Tag.Name.Current)
	})
	s.AllIDs = allIDs
	return s
}

// clearErrors removes the error from every entry.
func (s State) clearErrors() State {
	byIDs := make(map[string]domain.TagItem, len(s.ByIDs))
	for tagID, item := range s.ByIDs {
		item.Error = nil
		byIDs[tagID] = item
	}
	s.ByIDs = byIDs
	return s
}
