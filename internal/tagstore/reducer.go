package tagstore

import "github.com/upnorway/sanity-plugin-media/internal/domain"

// Reduce returns the state that results from applying a to s. It never
// mutates s. Transitions naming an ID that is not in the store, and actions
// the store does not react to, return s unchanged.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case CreateRequest:
		s.Creating = true
		s.CreatingError = nil
	case CreateComplete:
		s.Creating = false
		s = s.putTags([]domain.Tag{a.Tag})
	case CreateError:
		s.Creating = false
		s.CreatingError = errPtr(a.Error)

	case UpdateRequest:
		s = s.withItem(a.Tag.ID, func(item *domain.TagItem) {
			item.Updating = true
			item.Error = nil
		})
	case UpdateComplete:
		s = s.withItem(a.Tag.ID, func(item *domain.TagItem) {
			item.Tag = a.Tag
			item.Updating = false
		})
	case UpdateError:
		s = s.withItem(a.Tag.ID, func(item *domain.TagItem) {
			item.Error = errPtr(a.Error)
			item.Updating = false
		})

	case DeleteRequest:
		if _, ok := s.ByIDs[a.Tag.ID]; !ok {
			return s
		}
		// Any delete attempt clears every entry's stale error.
		s = s.clearErrors()
		s = s.withItem(a.Tag.ID, func(item *domain.TagItem) {
			item.Picked = false
			item.Updating = true
		})
	case DeleteComplete:
		s = s.removeIDs(a.TagID)
	case DeleteError:
		s = s.withItem(a.Tag.ID, func(item *domain.TagItem) {
			item.Error = errPtr(a.Error)
			item.Updating = false
		})

	case FetchRequest:
		s.Fetching = true
		s.FetchingError = nil
	case FetchComplete:
		s = s.putTags(a.Tags)
		s.Fetching = false
		s.FetchCount = len(a.Tags)
		s.FetchingError = nil
	case FetchError:
		s.Fetching = false
		s.FetchingError = errPtr(a.Error)

	case ListenerCreateQueueComplete:
		s = s.putTags(a.Tags)
	case ListenerUpdateQueueComplete:
		s = s.refreshTags(a.Tags)
	case ListenerDeleteQueueComplete:
		s = s.removeIDs(a.TagIDs...)

	case Sort:
		s = s.sorted()
	case PanelVisibleSet:
		s.PanelVisible = a.Visible

	case CheckAndCreateTagsSuccess:
		s.OperationSuccess = true
		s.OperationFailure = false
	case CheckAndCreateTagsFailure:
		s.OperationSuccess = false
		s.OperationFailure = true
	case ResetTagsOperationState:
		s.OperationSuccess = false
		s.OperationFailure = false

	case DialogShowTagCreate:
		s.CreatingError = nil
	case DialogShowTagEdit:
		s = s.withItem(a.TagID, func(item *domain.TagItem) {
			item.Error = nil
		})

	case AssetTagsAddRequest:
		s = s.setUpdating(a.Tag.ID, true)
	case AssetTagsRemoveRequest:
		s = s.setUpdating(a.Tag.ID, true)
	case AssetTagsAddComplete:
		s = s.setUpdating(a.Tag.ID, false)
	case AssetTagsAddError:
		s = s.setUpdating(a.Tag.ID, false)
	case AssetTagsRemoveComplete:
		s = s.setUpdating(a.Tag.ID, false)
	case AssetTagsRemoveError:
		s = s.setUpdating(a.Tag.ID, false)
	}
	return s
}

func (s State) setUpdating(tagID string, updating bool) State {
	return s.withItem(tagID, func(item *domain.TagItem) {
		item.Updating = updating
	})
}

func errPtr(err domain.HTTPError) *domain.HTTPError {
	return &err
}
