package tagstore

import "github.com/upnorway/sanity-plugin-media/internal/domain"

// Tags returns the store entries in AllIDs order.
func Tags(s State) []domain.TagItem {
	items := make([]domain.TagItem, 0, len(s.AllIDs))
	for _, tagID := range s.AllIDs {
		items = append(items, s.ByIDs[tagID])
	}
	return items
}

// TagByID returns a single entry.
func TagByID(s State, tagID string) (domain.TagItem, bool) {
	item, ok := s.ByIDs[tagID]
	return item, ok
}

// TagSelectOptions maps an asset's tag references to selectable options,
// skipping references to tags not in the store. It returns nil when the
// asset is nil or none of its references resolve.
func TagSelectOptions(s State, asset *domain.Asset) []domain.TagSelectOption {
	if asset == nil {
		return nil
	}

	var options []domain.TagSelectOption
	for _, ref := range asset.TagReferences() {
		item, ok := s.ByIDs[ref.Ref]
		if !ok {
			continue
		}
		options = append(options, domain.TagSelectOption{
			Label: item.Tag.Name.Current,
			Value: item.Tag.ID,
		})
	}
	return options
}

// FindTagIDByName returns the ID of the first tag in store order whose
// name.current equals name.
func FindTagIDByName(s State, name string) (string, bool) {
	for _, tagID := range s.AllIDs {
		if s.ByIDs[tagID].Tag.Name.Current == name {
			return tagID, true
		}
	}
	return "", false
}

// Outcome holds the bulk reconciliation result flags.
type Outcome struct {
	Success bool `json:"operationSuccess"`
	Failure bool `json:"operationFailure"`
}

// OperationOutcome returns the bulk reconciliation result flags.
func OperationOutcome(s State) Outcome {
	return Outcome{Success: s.OperationSuccess, Failure: s.OperationFailure}
}
