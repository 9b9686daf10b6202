package tagstore

import "github.com/upnorway/sanity-plugin-media/internal/domain"

// ActionType names a store transition.
type ActionType string

// Tag transitions.
const (
	TypeCreateRequest               ActionType = "tags/createRequest"
	TypeCreateComplete              ActionType = "tags/createComplete"
	TypeCreateError                 ActionType = "tags/createError"
	TypeUpdateRequest               ActionType = "tags/updateRequest"
	TypeUpdateComplete              ActionType = "tags/updateComplete"
	TypeUpdateError                 ActionType = "tags/updateError"
	TypeDeleteRequest               ActionType = "tags/deleteRequest"
	TypeDeleteComplete              ActionType = "tags/deleteComplete"
	TypeDeleteError                 ActionType = "tags/deleteError"
	TypeFetchRequest                ActionType = "tags/fetchRequest"
	TypeFetchComplete               ActionType = "tags/fetchComplete"
	TypeFetchError                  ActionType = "tags/fetchError"
	TypeListenerCreateQueue         ActionType = "tags/listenerCreateQueue"
	TypeListenerCreateQueueComplete ActionType = "tags/listenerCreateQueueComplete"
	TypeListenerUpdateQueue         ActionType = "tags/listenerUpdateQueue"
	TypeListenerUpdateQueueComplete ActionType = "tags/listenerUpdateQueueComplete"
	TypeListenerDeleteQueue         ActionType = "tags/listenerDeleteQueue"
	TypeListenerDeleteQueueComplete ActionType = "tags/listenerDeleteQueueComplete"
	TypeSort                        ActionType = "tags/sort"
	TypePanelVisibleSet             ActionType = "tags/panelVisibleSet"
	TypePrepareTagOptions           ActionType = "tags/prepareTagOptions"
	TypeCheckAndCreateTagsStart     ActionType = "tags/checkAndCreateTagsStart"
	TypeCheckAndCreateTagsSuccess   ActionType = "tags/checkAndCreateTagsSuccess"
	TypeCheckAndCreateTagsFailure   ActionType = "tags/checkAndCreateTagsFailure"
	TypeResetTagsOperationState     ActionType = "tags/resetTagsOperationState"
)

// Transitions owned by other modules that the tag store reacts to.
const (
	TypeDialogShowTagCreate     ActionType = "dialog/showTagCreate"
	TypeDialogShowTagEdit       ActionType = "dialog/showTagEdit"
	TypeAssetTagsAddRequest     ActionType = "assets/tagsAddRequest"
	TypeAssetTagsAddComplete    ActionType = "assets/tagsAddComplete"
	TypeAssetTagsAddError       ActionType = "assets/tagsAddError"
	TypeAssetTagsRemoveRequest  ActionType = "assets/tagsRemoveRequest"
	TypeAssetTagsRemoveComplete ActionType = "assets/tagsRemoveComplete"
	TypeAssetTagsRemoveError    ActionType = "assets/tagsRemoveError"
	TypeAssetUpdateRequest      ActionType = "assets/updateRequest"
	TypeAssetUpdateComplete     ActionType = "assets/updateComplete"
	TypeAssetUpdateError        ActionType = "assets/updateError"
)

// Action is a named transition with its payload.
type Action interface {
	Type() ActionType
}

// CreateRequest asks for a new tag. AssetID optionally names the asset the
// tag is being created for.
type CreateRequest struct {
	Name    string `json:"name"`
	AssetID string `json:"assetId,omitempty"`
}

// CreateComplete carries a tag confirmed by the backing store.
type CreateComplete struct {
	Tag     domain.Tag `json:"tag"`
	AssetID string     `json:"assetId,omitempty"`
}

// CreateError reports a failed create.
type CreateError struct {
	Error domain.HTTPError `json:"error"`
	Name  string           `json:"name"`
}

// UpdateRequest asks for a tag rename.
type UpdateRequest struct {
	Tag           domain.Tag `json:"tag"`
	Name          string     `json:"name"`
	CloseDialogID string     `json:"closeDialogId,omitempty"`
}

// UpdateComplete carries the renamed tag.
type UpdateComplete struct {
	Tag           domain.Tag `json:"tag"`
	CloseDialogID string     `json:"closeDialogId,omitempty"`
}

// UpdateError reports a failed rename, keeping the tag for per-item display.
type UpdateError struct {
	Tag   domain.Tag       `json:"tag"`
	Error domain.HTTPError `json:"error"`
}

// DeleteRequest asks for a tag to be deleted and unreferenced from assets.
type DeleteRequest struct {
	Tag domain.Tag `json:"tag"`
}

// DeleteComplete confirms a deletion.
type DeleteComplete struct {
	TagID string `json:"tagId"`
}

// DeleteError reports a failed deletion.
type DeleteError struct {
	Tag   domain.Tag       `json:"tag"`
	Error domain.HTTPError `json:"error"`
}

// FetchRequest asks for every published tag.
type FetchRequest struct{}

// FetchComplete bulk inserts fetched tags.
type FetchComplete struct {
	Tags []domain.Tag `json:"tags"`
}

// FetchError reports a failed fetch.
type FetchError struct {
	Error domain.HTTPError `json:"error"`
}

// ListenerCreateQueue queues a realtime create notification.
type ListenerCreateQueue struct {
	Tag domain.Tag `json:"tag"`
}

// ListenerCreateQueueComplete applies one window of realtime creates.
type ListenerCreateQueueComplete struct {
	Tags []domain.Tag `json:"tags"`
}

// ListenerUpdateQueue queues a realtime update notification.
type ListenerUpdateQueue struct {
	Tag domain.Tag `json:"tag"`
}

// ListenerUpdateQueueComplete applies one window of realtime updates.
type ListenerUpdateQueueComplete struct {
	Tags []domain.Tag `json:"tags"`
}

// ListenerDeleteQueue queues a realtime delete notification.
type ListenerDeleteQueue struct {
	TagID string `json:"tagId"`
}

// ListenerDeleteQueueComplete applies one window of realtime deletes.
type ListenerDeleteQueueComplete struct {
	TagIDs []string `json:"tagIds"`
}

// Sort re-derives the tag order.
type Sort struct{}

// PanelVisibleSet toggles the tag panel.
type PanelVisibleSet struct {
	Visible bool `json:"panelVisible"`
}

// PrepareTagOptions asks for an asset's raw tag names to be resolved into
// references, creating missing tags.
type PrepareTagOptions struct {
	AssetID string       `json:"assetId"`
	Tags    []string     `json:"tags"`
	Asset   domain.Asset `json:"currentAsset"`
}

// CheckAndCreateTagsStart starts bulk reconciliation over every asset.
type CheckAndCreateTagsStart struct{}

// CheckAndCreateTagsSuccess ends a bulk reconciliation run that processed
// every asset.
type CheckAndCreateTagsSuccess struct {
	Message string `json:"message"`
}

// CheckAndCreateTagsFailure ends a bulk reconciliation run that failed.
type CheckAndCreateTagsFailure struct {
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode,omitempty"`
}

// ResetTagsOperationState clears the bulk reconciliation outcome flags.
type ResetTagsOperationState struct{}

// DialogShowTagCreate opens the tag create dialog.
type DialogShowTagCreate struct{}

// DialogShowTagEdit opens the tag edit dialog.
type DialogShowTagEdit struct {
	TagID string `json:"tagId"`
}

// AssetTagsAddRequest starts adding a tag to a selection of assets.
type AssetTagsAddRequest struct {
	Tag domain.Tag `json:"tag"`
}

// AssetTagsAddComplete ends a tag add.
type AssetTagsAddComplete struct {
	Tag domain.Tag `json:"tag"`
}

// AssetTagsAddError reports a failed tag add.
type AssetTagsAddError struct {
	Tag   domain.Tag       `json:"tag"`
	Error domain.HTTPError `json:"error"`
}

// AssetTagsRemoveRequest starts removing a tag from a selection of assets.
type AssetTagsRemoveRequest struct {
	Tag domain.Tag `json:"tag"`
}

// AssetTagsRemoveComplete ends a tag removal.
type AssetTagsRemoveComplete struct {
	Tag domain.Tag `json:"tag"`
}

// AssetTagsRemoveError reports a failed tag removal.
type AssetTagsRemoveError struct {
	Tag   domain.Tag       `json:"tag"`
	Error domain.HTTPError `json:"error"`
}

// AssetUpdateRequest asks the asset collaborator to write form data to an
// asset.
type AssetUpdateRequest struct {
	Asset    domain.Asset         `json:"asset"`
	FormData domain.AssetFormData `json:"formData"`
}

// AssetUpdateComplete carries the updated asset.
type AssetUpdateComplete struct {
	Asset domain.Asset `json:"asset"`
}

// AssetUpdateError reports a failed asset update.
type AssetUpdateError struct {
	AssetID string           `json:"assetId"`
	Error   domain.HTTPError `json:"error"`
}

func (CreateRequest) Type() ActionType { return TypeCreateRequest }
func (CreateComplete) Type() ActionType { return TypeCreateComplete }
func (CreateError) Type() ActionType { return TypeCreateError }
func (UpdateRequest) Type() ActionType { return TypeUpdateRequest }
func (UpdateComplete) Type() ActionType { return TypeUpdateComplete }
func (UpdateError) Type() ActionType { return TypeUpdateError }
func (DeleteRequest) Type() ActionType { return TypeDeleteRequest }
func (DeleteComplete) Type() ActionType { return TypeDeleteComplete }
func (DeleteError) Type() ActionType { return TypeDeleteError }
func (FetchRequest) Type() ActionType { return TypeFetchRequest }
func (FetchComplete) Type() ActionType { return TypeFetchComplete }
func (FetchError) Type() ActionType { return TypeFetchError }
func (ListenerCreateQueue) Type() ActionType { return TypeListenerCreateQueue }
func (ListenerCreateQueueComplete) Type() ActionType { return TypeListenerCreateQueueComplete }
func (ListenerUpdateQueue) Type() ActionType { return TypeListenerUpdateQueue }
func (ListenerUpdateQueueComplete) Type() ActionType { return TypeListenerUpdateQueueComplete }
func (ListenerDeleteQueue) Type() ActionType { return TypeListenerDeleteQueue }
func (ListenerDeleteQueueComplete) Type() ActionType { return TypeListenerDeleteQueueComplete }
func (Sort) Type() ActionType { return TypeSort }
func (PanelVisibleSet) Type() ActionType { return TypePanelVisibleSet }
func (PrepareTagOptions) Type() ActionType { return TypePrepareTagOptions }
func (CheckAndCreateTagsStart) Type() ActionType { return TypeCheckAndCreateTagsStart }
func (CheckAndCreateTagsSuccess) Type() ActionType { return TypeCheckAndCreateTagsSuccess }
func (CheckAndCreateTagsFailure) Type() ActionType { return TypeCheckAndCreateTagsFailure }
func (ResetTagsOperationState) Type() ActionType { return TypeResetTagsOperationState }
func (DialogShowTagCreate) Type() ActionType { return TypeDialogShowTagCreate }
func (DialogShowTagEdit) Type() ActionType { return TypeDialogShowTagEdit }
func (AssetTagsAddRequest) Type() ActionType { return TypeAssetTagsAddRequest }
func (AssetTagsAddComplete) Type() ActionType { return TypeAssetTagsAddComplete }
func (AssetTagsAddError) Type() ActionType { return TypeAssetTagsAddError }
func (AssetTagsRemoveRequest) Type() ActionType { return TypeAssetTagsRemoveRequest }
func (AssetTagsRemoveComplete) Type() ActionType { return TypeAssetTagsRemoveComplete }
func (AssetTagsRemoveError) Type() ActionType { return TypeAssetTagsRemoveError }
func (AssetUpdateRequest) Type() ActionType { return TypeAssetUpdateRequest }
func (AssetUpdateComplete) Type() ActionType { return TypeAssetUpdateComplete }
func (AssetUpdateError) Type() ActionType { return TypeAssetUpdateError }
