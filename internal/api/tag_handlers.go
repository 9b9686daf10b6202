package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/upnorway/sanity-plugin-media/internal/domain"
	domainerrors "github.com/upnorway/sanity-plugin-media/internal/errors"
	"github.com/upnorway/sanity-plugin-media/internal/tagstore"
	"github.com/upnorway/sanity-plugin-media/internal/validation"
)

func (s *Server) registerTagRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags",
		Summary:     "List tags",
		Description: "Returns the tag store entries in display order, optionally filtered by name",
		Tags:        []string{"Tags"},
	}, s.handleListTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTag",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/{id}",
		Summary:     "Get tag",
		Description: "Returns a tag store entry by ID",
		Tags:        []string{"Tags"},
	}, s.handleGetTag)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createTag",
		Method:        http.MethodPost,
		Path:          "/api/v1/tags",
		Summary:       "Create tag",
		Description:   "Requests a new tag. The result arrives as tags.createComplete or tags.createError",
		Tags:          []string{"Tags"},
		DefaultStatus: http.StatusAccepted,
		Middlewares:   s.intentMiddlewares(),
	}, s.handleCreateTag)

	huma.Register(s.api, huma.Operation{
		OperationID:   "updateTag",
		Method:        http.MethodPatch,
		Path:          "/api/v1/tags/{id}",
		Summary:       "Rename tag",
		Description:   "Requests a tag rename. The result arrives as tags.updateComplete or tags.updateError",
		Tags:          []string{"Tags"},
		DefaultStatus: http.StatusAccepted,
		Middlewares:   s.intentMiddlewares(),
	}, s.handleUpdateTag)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteTag",
		Method:        http.MethodDelete,
		Path:          "/api/v1/tags/{id}",
		Summary:       "Delete tag",
		Description:   "Requests deletion of a tag and its references. The result arrives as tags.deleteComplete or tags.deleteError",
		Tags:          []string{"Tags"},
		DefaultStatus: http.StatusAccepted,
		Middlewares:   s.intentMiddlewares(),
	}, s.handleDeleteTag)

	huma.Register(s.api, huma.Operation{
		OperationID:   "fetchTags",
		Method:        http.MethodPost,
		Path:          "/api/v1/tags/fetch",
		Summary:       "Refetch tags",
		Description:   "Requests a full refetch of published tags. The latest request wins",
		Tags:          []string{"Tags"},
		DefaultStatus: http.StatusAccepted,
		Middlewares:   s.intentMiddlewares(),
	}, s.handleFetchTags)

	huma.Register(s.api, huma.Operation{
		OperationID:   "setTagPanel",
		Method:        http.MethodPut,
		Path:          "/api/v1/tags/panel",
		Summary:       "Toggle tag panel",
		Description:   "Shows or hides the tag panel",
		Tags:          []string{"Tags"},
		DefaultStatus: http.StatusAccepted,
	}, s.handleSetPanel)
}

// === DTOs ===

// ListTagsInput contains parameters for listing tags.
type ListTagsInput struct {
	Query string `query:"q" maxLength:"100" doc:"Only return tags whose name matches"`
}

// TagListResponse is the ordered tag list with store flags.
type TagListResponse struct {
	Tags          []domain.TagItem  `json:"tags" doc:"Tag entries in display order"`
	FetchingError *domain.HTTPError `json:"fetchingError,omitempty" doc:"Last fetch failure"`
	CreatingError *domain.HTTPError `json:"creatingError,omitempty" doc:"Last create failure"`
	FetchCount    int               `json:"fetchCount" doc:"Tags in the last completed fetch, -1 before the first"`
	Fetching      bool              `json:"fetching" doc:"Whether a fetch is in flight"`
	Creating      bool              `json:"creating" doc:"Whether a create is in flight"`
	PanelVisible  bool              `json:"panelVisible" doc:"Whether the tag panel is shown"`
}

// ListTagsOutput contains the tag list.
type ListTagsOutput struct {
	Body TagListResponse
}

// TagIDInput identifies a tag by path.
type TagIDInput struct {
	ID string `path:"id" doc:"Tag ID"`
}

// TagOutput contains a single tag entry.
type TagOutput struct {
	Body domain.TagItem
}

// CreateTagRequest is the request body for creating a tag.
type CreateTagRequest struct {
	Name    string `json:"name" validate:"required,tagname" doc:"Tag name, 1 to 100 characters"`
	AssetID string `json:"assetId,omitempty" validate:"omitempty,startsnotwith=drafts." doc:"Asset the tag is being created for"`
}

// CreateTagInput wraps the create tag request.
type CreateTagInput struct {
	Body CreateTagRequest
}

// UpdateTagRequest is the request body for renaming a tag.
type UpdateTagRequest struct {
	Name          string `json:"name" validate:"required,tagname" doc:"New tag name"`
	CloseDialogID string `json:"closeDialogId,omitempty" doc:"Dialog to close once the rename completes"`
}

// UpdateTagInput wraps the rename request.
type UpdateTagInput struct {
	ID   string `path:"id" doc:"Tag ID"`
	Body UpdateTagRequest
}

// SetPanelRequest is the request body for toggling the tag panel.
type SetPanelRequest struct {
	Visible bool `json:"visible" doc:"Whether the tag panel is shown"`
}

// SetPanelInput wraps the panel request.
type SetPanelInput struct {
	Body SetPanelRequest
}

// === Handlers ===

func (s *Server) handleListTags(ctx context.Context, input *ListTagsInput) (*ListTagsOutput, error) {
	state := s.store.State()
	items := tagstore.Tags(state)

	if input.Query != "" && s.index != nil {
		filtered, err := s.index.Filter(ctx, items, input.Query)
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "tag search failed")
		}
		items = filtered
	}

	return &ListTagsOutput{
		Body: TagListResponse{
			Tags:          items,
			FetchingError: state.FetchingError,
			CreatingError: state.CreatingError,
			FetchCount:    state.FetchCount,
			Fetching:      state.Fetching,
			Creating:      state.Creating,
			PanelVisible:  state.PanelVisible,
		},
	}, nil
}

func (s *Server) handleGetTag(_ context.Context, input *TagIDInput) (*TagOutput, error) {
	item, err := s.lookupTag(input.ID)
	if err != nil {
		return nil, err
	}
	return &TagOutput{Body: item}, nil
}

func (s *Server) handleCreateTag(_ context.Context, input *CreateTagInput) (*IntentOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	return s.dispatch(tagstore.CreateRequest{
		Name:    validation.NormalizeTagName(input.Body.Name),
		AssetID: input.Body.AssetID,
	}), nil
}

func (s *Server) handleUpdateTag(_ context.Context, input *UpdateTagInput) (*IntentOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	item, err := s.lookupTag(input.ID)
	if err != nil {
		return nil, err
	}

	return s.dispatch(tagstore.UpdateRequest{
		Tag:           item.Tag,
		Name:          validation.NormalizeTagName(input.Body.Name),
		CloseDialogID: input.Body.CloseDialogID,
	}), nil
}

func (s *Server) handleDeleteTag(_ context.Context, input *TagIDInput) (*IntentOutput, error) {
	item, err := s.lookupTag(input.ID)
	if err != nil {
		return nil, err
	}

	return s.dispatch(tagstore.DeleteRequest{Tag: item.Tag}), nil
}

func (s *Server) handleFetchTags(_ context.Context, _ *struct{}) (*IntentOutput, error) {
	return s.dispatch(tagstore.FetchRequest{}), nil
}

func (s *Server) handleSetPanel(_ context.Context, input *SetPanelInput) (*IntentOutput, error) {
	return s.dispatch(tagstore.PanelVisibleSet{Visible: input.Body.Visible}), nil
}

// lookupTag returns the store entry or a not found error.
func (s *Server) lookupTag(tagID string) (domain.TagItem, error) {
	item, ok := tagstore.TagByID(s.store.State(), tagID)
	if !ok {
		return domain.TagItem{}, domainerrors.NotFoundf("tag %s not found", tagID)
	}
	return item, nil
}
