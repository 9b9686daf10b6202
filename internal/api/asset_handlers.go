package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/upnorway/sanity-plugin-media/internal/domain"
	domainerrors "github.com/upnorway/sanity-plugin-media/internal/errors"
	"github.com/upnorway/sanity-plugin-media/internal/tagstore"
)

func (s *Server) registerAssetRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getAssetTagOptions",
		Method:      http.MethodGet,
		Path:        "/api/v1/assets/{id}/tag-options",
		Summary:     "Get asset tag options",
		Description: "Maps the asset's tag references to selectable options, skipping tags not in the store",
		Tags:        []string{"Assets"},
	}, s.handleGetTagOptions)

	huma.Register(s.api, huma.Operation{
		OperationID:   "prepareAssetTagOptions",
		Method:        http.MethodPost,
		Path:          "/api/v1/assets/{id}/tag-options",
		Summary:       "Prepare asset tag options",
		Description:   "Resolves raw tag names into references on the asset, creating missing tags",
		Tags:          []string{"Assets"},
		DefaultStatus: http.StatusAccepted,
		Middlewares:   s.intentMiddlewares(),
	}, s.handlePrepareTagOptions)
}

// AssetIDInput identifies an asset by path.
type AssetIDInput struct {
	ID string `path:"id" doc:"Asset ID"`
}

// TagOptionsOutput contains the asset's selectable tag options.
type TagOptionsOutput struct {
	Body []domain.TagSelectOption
}

// PrepareTagOptionsRequest is the request body for resolving tag names.
type PrepareTagOptionsRequest struct {
	Tags []string `json:"tags,omitempty" doc:"Raw tag names. Defaults to the asset's own tags field"`
}

// PrepareTagOptionsInput wraps the prepare request.
type PrepareTagOptionsInput struct {
	ID   string `path:"id" doc:"Asset ID"`
	Body *PrepareTagOptionsRequest `required:"false"`
}

func (s *Server) handleGetTagOptions(ctx context.Context, input *AssetIDInput) (*TagOptionsOutput, error) {
	asset, err := s.loadAsset(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	options := tagstore.TagSelectOptions(s.store.State(), &asset)
	if options == nil {
		options = []domain.TagSelectOption{}
	}
	return &TagOptionsOutput{Body: options}, nil
}

func (s *Server) handlePrepareTagOptions(ctx context.Context, input *PrepareTagOptionsInput) (*IntentOutput, error) {
	asset, err := s.loadAsset(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	tags := asset.Tags
	if input.Body != nil && len(input.Body.Tags) > 0 {
		tags = input.Body.Tags
	}

	return s.dispatch(tagstore.PrepareTagOptions{
		AssetID: asset.ID,
		Tags:    tags,
		Asset:   asset,
	}), nil
}

func (s *Server) loadAsset(ctx context.Context, assetID string) (domain.Asset, error) {
	if s.docs == nil {
		return domain.Asset{}, &domainerrors.Error{Code: domainerrors.CodeBackingStore, Message: "document store not configured"}
	}

	doc, err := s.docs.Get(ctx, assetID)
	if err != nil {
		return domain.Asset{}, err
	}

	var asset domain.Asset
	if err := doc.Decode(&asset); err != nil {
		return domain.Asset{}, domainerrors.Wrap(err, domainerrors.CodeInternal, "decode asset")
	}
	return asset, nil
}
