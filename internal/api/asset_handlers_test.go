package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upnorway/sanity-plugin-media/internal/docstore"
	"github.com/upnorway/sanity-plugin-media/internal/domain"
	"github.com/upnorway/sanity-plugin-media/internal/tagstore"
)

func (ts *testServer) seedAsset(t *testing.T, assetID string, refs []string, names []string) {
	t.Helper()

	tags := make([]any, 0, len(refs))
	for _, ref := range refs {
		tags = append(tags, map[string]any{"_ref": ref, "_type": domain.ReferenceType, "_weak": true})
	}
	doc := docstore.Document{
		"_id":   assetID,
		"_type": domain.ImageAssetDocumentType,
		"opt":   map[string]any{"media": map[string]any{"tags": tags}},
	}
	if len(names) > 0 {
		raw := make([]any, 0, len(names))
		for _, n := range names {
			raw = append(raw, n)
		}
		doc["tags"] = raw
	}

	_, err := ts.docs.Create(context.Background(), doc)
	require.NoError(t, err)
}

func TestGetTagOptions(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.seedTags(t, testTag("tag-1", "red"), testTag("tag-2", "blue"))
	ts.seedAsset(t, "image-1", []string{"tag-2", "tag-gone", "tag-1"}, nil)

	resp := ts.api.Get("/api/v1/assets/image-1/tag-options")
	require.Equal(t, http.StatusOK, resp.Code)

	options := decodeBody[[]domain.TagSelectOption](t, resp.Body.Bytes())
	assert.Equal(t, []domain.TagSelectOption{
		{Label: "blue", Value: "tag-2"},
		{Label: "red", Value: "tag-1"},
	}, options)
}

func TestGetTagOptions_NoResolvedReferences(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.seedAsset(t, "image-1", []string{"tag-gone"}, nil)

	resp := ts.api.Get("/api/v1/assets/image-1/tag-options")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `[]`, resp.Body.String())
}

func TestGetTagOptions_AssetNotFound(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Get("/api/v1/assets/image-404/tag-options")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Contains(t, resp.Body.String(), `"code":"NOT_FOUND"`)
}

func TestPrepareTagOptions_UsesAssetTags(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.seedAsset(t, "image-1", nil, []string{"autumn", "red"})
	sub := ts.tags.Subscribe(tagstore.TypePrepareTagOptions)
	defer sub.Close()

	resp := ts.api.Post("/api/v1/assets/image-1/tag-options")
	require.Equal(t, http.StatusAccepted, resp.Code)

	d := waitFor(t, sub)
	req, ok := d.Action.(tagstore.PrepareTagOptions)
	require.True(t, ok)
	assert.Equal(t, "image-1", req.AssetID)
	assert.Equal(t, []string{"autumn", "red"}, req.Tags)
	assert.NotEmpty(t, req.Asset.Rev)
}

func TestPrepareTagOptions_BodyOverridesTags(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.seedAsset(t, "image-1", nil, []string{"autumn"})
	sub := ts.tags.Subscribe(tagstore.TypePrepareTagOptions)
	defer sub.Close()

	resp := ts.api.Post("/api/v1/assets/image-1/tag-options", map[string]any{"tags": []string{"winter"}})
	require.Equal(t, http.StatusAccepted, resp.Code)

	req, ok := waitFor(t, sub).Action.(tagstore.PrepareTagOptions)
	require.True(t, ok)
	assert.Equal(t, []string{"winter"}, req.Tags)
}
