package api

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upnorway/sanity-plugin-media/internal/tagstore"
)

func TestListTags(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.seedTags(t,
		testTag("tag-b", "blue sky"),
		testTag("tag-a", "autumn"),
		testTag("tag-r", "Red sky"),
	)

	resp := ts.api.Get("/api/v1/tags")
	require.Equal(t, http.StatusOK, resp.Code)

	list := decodeBody[TagListResponse](t, resp.Body.Bytes())
	assert.Equal(t, 3, list.FetchCount)
	assert.False(t, list.Fetching)
	require.Len(t, list.Tags, 3)
	assert.Equal(t, "Red sky", list.Tags[0].Tag.Name.Current)
}

func TestListTags_Query(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.seedTags(t,
		testTag("tag-b", "blue sky"),
		testTag("tag-a", "autumn"),
		testTag("tag-r", "Red sky"),
	)

	resp := ts.api.Get("/api/v1/tags?q=sky")
	require.Equal(t, http.StatusOK, resp.Code)

	list := decodeBody[TagListResponse](t, resp.Body.Bytes())
	var ids []string
	for _, item := range list.Tags {
		ids = append(ids, item.Tag.ID)
	}
	assert.Equal(t, []string{"tag-r", "tag-b"}, ids)
}

func TestListTags_BeforeFetch(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Get("/api/v1/tags")
	require.Equal(t, http.StatusOK, resp.Code)

	list := decodeBody[TagListResponse](t, resp.Body.Bytes())
	assert.Equal(t, -1, list.FetchCount)
	assert.Empty(t, list.Tags)
	assert.True(t, list.PanelVisible)
}

func TestGetTag(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.seedTags(t, testTag("tag-1", "red"))

	resp := ts.api.Get("/api/v1/tags/tag-1")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"current":"red"`)

	resp = ts.api.Get("/api/v1/tags/tag-404")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Contains(t, resp.Body.String(), `"code":"NOT_FOUND"`)
}

func TestCreateTag_DispatchesNormalizedName(t *testing.T) {
	ts := setupTestServer(t, Options{})
	sub := ts.tags.Subscribe(tagstore.TypeCreateRequest)
	defer sub.Close()

	resp := ts.api.Post("/api/v1/tags", map[string]any{"name": "  autumn  ", "assetId": "image-1"})
	require.Equal(t, http.StatusAccepted, resp.Code)
	assert.Equal(t, string(tagstore.TypeCreateRequest), decodeBody[IntentResponse](t, resp.Body.Bytes()).Action)

	d := waitFor(t, sub)
	req, ok := d.Action.(tagstore.CreateRequest)
	require.True(t, ok)
	assert.Equal(t, "autumn", req.Name)
	assert.Equal(t, "image-1", req.AssetID)
	assert.True(t, d.State.Creating)
}

func TestCreateTag_Validation(t *testing.T) {
	ts := setupTestServer(t, Options{})

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
	}{
		{name: "missing name", body: map[string]any{}, wantStatus: http.StatusUnprocessableEntity},
		{name: "whitespace name", body: map[string]any{"name": "   "}, wantStatus: http.StatusBadRequest},
		{name: "name too long", body: map[string]any{"name": strings.Repeat("x", 101)}, wantStatus: http.StatusBadRequest},
		{name: "draft asset", body: map[string]any{"name": "red", "assetId": "drafts.image-1"}, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post("/api/v1/tags", tt.body)
			assert.Equal(t, tt.wantStatus, resp.Code)
			assert.Contains(t, resp.Body.String(), `"code":"VALIDATION"`)
		})
	}

	assert.False(t, ts.tags.State().Creating)
}

func TestUpdateTag(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.seedTags(t, testTag("tag-1", "red"))
	sub := ts.tags.Subscribe(tagstore.TypeUpdateRequest)
	defer sub.Close()

	resp := ts.api.Patch("/api/v1/tags/tag-1", map[string]any{"name": "crimson", "closeDialogId": "tag-1"})
	require.Equal(t, http.StatusAccepted, resp.Code)

	d := waitFor(t, sub)
	req, ok := d.Action.(tagstore.UpdateRequest)
	require.True(t, ok)
	assert.Equal(t, "tag-1", req.Tag.ID)
	assert.Equal(t, "r1", req.Tag.Rev)
	assert.Equal(t, "crimson", req.Name)
	assert.Equal(t, "tag-1", req.CloseDialogID)
	assert.True(t, d.State.ByIDs["tag-1"].Updating)
}

func TestUpdateTag_NotFound(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Patch("/api/v1/tags/tag-404", map[string]any{"name": "crimson"})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestDeleteTag(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.seedTags(t, testTag("tag-1", "red"))
	sub := ts.tags.Subscribe(tagstore.TypeDeleteRequest)
	defer sub.Close()

	resp := ts.api.Delete("/api/v1/tags/tag-1")
	require.Equal(t, http.StatusAccepted, resp.Code)

	d := waitFor(t, sub)
	req, ok := d.Action.(tagstore.DeleteRequest)
	require.True(t, ok)
	assert.Equal(t, "tag-1", req.Tag.ID)

	resp = ts.api.Delete("/api/v1/tags/tag-404")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestFetchTags(t *testing.T) {
	ts := setupTestServer(t, Options{})
	sub := ts.tags.Subscribe(tagstore.TypeFetchRequest)
	defer sub.Close()

	resp := ts.api.Post("/api/v1/tags/fetch")
	require.Equal(t, http.StatusAccepted, resp.Code)

	d := waitFor(t, sub)
	assert.True(t, d.State.Fetching)
}

func TestSetPanel(t *testing.T) {
	ts := setupTestServer(t, Options{})
	sub := ts.tags.Subscribe(tagstore.TypePanelVisibleSet)
	defer sub.Close()

	resp := ts.api.Put("/api/v1/tags/panel", map[string]any{"visible": false})
	require.Equal(t, http.StatusAccepted, resp.Code)

	d := waitFor(t, sub)
	assert.False(t, d.State.PanelVisible)
}

func TestIntents_RateLimited(t *testing.T) {
	ts := setupTestServer(t, Options{Limiter: NewRateLimiter(1, time.Minute, 1)})

	resp := ts.api.Post("/api/v1/tags/fetch")
	require.Equal(t, http.StatusAccepted, resp.Code)

	resp = ts.api.Post("/api/v1/tags/fetch")
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Contains(t, resp.Body.String(), `"code":"RATE_LIMITED"`)

	// Reads are never limited.
	resp = ts.api.Get("/api/v1/tags")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestReconcileRoutes(t *testing.T) {
	ts := setupTestServer(t, Options{})
	sub := ts.tags.Subscribe(tagstore.TypeCheckAndCreateTagsStart)
	defer sub.Close()

	resp := ts.api.Post("/api/v1/tags/reconcile")
	require.Equal(t, http.StatusAccepted, resp.Code)
	waitFor(t, sub)

	ts.apply(t, tagstore.CheckAndCreateTagsSuccess{Message: "done"})

	resp = ts.api.Get("/api/v1/tags/reconcile")
	require.Equal(t, http.StatusOK, resp.Code)
	outcome := decodeBody[tagstore.Outcome](t, resp.Body.Bytes())
	assert.True(t, outcome.Success)
	assert.False(t, outcome.Failure)

	reset := ts.tags.Subscribe(tagstore.TypeResetTagsOperationState)
	defer reset.Close()

	resp = ts.api.Delete("/api/v1/tags/reconcile")
	require.Equal(t, http.StatusAccepted, resp.Code)
	d := waitFor(t, reset)
	assert.Equal(t, tagstore.Outcome{}, tagstore.OperationOutcome(d.State))
}
