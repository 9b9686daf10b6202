package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upnorway/sanity-plugin-media/internal/docstore"
	"github.com/upnorway/sanity-plugin-media/internal/domain"
	domainerrors "github.com/upnorway/sanity-plugin-media/internal/errors"
	"github.com/upnorway/sanity-plugin-media/internal/metrics"
	"github.com/upnorway/sanity-plugin-media/internal/search"
	"github.com/upnorway/sanity-plugin-media/internal/sse"
	"github.com/upnorway/sanity-plugin-media/internal/tagstore"
)

// testServer wraps the API server with its collaborators.
type testServer struct {
	*Server
	api   humatest.TestAPI
	docs  *docstore.Store
	tags  *tagstore.Store
	index *search.TagIndex
}

func setupTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	backend, err := docstore.OpenMemory()
	require.NoError(t, err)
	docs := docstore.New(backend, docstore.Options{Logger: logger})
	t.Cleanup(func() { _ = docs.Close() })

	index, err := search.NewTagIndex(search.Options{Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	tags := tagstore.New(logger)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = tags.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	s := NewServer(docs, tags, index, sse.NewManager(logger), metrics.New(), logger, opts)

	return &testServer{
		Server: s,
		api:    humatest.Wrap(t, s.api),
		docs:   docs,
		tags:   tags,
		index:  index,
	}
}

// apply dispatches actions and waits until the last one has been applied.
func (ts *testServer) apply(t *testing.T, actions ...tagstore.Action) {
	t.Helper()

	last := actions[len(actions)-1].Type()
	sub := ts.tags.Subscribe(last)
	defer sub.Close()

	ts.tags.Dispatch(actions...)
	waitFor(t, sub)
}

// seedTags loads tags into the store in name order and indexes them.
func (ts *testServer) seedTags(t *testing.T, tags ...domain.Tag) {
	t.Helper()

	ts.apply(t, tagstore.FetchComplete{Tags: tags}, tagstore.Sort{})
	require.NoError(t, ts.index.IndexTags(search.NewTagDocuments(tags)))
}

func waitFor(t *testing.T, sub *tagstore.Subscription) tagstore.Dispatched {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	d, err := sub.Next(ctx)
	require.NoError(t, err)
	return d
}

func testTag(id, name string) domain.Tag {
	return domain.Tag{ID: id, Type: domain.TagDocumentType, Rev: "r1", Name: domain.NewSlug(name)}
}

func decodeBody[T any](t *testing.T, body []byte) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(body, &v))
	return v
}

func TestHealth_DegradedBeforeFirstFetch(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	health := decodeBody[HealthResponse](t, resp.Body.Bytes())
	assert.Equal(t, statusDegraded, health.Status)
	assert.Equal(t, statusHealthy, health.Components["docstore"].Status)
	assert.Equal(t, "tags not fetched yet", health.Components["tags"].Message)
	assert.Equal(t, "no connected clients", health.Components["sse"].Message)
}

func TestHealth_HealthyAfterFetch(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.seedTags(t, testTag("tag-1", "red"))

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	health := decodeBody[HealthResponse](t, resp.Body.Bytes())
	assert.Equal(t, statusHealthy, health.Status)
	assert.Equal(t, "1 tags", health.Components["tags"].Message)
}

func TestHealth_FetchError(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.apply(t, tagstore.FetchError{Error: domain.HTTPError{Message: "store down", StatusCode: 503}})

	resp := ts.api.Get("/health")
	health := decodeBody[HealthResponse](t, resp.Body.Bytes())
	assert.Equal(t, statusDegraded, health.Components["tags"].Status)
	assert.Equal(t, "last fetch failed: store down", health.Components["tags"].Message)
}

func TestWorse(t *testing.T) {
	assert.Equal(t, statusDegraded, worse(statusHealthy, statusDegraded))
	assert.Equal(t, statusUnhealthy, worse(statusUnhealthy, statusDegraded))
	assert.Equal(t, statusHealthy, worse(statusHealthy, statusHealthy))
}

func TestFormatSSEStatus(t *testing.T) {
	assert.Equal(t, "no connected clients", formatSSEStatus(0))
	assert.Equal(t, "1 connected client", formatSSEStatus(1))
	assert.Equal(t, "3 connected clients", formatSSEStatus(3))
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "domain not found",
			err:        domainerrors.NotFound("missing"),
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "domain name conflict",
			err:        domainerrors.NameConflict("red"),
			wantStatus: http.StatusConflict,
			wantCode:   "ALREADY_EXISTS",
		},
		{
			name:       "revision conflict",
			err:        &docstore.RevisionConflictError{DocumentID: "a", Expected: "r1", Current: "r2"},
			wantStatus: http.StatusConflict,
			wantCode:   "REVISION_CONFLICT",
		},
		{
			name:       "store not found",
			err:        docstore.ErrNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "store closed",
			err:        docstore.ErrClosed,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "BACKING_STORE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := fromError(tt.err)
			require.NotNil(t, apiErr)
			assert.Equal(t, tt.wantStatus, apiErr.GetStatus())
			assert.Equal(t, tt.wantCode, apiErr.Code)
		})
	}

	assert.Nil(t, fromError(context.Canceled))
}

func TestStatusToCode(t *testing.T) {
	assert.Equal(t, "VALIDATION", statusToCode(http.StatusUnprocessableEntity))
	assert.Equal(t, "RATE_LIMITED", statusToCode(http.StatusTooManyRequests))
	assert.Equal(t, "BACKING_STORE", statusToCode(http.StatusBadGateway))
	assert.Equal(t, "INTERNAL", statusToCode(http.StatusTeapot))
}

func TestGetClientIP(t *testing.T) {
	headers := func(h map[string]string) func(string) string {
		return func(k string) string { return h[k] }
	}

	assert.Equal(t, "10.0.0.1", getClientIP(headers(map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}), "127.0.0.1:80"))
	assert.Equal(t, "10.0.0.3", getClientIP(headers(map[string]string{"X-Real-IP": "10.0.0.3"}), "127.0.0.1:80"))
	assert.Equal(t, "192.168.1.5", getClientIP(headers(nil), "192.168.1.5:4312"))
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://studio.example.com"})

	r, _ := http.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, check(r))

	r.Header.Set("Origin", "https://studio.example.com")
	assert.True(t, check(r))

	r.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(r))

	assert.True(t, originChecker([]string{"*"})(r))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Get("/metrics")
	assert.Equal(t, http.StatusOK, resp.Code)
}
