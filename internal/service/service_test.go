package service

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/upnorway/sanity-plugin-media/internal/docstore"
	"github.com/upnorway/sanity-plugin-media/internal/domain"
	"github.com/upnorway/sanity-plugin-media/internal/tagstore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// countingClient records create calls and can run a hook right before a
// transaction is started.
type countingClient struct {
	*docstore.Store
	beforeTransaction func()
	creates           atomic.Int32
}

func (c *countingClient) Create(ctx context.Context, doc docstore.Document) (docstore.Document, error) {
	c.creates.Add(1)
	return c.Store.Create(ctx, doc)
}

func (c *countingClient) Transaction() *docstore.Transaction {
	if c.beforeTransaction != nil {
		c.beforeTransaction()
	}
	return c.Store.Transaction()
}

// setupClient creates a client over an in-memory document store.
func setupClient(t *testing.T) *countingClient {
	t.Helper()

	backend, err := docstore.OpenMemory()
	require.NoError(t, err)

	s := docstore.New(backend, docstore.Options{Logger: discardLogger()})
	t.Cleanup(func() { _ = s.Close() })

	return &countingClient{Store: s}
}

// setupTagStore starts a tag store loop for the duration of the test.
func setupTagStore(t *testing.T) *tagstore.Store {
	t.Helper()

	store := tagstore.New(discardLogger())
	runLoop(t, store.Run)
	return store
}

// runLoop runs fn until the test ends.
func runLoop(t *testing.T, fn func(context.Context) error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = fn(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// startService runs a service loop and waits until it has subscribed to the
// store, so transitions dispatched afterwards reach it.
func startService(t *testing.T, store *tagstore.Store, fn func(context.Context) error) {
	t.Helper()

	before := store.SubscriberCount()
	runLoop(t, fn)
	require.Eventually(t, func() bool {
		return store.SubscriberCount() > before
	}, 2*time.Second, 5*time.Millisecond, "service never subscribed")
}

// next waits for the subscription's next transition.
func next(t *testing.T, sub *tagstore.Subscription) tagstore.Action {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	d, err := sub.Next(ctx)
	require.NoError(t, err, "no transition delivered")
	return d.Action
}

// expectQuiet asserts the subscription delivers nothing for d.
func expectQuiet(t *testing.T, sub *tagstore.Subscription, d time.Duration) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	got, err := sub.Next(ctx)
	if err == nil {
		t.Fatalf("unexpected transition %s", got.Action.Type())
	}
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func seedTag(t *testing.T, c *countingClient, name string) domain.Tag {
	t.Helper()

	doc, err := c.Store.Create(context.Background(), docstore.Document{
		"_type": domain.TagDocumentType,
		"name":  map[string]any{"_type": domain.SlugType, "current": name},
	})
	require.NoError(t, err)

	tag, err := decodeTag(doc)
	require.NoError(t, err)
	return tag
}

func seedAsset(t *testing.T, c *countingClient, assetID string, names []string, tagIDs ...string) domain.Asset {
	t.Helper()

	refs := make([]any, 0, len(tagIDs))
	for _, tagID := range tagIDs {
		refs = append(refs, map[string]any{"_ref": tagID, "_type": domain.ReferenceType, "_weak": true})
	}

	doc := docstore.Document{
		"_id":   assetID,
		"_type": domain.ImageAssetDocumentType,
		"title": "Asset " + assetID,
		"opt":   map[string]any{"media": map[string]any{"tags": refs}},
	}
	if len(names) > 0 {
		doc["tags"] = names
	}

	created, err := c.Store.Create(context.Background(), doc)
	require.NoError(t, err)

	asset, err := decodeAsset(created)
	require.NoError(t, err)
	return asset
}

func getAsset(t *testing.T, c *countingClient, assetID string) domain.Asset {
	t.Helper()

	doc, err := c.Get(context.Background(), assetID)
	require.NoError(t, err)

	asset, err := decodeAsset(doc)
	require.NoError(t, err)
	return asset
}

func refIDs(refs []domain.Reference) []string {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.Ref)
	}
	return ids
}
