package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upnorway/sanity-plugin-media/internal/domain"
	"github.com/upnorway/sanity-plugin-media/internal/tagstore"
)

func TestAssetUpdater_Update(t *testing.T) {
	client := setupClient(t)
	tag := seedTag(t, client, "Red")
	asset := seedAsset(t, client, "image-1", []string{"Red"})
	updater := NewAssetUpdater(client, setupTagStore(t), nil, discardLogger())

	refs := []domain.Reference{domain.NewWeakReference(tag.ID)}
	result := updater.Update(context.Background(), asset, domain.NewAssetFormData(asset, refs))

	complete, ok := result.(tagstore.AssetUpdateComplete)
	require.True(t, ok, "got %T", result)
	assert.Equal(t, "image-1", complete.Asset.ID)
	assert.Equal(t, refs, complete.Asset.TagReferences())
	assert.Equal(t, asset.Title, complete.Asset.Title)
	assert.NotEqual(t, asset.Rev, complete.Asset.Rev)
}

func TestAssetUpdater_Update_StaleRevision(t *testing.T) {
	client := setupClient(t)
	asset := seedAsset(t, client, "image-1", nil)
	updater := NewAssetUpdater(client, setupTagStore(t), nil, discardLogger())

	_, err := client.Patch(asset.ID).Set(map[string]any{"title": "edited"}).Commit(context.Background())
	require.NoError(t, err)

	result := updater.Update(context.Background(), asset, domain.NewAssetFormData(asset, nil))

	failed, ok := result.(tagstore.AssetUpdateError)
	require.True(t, ok, "got %T", result)
	assert.Equal(t, "image-1", failed.AssetID)
	assert.Equal(t, http.StatusConflict, failed.Error.StatusCode)
	assert.Equal(t, "edited", getAsset(t, client, "image-1").Title)
}

func TestAssetUpdater_Run(t *testing.T) {
	client := setupClient(t)
	store := setupTagStore(t)
	asset := seedAsset(t, client, "image-1", nil)
	updater := NewAssetUpdater(client, store, nil, discardLogger())

	sub := store.Subscribe(tagstore.TypeAssetUpdateComplete, tagstore.TypeAssetUpdateError)
	defer sub.Close()
	startService(t, store, updater.Run)

	form := domain.NewAssetFormData(asset, nil)
	form.Title = "Renamed"
	store.Dispatch(tagstore.AssetUpdateRequest{Asset: asset, FormData: form})

	complete, ok := next(t, sub).(tagstore.AssetUpdateComplete)
	require.True(t, ok)
	assert.Equal(t, "Renamed", complete.Asset.Title)
}
