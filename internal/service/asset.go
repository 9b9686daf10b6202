package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/upnorway/sanity-plugin-media/internal/docstore"
	"github.com/upnorway/sanity-plugin-media/internal/domain"
	"github.com/upnorway/sanity-plugin-media/internal/errors"
	"github.com/upnorway/sanity-plugin-media/internal/metrics"
	"github.com/upnorway/sanity-plugin-media/internal/tagstore"
)

// AssetUpdater writes asset form data requested through the tag store.
type AssetUpdater struct {
	client  docstore.Client
	store   *tagstore.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewAssetUpdater creates an asset updater.
func NewAssetUpdater(client docstore.Client, store *tagstore.Store, m *metrics.Metrics, logger *slog.Logger) *AssetUpdater {
	return &AssetUpdater{client: client, store: store, metrics: m, logger: logger}
}

// Run handles asset update requests until ctx is done.
func (u *AssetUpdater) Run(ctx context.Context) error {
	sub := u.store.Subscribe(tagstore.TypeAssetUpdateRequest)
	defer sub.Close()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		d, err := sub.Next(ctx)
		if err != nil {
			return nil
		}
		a := d.Action.(tagstore.AssetUpdateRequest)
		wg.Go(func() { u.store.Dispatch(u.Update(ctx, a.Asset, a.FormData)) })
	}
}

// Update writes form data to the asset, guarded by the asset's revision.
func (u *AssetUpdater) Update(ctx context.Context, asset domain.Asset, form domain.AssetFormData) tagstore.Action {
	logger := u.logger.With(slog.String("asset_id", asset.ID))

	patch := u.client.Patch(asset.ID).Set(form.Fields())
	if asset.Rev != "" {
		patch.IfRevisionID(asset.Rev)
	}

	started := time.Now()
	doc, err := patch.Commit(ctx)
	u.metrics.ObserveStoreCall("patch", started, err)
	if err == nil {
		var updated domain.Asset
		if updated, err = decodeAsset(doc); err == nil {
			logger.Info("asset updated", slog.Int("tag_references", len(updated.TagReferences())))
			return tagstore.AssetUpdateComplete{Asset: updated}
		}
	}

	normalized := errors.Normalize(err)
	logger.Warn("asset update failed",
		slog.Int("status", normalized.StatusCode),
		slog.String("error", normalized.Message))
	return tagstore.AssetUpdateError{AssetID: asset.ID, Error: normalized}
}
