package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/upnorway/sanity-plugin-media/internal/docstore"
	"github.com/upnorway/sanity-plugin-media/internal/domain"
	"github.com/upnorway/sanity-plugin-media/internal/errors"
	"github.com/upnorway/sanity-plugin-media/internal/metrics"
	"github.com/upnorway/sanity-plugin-media/internal/ratelimit"
	"github.com/upnorway/sanity-plugin-media/internal/tagstore"
)

// DefaultReconcileInterval spaces assets during a bulk reconciliation.
const DefaultReconcileInterval = 10 * time.Second

// Bulk reconciliation outcome messages.
const (
	ReconcileSuccessMessage = "All assets processed successfully."
	ReconcileFailureMessage = "Some assets could not be processed."
)

const allAssetsFilter = `_type in ["` + domain.FileAssetDocumentType + `", "` + domain.ImageAssetDocumentType + `"]`

// LookupOutcome classifies a raw tag name against the store and an asset's
// reference accumulator.
type LookupOutcome int

// Lookup outcomes.
const (
	// LookupNotFound means no tag in the store has the name.
	LookupNotFound LookupOutcome = iota
	// LookupFound means a tag has the name and the asset does not reference it.
	LookupFound
	// LookupReferenced means the asset already references the named tag.
	LookupReferenced
)

func (o LookupOutcome) String() string {
	switch o {
	case LookupFound:
		return "found"
	case LookupReferenced:
		return "referenced"
	default:
		return "not_found"
	}
}

// TagLookup is the result of resolving one raw tag name. TagID is set for
// LookupFound and LookupReferenced.
type TagLookup struct {
	TagID   string
	Outcome LookupOutcome
}

// LookupTag resolves name against state and the references collected so far.
func LookupTag(state tagstore.State, refs []domain.Reference, name string) TagLookup {
	tagID, ok := tagstore.FindTagIDByName(state, name)
	if !ok {
		return TagLookup{Outcome: LookupNotFound}
	}
	if slices.ContainsFunc(refs, func(r domain.Reference) bool { return r.Ref == tagID }) {
		return TagLookup{Outcome: LookupReferenced, TagID: tagID}
	}
	return TagLookup{Outcome: LookupFound, TagID: tagID}
}

// ReconcilerOptions configures a Reconciler.
type ReconcilerOptions struct {
	// Interval is the minimum spacing between two assets. Zero means the
	// default; a negative value disables pacing.
	Interval time.Duration
}

// Reconciler makes sure every free-text tag name on an asset is backed by a
// tag document and referenced from the asset. Assets, and the names on each
// asset, are processed strictly one after another.
type Reconciler struct {
	client  docstore.Client
	store   *tagstore.Store
	metrics *metrics.Metrics
	logger   *slog.Logger
	interval time.Duration

	// assetMu keeps bulk runs and PrepareTagOptions off the same asset.
	assetMu sync.Mutex
}

// NewReconciler creates a reconciler.
func NewReconciler(client docstore.Client, store *tagstore.Store, m *metrics.Metrics, logger *slog.Logger, opts ReconcilerOptions) *Reconciler {
	interval := opts.Interval
	if interval == 0 {
		interval = DefaultReconcileInterval
	}
	return &Reconciler{
		client:   client,
		store:    store,
		metrics:  m,
		logger:   logger,
		interval: interval,
	}
}

// Run handles bulk reconciliation starts, latest-wins, and single-asset
// PrepareTagOptions requests until ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	sub := r.store.Subscribe(tagstore.TypeCheckAndCreateTagsStart, tagstore.TypePrepareTagOptions)
	defer sub.Close()

	var (
		wg         sync.WaitGroup
		cancelBulk context.CancelFunc = func() {}
	)
	defer func() {
		cancelBulk()
		wg.Wait()
	}()

	for {
		d, err := sub.Next(ctx)
		if err != nil {
			return nil
		}

		switch a := d.Action.(type) {
		case tagstore.CheckAndCreateTagsStart:
			cancelBulk()
			bulkCtx, cancel := context.WithCancel(ctx)
			cancelBulk = cancel
			wg.Go(func() {
				defer cancel()
				result := r.ReconcileAll(bulkCtx)
				if bulkCtx.Err() == nil {
					r.store.Dispatch(result)
				}
			})
		case tagstore.PrepareTagOptions:
			asset := a.Asset
			if asset.ID == "" {
				asset.ID = a.AssetID
			}
			if len(a.Tags) > 0 {
				asset.Tags = a.Tags
			}
			wg.Go(func() {
				if err := r.reconcileLocked(ctx, asset); err != nil && ctx.Err() == nil {
					r.logger.Warn("tag options not prepared",
						slog.String("asset_id", asset.ID),
						slog.String("error", err.Error()))
				}
			})
		}
	}
}

// ReconcileAll fetches every image and file asset and reconciles those that
// carry raw tag names. It returns the aggregate outcome transition.
func (r *Reconciler) ReconcileAll(ctx context.Context) tagstore.Action {
	started := time.Now()
	docs, err := r.client.Fetch(ctx, docstore.Query{Filter: allAssetsFilter})
	r.metrics.ObserveStoreCall("fetch", started, err)
	if err != nil {
		normalized := errors.Normalize(err)
		r.logger.Error("bulk reconciliation failed",
			slog.Int("status", normalized.StatusCode),
			slog.String("error", normalized.Message))
		return tagstore.CheckAndCreateTagsFailure{Message: normalized.Message, StatusCode: normalized.StatusCode}
	}

	// Each run paces from its own first asset.
	pacer := ratelimit.NewPacer(r.interval)

	var processed, failed int
	for _, doc := range docs {
		asset, err := decodeAsset(doc)
		if err != nil {
			r.logger.Warn("skipping undecodable asset",
				slog.String("asset_id", doc.ID()),
				slog.String("error", err.Error()))
			failed++
			r.metrics.AssetReconciled("failed")
			continue
		}
		if len(asset.Tags) == 0 {
			continue
		}

		if err := pacer.Wait(ctx); err != nil {
			normalized := errors.Normalize(err)
			return tagstore.CheckAndCreateTagsFailure{Message: normalized.Message, StatusCode: normalized.StatusCode}
		}

		processed++
		if err := r.reconcileLocked(ctx, asset); err != nil {
			failed++
			r.logger.Warn("asset reconciliation failed",
				slog.String("asset_id", asset.ID),
				slog.String("error", err.Error()))
		}
	}

	r.logger.Info("bulk reconciliation finished",
		slog.Int("assets", processed),
		slog.Int("failed", failed),
		slog.Duration("duration", time.Since(started)))

	if failed > 0 {
		return tagstore.CheckAndCreateTagsFailure{Message: ReconcileFailureMessage}
	}
	return tagstore.CheckAndCreateTagsSuccess{Message: ReconcileSuccessMessage}
}

// reconcileLocked runs ReconcileAsset with no other reconciliation in
// flight.
func (r *Reconciler) reconcileLocked(ctx context.Context, asset domain.Asset) error {
	r.assetMu.Lock()
	defer r.assetMu.Unlock()
	return r.ReconcileAsset(ctx, asset)
}

// ReconcileAsset resolves every raw tag name on asset in order. Missing tags
// are created through the tag store and awaited; each new reference is
// written with an awaited asset update. The first failure aborts the asset.
func (r *Reconciler) ReconcileAsset(ctx context.Context, asset domain.Asset) (err error) {
	logger := r.logger.With(slog.String("asset_id", asset.ID))
	changed := false
	defer func() {
		switch {
		case err != nil:
			r.metrics.AssetReconciled("failed")
		case changed:
			r.metrics.AssetReconciled("updated")
		default:
			r.metrics.AssetReconciled("unchanged")
		}
	}()

	refs := slices.Clone(asset.TagReferences())

	for _, name := range asset.Tags {
		lookup := LookupTag(r.store.State(), refs, name)
		logger.Debug("tag name resolved",
			slog.String("tag_name", name),
			slog.String("outcome", lookup.Outcome.String()))

		switch lookup.Outcome {
		case LookupReferenced:
			continue

		case LookupFound:
			refs = append(refs, domain.NewWeakReference(lookup.TagID))

		case LookupNotFound:
			tag, err := r.createTag(ctx, name, asset.ID)
			if err != nil {
				return err
			}
			refs = append(refs, domain.NewWeakReference(tag.ID))
		}

		updated, err := r.updateAsset(ctx, asset, refs)
		if err != nil {
			return err
		}
		asset = updated
		changed = true
	}

	return nil
}

// createTag requests a tag and waits for the completion carrying its name.
func (r *Reconciler) createTag(ctx context.Context, name, assetID string) (domain.Tag, error) {
	sub := r.store.Subscribe(tagstore.TypeCreateComplete, tagstore.TypeCreateError)
	defer sub.Close()

	r.store.Dispatch(tagstore.CreateRequest{Name: name, AssetID: assetID})

	for {
		d, err := sub.Next(ctx)
		if err != nil {
			return domain.Tag{}, fmt.Errorf("await tag %q: %w", name, err)
		}
		switch a := d.Action.(type) {
		case tagstore.CreateComplete:
			if a.Tag.Name.Current == name {
				return a.Tag, nil
			}
		case tagstore.CreateError:
			if a.Name == name {
				return domain.Tag{}, fmt.Errorf("create tag %q: %w", name, &a.Error)
			}
		}
	}
}

// updateAsset requests an asset update with refs and waits for its outcome.
func (r *Reconciler) updateAsset(ctx context.Context, asset domain.Asset, refs []domain.Reference) (domain.Asset, error) {
	sub := r.store.Subscribe(tagstore.TypeAssetUpdateComplete, tagstore.TypeAssetUpdateError)
	defer sub.Close()

	r.store.Dispatch(tagstore.AssetUpdateRequest{
		Asset:    asset,
		FormData: domain.NewAssetFormData(asset, refs),
	})

	for {
		d, err := sub.Next(ctx)
		if err != nil {
			return domain.Asset{}, fmt.Errorf("await asset %s: %w", asset.ID, err)
		}
		switch a := d.Action.(type) {
		case tagstore.AssetUpdateComplete:
			if a.Asset.ID == asset.ID {
				return a.Asset, nil
			}
		case tagstore.AssetUpdateError:
			if a.AssetID == asset.ID {
				return domain.Asset{}, fmt.Errorf("update asset %s: %w", asset.ID, &a.Error)
			}
		}
	}
}
