package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/upnorway/sanity-plugin-media/internal/docstore"
	"github.com/upnorway/sanity-plugin-media/internal/domain"
	"github.com/upnorway/sanity-plugin-media/internal/errors"
	"github.com/upnorway/sanity-plugin-media/internal/metrics"
	"github.com/upnorway/sanity-plugin-media/internal/tagstore"
)

// Backing-store filters used by tag operations.
const (
	publishedTagsFilter     = `_type == "` + domain.TagDocumentType + `" && !(_id startsWith "` + domain.DraftPrefix + `")`
	referencingAssetsFilter = `_type in ["` + domain.FileAssetDocumentType + `", "` + domain.ImageAssetDocumentType + `"] && references($tagId)`

	tagReferencesPath = "opt.media.tags"
)

// TagServiceOptions configures a TagService.
type TagServiceOptions struct {
	// Throttle delays every backing-store call, to simulate a slow connection.
	Throttle time.Duration
	// FetchOnStart dispatches a FetchRequest once Run is subscribed.
	FetchOnStart bool
}

// TagService turns tag requests into backing-store operations and reports
// each outcome as a store transition. Failures never escape as errors; they
// become error transitions carrying a normalized message and status.
type TagService struct {
	client   docstore.Client
	store    *tagstore.Store
	names    *NameChecker
	metrics  *metrics.Metrics
	logger   *slog.Logger
	throttle time.Duration
	fetch    bool
}

// NewTagService creates a new tag service.
func NewTagService(client docstore.Client, store *tagstore.Store, names *NameChecker, m *metrics.Metrics, logger *slog.Logger, opts TagServiceOptions) *TagService {
	return &TagService{
		client:   client,
		store:    store,
		names:    names,
		metrics:  m,
		logger:   logger,
		throttle: opts.Throttle,
		fetch:    opts.FetchOnStart,
	}
}

// Run handles create, update, and delete requests concurrently until ctx is
// done. Fetch requests are latest-wins: a newer fetch supersedes one still in
// flight. Retries are never automatic.
func (s *TagService) Run(ctx context.Context) error {
	sub := s.store.Subscribe(
		tagstore.TypeCreateRequest,
		tagstore.TypeUpdateRequest,
		tagstore.TypeDeleteRequest,
		tagstore.TypeFetchRequest,
	)
	defer sub.Close()

	if s.fetch {
		s.store.Dispatch(tagstore.FetchRequest{})
	}

	var (
		wg          sync.WaitGroup
		fetchMu     sync.Mutex
		fetchGen    uint64
		cancelFetch context.CancelFunc = func() {}
	)
	defer func() {
		cancelFetch()
		wg.Wait()
	}()

	for {
		d, err := sub.Next(ctx)
		if err != nil {
			return nil
		}

		switch a := d.Action.(type) {
		case tagstore.CreateRequest:
			wg.Go(func() { s.store.Dispatch(s.Create(ctx, a.Name, a.AssetID)) })
		case tagstore.UpdateRequest:
			wg.Go(func() { s.store.Dispatch(s.Update(ctx, a.Tag, a.Name, a.CloseDialogID)) })
		case tagstore.DeleteRequest:
			wg.Go(func() { s.store.Dispatch(s.Delete(ctx, a.Tag)) })
		case tagstore.FetchRequest:
			cancelFetch()
			fetchCtx, cancel := context.WithCancel(ctx)
			cancelFetch = cancel

			fetchMu.Lock()
			fetchGen++
			gen := fetchGen
			fetchMu.Unlock()

			wg.Go(func() {
				defer cancel()
				result := s.Fetch(fetchCtx)

				fetchMu.Lock()
				defer fetchMu.Unlock()
				if gen == fetchGen && fetchCtx.Err() == nil {
					s.store.Dispatch(result)
				}
			})
		}
	}
}

// Create checks the name and creates a tag document. assetID is carried
// through to the completion so callers can tell which asset asked for it.
func (s *TagService) Create(ctx context.Context, name, assetID string) tagstore.Action {
	logger := s.logger.With(slog.String("tag_name", name))

	fail := func(op string, err error) tagstore.Action {
		normalized := errors.Normalize(err)
		logger.Warn("tag create failed",
			slog.String("operation", op),
			slog.Int("status", normalized.StatusCode),
			slog.String("error", normalized.Message))
		return tagstore.CreateError{Name: name, Error: normalized}
	}

	if err := s.wait(ctx); err != nil {
		return fail("throttle", err)
	}
	if err := s.ensureName(ctx, name); err != nil {
		return fail("check_name", err)
	}

	started := time.Now()
	doc, err := s.client.Create(ctx, docstore.Document{
		docstore.FieldType: domain.TagDocumentType,
		"name": map[string]any{
			"_type":   domain.SlugType,
			"current": name,
		},
	})
	s.metrics.ObserveStoreCall("create", started, err)
	if err != nil {
		return fail("create", err)
	}

	tag, err := decodeTag(doc)
	if err != nil {
		return fail("decode", err)
	}

	logger.Info("tag created", slog.String("tag_id", tag.ID))
	return tagstore.CreateComplete{Tag: tag, AssetID: assetID}
}

// Update checks the new name and renames the tag, guarded by the tag's
// current revision. A collision with any tag, the renamed tag included, is
// reported as a conflict.
func (s *TagService) Update(ctx context.Context, tag domain.Tag, name, closeDialogID string) tagstore.Action {
	logger := s.logger.With(slog.String("tag_id", tag.ID), slog.String("tag_name", name))

	fail := func(op string, err error) tagstore.Action {
		normalized := errors.Normalize(err)
		logger.Warn("tag update failed",
			slog.String("operation", op),
			slog.Int("status", normalized.StatusCode),
			slog.String("error", normalized.Message))
		return tagstore.UpdateError{Tag: tag, Error: normalized}
	}

	if err := s.wait(ctx); err != nil {
		return fail("throttle", err)
	}
	if err := s.ensureName(ctx, name); err != nil {
		return fail("check_name", err)
	}

	patch := s.client.Patch(tag.ID).Set(map[string]any{
		"name": map[string]any{
			"_type":   domain.SlugType,
			"current": name,
		},
	})
	if tag.Rev != "" {
		patch.IfRevisionID(tag.Rev)
	}

	started := time.Now()
	doc, err := patch.Commit(ctx)
	s.metrics.ObserveStoreCall("patch", started, err)
	if err != nil {
		return fail("patch", err)
	}

	updated, err := decodeTag(doc)
	if err != nil {
		return fail("decode", err)
	}

	logger.Info("tag updated", slog.String("rev", updated.Rev))
	return tagstore.UpdateComplete{Tag: updated, CloseDialogID: closeDialogID}
}

// Delete removes the tag and every reference to it in one transaction. Each
// referencing asset is patched only if it is unchanged since it was fetched;
// otherwise nothing is written.
func (s *TagService) Delete(ctx context.Context, tag domain.Tag) tagstore.Action {
	logger := s.logger.With(slog.String("tag_id", tag.ID), slog.String("tag_name", tag.Name.Current))

	fail := func(op string, err error) tagstore.Action {
		normalized := errors.Normalize(err)
		logger.Warn("tag delete failed",
			slog.String("operation", op),
			slog.Int("status", normalized.StatusCode),
			slog.String("error", normalized.Message))
		return tagstore.DeleteError{Tag: tag, Error: normalized}
	}

	if err := s.wait(ctx); err != nil {
		return fail("throttle", err)
	}

	started := time.Now()
	assets, err := s.client.Fetch(ctx, docstore.Query{
		Filter: referencingAssetsFilter,
		Params: map[string]any{"tagId": tag.ID},
	})
	s.metrics.ObserveStoreCall("fetch", started, err)
	if err != nil {
		return fail("fetch_assets", err)
	}

	tx := s.client.Transaction()
	for _, asset := range assets {
		rev := asset.Rev()
		tx.Patch(asset.ID(), func(p *docstore.Patch) {
			p.IfRevisionID(rev).RemoveReferences(tagReferencesPath, tag.ID)
		})
	}
	tx.Delete(tag.ID)

	started = time.Now()
	_, err = tx.Commit(ctx)
	s.metrics.ObserveStoreCall("transaction", started, err)
	if err != nil {
		return fail("commit", err)
	}

	logger.Info("tag deleted", slog.Int("unreferenced_assets", len(assets)))
	return tagstore.DeleteComplete{TagID: tag.ID}
}

// Fetch loads every published tag ordered by name.
func (s *TagService) Fetch(ctx context.Context) tagstore.Action {
	fail := func(err error) tagstore.Action {
		normalized := errors.Normalize(err)
		s.logger.Warn("tag fetch failed",
			slog.Int("status", normalized.StatusCode),
			slog.String("error", normalized.Message))
		return tagstore.FetchError{Error: normalized}
	}

	if err := s.wait(ctx); err != nil {
		return fail(err)
	}

	started := time.Now()
	docs, err := s.client.Fetch(ctx, docstore.Query{
		Filter:  publishedTagsFilter,
		OrderBy: "name.current",
	})
	s.metrics.ObserveStoreCall("fetch", started, err)
	if err != nil {
		return fail(err)
	}

	tags := make([]domain.Tag, 0, len(docs))
	for _, doc := range docs {
		tag, err := decodeTag(doc)
		if err != nil {
			return fail(err)
		}
		tags = append(tags, tag)
	}

	s.logger.Debug("tags fetched", slog.Int("count", len(tags)))
	return tagstore.FetchComplete{Tags: tags}
}

func (s *TagService) ensureName(ctx context.Context, name string) error {
	started := time.Now()
	err := s.names.Ensure(ctx, name)
	if !errors.Is(err, errors.ErrAlreadyExists) {
		s.metrics.ObserveStoreCall("check_name", started, err)
	}
	return err
}

func (s *TagService) wait(ctx context.Context) error {
	return sleep(ctx, s.throttle)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func decodeTag(doc docstore.Document) (domain.Tag, error) {
	var tag domain.Tag
	if err := doc.Decode(&tag); err != nil {
		return domain.Tag{}, fmt.Errorf("decode tag: %w", err)
	}
	return tag, nil
}

func decodeAsset(doc docstore.Document) (domain.Asset, error) {
	var asset domain.Asset
	if err := doc.Decode(&asset); err != nil {
		return domain.Asset{}, fmt.Errorf("decode asset: %w", err)
	}
	return asset, nil
}
