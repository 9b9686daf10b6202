package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/upnorway/sanity-plugin-media/internal/docstore"
	"github.com/upnorway/sanity-plugin-media/internal/tagstore"
)

// Default realtime windows.
const (
	DefaultRealtimeWindow = 2 * time.Second
	DefaultSortWindow     = time.Second
)

// RealtimeOptions configures the realtime batcher windows.
type RealtimeOptions struct {
	// Window buffers each create/update/delete channel.
	Window time.Duration
	// SortWindow buffers applied create/update windows before a re-sort.
	SortWindow time.Duration
}

// RealtimeBatcher folds the backing store's mutation feed into bulk store
// transitions. Each of the three channels emits at most one transition per
// window and nothing for an empty window. Applied create and update windows
// trigger at most one sort per sort window.
type RealtimeBatcher struct {
	client     docstore.Client
	store      *tagstore.Store
	logger     *slog.Logger
	ready      chan struct{}
	readyOnce  sync.Once
	window     time.Duration
	sortWindow time.Duration
}

// NewRealtimeBatcher creates a batcher. Zero windows take the defaults.
func NewRealtimeBatcher(client docstore.Client, store *tagstore.Store, logger *slog.Logger, opts RealtimeOptions) *RealtimeBatcher {
	if opts.Window <= 0 {
		opts.Window = DefaultRealtimeWindow
	}
	if opts.SortWindow <= 0 {
		opts.SortWindow = DefaultSortWindow
	}
	return &RealtimeBatcher{
		client:     client,
		store:      store,
		logger:     logger,
		ready:      make(chan struct{}),
		window:     opts.Window,
		sortWindow: opts.SortWindow,
	}
}

// Ready is closed once the feed and every buffer are subscribed. Mutations
// committed after that are never missed.
func (b *RealtimeBatcher) Ready() <-chan struct{} {
	return b.ready
}

// Run subscribes to the feed, starts the bridge, the three channel buffers,
// and the sort trigger, and blocks until ctx is done.
func (b *RealtimeBatcher) Run(ctx context.Context) error {
	events, err := b.client.Listen(ctx, docstore.Query{Filter: publishedTagsFilter})
	if err != nil {
		return fmt.Errorf("listen for tag mutations: %w", err)
	}

	creates := b.store.Subscribe(tagstore.TypeListenerCreateQueue)
	updates := b.store.Subscribe(tagstore.TypeListenerUpdateQueue)
	deletes := b.store.Subscribe(tagstore.TypeListenerDeleteQueue)
	applied := b.store.Subscribe(tagstore.TypeListenerCreateQueueComplete, tagstore.TypeListenerUpdateQueueComplete)

	b.readyOnce.Do(func() { close(b.ready) })
	b.logger.Info("realtime tag listener started",
		slog.Duration("window", b.window),
		slog.Duration("sort_window", b.sortWindow))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return b.bridge(ctx, events) })

	g.Go(func() error {
		return b.bufferTime(ctx, creates, "create", b.window, func(batch []tagstore.Action) tagstore.Action {
			out := tagstore.ListenerCreateQueueComplete{}
			for _, a := range batch {
				out.Tags = append(out.Tags, a.(tagstore.ListenerCreateQueue).Tag)
			}
			return out
		})
	})

	g.Go(func() error {
		return b.bufferTime(ctx, updates, "update", b.window, func(batch []tagstore.Action) tagstore.Action {
			out := tagstore.ListenerUpdateQueueComplete{}
			for _, a := range batch {
				out.Tags = append(out.Tags, a.(tagstore.ListenerUpdateQueue).Tag)
			}
			return out
		})
	})

	g.Go(func() error {
		return b.bufferTime(ctx, deletes, "delete", b.window, func(batch []tagstore.Action) tagstore.Action {
			out := tagstore.ListenerDeleteQueueComplete{}
			for _, a := range batch {
				out.TagIDs = append(out.TagIDs, a.(tagstore.ListenerDeleteQueue).TagID)
			}
			return out
		})
	})

	g.Go(func() error {
		return b.bufferTime(ctx, applied, "sort", b.sortWindow, func([]tagstore.Action) tagstore.Action {
			return tagstore.Sort{}
		})
	})

	return g.Wait()
}

// bridge turns backing-store mutations of published tags into queue
// transitions.
func (b *RealtimeBatcher) bridge(ctx context.Context, events <-chan docstore.MutationEvent) error {
	for ev := range events {
		switch ev.Transition {
		case docstore.TransitionCreate, docstore.TransitionUpdate:
			tag, err := decodeTag(ev.Result)
			if err != nil {
				b.logger.Warn("ignoring undecodable tag mutation",
					slog.String("tag_id", ev.DocumentID),
					slog.String("error", err.Error()))
				continue
			}
			if ev.Transition == docstore.TransitionCreate {
				b.store.Dispatch(tagstore.ListenerCreateQueue{Tag: tag})
			} else {
				b.store.Dispatch(tagstore.ListenerUpdateQueue{Tag: tag})
			}
		case docstore.TransitionDelete:
			b.store.Dispatch(tagstore.ListenerDeleteQueue{TagID: ev.DocumentID})
		}
	}

	if ctx.Err() == nil {
		b.logger.Warn("realtime tag listener closed by the backing store")
	}
	return nil
}

// bufferTime collects the subscription's actions over fixed windows aligned
// to a ticker started here, and dispatches fold(batch) for every non-empty
// window.
func (b *RealtimeBatcher) bufferTime(ctx context.Context, sub *tagstore.Subscription, channel string,
	window time.Duration, fold func([]tagstore.Action) tagstore.Action,
) error {
	defer sub.Close()

	items := make(chan tagstore.Action)
	go func() {
		defer close(items)
		for {
			d, err := sub.Next(ctx)
			if err != nil {
				return
			}
			select {
			case items <- d.Action:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(window)
	defer ticker.Stop()

	var batch []tagstore.Action
	for {
		select {
		case a, ok := <-items:
			if !ok {
				return nil
			}
			batch = append(batch, a)

		case <-ticker.C:
			if len(batch) == 0 {
				continue
			}
			b.logger.Debug("realtime window applied",
				slog.String("channel", channel),
				slog.Int("size", len(batch)))
			b.store.Dispatch(fold(batch))
			batch = nil

		case <-ctx.Done():
			return nil
		}
	}
}
