package providers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/do/v2"
	"golang.org/x/sync/errgroup"

	"github.com/upnorway/sanity-plugin-media/internal/logger"
	"github.com/upnorway/sanity-plugin-media/internal/search"
	"github.com/upnorway/sanity-plugin-media/internal/service"
)

// readyTimeout bounds how long startup waits for every loop to subscribe.
const readyTimeout = 5 * time.Second

// WorkersHandle runs the tag store loop and every service subscribed to it.
type WorkersHandle struct {
	group  *errgroup.Group
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Done is closed once every loop has returned.
func (h *WorkersHandle) Done() <-chan struct{} {
	return h.done
}

// Err returns the first loop error after Done is closed.
func (h *WorkersHandle) Err() error {
	<-h.done
	return h.err
}

// Shutdown implements do.Shutdownable.
func (h *WorkersHandle) Shutdown() error {
	h.cancel()

	select {
	case <-h.done:
		return h.err
	case <-time.After(shutdownTimeout):
		return errors.New("workers did not stop within shutdown timeout")
	}
}

// ProvideWorkers starts the tag store loop and the services reacting to it.
// The tag service starts last, once the realtime feed is listening, so no
// mutation committed after the initial fetch is missed.
func ProvideWorkers(i do.Injector) (*WorkersHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	store := do.MustInvoke[*TagStoreHandle](i)
	tags := do.MustInvoke[*service.TagService](i)
	realtime := do.MustInvoke[*service.RealtimeBatcher](i)
	reconciler := do.MustInvoke[*service.Reconciler](i)
	assets := do.MustInvoke[*service.AssetUpdater](i)
	syncer := do.MustInvoke[*search.Syncer](i)

	ctx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(ctx)

	loops := []struct {
		name string
		run  func(context.Context) error
	}{
		{"realtime", realtime.Run},
		{"reconcile", reconciler.Run},
		{"assets", assets.Run},
		{"search", syncer.Run},
	}
	for _, l := range loops {
		group.Go(func() error {
			if err := l.run(groupCtx); err != nil {
				return err
			}
			log.Debug("worker stopped", slog.String("worker", l.name))
			return nil
		})
	}

	group.Go(func() error { return store.Run(groupCtx) })

	select {
	case <-realtime.Ready():
	case <-time.After(readyTimeout):
		log.Warn("realtime listener not ready, continuing")
	}

	group.Go(func() error { return tags.Run(groupCtx) })

	h := &WorkersHandle{group: group, cancel: cancel, done: make(chan struct{})}
	go func() {
		h.err = group.Wait()
		close(h.done)
	}()

	log.Info("Tag workers started", slog.Int("workers", len(loops)+2))

	return h, nil
}
