package providers

import (
	"context"
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/upnorway/sanity-plugin-media/internal/config"
	"github.com/upnorway/sanity-plugin-media/internal/docstore"
	"github.com/upnorway/sanity-plugin-media/internal/logger"
	"github.com/upnorway/sanity-plugin-media/internal/sse"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Component("sse"))

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// DocstoreHandle wraps the document store with shutdown capability.
type DocstoreHandle struct {
	*docstore.Store
}

// Shutdown implements do.Shutdownable.
func (h *DocstoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideDocstore provides the backing document store selected by DOCSTORE_DSN.
func ProvideDocstore(i do.Injector) (*DocstoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	store, err := docstore.Open(cfg.Storage.DocstoreDSN, docstore.Options{
		Logger: log.Component("docstore"),
	})
	if err != nil {
		return nil, err
	}

	if err := store.Ping(context.Background()); err != nil {
		_ = store.Close()
		return nil, err
	}

	log.Info("Document store ready", slog.String("backend", store.Backend()))

	return &DocstoreHandle{Store: store}, nil
}
