package providers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/samber/do/v2"

	"github.com/upnorway/sanity-plugin-media/internal/api"
	"github.com/upnorway/sanity-plugin-media/internal/config"
	"github.com/upnorway/sanity-plugin-media/internal/logger"
	"github.com/upnorway/sanity-plugin-media/internal/metrics"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server. It depends on the worker group
// so it is shut down before the loops it dispatches to.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	docs := do.MustInvoke[*DocstoreHandle](i)
	store := do.MustInvoke[*TagStoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	_ = do.MustInvoke[*WorkersHandle](i)

	var limiter *api.RateLimiter
	if !cfg.Server.DisableRateLimiter {
		limiter = api.NewRateLimiter(cfg.Server.IntentRatePerMin, time.Minute, cfg.Server.IntentRateBurst)
	}

	handler := api.NewServer(docs.Store, store.Store, indexHandle.TagIndex, sseHandle.Manager, m, log.Component("http"), api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Limiter:        limiter,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv}, nil
}
