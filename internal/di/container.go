// Package di provides dependency injection configuration for the media tag server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/upnorway/sanity-plugin-media/internal/config"
	"github.com/upnorway/sanity-plugin-media/internal/di/providers"
	"github.com/upnorway/sanity-plugin-media/internal/logger"
	"github.com/upnorway/sanity-plugin-media/internal/metrics"
	"github.com/upnorway/sanity-plugin-media/internal/search"
	"github.com/upnorway/sanity-plugin-media/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideMetrics)

	// Storage layer
	do.Provide(injector, providers.ProvideDocstore)
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideTagStore)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideSearchSyncer)

	// Tag services
	do.Provide(injector, providers.ProvideTagService)
	do.Provide(injector, providers.ProvideRealtimeBatcher)
	do.Provide(injector, providers.ProvideReconciler)
	do.Provide(injector, providers.ProvideAssetUpdater)

	// Workers
	do.Provide(injector, providers.ProvideWorkers)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*metrics.Metrics](injector)

	if _, err := do.Invoke[*providers.DocstoreHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.TagStoreHandle](injector)
	if _, err := do.Invoke[*providers.SearchIndexHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*search.Syncer](injector)

	_ = do.MustInvoke[*service.TagService](injector)
	_ = do.MustInvoke[*service.RealtimeBatcher](injector)
	_ = do.MustInvoke[*service.Reconciler](injector)
	_ = do.MustInvoke[*service.AssetUpdater](injector)

	// Workers
	_ = do.MustInvoke[*providers.WorkersHandle](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
