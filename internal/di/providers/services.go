package providers

import (
	"github.com/samber/do/v2"

	"github.com/upnorway/sanity-plugin-media/internal/config"
	"github.com/upnorway/sanity-plugin-media/internal/logger"
	"github.com/upnorway/sanity-plugin-media/internal/metrics"
	"github.com/upnorway/sanity-plugin-media/internal/service"
)

// ProvideTagService provides the tag lifecycle service. It requests the
// initial fetch as soon as it is listening.
func ProvideTagService(i do.Injector) (*service.TagService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	docs := do.MustInvoke[*DocstoreHandle](i)
	store := do.MustInvoke[*TagStoreHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewTagService(docs.Store, store.Store, service.NewNameChecker(docs.Store), m, log.Component("tags"), service.TagServiceOptions{
		Throttle:     cfg.Tags.DebugThrottle,
		FetchOnStart: true,
	}), nil
}

// ProvideRealtimeBatcher provides the realtime listener batcher.
func ProvideRealtimeBatcher(i do.Injector) (*service.RealtimeBatcher, error) {
	cfg := do.MustInvoke[*config.Config](i)
	docs := do.MustInvoke[*DocstoreHandle](i)
	store := do.MustInvoke[*TagStoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewRealtimeBatcher(docs.Store, store.Store, log.Component("realtime"), service.RealtimeOptions{
		Window:     cfg.Realtime.Window,
		SortWindow: cfg.Realtime.SortWindow,
	}), nil
}

// ProvideReconciler provides the bulk tag-asset reconciler.
func ProvideReconciler(i do.Injector) (*service.Reconciler, error) {
	cfg := do.MustInvoke[*config.Config](i)
	docs := do.MustInvoke[*DocstoreHandle](i)
	store := do.MustInvoke[*TagStoreHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*logger.Logger](i)

	// A configured zero turns pacing off; the service reads zero as "default".
	interval := cfg.Tags.ReconcileInterval
	if interval == 0 {
		interval = -1
	}

	return service.NewReconciler(docs.Store, store.Store, m, log.Component("reconcile"), service.ReconcilerOptions{
		Interval: interval,
	}), nil
}

// ProvideAssetUpdater provides the asset update collaborator.
func ProvideAssetUpdater(i do.Injector) (*service.AssetUpdater, error) {
	docs := do.MustInvoke[*DocstoreHandle](i)
	store := do.MustInvoke[*TagStoreHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAssetUpdater(docs.Store, store.Store, m, log.Component("assets")), nil
}
