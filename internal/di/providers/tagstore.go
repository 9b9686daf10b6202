package providers

import (
	"github.com/samber/do/v2"

	"github.com/upnorway/sanity-plugin-media/internal/logger"
	"github.com/upnorway/sanity-plugin-media/internal/metrics"
	"github.com/upnorway/sanity-plugin-media/internal/tagstore"
)

// TagStoreHandle wraps the tag store. Its loop is run by the worker group.
type TagStoreHandle struct {
	*tagstore.Store
}

// ProvideMetrics provides the Prometheus metrics registry.
func ProvideMetrics(i do.Injector) (*metrics.Metrics, error) {
	return metrics.New(), nil
}

// ProvideTagStore provides the tag store with metrics and SSE observers
// attached.
func ProvideTagStore(i do.Injector) (*TagStoreHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	store := tagstore.New(log.Component("tagstore"))

	// Observers must be attached before the loop starts.
	store.Observe(m.ObserveTransition)
	store.Observe(sseHandle.Forward)

	return &TagStoreHandle{Store: store}, nil
}
