// Package metrics exposes Prometheus collectors for tag state transitions,
// realtime batching, and backing-store calls.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/upnorway/sanity-plugin-media/internal/tagstore"
)

// Metrics holds every collector on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	transitions       *prometheus.CounterVec
	realtimeBatches   *prometheus.CounterVec
	realtimeBatchSize *prometheus.HistogramVec
	sorts             prometheus.Counter
	storeCalls        *prometheus.HistogramVec
	storeFailures     *prometheus.CounterVec
	reconciledAssets  *prometheus.CounterVec
	listenClients     prometheus.Gauge
}

// New registers the collectors, plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "media_tag_transitions_total",
			Help: "Total number of tag store transitions applied",
		}, []string{"type"}),

		realtimeBatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "media_tag_realtime_batches_total",
			Help: "Total number of realtime notification windows applied",
		}, []string{"channel"}),

		realtimeBatchSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "media_tag_realtime_batch_size",
			Help:    "Number of notifications folded into one realtime window",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}, []string{"channel"}),

		sorts: factory.NewCounter(prometheus.CounterOpts{
			Name: "media_tag_sorts_total",
			Help: "Total number of tag order re-derivations",
		}),

		storeCalls: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "media_docstore_call_duration_seconds",
			Help:    "Backing-store call duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}, []string{"operation"}),

		storeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "media_docstore_failures_total",
			Help: "Total number of failed backing-store calls",
		}, []string{"operation"}),

		reconciledAssets: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "media_tag_reconciled_assets_total",
			Help: "Total number of assets processed by tag reconciliation",
		}, []string{"outcome"}),

		listenClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "media_document_listen_clients_active",
			Help: "Number of connected document listen websocket clients",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveTransition is a tagstore.Observer.
func (m *Metrics) ObserveTransition(d tagstore.Dispatched) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(d.Action.Type())).Inc()

	switch a := d.Action.(type) {
	case tagstore.ListenerCreateQueueComplete:
		m.observeBatch("create", len(a.Tags))
	case tagstore.ListenerUpdateQueueComplete:
		m.observeBatch("update", len(a.Tags))
	case tagstore.ListenerDeleteQueueComplete:
		m.observeBatch("delete", len(a.TagIDs))
	case tagstore.Sort:
		m.sorts.Inc()
	}
}

func (m *Metrics) observeBatch(channel string, size int) {
	m.realtimeBatches.WithLabelValues(channel).Inc()
	m.realtimeBatchSize.WithLabelValues(channel).Observe(float64(size))
}

// ObserveStoreCall records the duration and outcome of one backing-store
// call.
func (m *Metrics) ObserveStoreCall(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.storeCalls.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	if err != nil {
		m.storeFailures.WithLabelValues(operation).Inc()
	}
}

// AssetReconciled counts one processed asset by outcome.
func (m *Metrics) AssetReconciled(outcome string) {
	if m == nil {
		return
	}
	m.reconciledAssets.WithLabelValues(strings.ToLower(outcome)).Inc()
}

// ListenClientConnected tracks websocket listen clients.
func (m *Metrics) ListenClientConnected() {
	if m == nil {
		return
	}
	m.listenClients.Inc()
}

// ListenClientDisconnected tracks websocket listen clients.
func (m *Metrics) ListenClientDisconnected() {
	if m == nil {
		return
	}
	m.listenClients.Dec()
}
