// Package metrics holds the Prometheus metrics for the search domain.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is registered once in main. All methods are nil-safe so unit
// tests can run without touching the default registry.
type Metrics struct {
	SyncsTotal          *prometheus.CounterVec
	EventsPublished     *prometheus.CounterVec
	DifferencesTotal    *prometheus.CounterVec
	RebuildDocuments    prometheus.Counter
	RebuildDurationSecs prometheus.Gauge
}

// New creates and registers all Prometheus metrics for the search domain.
func New() *Metrics {
	return &Metrics{
		SyncsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "prisoner_search_syncs_total",
			Help: "Total number of prisoner sync operations by outcome",
		}, []string{"outcome"}),
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "prisoner_search_events_published_total",
			Help: "Total number of domain events published by event type",
		}, []string{"event_type"}),
		DifferencesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "prisoner_search_differences_total",
			Help: "Total number of snapshot differences detected by category",
		}, []string{"category"}),
		RebuildDocuments: promauto.NewCounter(prometheus.CounterOpts{
			Name: "prisoner_search_rebuild_documents_total",
			Help: "Total number of documents written during index rebuilds",
		}),
		RebuildDurationSecs: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "prisoner_search_rebuild_duration_seconds",
			Help: "Duration of the most recent index rebuild population",
		}),
	}
}

// RecordSync counts one sync operation with its outcome.
func (m *Metrics) RecordSync(outcome string) {
	if m == nil {
		return
	}
	m.SyncsTotal.WithLabelValues(outcome).Inc()
}

// RecordEventPublished counts one published domain event.
func (m *Metrics) RecordEventPublished(eventType string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordDifference counts one detected difference by category.
func (m *Metrics) RecordDifference(category string) {
	if m == nil {
		return
	}
	m.DifferencesTotal.WithLabelValues(category).Inc()
}

// RecordRebuildDocument counts one document written during a rebuild.
func (m *Metrics) RecordRebuildDocument() {
	if m == nil {
		return
	}
	m.RebuildDocuments.Inc()
}

// RecordRebuildDuration records the duration of a rebuild population.
func (m *Metrics) RecordRebuildDuration(seconds float64) {
	if m == nil {
		return
	}
	m.RebuildDurationSecs.Set(seconds)
}
