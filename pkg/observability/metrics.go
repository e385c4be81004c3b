// Package observability exposes the Prometheus metrics of the
// versioned item engine and the HTTP layer.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics handles application metrics and monitoring. A nil *Metrics
// is valid and records nothing, so wiring stays optional in tests.
type Metrics struct {
	versionWrites     *prometheus.CounterVec
	versionConflicts  *prometheus.CounterVec
	relationshipEdges *prometheus.CounterVec
	baselinesCreated  prometheus.Counter
	requestDuration   *prometheus.HistogramVec
}

// NewMetrics creates a metrics instance registered against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		versionWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reqtrack_item_versions_written_total",
			Help: "Item versions committed, by entity type and operation.",
		}, []string{"entity_type", "operation"}),
		versionConflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reqtrack_version_conflicts_total",
			Help: "Optimistic-lock conflicts surfaced to callers.",
		}, []string{"entity_type"}),
		relationshipEdges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reqtrack_relationship_changes_total",
			Help: "Relationship edge changes recorded in the audit ledger.",
		}, []string{"relation_type", "action"}),
		baselinesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "reqtrack_baselines_created_total",
			Help: "Baselines captured.",
		}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reqtrack_http_request_duration_seconds",
			Help:    "HTTP request latency by method, route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// VersionWritten records a committed item version.
func (m *Metrics) VersionWritten(entityType, operation string) {
	if m == nil {
		return
	}
	m.versionWrites.WithLabelValues(entityType, operation).Inc()
}

// VersionConflict records an optimistic-lock mismatch.
func (m *Metrics) VersionConflict(entityType string) {
	if m == nil {
		return
	}
	m.versionConflicts.WithLabelValues(entityType).Inc()
}

// RelationshipChanged records one audit-ledger edge change.
func (m *Metrics) RelationshipChanged(relationType, action string) {
	if m == nil {
		return
	}
	m.relationshipEdges.WithLabelValues(relationType, action).Inc()
}

// BaselineCreated records a captured baseline.
func (m *Metrics) BaselineCreated() {
	if m == nil {
		return
	}
	m.baselinesCreated.Inc()
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}
