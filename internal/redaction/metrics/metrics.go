// Package metrics provides Prometheus metrics for the redaction engine and
// the entity cache.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcomes.
const (
	OutcomeRedacted   = "redacted"
	OutcomeUnchanged  = "unchanged"
	OutcomeBadRequest = "bad_request"
	OutcomeNotFound   = "not_found"
	OutcomeError      = "error"
)

// Metrics contains the engine collectors.
type Metrics struct {
	RequestsTotal          *prometheus.CounterVec   // redaction calls by entity type and outcome
	RedactionsTotal        *prometheus.CounterVec   // applied redactions by redaction type
	RulesSelected          prometheus.Histogram     // applicable rules per request
	EvaluateDuration       prometheus.Histogram     // in-memory evaluation time
	FetchDuration          *prometheus.HistogramVec // entity and rule fetch latency
	InvalidPatternsTotal   *prometheus.CounterVec   // regex rules that fell back to mask
	AuditFailuresTotal     prometheus.Counter       // audit batches the sink rejected
	EntityCacheHitsTotal   *prometheus.CounterVec
	EntityCacheMissesTotal *prometheus.CounterVec
}

// New registers the collectors on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the collectors on reg. Tests pass a fresh registry.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "veil_redaction_requests_total",
			Help: "Total number of redaction requests by entity type and outcome",
		}, []string{"entity_type", "outcome"}),

		RedactionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "veil_redactions_applied_total",
			Help: "Total number of field redactions applied by redaction type",
		}, []string{"type"}),

		RulesSelected: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "veil_redaction_rules_selected",
			Help:    "Number of rules applicable to a request after role gating",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		}),

		EvaluateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "veil_redaction_evaluate_duration_seconds",
			Help:    "Duration of rule evaluation against the working copy",
			Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),

		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "veil_redaction_fetch_duration_seconds",
			Help:    "Duration of entity and rule fetches",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5, 1},
		}, []string{"source"}),

		InvalidPatternsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "veil_redaction_invalid_patterns_total",
			Help: "Total number of regex rules that fell back to mask",
		}, []string{"rule"}),

		AuditFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "veil_redaction_audit_failures_total",
			Help: "Total number of audit batches that could not be recorded",
		}),

		EntityCacheHitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "veil_entity_cache_hits_total",
			Help: "Total number of entity cache hits by entity type",
		}, []string{"entity_type"}),

		EntityCacheMissesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "veil_entity_cache_misses_total",
			Help: "Total number of entity cache misses by entity type",
		}, []string{"entity_type"}),
	}
}

func (m *Metrics) IncRequest(entityType, outcome string) {
	m.RequestsTotal.WithLabelValues(entityType, outcome).Inc()
}

func (m *Metrics) IncRedaction(redactionType string) {
	m.RedactionsTotal.WithLabelValues(redactionType).Inc()
}

func (m *Metrics) ObserveRulesSelected(n int) {
	m.RulesSelected.Observe(float64(n))
}

func (m *Metrics) ObserveEvaluate(d time.Duration) {
	m.EvaluateDuration.Observe(d.Seconds())
}

// ObserveFetch records fetch latency for source "entity" or "rules".
func (m *Metrics) ObserveFetch(source string, d time.Duration) {
	m.FetchDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) IncInvalidPattern(ruleName string) {
	m.InvalidPatternsTotal.WithLabelValues(ruleName).Inc()
}

func (m *Metrics) IncAuditFailure() {
	m.AuditFailuresTotal.Inc()
}

func (m *Metrics) RecordCacheHit(entityType string) {
	m.EntityCacheHitsTotal.WithLabelValues(entityType).Inc()
}

func (m *Metrics) RecordCacheMiss(entityType string) {
	m.EntityCacheMissesTotal.WithLabelValues(entityType).Inc()
}
