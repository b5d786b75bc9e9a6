package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the audit publisher.
type Metrics struct {
	// Queue metrics
	QueueDepth      prometheus.Gauge
	BatchesDropped  prometheus.Counter
	EntriesDropped  prometheus.Counter
	BatchesEnqueued prometheus.Counter

	// Processing metrics
	PersistDuration   prometheus.Histogram
	PersistFailures   prometheus.Counter
	EntriesPersisted  prometheus.Counter
	WorkerDrainEvents prometheus.Counter
}

// New registers the audit publisher metrics with the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics with reg.
func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "veil_audit_queue_depth",
			Help: "Current number of batches waiting in the audit publisher queue",
		}),
		BatchesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "veil_audit_batches_dropped_total",
			Help: "Total number of audit batches dropped due to a full buffer",
		}),
		EntriesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "veil_audit_entries_dropped_total",
			Help: "Total number of audit entries dropped due to a full buffer",
		}),
		BatchesEnqueued: f.NewCounter(prometheus.CounterOpts{
			Name: "veil_audit_batches_enqueued_total",
			Help: "Total number of audit batches successfully enqueued",
		}),
		PersistDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "veil_audit_persist_duration_seconds",
			Help:    "Time taken to persist one audit batch to the store",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		PersistFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "veil_audit_persist_failures_total",
			Help: "Total number of audit batch persistence failures",
		}),
		EntriesPersisted: f.NewCounter(prometheus.CounterOpts{
			Name: "veil_audit_entries_persisted_total",
			Help: "Total number of audit entries written by the publisher",
		}),
		WorkerDrainEvents: f.NewCounter(prometheus.CounterOpts{
			Name: "veil_audit_worker_drain_batches_total",
			Help: "Total number of audit batches drained during graceful shutdown",
		}),
	}
}

func (m *Metrics) IncQueueDepth() {
	m.QueueDepth.Inc()
}

func (m *Metrics) DecQueueDepth() {
	m.QueueDepth.Dec()
}

// IncDropped counts one dropped batch of n entries.
func (m *Metrics) IncDropped(n int) {
	m.BatchesDropped.Inc()
	m.EntriesDropped.Add(float64(n))
}

func (m *Metrics) IncEnqueued() {
	m.BatchesEnqueued.Inc()
}

func (m *Metrics) ObservePersistDuration(durationSeconds float64) {
	m.PersistDuration.Observe(durationSeconds)
}

func (m *Metrics) IncPersistFailures() {
	m.PersistFailures.Inc()
}

func (m *Metrics) AddPersisted(n int) {
	m.EntriesPersisted.Add(float64(n))
}

func (m *Metrics) IncWorkerDrainEvents() {
	m.WorkerDrainEvents.Inc()
}
