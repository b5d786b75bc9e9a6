package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	dErrors "veil/pkg/domain-errors"
	audit "veil/pkg/platform/audit"
	"veil/pkg/platform/audit/metrics"
)

// Publisher hands audit batches to a Store. In async mode batches are queued
// and persisted by a background goroutine so callers never wait on the store.
type Publisher struct {
	store   audit.Store
	batches chan []audit.Entry
	wg      sync.WaitGroup
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	async   bool

	mu      sync.RWMutex
	closed  bool
	closing bool
}

// PublisherOption configures the Publisher.
type PublisherOption func(*Publisher)

// WithAsyncBuffer enables async processing with room for size batches.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.batches = make(chan []audit.Entry, size)
			p.async = true
		}
	}
}

// WithPublisherLogger sets a logger for async error reporting.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) PublisherOption {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func WithClock(now func() time.Time) PublisherOption {
	return func(p *Publisher) {
		p.now = now
	}
}

func NewPublisher(store audit.Store, opts ...PublisherOption) *Publisher {
	if store == nil {
		panic("audit store is required")
	}
	p := &Publisher{store: store, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if p.async {
		p.wg.Add(1)
		go p.processBatches()
	}
	return p
}

// processBatches runs in a goroutine and persists batches from the channel.
func (p *Publisher) processBatches() {
	defer p.wg.Done()
	for batch := range p.batches {
		if p.metrics != nil {
			p.metrics.DecQueueDepth()
			if p.isClosing() {
				p.metrics.IncWorkerDrainEvents()
			}
		}
		_ = p.persist(context.Background(), batch)
	}
}

func (p *Publisher) persist(ctx context.Context, batch []audit.Entry) error {
	start := time.Now()
	err := p.store.Append(ctx, batch)
	if p.metrics != nil {
		p.metrics.ObservePersistDuration(time.Since(start).Seconds())
	}
	if err != nil {
		if p.metrics != nil {
			p.metrics.IncPersistFailures()
		}
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "failed to persist audit entries",
				"error", err,
				"entries", len(batch),
				"entity_type", batch[0].EntityType,
				"entity_id", batch[0].EntityID,
			)
		}
		return err
	}
	if p.metrics != nil {
		p.metrics.AddPersisted(len(batch))
	}
	return nil
}

func (p *Publisher) isClosing() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closing
}

// Close stops accepting batches and waits for queued ones to drain.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.closing = true
	if p.async {
		close(p.batches)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// Append stamps entries and either persists them directly or queues them.
// A full queue drops the batch and reports an error; it never blocks.
func (p *Publisher) Append(ctx context.Context, entries []audit.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := make([]audit.Entry, len(entries))
	copy(batch, entries)
	audit.Stamp(batch, p.now())

	if !p.async {
		return p.persist(ctx, batch)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return dErrors.New(dErrors.CodeInternal, "audit publisher closed")
	}

	select {
	case p.batches <- batch:
		if p.metrics != nil {
			p.metrics.IncEnqueued()
			p.metrics.IncQueueDepth()
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		if p.metrics != nil {
			p.metrics.IncDropped(len(batch))
		}
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit buffer full, entries dropped",
				"entries", len(batch),
				"entity_type", batch[0].EntityType,
				"entity_id", batch[0].EntityID,
			)
		}
		return dErrors.New(dErrors.CodeInternal, "audit buffer full")
	}
}
