package main

import (
	"context"
	"log/slog"
	"time"

	"veil/internal/platform/config"
	"veil/internal/platform/database"
	"veil/internal/platform/kafka/producer"
	"veil/internal/redaction/ports"
	audit "veil/pkg/platform/audit"
	auditmetrics "veil/pkg/platform/audit/metrics"
	"veil/pkg/platform/audit/outbox"
	outboxmetrics "veil/pkg/platform/audit/outbox/metrics"
	outboxpostgres "veil/pkg/platform/audit/outbox/store/postgres"
	"veil/pkg/platform/audit/outbox/worker"
	auditpublisher "veil/pkg/platform/audit/publisher"
	auditmemory "veil/pkg/platform/audit/store/memory"
	auditpostgres "veil/pkg/platform/audit/store/postgres"
)

// auditing owns the audit sink and whatever background work delivers it.
type auditing struct {
	log       *slog.Logger
	sink      ports.AuditSink
	publisher *auditpublisher.Publisher
	worker    *worker.Worker
	producer  *producer.Producer
}

// buildAudit wires the async publisher, or the durable outbox when
// AUDIT_MODE=outbox and postgres is configured. The outbox worker only runs
// when Kafka brokers are configured; otherwise rows wait in the table.
func buildAudit(cfg config.Config, log *slog.Logger, pool *database.Pool) (*auditing, error) {
	a := &auditing{log: log}

	if cfg.OutboxEnabled() {
		store := outboxpostgres.New(pool.DB())
		a.sink = outbox.NewSink(store)

		if cfg.Kafka.Brokers == "" {
			log.Warn("audit outbox enabled without KAFKA_BROKERS; entries will not be published")
			return a, nil
		}

		pcfg := producer.DefaultConfig()
		pcfg.Brokers = cfg.Kafka.Brokers
		prod, err := producer.New(pcfg, log)
		if err != nil {
			return nil, err
		}
		a.producer = prod
		a.worker = worker.New(store, prod,
			worker.WithTopic(cfg.Kafka.Topic),
			worker.WithMetrics(outboxmetrics.New()),
			worker.WithLogger(log),
		)
		return a, nil
	}

	if cfg.Audit.Mode == config.AuditModeOutbox {
		log.Warn("audit outbox requires DATABASE_URL; falling back to async publisher")
	}

	var store audit.Store
	if pool != nil {
		store = auditpostgres.New(pool.DB())
	} else {
		store = auditmemory.NewInMemoryStore()
	}
	a.publisher = auditpublisher.NewPublisher(store,
		auditpublisher.WithAsyncBuffer(cfg.Audit.Buffer),
		auditpublisher.WithMetrics(auditmetrics.New()),
		auditpublisher.WithPublisherLogger(log),
	)
	a.sink = a.publisher
	return a, nil
}

func (a *auditing) start(ctx context.Context) {
	if a.worker == nil {
		return
	}
	a.worker.Start()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := a.worker.UpdateMetrics(ctx); err != nil {
					a.log.WarnContext(ctx, "failed to refresh outbox metrics", "error", err)
				}
			}
		}
	}()
}

// stop drains pending audit work. Call after the HTTP server has shut down.
func (a *auditing) stop(ctx context.Context) {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.worker != nil {
		if err := a.worker.Stop(ctx); err != nil {
			a.log.Warn("outbox worker did not drain before shutdown", "error", err)
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Warn("failed to close kafka producer", "error", err)
		}
	}
}
