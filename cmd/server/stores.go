package main

import (
	"context"
	"fmt"
	"log/slog"

	"veil/internal/platform/config"
	"veil/internal/platform/database"
	redisClient "veil/internal/platform/redis"
	"veil/internal/platform/tracer"
	redactionMetrics "veil/internal/redaction/metrics"
	"veil/internal/redaction/models"
	"veil/internal/redaction/ports"
	"veil/internal/redaction/store/entity"
	"veil/internal/redaction/store/rule"
	"veil/internal/seeder"
)

type stores struct {
	entities ports.EntitySource
	rules    ports.RuleStore
}

// buildStores selects postgres when a database is configured and in-memory
// stores otherwise. In-memory stores always start seeded; postgres is seeded
// only from an explicit SEED_FILE.
func buildStores(
	ctx context.Context,
	cfg config.Config,
	log *slog.Logger,
	pool *database.Pool,
	redis *redisClient.Client,
	metrics *redactionMetrics.Metrics,
	trc tracer.Tracer,
) (*stores, error) {
	var (
		source    entity.Source
		ruleStore interface {
			ports.RuleStore
			seeder.RuleStore
		}
		entityStore seeder.EntityStore
	)

	if pool != nil {
		pg := entity.NewPostgres(pool.DB())
		source, entityStore = pg, pg
		ruleStore = rule.NewPostgres(pool.DB())
	} else {
		mem := entity.NewInMemory()
		source, entityStore = mem, mem
		ruleStore = rule.NewInMemory()
	}

	if pool == nil || cfg.SeedFile != "" {
		seed, err := seeder.LoadFile(cfg.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("load seed data: %w", err)
		}
		if err := seeder.New(ruleStore, entityStore, log).SeedAll(ctx, seed); err != nil {
			return nil, err
		}
	}

	var decorators []func(models.EntityType, ports.EntityRepository) ports.EntityRepository
	if redis != nil {
		decorators = append(decorators, entity.CacheDecorator(redis,
			entity.WithTTL(cfg.Redis.EntityTTL),
			entity.WithCacheMetrics(metrics),
			entity.WithCacheTracer(trc),
			entity.WithCacheLogger(log),
		))
	}

	return &stores{
		entities: entity.NewRegistryFrom(source, decorators...),
		rules:    ruleStore,
	}, nil
}
