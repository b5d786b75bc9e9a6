package entity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"veil/internal/platform/tracer"
	"veil/internal/redaction/document"
	"veil/internal/redaction/metrics"
	"veil/internal/redaction/models"
	"veil/internal/redaction/ports"
	"veil/pkg/platform/circuit"
	"veil/pkg/requestcontext"
)

// DefaultCacheTTL bounds how stale a cached document can be.
const DefaultCacheTTL = 30 * time.Second

const cacheKeyPrefix = "veil:entity:"

// RedisCache is a read-through cache in front of an entity repository.
// Misses are loaded from the next repository and stored with a TTL. Redis
// failures degrade to the next repository and are never returned. Missing
// entities are not cached. Concurrent misses for one entity share a single
// load. Repeated redis failures open a circuit breaker so requests stop
// paying redis timeouts until a probe succeeds.
type RedisCache struct {
	client     redis.Cmdable
	next       ports.EntityRepository
	entityType models.EntityType
	ttl        time.Duration
	metrics    *metrics.Metrics
	breaker    *circuit.Breaker
	loads      singleflight.Group
	tracer     tracer.Tracer
	logger     *slog.Logger
}

type CacheOption func(*RedisCache)

func WithTTL(ttl time.Duration) CacheOption {
	return func(c *RedisCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithCacheMetrics(m *metrics.Metrics) CacheOption {
	return func(c *RedisCache) {
		c.metrics = m
	}
}

// WithCacheBreaker replaces the default breaker (5 failures, 5s probe cooldown).
func WithCacheBreaker(b *circuit.Breaker) CacheOption {
	return func(c *RedisCache) {
		c.breaker = b
	}
}

func WithCacheTracer(t tracer.Tracer) CacheOption {
	return func(c *RedisCache) {
		c.tracer = t
	}
}

func WithCacheLogger(l *slog.Logger) CacheOption {
	return func(c *RedisCache) {
		c.logger = l
	}
}

// NewRedisCache wraps next. Panics if client or next is nil.
func NewRedisCache(client redis.Cmdable, next ports.EntityRepository, entityType models.EntityType, opts ...CacheOption) *RedisCache {
	if client == nil {
		panic("entity.NewRedisCache: redis client is required")
	}
	if next == nil {
		panic("entity.NewRedisCache: next repository is required")
	}
	c := &RedisCache{
		client:     client,
		next:       next,
		entityType: entityType,
		ttl:        DefaultCacheTTL,
		tracer:     tracer.NewNoop(),
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = circuit.New("entity-cache:" + entityType.String())
	}
	return c
}

// CacheDecorator adapts NewRedisCache for NewRegistryFrom.
func CacheDecorator(client redis.Cmdable, opts ...CacheOption) func(models.EntityType, ports.EntityRepository) ports.EntityRepository {
	return func(t models.EntityType, repo ports.EntityRepository) ports.EntityRepository {
		return NewRedisCache(client, repo, t, opts...)
	}
}

func (c *RedisCache) Fetch(ctx context.Context, entityID string) (doc document.Value, err error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanEntityCached,
		tracer.String(tracer.AttrEntityType, c.entityType.String()),
		tracer.String(tracer.AttrEntityID, entityID),
	)
	defer func() { span.End(err) }()

	key := c.key(entityID)

	// An open circuit sends every read straight to the next repository.
	cacheUsable := c.breaker.Allow()
	if cacheUsable {
		raw, gerr := c.client.Get(ctx, key).Bytes()
		switch {
		case gerr == nil:
			c.recordRedis(ctx, nil)
			cached, perr := document.Parse(raw)
			if perr == nil {
				span.SetAttributes(tracer.Bool(tracer.AttrCacheHit, true))
				if c.metrics != nil {
					c.metrics.RecordCacheHit(c.entityType.String())
				}
				return cached, nil
			}
			c.logger.WarnContext(ctx, "discarding undecodable cached entity",
				"entity_type", c.entityType,
				"entity_id", entityID,
				"error", perr,
				"request_id", requestcontext.RequestID(ctx),
			)
		case errors.Is(gerr, redis.Nil):
			c.recordRedis(ctx, nil)
		default:
			cacheUsable = false
			c.recordRedis(ctx, gerr)
			c.logger.WarnContext(ctx, "entity cache read failed",
				"entity_type", c.entityType,
				"entity_id", entityID,
				"error", gerr,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}

	span.SetAttributes(
		tracer.Bool(tracer.AttrCacheHit, false),
		tracer.Bool(tracer.AttrCacheBypassed, !cacheUsable),
	)
	if c.metrics != nil {
		c.metrics.RecordCacheMiss(c.entityType.String())
	}

	v, err, shared := c.loads.Do(key, func() (any, error) {
		return c.load(ctx, key, entityID, cacheUsable)
	})
	if err != nil {
		return document.Value{}, err
	}
	doc = v.(document.Value)
	if shared {
		doc = doc.Clone()
	}
	return doc, nil
}

// load reads through to the next repository and fills the cache when redis is usable.
func (c *RedisCache) load(ctx context.Context, key, entityID string, cacheUsable bool) (document.Value, error) {
	doc, err := c.next.Fetch(ctx, entityID)
	if err != nil {
		return document.Value{}, err
	}
	if !cacheUsable {
		return doc, nil
	}

	encoded, merr := doc.MarshalJSON()
	if merr == nil {
		merr = c.client.Set(ctx, key, encoded, c.ttl).Err()
		c.recordRedis(ctx, merr)
	}
	if merr != nil {
		c.logger.WarnContext(ctx, "entity cache write failed",
			"entity_type", c.entityType,
			"entity_id", entityID,
			"error", merr,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return doc, nil
}

func (c *RedisCache) recordRedis(ctx context.Context, err error) {
	var change circuit.StateChange
	if err != nil {
		change = c.breaker.RecordFailure()
	} else {
		change = c.breaker.RecordSuccess()
	}
	switch {
	case change.Opened:
		c.logger.WarnContext(ctx, "entity cache circuit opened, bypassing redis",
			"breaker", c.breaker.Name(),
			"error", err,
		)
	case change.Closed:
		c.logger.InfoContext(ctx, "entity cache circuit closed",
			"breaker", c.breaker.Name(),
		)
	}
}

// Invalidate drops the cached copy of entityID.
func (c *RedisCache) Invalidate(ctx context.Context, entityID string) error {
	return c.client.Del(ctx, c.key(entityID)).Err()
}

func (c *RedisCache) key(entityID string) string {
	return cacheKeyPrefix + c.entityType.String() + ":" + entityID
}
