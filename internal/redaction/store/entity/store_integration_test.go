//go:build integration

package entity_test

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"veil/internal/redaction/document"
	"veil/internal/redaction/models"
	"veil/internal/redaction/store/entity"
	"veil/pkg/platform/sentinel"
	"veil/pkg/testutil/containers"
)

type StoreIntegrationSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	redis    *goredis.Client
	store    *entity.PostgresStore
}

func TestStoreIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(StoreIntegrationSuite))
}

func (s *StoreIntegrationSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = entity.NewPostgres(s.postgres.DB)

	opts, err := goredis.ParseURL(mgr.GetRedis(s.T()).URL)
	s.Require().NoError(err)
	s.redis = goredis.NewClient(opts)
}

func (s *StoreIntegrationSuite) TearDownSuite() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
}

func (s *StoreIntegrationSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "entity_documents"))
	s.Require().NoError(s.redis.FlushDB(ctx).Err())
}

func (s *StoreIntegrationSuite) profile(email string) document.Value {
	doc, err := document.Parse([]byte(`{"profile":{"email":"` + email + `","name":"Jane Doe","age":41,"score":1.50}}`))
	s.Require().NoError(err)
	return doc
}

func (s *StoreIntegrationSuite) TestPutThenGet() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, models.EntityProfile, "p-1", s.profile("a@b.com")))

	doc, err := s.store.Get(ctx, models.EntityProfile, "p-1")
	s.Require().NoError(err)

	email, ok := document.Get(doc, "profile.email")
	s.Require().True(ok)
	text, _ := email.Scalar()
	s.Equal("a@b.com", text)

	age, ok := document.Get(doc, "profile.age")
	s.Require().True(ok)
	s.Equal(document.KindNumber, age.Kind())
}

func (s *StoreIntegrationSuite) TestTypesAreIsolated() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, models.EntityProfile, "shared-id", s.profile("a@b.com")))

	_, err := s.store.Get(ctx, models.EntityMessage, "shared-id")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreIntegrationSuite) TestPutRejectsNonObject() {
	err := s.store.Put(context.Background(), models.EntityEvent, "e-1", document.String("nope"))
	s.ErrorIs(err, sentinel.ErrInvalidInput)
}

// A cached document keeps being served until it is invalidated.
func (s *StoreIntegrationSuite) TestRedisCacheOverPostgres() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, models.EntityProfile, "p-2", s.profile("old@b.com")))

	cache := entity.NewRedisCache(s.redis, s.store.For(models.EntityProfile), models.EntityProfile,
		entity.WithTTL(time.Minute))

	first, err := cache.Fetch(ctx, "p-2")
	s.Require().NoError(err)

	ttl, err := s.redis.TTL(ctx, "veil:entity:profile:p-2").Result()
	s.Require().NoError(err)
	s.Positive(ttl)

	s.Require().NoError(s.store.Put(ctx, models.EntityProfile, "p-2", s.profile("new@b.com")))

	cached, err := cache.Fetch(ctx, "p-2")
	s.Require().NoError(err)
	s.True(first.Equal(cached))

	s.Require().NoError(cache.Invalidate(ctx, "p-2"))
	fresh, err := cache.Fetch(ctx, "p-2")
	s.Require().NoError(err)
	email, _ := document.Get(fresh, "profile.email")
	text, _ := email.Scalar()
	s.Equal("new@b.com", text)
}

func (s *StoreIntegrationSuite) TestRedisCacheDoesNotCacheMisses() {
	ctx := context.Background()
	cache := entity.NewRedisCache(s.redis, s.store.For(models.EntityEvent), models.EntityEvent)

	_, err := cache.Fetch(ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)

	exists, err := s.redis.Exists(ctx, "veil:entity:event:missing").Result()
	s.Require().NoError(err)
	s.Zero(exists)
}
