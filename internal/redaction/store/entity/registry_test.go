package entity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"veil/internal/redaction/document"
	"veil/internal/redaction/models"
	"veil/internal/redaction/ports"
	"veil/pkg/platform/sentinel"
)

type RegistrySuite struct {
	suite.Suite
	store    *InMemory
	registry *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.store = NewInMemory()
	s.registry = NewRegistryFrom(s.store)
}

func (s *RegistrySuite) TestFetchDispatchesByType() {
	ctx := context.Background()
	profile := document.Object(map[string]document.Value{"email": document.String("a@b.com")})
	message := document.Object(map[string]document.Value{"body": document.String("hi")})
	s.Require().NoError(s.store.Put(ctx, models.EntityProfile, "1", profile))
	s.Require().NoError(s.store.Put(ctx, models.EntityMessage, "1", message))

	got, err := s.registry.Fetch(ctx, models.EntityProfile, "1")
	s.Require().NoError(err)
	s.True(got.Equal(profile))

	got, err = s.registry.Fetch(ctx, models.EntityMessage, "1")
	s.Require().NoError(err)
	s.True(got.Equal(message))
}

func (s *RegistrySuite) TestMissingEntityIsNotFound() {
	_, err := s.registry.Fetch(context.Background(), models.EntityEvent, "nope")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RegistrySuite) TestUnknownTypeIsInvalidInput() {
	_, err := s.registry.Fetch(context.Background(), "invoice", "1")
	s.ErrorIs(err, sentinel.ErrInvalidInput)
}

func (s *RegistrySuite) TestPutStoresPrivateCopy() {
	ctx := context.Background()
	doc := document.Object(map[string]document.Value{"email": document.String("a@b.com")})
	s.Require().NoError(s.store.Put(ctx, models.EntityProfile, "1", doc))

	s.Require().NoError(document.Set(&doc, "email", document.String("changed")))

	got, err := s.registry.Fetch(ctx, models.EntityProfile, "1")
	s.Require().NoError(err)
	email, _ := document.Get(got, "email")
	v, _ := email.Scalar()
	s.Equal("a@b.com", v)
}

func (s *RegistrySuite) TestDecoratorsWrapEveryType() {
	var wrapped []models.EntityType
	NewRegistryFrom(s.store, func(t models.EntityType, repo ports.EntityRepository) ports.EntityRepository {
		wrapped = append(wrapped, t)
		return repo
	})
	s.ElementsMatch(models.EntityTypes, wrapped)
}

func (s *RegistrySuite) TestRegisterRejectsNil() {
	s.Panics(func() { s.registry.Register(models.EntityProfile, nil) })
}
