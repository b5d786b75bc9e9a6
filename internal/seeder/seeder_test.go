package seeder

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"veil/internal/redaction/document"
	"veil/internal/redaction/models"
	"veil/internal/redaction/store/entity"
	"veil/internal/redaction/store/rule"
	"veil/pkg/platform/sentinel"
)

type SeederSuite struct {
	suite.Suite
	rules    *rule.InMemory
	entities *entity.InMemory
	seeder   *Seeder
}

func TestSeederSuite(t *testing.T) {
	suite.Run(t, new(SeederSuite))
}

func (s *SeederSuite) SetupTest() {
	s.rules = rule.NewInMemory()
	s.entities = entity.NewInMemory()
	s.seeder = New(s.rules, s.entities, nil)
}

func (s *SeederSuite) TestDemoSeedLoads() {
	ctx := context.Background()
	f, err := Demo()
	s.Require().NoError(err)
	s.Require().NoError(s.seeder.SeedAll(ctx, f))

	count, err := s.rules.Count(ctx)
	s.Require().NoError(err)
	s.Equal(len(f.Rules), count)

	for _, e := range f.Entities {
		_, err := s.entities.Get(ctx, e.EntityType, e.EntityID)
		s.NoError(err, "%s/%s", e.EntityType, e.EntityID)
	}

	partner, err := s.rules.ListActiveRules(ctx, "partner")
	s.Require().NoError(err)
	s.Require().NotEmpty(partner)
	for i := 1; i < len(partner); i++ {
		s.LessOrEqual(partner[i-1].Priority, partner[i].Priority)
	}
}

func (s *SeederSuite) TestEntityDataKeepsShape() {
	ctx := context.Background()
	f, err := Parse([]byte(`
entities:
  - entity_type: profile
    entity_id: p-1
    data:
      profile:
        email: a@b.com
        age: 42
        tags: [a, b]
`))
	s.Require().NoError(err)
	s.Require().NoError(s.seeder.SeedAll(ctx, f))

	doc, err := s.entities.Get(ctx, models.EntityProfile, "p-1")
	s.Require().NoError(err)
	age, ok := document.Get(doc, "profile.age")
	s.Require().True(ok)
	s.Equal(document.KindNumber, age.Kind())
	tags, ok := document.Get(doc, "profile.tags")
	s.Require().True(ok)
	s.Equal(document.KindArray, tags.Kind())
}

func (s *SeederSuite) TestInvalidRuleStopsSeeding() {
	f, err := Parse([]byte(`
rules:
  - rule_name: broken
    field_names: [email]
    redaction_type: regex
    applies_to_roles: [partner]
    is_active: true
`))
	s.Require().NoError(err)

	err = s.seeder.SeedAll(context.Background(), f)
	s.ErrorIs(err, sentinel.ErrInvalidInput)
	s.Contains(err.Error(), "regex_pattern is required")
}

func (s *SeederSuite) TestUnknownEntityTypeRejected() {
	f, err := Parse([]byte(`
entities:
  - entity_type: invoice
    entity_id: i-1
    data: {total: 10}
`))
	s.Require().NoError(err)
	s.Error(s.seeder.SeedAll(context.Background(), f))
}

func (s *SeederSuite) TestUnknownKeysRejected() {
	_, err := Parse([]byte(`
rules:
  - rule_name: typo
    feild_names: [email]
`))
	s.Error(err)
}

func (s *SeederSuite) TestLoadFile() {
	path := filepath.Join(s.T().TempDir(), "seed.yaml")
	s.Require().NoError(os.WriteFile(path, []byte("rules: []\nentities: []\n"), 0o600))

	f, err := LoadFile(path)
	s.Require().NoError(err)
	s.Empty(f.Rules)

	demo, err := LoadFile("")
	s.Require().NoError(err)
	s.NotEmpty(demo.Rules)

	_, err = LoadFile(filepath.Join(s.T().TempDir(), "missing.yaml"))
	s.Error(err)
}
