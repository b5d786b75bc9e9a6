//go:build integration

package rule_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"veil/internal/redaction/models"
	"veil/internal/redaction/store/rule"
	"veil/pkg/platform/sentinel"
	"veil/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *rule.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = rule.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "redaction_rules"))
}

func (s *PostgresStoreSuite) save(name string, priority int, roles ...string) *models.Rule {
	r := &models.Rule{
		RuleName:       name,
		FieldNames:     []string{"profile.email", "contact.phone"},
		RedactionType:  models.RedactionMask,
		ShowLastN:      4,
		AppliesToRoles: roles,
		IsActive:       true,
		Priority:       priority,
	}
	s.Require().NoError(s.store.Save(context.Background(), r))
	return r
}

func (s *PostgresStoreSuite) TestListActiveRulesFiltersAndOrders() {
	ctx := context.Background()
	s.save("low", 10, "partner")
	s.save("high-a", 0, "partner", "member")
	s.save("high-b", 0, "partner")
	s.save("member-only", -1, "member")
	inactive := s.save("inactive", -10, "partner")
	inactive.IsActive = false
	s.Require().NoError(s.store.Save(ctx, inactive))

	rules, err := s.store.ListActiveRules(ctx, "partner")
	s.Require().NoError(err)

	got := make([]string, len(rules))
	for i, r := range rules {
		got[i] = r.RuleName
	}
	s.Equal([]string{"high-a", "high-b", "low"}, got)
}

func (s *PostgresStoreSuite) TestArrayColumnsRoundTrip() {
	ctx := context.Background()
	saved := &models.Rule{
		RuleName:       "phone-regex",
		FieldNames:     []string{"contact.phone"},
		RedactionType:  models.RedactionRegex,
		RegexPattern:   `\d{3}`,
		MaskCharacter:  "#",
		PreserveLength: true,
		AppliesToRoles: []string{"partner", "guest"},
		ExceptionRoles: []string{"admin"},
		IsActive:       true,
		Priority:       3,
	}
	s.Require().NoError(s.store.Save(ctx, saved))
	s.NotEmpty(saved.ID)

	found, err := s.store.FindByID(ctx, saved.ID)
	s.Require().NoError(err)
	s.Equal(saved.FieldNames, found.FieldNames)
	s.Equal(saved.AppliesToRoles, found.AppliesToRoles)
	s.Equal(saved.ExceptionRoles, found.ExceptionRoles)
	s.Equal(`\d{3}`, found.RegexPattern)
	s.Equal("#", found.MaskCharacter)
	s.True(found.PreserveLength)
	s.Equal(models.RedactionRegex, found.RedactionType)
}

func (s *PostgresStoreSuite) TestUpdateKeepsCreationTime() {
	ctx := context.Background()
	r := s.save("email", 0, "partner")
	created := r.CreatedAt

	r.Priority = 5
	r.CreatedAt = created.Add(-1)
	s.Require().NoError(s.store.Save(ctx, r))
	s.WithinDuration(created, r.CreatedAt, 0)

	count, err := s.store.Count(ctx)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *PostgresStoreSuite) TestInvalidRuleIsRejected() {
	err := s.store.Save(context.Background(), &models.Rule{RuleName: "broken", RedactionType: models.RedactionMask})
	s.ErrorIs(err, sentinel.ErrInvalidInput)
}

func (s *PostgresStoreSuite) TestFindByIDMissing() {
	_, err := s.store.FindByID(context.Background(), "nope")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
