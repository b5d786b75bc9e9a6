// Package rule provides redaction rule stores. Every store returns active
// rules for a role ordered by priority, then creation order.
package rule

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"veil/internal/redaction/models"
	"veil/pkg/platform/sentinel"
)

// InMemory keeps rules in insertion order for local runs and tests.
type InMemory struct {
	mu    sync.RWMutex
	rules []models.Rule
	now   func() time.Time
}

// NewInMemory creates an empty in-memory rule store.
func NewInMemory() *InMemory {
	return &InMemory{now: time.Now}
}

// Save validates and stores rule. A blank ID is generated; an existing ID is
// replaced in place, keeping its creation position.
func (s *InMemory) Save(_ context.Context, rule *models.Rule) error {
	if rule == nil {
		return fmt.Errorf("rule is required: %w", sentinel.ErrInvalidInput)
	}
	rule.Normalize()
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("invalid rule %q: %w: %w", rule.RuleName, sentinel.ErrInvalidInput, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	for i := range s.rules {
		if s.rules[i].ID == rule.ID {
			rule.CreatedAt = s.rules[i].CreatedAt
			s.rules[i] = cloneRule(*rule)
			return nil
		}
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = s.now()
	}
	s.rules = append(s.rules, cloneRule(*rule))
	return nil
}

// ListActiveRules returns copies of the active rules that apply to role.
// Exception roles are left for the engine to evaluate.
func (s *InMemory) ListActiveRules(_ context.Context, role string) ([]models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if r.IsActive && slices.Contains(r.AppliesToRoles, role) {
			out = append(out, cloneRule(r))
		}
	}
	// stable: equal priorities keep insertion order
	slices.SortStableFunc(out, func(a, b models.Rule) int {
		return a.Priority - b.Priority
	})
	return out, nil
}

// FindByID returns a copy of the rule with id.
func (s *InMemory) FindByID(_ context.Context, id string) (*models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rules {
		if r.ID == id {
			c := cloneRule(r)
			return &c, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// Count returns the number of stored rules, active or not.
func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules), nil
}

func cloneRule(r models.Rule) models.Rule {
	r.FieldNames = slices.Clone(r.FieldNames)
	r.AppliesToRoles = slices.Clone(r.AppliesToRoles)
	r.ExceptionRoles = slices.Clone(r.ExceptionRoles)
	return r
}
