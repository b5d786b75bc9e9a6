package rule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"veil/internal/redaction/models"
	"veil/pkg/platform/sentinel"
)

const ruleColumns = `id, rule_name, field_names, pattern_type, regex_pattern, redaction_type,
	mask_character, preserve_length, show_last_n, applies_to_roles, exception_roles,
	is_active, priority, created_at`

// PostgresStore persists rules in the redaction_rules table.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgres constructs a PostgreSQL-backed rule store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// ListActiveRules returns active rules whose applies_to_roles contains role.
func (s *PostgresStore) ListActiveRules(ctx context.Context, role string) ([]models.Rule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM redaction_rules
		WHERE is_active AND $1 = ANY(applies_to_roles)
		ORDER BY priority ASC, created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, role)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	defer rows.Close()

	rules := make([]models.Rule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return rules, nil
}

// FindByID retrieves a rule regardless of its active flag.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM redaction_rules WHERE id = $1`
	rule, err := scanRule(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find rule by id: %w", err)
	}
	return rule, nil
}

// Save validates and upserts rule. A blank ID is generated. The creation
// time of an existing rule is preserved so its position does not move.
func (s *PostgresStore) Save(ctx context.Context, rule *models.Rule) error {
	if rule == nil {
		return fmt.Errorf("rule is required: %w", sentinel.ErrInvalidInput)
	}
	rule.Normalize()
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("invalid rule %q: %w: %w", rule.RuleName, sentinel.ErrInvalidInput, err)
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	now := s.now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}

	query := `
		INSERT INTO redaction_rules (` + ruleColumns + `, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			rule_name = EXCLUDED.rule_name,
			field_names = EXCLUDED.field_names,
			pattern_type = EXCLUDED.pattern_type,
			regex_pattern = EXCLUDED.regex_pattern,
			redaction_type = EXCLUDED.redaction_type,
			mask_character = EXCLUDED.mask_character,
			preserve_length = EXCLUDED.preserve_length,
			show_last_n = EXCLUDED.show_last_n,
			applies_to_roles = EXCLUDED.applies_to_roles,
			exception_roles = EXCLUDED.exception_roles,
			is_active = EXCLUDED.is_active,
			priority = EXCLUDED.priority,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at
	`
	err := s.db.QueryRowContext(ctx, query,
		rule.ID,
		rule.RuleName,
		rule.FieldNames,
		rule.PatternType,
		rule.RegexPattern,
		string(rule.RedactionType),
		rule.MaskCharacter,
		rule.PreserveLength,
		rule.ShowLastN,
		rule.AppliesToRoles,
		nonNil(rule.ExceptionRoles),
		rule.IsActive,
		rule.Priority,
		rule.CreatedAt,
		now,
	).Scan(&rule.CreatedAt)
	if err != nil {
		return fmt.Errorf("save rule: %w", err)
	}
	return nil
}

// Count returns the number of stored rules, active or not.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM redaction_rules`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count rules: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*models.Rule, error) {
	var (
		r             models.Rule
		redactionType string
	)
	// pgtype.Map caches scan plans and is not safe for concurrent use.
	types := pgtype.NewMap()
	err := row.Scan(
		&r.ID,
		&r.RuleName,
		types.SQLScanner(&r.FieldNames),
		&r.PatternType,
		&r.RegexPattern,
		&redactionType,
		&r.MaskCharacter,
		&r.PreserveLength,
		&r.ShowLastN,
		types.SQLScanner(&r.AppliesToRoles),
		types.SQLScanner(&r.ExceptionRoles),
		&r.IsActive,
		&r.Priority,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.RedactionType = models.RedactionType(redactionType)
	return &r, nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
