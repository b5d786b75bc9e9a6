// Package ports defines the collaborators the redaction engine consumes.
// Adapters live under internal/redaction/store and pkg/platform/audit.
package ports

import (
	"context"

	"veil/internal/redaction/document"
	"veil/internal/redaction/models"
	"veil/pkg/platform/audit"
)

// EntityRepository fetches documents of a single entity type.
// Fetch returns sentinel.ErrNotFound when the entity does not exist.
// The returned value may be shared with other callers and must not be mutated.
type EntityRepository interface {
	Fetch(ctx context.Context, entityID string) (document.Value, error)
}

// EntitySource resolves an entity of any supported type. An unsupported
// type yields sentinel.ErrInvalidInput.
type EntitySource interface {
	Fetch(ctx context.Context, entityType models.EntityType, entityID string) (document.Value, error)
}

// RuleStore lists active rules whose AppliesToRoles contains role, ordered by
// priority then creation. The engine evaluates them in the returned order.
type RuleStore interface {
	ListActiveRules(ctx context.Context, role string) ([]models.Rule, error)
}

// AuditSink receives one entry per applied redaction. Failures are logged by
// the caller and never fail the redaction.
type AuditSink interface {
	Append(ctx context.Context, entries []audit.Entry) error
}
