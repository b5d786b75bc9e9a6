package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry records one field redaction performed for one viewer. Entries are
// append-only: they are never updated or deleted once written.
type Entry struct {
	ID            uuid.UUID `json:"id"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Field         string    `json:"field"`
	RuleName      string    `json:"rule_name"`
	RedactionType string    `json:"redaction_type"`
	ViewerID      string    `json:"viewer_id"`
	ViewerRole    string    `json:"viewer_role"`
	RequestID     string    `json:"request_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// EventFieldRedacted is the event type attached to published entries.
const EventFieldRedacted = "field_redacted"

// Store persists audit entries. Implementations must be safe for concurrent use.
type Store interface {
	Append(ctx context.Context, entries []Entry) error
}

// Stamp fills in a missing ID and timestamp.
func Stamp(entries []Entry, now time.Time) {
	for i := range entries {
		if entries[i].ID == uuid.Nil {
			entries[i].ID = uuid.New()
		}
		if entries[i].Timestamp.IsZero() {
			entries[i].Timestamp = now
		}
	}
}
