package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Entry is a pending message in the outbox table. Rows are written before the
// redaction response returns and published to Kafka later by the worker.
type Entry struct {
	ID            uuid.UUID
	AggregateType string     // entity type, e.g. "profile"
	AggregateID   string     // entity id
	EventType     string     // e.g. "field_redacted"
	Payload       []byte     // JSON-encoded audit.Entry
	CreatedAt     time.Time
	ProcessedAt   *time.Time // nil while pending
}

// IsPending reports whether the entry still has to be published.
func (e *Entry) IsPending() bool {
	return e.ProcessedAt == nil
}

func NewEntry(aggregateType, aggregateID, eventType string, payload []byte, createdAt time.Time) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     createdAt,
	}
}
