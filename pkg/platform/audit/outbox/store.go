package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines the outbox persistence operations.
// Implementations must be safe for concurrent use.
type Store interface {
	// AppendBatch adds entries atomically: either all rows are written or none.
	AppendBatch(ctx context.Context, entries []*Entry) error

	// FetchUnprocessed returns up to limit pending entries, oldest first.
	// Implementations should lock rows (FOR UPDATE SKIP LOCKED) so several
	// workers can poll the same table.
	FetchUnprocessed(ctx context.Context, limit int) ([]*Entry, error)

	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error

	CountPending(ctx context.Context) (int64, error)

	// DeleteProcessedBefore removes published rows older than before.
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
