package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	audit "veil/pkg/platform/audit"
)

// Sink is an audit.Store that writes entries to the outbox instead of the
// audit log. Append returns only after the rows are durable, so a caller that
// cannot run background work after responding still loses nothing.
type Sink struct {
	store Store
	now   func() time.Time
}

type SinkOption func(*Sink)

func WithClock(now func() time.Time) SinkOption {
	return func(s *Sink) {
		s.now = now
	}
}

func NewSink(store Store, opts ...SinkOption) *Sink {
	if store == nil {
		panic("outbox store is required")
	}
	s := &Sink{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sink) Append(ctx context.Context, entries []audit.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	now := s.now()
	batch := make([]audit.Entry, len(entries))
	copy(batch, entries)
	audit.Stamp(batch, now)

	rows := make([]*Entry, 0, len(batch))
	for _, e := range batch {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode audit entry: %w", err)
		}
		rows = append(rows, NewEntry(e.EntityType, e.EntityID, audit.EventFieldRedacted, payload, now))
	}
	return s.store.AppendBatch(ctx, rows)
}

var _ audit.Store = (*Sink)(nil)
