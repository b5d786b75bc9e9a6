// Package consumer archives audit entries published by the outbox worker
// into the audit log store.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"veil/internal/platform/kafka/consumer"
	audit "veil/pkg/platform/audit"
)

// Handler processes audit entries from Kafka and appends them to an audit
// store. It implements consumer.Handler.
type Handler struct {
	store  audit.Store
	logger *slog.Logger
}

// NewHandler creates a new audit entry consumer handler. The store must treat
// a repeated entry ID as a no-op, since delivery is at-least-once.
func NewHandler(store audit.Store, logger *slog.Logger) *Handler {
	if store == nil {
		panic("consumer.NewHandler: audit store is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		store:  store,
		logger: logger,
	}
}

// Handle decodes one audit entry and appends it.
//
// Malformed records return nil so they are committed and never block the
// partition. Store failures return an error so the record is retried.
func (h *Handler) Handle(ctx context.Context, msg *consumer.Message) error {
	if eventType := msg.Headers["event_type"]; eventType != "" && eventType != audit.EventFieldRedacted {
		h.logger.DebugContext(ctx, "skipping non-audit record",
			"event_type", eventType,
			"offset", msg.Offset,
		)
		return nil
	}

	var entry audit.Entry
	if err := json.Unmarshal(msg.Value, &entry); err != nil {
		h.logger.ErrorContext(ctx, "failed to unmarshal audit entry",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}
	if entry.ID == uuid.Nil || entry.EntityType == "" || entry.EntityID == "" || entry.Timestamp.IsZero() {
		h.logger.ErrorContext(ctx, "discarding incomplete audit entry",
			"entry_id", entry.ID,
			"entity_type", entry.EntityType,
			"offset", msg.Offset,
		)
		return nil
	}

	if err := h.store.Append(ctx, []audit.Entry{entry}); err != nil {
		h.logger.ErrorContext(ctx, "failed to store audit entry",
			"entry_id", entry.ID,
			"entity_type", entry.EntityType,
			"entity_id", entry.EntityID,
			"request_id", entry.RequestID,
			"error", err,
		)
		return fmt.Errorf("store audit entry: %w", err)
	}

	h.logger.DebugContext(ctx, "archived audit entry",
		"entry_id", entry.ID,
		"entity_type", entry.EntityType,
		"entity_id", entry.EntityID,
		"field", entry.Field,
	)
	return nil
}
