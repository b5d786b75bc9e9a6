package service

import (
	"context"

	"veil/internal/platform/tracer"
	"veil/internal/redaction/models"
	"veil/pkg/platform/audit"
	"veil/pkg/requestcontext"
)

// recordAudit hands one entry per applied redaction to the sink.
//
// The sink is called synchronously with a context that outlives the request;
// whether the write blocks is the sink's choice. The async publisher only
// enqueues, the outbox sink commits rows before returning. Failures are
// logged and counted and never reach the caller.
func (s *Service) recordAudit(ctx context.Context, req models.Request, applied []models.AppliedRedaction) {
	if s.audit == nil || len(applied) == 0 || req.ViewerID == "" {
		return
	}

	requestID := requestcontext.RequestID(ctx)
	now := s.now()
	entries := make([]audit.Entry, 0, len(applied))
	for _, a := range applied {
		entries = append(entries, audit.Entry{
			EntityType:    req.EntityType.String(),
			EntityID:      req.EntityID,
			Field:         a.Field,
			RuleName:      a.RuleName,
			RedactionType: a.RedactionType.String(),
			ViewerID:      req.ViewerID,
			ViewerRole:    req.ViewerRole,
			RequestID:     requestID,
			Timestamp:     now,
		})
	}

	auditCtx, span := s.tracer.Start(context.WithoutCancel(ctx), tracer.SpanAuditRecord,
		tracer.Int(tracer.AttrAuditEntries, len(entries)),
	)
	err := s.audit.Append(auditCtx, entries)
	if err == nil {
		span.End(nil)
		return
	}

	span.AddEvent(tracer.EventAuditFailed)
	span.End(err)
	if s.metrics != nil {
		s.metrics.IncAuditFailure()
	}
	s.logger.ErrorContext(ctx, "failed to record redaction audit entries",
		"error", err,
		"entity_type", req.EntityType,
		"entity_id", req.EntityID,
		"entries", len(entries),
		"request_id", requestID,
	)
}
