// Package service implements the redaction engine: it fetches an entity and
// the viewer's rules, applies every applicable rule to a private working copy
// and hands the applied redactions to the audit sink.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"veil/internal/platform/tracer"
	"veil/internal/redaction/metrics"
	"veil/internal/redaction/models"
	"veil/internal/redaction/ports"
	dErrors "veil/pkg/domain-errors"
	"veil/pkg/platform/sentinel"
	"veil/pkg/requestcontext"
)

// Service is the redaction engine. It holds no per-request state and is safe
// for concurrent use.
type Service struct {
	entities ports.EntitySource
	rules    ports.RuleStore
	audit    ports.AuditSink
	metrics  *metrics.Metrics
	tracer   tracer.Tracer
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithAuditSink enables audit recording. Without it redactions are not audited.
func WithAuditSink(sink ports.AuditSink) Option {
	return func(s *Service) {
		s.audit = sink
	}
}

// WithClock overrides the audit timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates the engine. Panics if a required port is nil.
func New(entities ports.EntitySource, rules ports.RuleStore, opts ...Option) *Service {
	if entities == nil {
		panic("service.New: entity source is required")
	}
	if rules == nil {
		panic("service.New: rule store is required")
	}

	s := &Service{
		entities: entities,
		rules:    rules,
		tracer:   tracer.NewNoop(),
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Redact returns a redacted copy of the requested entity for the viewer.
//
// Errors carry a domain code: bad_request for a malformed request or an
// unsupported entity type, not_found for a missing entity, internal_error for
// any store failure. Invalid rule patterns and audit failures never fail the call.
func (s *Service) Redact(ctx context.Context, req models.Request) (result *models.Result, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanRedact,
		tracer.String(tracer.AttrEntityType, req.EntityType.String()),
		tracer.String(tracer.AttrEntityID, req.EntityID),
		tracer.String(tracer.AttrViewerRole, req.ViewerRole),
		tracer.Bool(tracer.AttrAllowList, req.Fields != nil),
	)
	defer func() {
		span.End(err)
		s.recordOutcome(req.EntityType, result, err)
	}()

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	fetched, err := s.fetch(ctx, req)
	if err != nil {
		return nil, s.translateFetchError(ctx, req, err)
	}

	selected := selectRules(fetched.rules, req.ViewerRole)
	span.SetAttributes(tracer.Int(tracer.AttrRuleCount, len(selected)))
	if s.metrics != nil {
		s.metrics.ObserveRulesSelected(len(selected))
	}

	result = s.evaluate(ctx, req, fetched.doc, selected)
	span.SetAttributes(tracer.Int(tracer.AttrAppliedCount, len(result.Applied)))

	s.recordAudit(ctx, req, result.Applied)

	return result, nil
}

func validateRequest(req models.Request) error {
	var missing []string
	if strings.TrimSpace(string(req.EntityType)) == "" {
		missing = append(missing, "entity_type")
	}
	if strings.TrimSpace(req.EntityID) == "" {
		missing = append(missing, "entity_id")
	}
	if strings.TrimSpace(req.ViewerRole) == "" {
		missing = append(missing, "viewer_role")
	}
	if len(missing) > 0 {
		return dErrors.New(dErrors.CodeBadRequest, "missing required fields: "+strings.Join(missing, ", "))
	}
	return nil
}

// selectRules keeps rules the viewer is subject to, preserving store order.
func selectRules(rules []models.Rule, role string) []models.Rule {
	selected := make([]models.Rule, 0, len(rules))
	for i := range rules {
		if rules[i].AppliesTo(role) {
			selected = append(selected, rules[i])
		}
	}
	return selected
}

// translateFetchError maps store sentinels to domain errors exactly once.
func (s *Service) translateFetchError(ctx context.Context, req models.Request, err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "entity not found")
	case errors.Is(err, sentinel.ErrInvalidInput):
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "unsupported entity_type: "+req.EntityType.String())
	default:
		s.logger.ErrorContext(ctx, "failed to fetch redaction inputs",
			"error", err,
			"entity_type", req.EntityType,
			"entity_id", req.EntityID,
			"request_id", requestcontext.RequestID(ctx),
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load entity or rules")
	}
}

func (s *Service) recordOutcome(entityType models.EntityType, result *models.Result, err error) {
	if s.metrics == nil {
		return
	}
	outcome := metrics.OutcomeRedacted
	switch {
	case dErrors.HasCode(err, dErrors.CodeBadRequest):
		outcome = metrics.OutcomeBadRequest
	case dErrors.HasCode(err, dErrors.CodeNotFound):
		outcome = metrics.OutcomeNotFound
	case err != nil:
		outcome = metrics.OutcomeError
	case result != nil && len(result.Applied) == 0:
		outcome = metrics.OutcomeUnchanged
	}
	label := entityType.String()
	if !entityType.IsValid() {
		label = "unknown"
	}
	s.metrics.IncRequest(label, outcome)
}
