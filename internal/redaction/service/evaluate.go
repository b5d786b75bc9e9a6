package service

import (
	"context"
	"errors"
	"time"

	"veil/internal/platform/tracer"
	"veil/internal/redaction/document"
	"veil/internal/redaction/models"
	"veil/internal/redaction/transform"
	"veil/pkg/requestcontext"
)

// evaluate applies rules in order to a clone of doc. Every lookup reads the
// working copy, so a later rule on the same field transforms the output of an
// earlier one and both applications are recorded. doc itself is never touched.
func (s *Service) evaluate(ctx context.Context, req models.Request, doc document.Value, rules []models.Rule) *models.Result {
	_, span := s.tracer.Start(ctx, tracer.SpanEvaluate, tracer.Int(tracer.AttrRuleCount, len(rules)))
	start := time.Now()
	defer func() {
		span.End(nil)
		if s.metrics != nil {
			s.metrics.ObserveEvaluate(time.Since(start))
		}
	}()

	working := doc.Clone()
	applied := make([]models.AppliedRedaction, 0)
	if len(rules) == 0 {
		return &models.Result{Data: working, Applied: applied}
	}

	for i := range rules {
		rule := &rules[i]
		invalidReported := false

		for _, field := range models.NarrowFields(rule.FieldNames, req.Fields) {
			current, ok := document.Get(working, field)
			if !ok {
				continue
			}
			raw, ok := current.Scalar()
			if !ok {
				s.logger.DebugContext(ctx, "skipping non-scalar field",
					"field", field,
					"kind", current.Kind().String(),
					"rule", rule.RuleName,
					"request_id", requestcontext.RequestID(ctx),
				)
				continue
			}

			redacted, err := transform.Apply(raw, rule)
			if err != nil && !invalidReported {
				invalidReported = true
				s.reportTransformError(ctx, span, rule, err)
			}

			if err := document.Set(&working, field, document.String(redacted)); err != nil {
				s.logger.WarnContext(ctx, "failed to write redacted field",
					"field", field,
					"rule", rule.RuleName,
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				continue
			}

			applied = append(applied, models.AppliedRedaction{
				Field:         field,
				RuleName:      rule.RuleName,
				RedactionType: rule.RedactionType,
			})
			if s.metrics != nil {
				s.metrics.IncRedaction(rule.RedactionType.String())
			}
		}
	}

	return &models.Result{Data: working, Applied: applied}
}

// reportTransformError logs a rule that could not be applied as configured.
// The transformer has already substituted a safe output.
func (s *Service) reportTransformError(ctx context.Context, span tracer.Span, rule *models.Rule, err error) {
	switch {
	case errors.Is(err, transform.ErrInvalidPattern):
		span.AddEvent(tracer.EventInvalidPattern, tracer.String("rule", rule.RuleName))
		if s.metrics != nil {
			s.metrics.IncInvalidPattern(rule.RuleName)
		}
		s.logger.WarnContext(ctx, "regex rule pattern does not compile, falling back to mask",
			"rule", rule.RuleName,
			"rule_id", rule.ID,
			"request_id", requestcontext.RequestID(ctx),
		)
	default:
		s.logger.WarnContext(ctx, "rule could not be applied, value removed",
			"rule", rule.RuleName,
			"rule_id", rule.ID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}
