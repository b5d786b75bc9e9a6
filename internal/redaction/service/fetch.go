package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"veil/internal/platform/tracer"
	"veil/internal/redaction/document"
	"veil/internal/redaction/models"
)

// fetchResult holds the outputs of the concurrent fetches.
// Each goroutine writes only its own fields.
type fetchResult struct {
	doc   document.Value
	rules []models.Rule
}

// fetch loads the entity and the viewer's rules concurrently. Neither depends
// on the other; evaluation starts only after both complete. The first failure
// cancels the other fetch.
func (s *Service) fetch(ctx context.Context, req models.Request) (*fetchResult, error) {
	g, gctx := errgroup.WithContext(ctx)

	var result fetchResult

	g.Go(func() error {
		ctx, span := s.tracer.Start(gctx, tracer.SpanFetchEntity,
			tracer.String(tracer.AttrEntityType, req.EntityType.String()),
			tracer.String(tracer.AttrEntityID, req.EntityID),
		)
		start := time.Now()
		doc, err := s.entities.Fetch(ctx, req.EntityType, req.EntityID)
		elapsed := time.Since(start)

		span.SetAttributes(tracer.Duration(tracer.AttrFetchDuration, elapsed))
		span.End(err)
		if s.metrics != nil {
			s.metrics.ObserveFetch("entity", elapsed)
		}
		if err != nil {
			return err
		}
		result.doc = doc
		return nil
	})

	g.Go(func() error {
		ctx, span := s.tracer.Start(gctx, tracer.SpanFetchRules,
			tracer.String(tracer.AttrViewerRole, req.ViewerRole),
		)
		start := time.Now()
		rules, err := s.rules.ListActiveRules(ctx, req.ViewerRole)
		elapsed := time.Since(start)

		span.SetAttributes(
			tracer.Duration(tracer.AttrFetchDuration, elapsed),
			tracer.Int(tracer.AttrRuleCount, len(rules)),
		)
		span.End(err)
		if s.metrics != nil {
			s.metrics.ObserveFetch("rules", elapsed)
		}
		if err != nil {
			return err
		}
		result.rules = rules
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &result, nil
}
