package tracer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"veil/internal/platform/tracer"
)

func TestNoopTracer_Start(t *testing.T) {
	tr := tracer.NewNoop()
	ctx := context.Background()

	newCtx, span := tr.Start(ctx, tracer.SpanRedact,
		tracer.String(tracer.AttrEntityType, "profile"),
		tracer.Bool(tracer.AttrAllowList, true),
	)

	assert.Equal(t, ctx, newCtx)
	require.NotNil(t, span)

	span.SetAttributes(tracer.Int(tracer.AttrAppliedCount, 2))
	span.AddEvent(tracer.EventInvalidPattern, tracer.String("rule", "r1"))
	span.End(errors.New("boom"))
}

func TestOTelTracer_WrapsInjectedTracer(t *testing.T) {
	tr := tracer.NewOTel(tracer.WithOTelTracer(noop.NewTracerProvider().Tracer("test")))

	ctx, span := tr.Start(context.Background(), tracer.SpanEvaluate,
		tracer.String(tracer.AttrViewerRole, "partner"),
		tracer.Int(tracer.AttrRuleCount, 3),
		tracer.Duration(tracer.AttrFetchDuration, 15*time.Millisecond),
	)
	require.NotNil(t, ctx)
	require.NotNil(t, span)

	span.SetAttributes(tracer.Bool(tracer.AttrCacheHit, false))
	span.AddEvent(tracer.EventAuditFailed)
	span.End(nil)
}

func TestOTelTracer_DefaultsToGlobalProvider(t *testing.T) {
	tr := tracer.NewOTel()
	_, span := tr.Start(context.Background(), tracer.SpanFetchRules)
	require.NotNil(t, span)
	span.End(errors.New("store down"))
}
