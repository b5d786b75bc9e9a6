// Package tracer is a small tracing port used by the redaction engine.
//
// The engine records spans through the Tracer interface rather than the
// OpenTelemetry API so tests can run with NoopTracer and production can plug
// in OTelTracer. Span attributes never carry field values, only paths, rule
// names and entity references.
package tracer

import (
	"context"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span. A non-nil err marks it failed.
	// End must be called exactly once, typically via defer.
	End(err error)

	SetAttributes(attrs ...Attribute)

	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	// Start creates a span and returns a context carrying it.
	//
	// Example:
	//   ctx, span := tr.Start(ctx, tracer.SpanRedact,
	//       tracer.String(tracer.AttrEntityType, "profile"),
	//   )
	//   defer span.End(nil)
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names.
const (
	SpanRedact       = "redaction.redact"
	SpanFetchEntity  = "redaction.fetch_entity"
	SpanFetchRules   = "redaction.fetch_rules"
	SpanEvaluate     = "redaction.evaluate"
	SpanAuditRecord  = "redaction.audit"
	SpanEntityCached = "redaction.entity_cache"
)

// Attribute keys.
const (
	AttrEntityType    = "entity.type"
	AttrEntityID      = "entity.id"
	AttrViewerRole    = "viewer.role"
	AttrRuleCount     = "rules.applicable"
	AttrAppliedCount  = "redactions.applied"
	AttrAllowList     = "allow_list"
	AttrCacheHit      = "cache.hit"
	AttrCacheBypassed = "cache.bypassed"
	AttrAuditEntries  = "audit.entries"
	AttrFetchDuration = "fetch_ms"
)

// Event names.
const (
	EventInvalidPattern = "rule.invalid_pattern"
	EventAuditFailed    = "audit.failed"
)
