// Package tracer provides a lightweight tracing abstraction for the consent
// module so the HTTP layer can emit spans without coupling handler code to
// OpenTelemetry APIs.
//
// Implementations:
//   - NoopTracer: for tests (zero overhead)
//   - OTelTracer: OpenTelemetry adapter for production
package tracer

import "context"

// Span represents an active trace span.
type Span interface {
	// End completes the span, recording any error that occurred.
	// If err is non-nil, the span is marked as failed.
	// End must be called exactly once, typically via defer.
	End(err error)

	// SetAttributes adds key-value pairs to the span.
	SetAttributes(attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	// Start creates a new span with the given name and attributes. The
	// returned context contains the new span and should be passed to child
	// operations. The span must be ended by calling Span.End().
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

// String creates a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool creates a boolean attribute.
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Span names used by the consent module.
const (
	SpanStatus   = "consent.status"
	SpanUpdate   = "consent.update"
	SpanClear    = "consent.clear"
	SpanPageview = "consent.pageview"
)

// Attribute keys used by the consent module.
const (
	AttrType    = "agreement.type"
	AttrSubType = "agreement.sub_type"
	AttrAllowed = "agreement.allowed"
	AttrBot     = "client.is_bot"
)
