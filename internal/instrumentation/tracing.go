package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the default tracer name for the mcp-ory package.
const TracerName = "github.com/giantswarm/mcp-ory"

// Span attribute keys for OAuth and identity operations.
const (
	// SpanAttrTool is the MCP tool name.
	SpanAttrTool = "mcp.tool"

	// SpanAttrProviderType is the configured OAuth backend flavor.
	SpanAttrProviderType = "oauth.provider_type"

	// SpanAttrOperation is the OAuth operation (authorize, exchange_code, etc.).
	SpanAttrOperation = "oauth.operation"

	// SpanAttrClientID is the OAuth client identifier.
	SpanAttrClientID = "oauth.client_id"

	// SpanAttrGrantType is the OAuth grant type.
	SpanAttrGrantType = "oauth.grant_type"

	// SpanAttrStatusClass is the backend response status class (2xx, 4xx, ...).
	SpanAttrStatusClass = "oauth.status_class"

	// SpanAttrIdentityDomain is the identity identifier's domain (lower cardinality than the identifier).
	SpanAttrIdentityDomain = "mcp.identity.domain"

	// SpanAttrTokenActive indicates whether introspection reported the token active.
	SpanAttrTokenActive = "oauth.token_active"
)

// SpanAttributeBuilder helps construct OpenTelemetry span attributes
// with consistent naming and cardinality controls.
type SpanAttributeBuilder struct {
	attrs []attribute.KeyValue
}

// NewSpanAttributeBuilder creates a new SpanAttributeBuilder.
func NewSpanAttributeBuilder() *SpanAttributeBuilder {
	return &SpanAttributeBuilder{
		attrs: make([]attribute.KeyValue, 0, 10),
	}
}

// WithTool adds the MCP tool name attribute.
func (b *SpanAttributeBuilder) WithTool(tool string) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.String(SpanAttrTool, tool))
	return b
}

// WithProviderType adds the OAuth backend flavor attribute.
func (b *SpanAttributeBuilder) WithProviderType(providerType string) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.String(SpanAttrProviderType, providerType))
	return b
}

// WithOperation adds the OAuth operation attribute.
func (b *SpanAttributeBuilder) WithOperation(operation string) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.String(SpanAttrOperation, operation))
	return b
}

// WithClientID adds the OAuth client identifier attribute.
func (b *SpanAttributeBuilder) WithClientID(clientID string) *SpanAttributeBuilder {
	if clientID != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrClientID, clientID))
	}
	return b
}

// WithGrantType adds the OAuth grant type attribute.
func (b *SpanAttributeBuilder) WithGrantType(grantType string) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.String(SpanAttrGrantType, grantType))
	return b
}

// WithStatusClass adds the backend response status class attribute.
func (b *SpanAttributeBuilder) WithStatusClass(statusCode int) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.String(SpanAttrStatusClass, ClassifyStatusCode(statusCode)))
	return b
}

// WithIdentity adds the identity identifier's domain attribute.
// Only the domain is recorded to keep per-user cardinality out of traces.
func (b *SpanAttributeBuilder) WithIdentity(identifier string) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.String(SpanAttrIdentityDomain, ExtractIdentifierDomain(identifier)))
	return b
}

// WithTokenActive adds the introspection activity indicator attribute.
func (b *SpanAttributeBuilder) WithTokenActive(active bool) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.Bool(SpanAttrTokenActive, active))
	return b
}

// Build returns the constructed attributes.
func (b *SpanAttributeBuilder) Build() []attribute.KeyValue {
	return b.attrs
}

// StartSpan starts a new span with the given name and attributes.
// Returns the context with the span and the span itself.
// The caller is responsible for ending the span with defer span.End().
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartToolSpan starts a span for an MCP tool invocation.
// Automatically adds tool name and sets appropriate span kind.
func StartToolSpan(ctx context.Context, toolName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	allAttrs = append(allAttrs, attribute.String(SpanAttrTool, toolName))
	allAttrs = append(allAttrs, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "tool."+toolName,
		trace.WithAttributes(allAttrs...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartBackendSpan starts a span for OAuth backend admin API calls.
// Includes operation and provider type attributes.
func StartBackendSpan(ctx context.Context, operation, providerType string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+2)
	allAttrs = append(allAttrs,
		attribute.String(SpanAttrOperation, operation),
		attribute.String(SpanAttrProviderType, providerType),
	)
	allAttrs = append(allAttrs, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "oauth."+operation,
		trace.WithAttributes(allAttrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// SetSpanError records an error on the span and sets the status to error.
func SetSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess sets the span status to OK.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddSpanEvent adds an event to the span with optional attributes.
func AddSpanEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// GetTraceID returns the trace ID from the current span in context.
// Returns empty string if no valid span is present.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}

// GetSpanID returns the span ID from the current span in context.
// Returns empty string if no valid span is present.
func GetSpanID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().SpanID().String()
	}
	return ""
}

// SpanContextString returns a human-readable trace context string.
// Format: "trace_id=X span_id=Y" or empty string if no valid context.
func SpanContextString(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return ""
	}
	return "trace_id=" + span.SpanContext().TraceID().String() +
		" span_id=" + span.SpanContext().SpanID().String()
}
