package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the default tracer name for the calendarassist module.
const TracerName = "github.com/teemow/calendarassist"

// Span attribute keys for operations.
const (
	// SpanAttrTool is the gateway tool name attribute.
	SpanAttrTool = "gateway.tool"

	// SpanAttrRegistryOperation is the connection registry operation attribute.
	SpanAttrRegistryOperation = "registry.operation"

	// SpanAttrModel is the language model name attribute.
	SpanAttrModel = "llm.model"

	// SpanAttrLLMOperation is the language model operation (ask, summarize).
	SpanAttrLLMOperation = "llm.operation"

	// SpanAttrPromptTokens is the accumulated prompt token count.
	SpanAttrPromptTokens = "llm.usage.prompt_tokens"

	// SpanAttrCompletionTokens is the accumulated completion token count.
	SpanAttrCompletionTokens = "llm.usage.completion_tokens"

	// SpanAttrCost is the estimated request cost in US dollars.
	SpanAttrCost = "llm.cost_usd"
)

// StartSpan starts a new span with the given name and attributes.
// Returns the context with the span and the span itself.
// The caller is responsible for ending the span with defer span.End().
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartGatewaySpan starts a client span for a tool gateway call.
func StartGatewaySpan(ctx context.Context, tool string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	allAttrs = append(allAttrs, attribute.String(SpanAttrTool, tool))
	allAttrs = append(allAttrs, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "gateway."+tool,
		trace.WithAttributes(allAttrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// StartRegistrySpan starts a client span for a connection registry call.
func StartRegistrySpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	allAttrs = append(allAttrs, attribute.String(SpanAttrRegistryOperation, operation))
	allAttrs = append(allAttrs, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "registry."+operation,
		trace.WithAttributes(allAttrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// StartLLMSpan starts a client span for a language model generation.
func StartLLMSpan(ctx context.Context, model, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+2)
	allAttrs = append(allAttrs,
		attribute.String(SpanAttrModel, model),
		attribute.String(SpanAttrLLMOperation, operation),
	)
	allAttrs = append(allAttrs, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "llm."+operation,
		trace.WithAttributes(allAttrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// SetLLMUsage records token usage and cost on a span.
func SetLLMUsage(span trace.Span, promptTokens, completionTokens int, cost float64) {
	span.SetAttributes(
		attribute.Int(SpanAttrPromptTokens, promptTokens),
		attribute.Int(SpanAttrCompletionTokens, completionTokens),
		attribute.Float64(SpanAttrCost, cost),
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
