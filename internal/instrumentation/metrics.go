package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys - using constants for consistency and DRY
const (
	// Common attributes (reused across metrics)
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrResult    = "result"
	attrTool      = "tool"
	attrModel     = "model"
	attrKind      = "kind"
)

// Token kinds for llm_tokens_total.
const (
	TokenKindPrompt     = "prompt"
	TokenKindCompletion = "completion"
)

// Metrics provides methods for recording observability metrics.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Tool gateway metrics
	gatewayToolCallsTotal   metric.Int64Counter
	gatewayToolCallDuration metric.Float64Histogram

	// Connection registry metrics
	registryOperationsTotal   metric.Int64Counter
	registryOperationDuration metric.Float64Histogram
	connectionEventsTotal     metric.Int64Counter

	// Language model metrics
	llmRequestsTotal       metric.Int64Counter
	llmRequestDuration     metric.Float64Histogram
	llmTokensTotal         metric.Int64Counter
	llmRequestCost         metric.Float64Histogram
	llmCostRejectionsTotal metric.Int64Counter

	// Configuration
	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The detailedLabels parameter controls whether high-cardinality labels are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	// HTTP Metrics
	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 120.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	// Tool Gateway Metrics
	m.gatewayToolCallsTotal, err = meter.Int64Counter(
		"gateway_tool_calls_total",
		metric.WithDescription("Total number of tool gateway calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway_tool_calls_total counter: %w", err)
	}

	m.gatewayToolCallDuration, err = meter.Float64Histogram(
		"gateway_tool_call_duration_seconds",
		metric.WithDescription("Tool gateway call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway_tool_call_duration_seconds histogram: %w", err)
	}

	// Connection Registry Metrics
	m.registryOperationsTotal, err = meter.Int64Counter(
		"registry_operations_total",
		metric.WithDescription("Total number of connection registry operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry_operations_total counter: %w", err)
	}

	m.registryOperationDuration, err = meter.Float64Histogram(
		"registry_operation_duration_seconds",
		metric.WithDescription("Connection registry operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry_operation_duration_seconds histogram: %w", err)
	}

	m.connectionEventsTotal, err = meter.Int64Counter(
		"connection_events_total",
		metric.WithDescription("Total number of calendar connection lifecycle events by result"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection_events_total counter: %w", err)
	}

	// Language Model Metrics
	m.llmRequestsTotal, err = meter.Int64Counter(
		"llm_requests_total",
		metric.WithDescription("Total number of language model generations"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm_requests_total counter: %w", err)
	}

	m.llmRequestDuration, err = meter.Float64Histogram(
		"llm_request_duration_seconds",
		metric.WithDescription("Language model generation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm_request_duration_seconds histogram: %w", err)
	}

	m.llmTokensTotal, err = meter.Int64Counter(
		"llm_tokens_total",
		metric.WithDescription("Total number of language model tokens by kind"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm_tokens_total counter: %w", err)
	}

	m.llmRequestCost, err = meter.Float64Histogram(
		"llm_request_cost_dollars",
		metric.WithDescription("Estimated cost of a language model request in US dollars"),
		metric.WithUnit("USD"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.2, 0.3, 0.5, 1.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm_request_cost_dollars histogram: %w", err)
	}

	m.llmCostRejectionsTotal, err = meter.Int64Counter(
		"llm_cost_rejections_total",
		metric.WithDescription("Total number of answers discarded for exceeding the cost ceiling"),
		metric.WithUnit("{rejection}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm_cost_rejections_total counter: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
// The path is reduced with RouteLabel.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, RouteLabel(path)),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordGatewayToolCall records a tool gateway call with tool name, status, and duration.
//
// Parameters:
//   - tool: Gateway tool name (e.g., "GOOGLECALENDAR_EVENTS_LIST"), reduced with ToolLabel
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the call including response parsing
func (m *Metrics) RecordGatewayToolCall(ctx context.Context, tool, status string, duration time.Duration) {
	if m.gatewayToolCallsTotal == nil || m.gatewayToolCallDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, ToolLabel(tool, m.detailedLabels)),
		attribute.String(attrStatus, status),
	}

	m.gatewayToolCallsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.gatewayToolCallDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordRegistryOperation records a connection registry call.
//
// Parameters:
//   - operation: Operation type (initiate, resolve, status, create_server, list_servers)
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the call
func (m *Metrics) RecordRegistryOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if m.registryOperationsTotal == nil || m.registryOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.registryOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.registryOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordConnectionEvent records a step of the calendar connection lifecycle.
// Result should be one of: "initiated", "active", "pending", "failed", "cleared"
func (m *Metrics) RecordConnectionEvent(ctx context.Context, result string) {
	if m.connectionEventsTotal == nil {
		return // Instrumentation not initialized
	}

	m.connectionEventsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordLLMRequest records a language model generation with its outcome and duration.
func (m *Metrics) RecordLLMRequest(ctx context.Context, model, operation, status string, duration time.Duration) {
	if m.llmRequestsTotal == nil || m.llmRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrModel, model),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.llmRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.llmRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordLLMUsage records token consumption and the estimated cost of one request.
func (m *Metrics) RecordLLMUsage(ctx context.Context, model string, promptTokens, completionTokens int, cost float64) {
	if m.llmTokensTotal == nil || m.llmRequestCost == nil {
		return // Instrumentation not initialized
	}

	m.llmTokensTotal.Add(ctx, int64(promptTokens), metric.WithAttributes(
		attribute.String(attrModel, model),
		attribute.String(attrKind, TokenKindPrompt),
	))
	m.llmTokensTotal.Add(ctx, int64(completionTokens), metric.WithAttributes(
		attribute.String(attrModel, model),
		attribute.String(attrKind, TokenKindCompletion),
	))
	m.llmRequestCost.Record(ctx, cost, metric.WithAttributes(attribute.String(attrModel, model)))
}

// RecordCostRejection records an answer discarded by the cost guard.
func (m *Metrics) RecordCostRejection(ctx context.Context, model string) {
	if m.llmCostRejectionsTotal == nil {
		return // Instrumentation not initialized
	}

	m.llmCostRejectionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrModel, model)))
}
