// Package instrumentation provides OpenTelemetry instrumentation for the
// calendarassist server.
//
// This package enables production-grade observability through:
//   - OpenTelemetry metrics for HTTP requests, tool gateway calls, connection
//     registry calls and language model usage
//   - Distributed tracing for gateway, registry and model calls
//   - Prometheus metrics export via /metrics endpoint on dedicated port
//   - OTLP export support for modern observability platforms
//   - An audit log of every tool gateway call
//
// # Metrics
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//
// Tool Gateway Metrics:
//   - gateway_tool_calls_total: Counter of gateway calls by tool and status
//   - gateway_tool_call_duration_seconds: Histogram of gateway call durations
//
// Connection Registry Metrics:
//   - registry_operations_total: Counter of registry calls by operation and status
//   - registry_operation_duration_seconds: Histogram of registry call durations
//   - connection_events_total: Counter of connection lifecycle events by result
//
// Language Model Metrics:
//   - llm_requests_total: Counter of generations by model, operation and status
//   - llm_request_duration_seconds: Histogram of generation durations
//   - llm_tokens_total: Counter of tokens by model and kind (prompt, completion)
//   - llm_request_cost_dollars: Histogram of estimated request cost
//   - llm_cost_rejections_total: Counter of answers discarded by the cost guard
//
// # Tracing
//
// Distributed tracing spans are created for:
//   - Tool gateway calls (gateway.<tool>)
//   - Connection registry calls (registry.<operation>)
//   - Language model generations (llm.<operation>)
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: calendarassist)
//   - OTEL_EXPORTER_OTLP_INSECURE: Disable TLS towards the collector (default: false)
//   - METRICS_DETAILED_LABELS: Keep every gateway tool name as a label (default: false)
//   - AUDIT_LOGGING_ENABLED: Write the gateway call audit log (default: true)
//   - AUDIT_LOGGING_INCLUDE_PII: Log raw user ids in the audit log (default: false)
//
// Values that do not parse are reported by LoadConfig rather than ignored.
//
// # Example Usage
//
//	config, err := instrumentation.LoadConfig(os.LookupEnv)
//	if err != nil {
//		return err
//	}
//	provider, err := instrumentation.NewProvider(ctx, config)
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	recorder := provider.Metrics()
//	recorder.RecordGatewayToolCall(ctx, "GOOGLECALENDAR_EVENTS_LIST", "success", time.Since(start))
//	recorder.RecordLLMUsage(ctx, "gpt-4o-mini", usage.Prompt, usage.Completion, cost)
package instrumentation
