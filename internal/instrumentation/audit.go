package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/teemow/calendarassist/internal/logging"
)

// ToolInvocation captures a tool gateway call for audit logging.
//
// # Privacy Considerations
//
// UserID is the opaque id stored in the user's cookie and doubles as a bearer
// identifier. Operational logs only carry its hash (UserHash); the raw id is
// included only when the audit logger is configured with IncludePII.
type ToolInvocation struct {
	// Tool name as advertised by the gateway
	Tool string

	// User identity (from the session linkage)
	UserID string

	// Target information
	ServiceName string // Downstream service (gateway, registry, llm)
	Operation   string // Operation type (call, list, initiate, ...)

	// Execution details
	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	// Tracing context
	TraceID string
	SpanID  string
}

// UserHash returns the anonymized user identifier.
func (ti *ToolInvocation) UserHash() string {
	return logging.AnonymizeID(ti.UserID)
}

// Status returns "success" or "error" based on the Success field.
func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns slog attributes for operational logging, with the user id hashed.
func (ti *ToolInvocation) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", ti.Tool),
		slog.String(logging.KeyUserHash, ti.UserHash()),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}
	return ti.appendOptional(attrs, false)
}

// LogAuditAttrs returns slog attributes for full audit logging, including the
// raw user id.
//
// # Security Warning
//
// Ensure audit logs carrying raw user ids are stored with appropriate access
// controls; the id is enough to impersonate the user's session.
func (ti *ToolInvocation) LogAuditAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", ti.Tool),
		slog.String("user", ti.UserID),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}
	return ti.appendOptional(attrs, true)
}

func (ti *ToolInvocation) appendOptional(attrs []slog.Attr, withSpan bool) []slog.Attr {
	if ti.ServiceName != "" {
		attrs = append(attrs, slog.String("service", ti.ServiceName))
	}
	if ti.Operation != "" {
		attrs = append(attrs, slog.String("operation", ti.Operation))
	}
	if ti.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ti.TraceID))
	}
	if withSpan && ti.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", ti.SpanID))
	}
	if ti.Error != "" {
		attrs = append(attrs, slog.String("error", ti.Error))
	}
	return attrs
}

// NewToolInvocation creates a new ToolInvocation with timing started.
// Call Complete() when the tool operation finishes.
func NewToolInvocation(tool string) *ToolInvocation {
	return &ToolInvocation{
		Tool:      tool,
		StartTime: time.Now(),
	}
}

// WithUser sets the user identity.
func (ti *ToolInvocation) WithUser(userID string) *ToolInvocation {
	ti.UserID = userID
	return ti
}

// WithService sets the downstream service and operation.
func (ti *ToolInvocation) WithService(serviceName, operation string) *ToolInvocation {
	ti.ServiceName = serviceName
	ti.Operation = operation
	return ti
}

// WithSpanContext extracts trace context from the current span.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		ti.TraceID = span.SpanContext().TraceID().String()
		ti.SpanID = span.SpanContext().SpanID().String()
	}
	return ti
}

// Complete marks the invocation as completed and calculates duration.
// Returns the same ToolInvocation for method chaining.
func (ti *ToolInvocation) Complete(success bool, err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = success
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

// CompleteWithError marks the invocation as failed with the given error.
func (ti *ToolInvocation) CompleteWithError(err error) *ToolInvocation {
	return ti.Complete(false, err)
}

// CompleteSuccess marks the invocation as successful.
func (ti *ToolInvocation) CompleteSuccess() *ToolInvocation {
	return ti.Complete(true, nil)
}

// AuditLogger provides structured audit logging for tool invocations.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates a new AuditLogger with the given slog.Logger.
// By default, raw user ids are not included in logs.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true})
}

// NewAuditLoggerWithConfig creates a new AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger.With(slog.String("component", "audit")),
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogToolInvocation logs a tool invocation. When the logger is configured
// with IncludePII the raw user id is logged, otherwise only its hash.
func (al *AuditLogger) LogToolInvocation(ti *ToolInvocation) {
	if al == nil || !al.enabled {
		return
	}

	var attrs []slog.Attr
	if al.includePII {
		attrs = ti.LogAuditAttrs()
	} else {
		attrs = ti.LogAttrs()
	}

	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if ti.Success {
		al.logger.Info("tool_executed", args...)
	} else {
		al.logger.Warn("tool_failed", args...)
	}
}
