package instrumentation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Config holds the configuration for OpenTelemetry instrumentation.
type Config struct {
	// ServiceName is reported as service.name (default: calendarassist).
	ServiceName    string
	ServiceVersion string

	// ServiceInstanceID defaults to the hostname. K8sNamespace and K8sPodName
	// are added as resource attributes when set.
	ServiceInstanceID string
	K8sNamespace      string
	K8sPodName        string

	// Enabled turns metrics and tracing on (default: true).
	Enabled bool

	// MetricsExporter is one of prometheus, otlp or stdout (default: prometheus).
	MetricsExporter string

	// TracingExporter is one of otlp, stdout or none (default: none).
	TracingExporter string

	// OTLPEndpoint is the collector host:port, without scheme.
	OTLPEndpoint string

	// OTLPInsecure disables TLS towards the collector. Spans carry tool names
	// and hashed user ids, so keep this off outside local development.
	OTLPInsecure bool

	// TraceSamplingRate is the ratio of root spans kept (default: 0.1).
	TraceSamplingRate float64

	// DetailedLabels keeps every gateway tool name as a label value; otherwise
	// tools outside the calendar toolkit are reported as "other".
	DetailedLabels bool

	AuditLogging AuditLoggingConfig
}

// AuditLoggingConfig holds configuration for the gateway call audit log.
type AuditLoggingConfig struct {
	// Enabled writes one entry per gateway tool call (default: true).
	Enabled bool

	// IncludePII logs raw user ids instead of their hashes (default: false).
	// A raw id is enough to impersonate the user's session.
	IncludePII bool
}

// Environment variables read by LoadConfig.
const (
	EnvServiceName       = "OTEL_SERVICE_NAME"
	EnvServiceInstanceID = "OTEL_SERVICE_INSTANCE_ID"
	EnvEnabled           = "INSTRUMENTATION_ENABLED"
	EnvMetricsExporter   = "METRICS_EXPORTER"
	EnvTracingExporter   = "TRACING_EXPORTER"
	EnvOTLPEndpoint      = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvOTLPInsecure      = "OTEL_EXPORTER_OTLP_INSECURE"
	EnvSamplingRate      = "OTEL_TRACES_SAMPLER_ARG"
	EnvDetailedLabels    = "METRICS_DETAILED_LABELS"
	EnvAuditEnabled      = "AUDIT_LOGGING_ENABLED"
	EnvAuditIncludePII   = "AUDIT_LOGGING_INCLUDE_PII"
)

// DefaultServiceName is the service.name used when none is configured.
const DefaultServiceName = "calendarassist"

// DefaultConfig returns the configuration used when no environment is set.
func DefaultConfig() Config {
	return Config{
		ServiceName:       DefaultServiceName,
		ServiceVersion:    "unknown",
		Enabled:           true,
		MetricsExporter:   ExporterPrometheus,
		TracingExporter:   ExporterNone,
		TraceSamplingRate: 0.1,
		AuditLogging:      AuditLoggingConfig{Enabled: true},
	}
}

// LoadConfig overlays environment values read through lookup (usually
// os.LookupEnv) on DefaultConfig. Values that do not parse are reported by
// variable name instead of silently falling back to the default.
func LoadConfig(lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()
	env := envReader{lookup: lookup}

	env.str(EnvServiceName, &cfg.ServiceName)
	env.str(EnvServiceInstanceID, &cfg.ServiceInstanceID)
	env.str("POD_NAMESPACE", &cfg.K8sNamespace)
	env.str("K8S_NAMESPACE", &cfg.K8sNamespace)
	env.str("HOSTNAME", &cfg.K8sPodName)
	env.str("K8S_POD_NAME", &cfg.K8sPodName)
	env.boolean(EnvEnabled, &cfg.Enabled)
	env.str(EnvMetricsExporter, &cfg.MetricsExporter)
	env.str(EnvTracingExporter, &cfg.TracingExporter)
	env.str(EnvOTLPEndpoint, &cfg.OTLPEndpoint)
	env.boolean(EnvOTLPInsecure, &cfg.OTLPInsecure)
	env.float(EnvSamplingRate, &cfg.TraceSamplingRate)
	env.boolean(EnvDetailedLabels, &cfg.DetailedLabels)
	env.boolean(EnvAuditEnabled, &cfg.AuditLogging.Enabled)
	env.boolean(EnvAuditIncludePII, &cfg.AuditLogging.IncludePII)

	if len(env.errs) > 0 {
		return cfg, errors.Join(env.errs...)
	}
	return cfg, nil
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *envReader) get(key string) (string, bool) {
	if r.lookup == nil {
		return "", false
	}
	v, ok := r.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *envReader) str(key string, dst *string) {
	if v, ok := r.get(key); ok {
		*dst = v
	}
}

func (r *envReader) boolean(key string, dst *bool) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return
	}
	*dst = parsed
}

func (r *envReader) float(key string, dst *float64) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid number %q", key, v))
		return
	}
	*dst = parsed
}

// Validate reports every problem with the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		errs = append(errs, fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %g", c.TraceSamplingRate))
	}

	switch c.MetricsExporter {
	case "", ExporterPrometheus, ExporterOTLP, ExporterStdout:
	default:
		errs = append(errs, fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter))
	}

	switch c.TracingExporter {
	case "", ExporterOTLP, ExporterStdout, ExporterNone:
	default:
		errs = append(errs, fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter))
	}

	if c.OTLPEndpoint == "" {
		if c.TracingExporter == ExporterOTLP {
			errs = append(errs, errors.New("OTLP endpoint is required when using OTLP tracing exporter"))
		}
		if c.MetricsExporter == ExporterOTLP {
			errs = append(errs, errors.New("OTLP endpoint is required when using OTLP metrics exporter"))
		}
	} else if strings.Contains(c.OTLPEndpoint, "://") {
		errs = append(errs, fmt.Errorf("OTLP endpoint %q must be host:port without a scheme", c.OTLPEndpoint))
	}

	return errors.Join(errs...)
}

// Constants for metric label values.
const (
	// Status values
	StatusSuccess = "success"
	StatusError   = "error"
	StatusUnknown = "unknown"

	// Connection lifecycle results
	ConnectionInitiated = "initiated"
	ConnectionActive    = "active"
	ConnectionPending   = "pending"
	ConnectionFailed    = "failed"
	ConnectionCleared   = "cleared"

	// Downstream service names
	ServiceGateway  = "gateway"
	ServiceRegistry = "registry"
	ServiceLLM      = "llm"

	// Exporter types
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
)
