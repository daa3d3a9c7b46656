package instrumentation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, "calendarassist", cfg.ServiceName)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, ExporterPrometheus, cfg.MetricsExporter)
	assert.Equal(t, ExporterNone, cfg.TracingExporter)
	assert.True(t, cfg.AuditLogging.Enabled)
	assert.False(t, cfg.AuditLogging.IncludePII)
	assert.False(t, cfg.DetailedLabels)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_FromEnv(t *testing.T) {
	cfg, err := LoadConfig(envMap(map[string]string{
		EnvServiceName:     "calendarassist-staging",
		EnvMetricsExporter: "otlp",
		EnvTracingExporter: "otlp",
		EnvOTLPEndpoint:    "collector:4318",
		EnvSamplingRate:    "0.5",
		EnvDetailedLabels:  "true",
		EnvAuditIncludePII: "1",
		"POD_NAMESPACE":    "fallback",
		"K8S_NAMESPACE":    "assistants",
		"HOSTNAME":         "calendarassist-7d9f",
	}))
	require.NoError(t, err)

	assert.Equal(t, "calendarassist-staging", cfg.ServiceName)
	assert.Equal(t, ExporterOTLP, cfg.MetricsExporter)
	assert.Equal(t, "collector:4318", cfg.OTLPEndpoint)
	assert.Equal(t, 0.5, cfg.TraceSamplingRate)
	assert.True(t, cfg.DetailedLabels)
	assert.True(t, cfg.AuditLogging.IncludePII)
	assert.Equal(t, "assistants", cfg.K8sNamespace)
	assert.Equal(t, "calendarassist-7d9f", cfg.K8sPodName)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_BlankValuesKeepDefaults(t *testing.T) {
	cfg, err := LoadConfig(envMap(map[string]string{
		EnvServiceName: "  ",
		EnvEnabled:     "",
	}))
	require.NoError(t, err)
	assert.Equal(t, DefaultServiceName, cfg.ServiceName)
	assert.True(t, cfg.Enabled)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	_, err := LoadConfig(envMap(map[string]string{
		EnvEnabled:         "sometimes",
		EnvSamplingRate:    "ten percent",
		EnvAuditIncludePII: "yes please",
	}))
	require.Error(t, err)

	assert.Contains(t, err.Error(), EnvEnabled)
	assert.Contains(t, err.Error(), EnvSamplingRate)
	assert.Contains(t, err.Error(), EnvAuditIncludePII)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		errContains []string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{
			name: "otlp tracing with endpoint",
			mutate: func(c *Config) {
				c.TracingExporter = ExporterOTLP
				c.OTLPEndpoint = "localhost:4318"
			},
		},
		{
			name:        "sampling rate above 1",
			mutate:      func(c *Config) { c.TraceSamplingRate = 1.5 },
			errContains: []string{"sampling rate"},
		},
		{
			name:        "unknown metrics exporter",
			mutate:      func(c *Config) { c.MetricsExporter = "statsd" },
			errContains: []string{`invalid metrics exporter "statsd"`},
		},
		{
			name:        "unknown tracing exporter",
			mutate:      func(c *Config) { c.TracingExporter = "jaeger" },
			errContains: []string{`invalid tracing exporter "jaeger"`},
		},
		{
			name: "otlp everywhere without endpoint reports both",
			mutate: func(c *Config) {
				c.MetricsExporter = ExporterOTLP
				c.TracingExporter = ExporterOTLP
			},
			errContains: []string{"OTLP tracing exporter", "OTLP metrics exporter"},
		},
		{
			name: "endpoint with scheme",
			mutate: func(c *Config) {
				c.TracingExporter = ExporterOTLP
				c.OTLPEndpoint = "https://collector:4318"
			},
			errContains: []string{"without a scheme"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if len(tt.errContains) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.errContains {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}
