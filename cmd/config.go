package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/calendarassist/internal/assistant"
	"github.com/teemow/calendarassist/internal/composio"
	"github.com/teemow/calendarassist/internal/logging"
	"github.com/teemow/calendarassist/internal/server"
)

const (
	defaultServerName = "calendarassist"
	envProduction     = "production"
)

// appConfig holds the settings shared by serve and bookings.
type appConfig struct {
	Debug     bool
	LogFormat string

	ComposioAPIKey  string
	ComposioBaseURL string
	AuthConfigID    string
	ServerName      string

	DisplayTimezone string
	UpstreamTimeout time.Duration
}

// serveConfig adds the HTTP API settings.
type serveConfig struct {
	appConfig

	HTTPAddr string
	AppURL   string
	AppEnv   string

	OpenAIBaseURL string
	AskModel      string
	SummaryModel  string
	AskTimeout    time.Duration

	RateLimitRPS   float64
	RateLimitBurst int
	TrustProxy     bool

	MetricsEnabled bool
	MetricsAddr    string
}

// envBinding maps a flag to the environment variable used when the flag is
// not set on the command line.
type envBinding struct {
	flag string
	env  string
}

var appEnvBindings = []envBinding{
	{"log-format", "LOG_FORMAT"},
	{"composio-api-key", "COMPOSIO_API_KEY"},
	{"composio-base-url", "COMPOSIO_BASE_URL"},
	{"auth-config-id", "COMPOSIO_AUTH_CONFIG_ID"},
	{"server-name", "MCP_SERVER_NAME"},
	{"display-timezone", "DISPLAY_TIMEZONE"},
	{"upstream-timeout", "UPSTREAM_TIMEOUT"},
}

var serveEnvBindings = []envBinding{
	{"http-addr", "HTTP_ADDR"},
	{"app-url", "APP_URL"},
	{"app-env", "APP_ENV"},
	{"openai-base-url", "OPENAI_BASE_URL"},
	{"ask-model", "ASK_MODEL"},
	{"summary-model", "SUMMARY_MODEL"},
	{"ask-timeout", "ASK_TIMEOUT"},
	{"rate-limit-rps", "RATE_LIMIT_RPS"},
	{"rate-limit-burst", "RATE_LIMIT_BURST"},
	{"trust-proxy", "TRUST_PROXY"},
	{"metrics-enabled", "METRICS_ENABLED"},
	{"metrics-addr", "METRICS_ADDR"},
}

// addAppFlags registers the flags shared by serve and bookings.
func addAppFlags(cmd *cobra.Command, cfg *appConfig) {
	cmd.Flags().BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&cfg.LogFormat, "log-format", logging.FormatText, "Log format: text or json. Can also use LOG_FORMAT env var.")
	cmd.Flags().StringVar(&cfg.ComposioAPIKey, "composio-api-key", "", "API key for the connector platform. Can also use COMPOSIO_API_KEY env var.")
	cmd.Flags().StringVar(&cfg.ComposioBaseURL, "composio-base-url", composio.DefaultBaseURL, "Base URL of the connector platform API. Can also use COMPOSIO_BASE_URL env var.")
	cmd.Flags().StringVar(&cfg.AuthConfigID, "auth-config-id", "", "Google Calendar auth config id. Can also use COMPOSIO_AUTH_CONFIG_ID env var.")
	cmd.Flags().StringVar(&cfg.ServerName, "server-name", defaultServerName, "Name of the tool-server descriptor to create or reuse. Can also use MCP_SERVER_NAME env var.")
	cmd.Flags().StringVar(&cfg.DisplayTimezone, "display-timezone", "", "IANA time zone used to render booking times (default: local). Can also use DISPLAY_TIMEZONE env var.")
	cmd.Flags().DurationVar(&cfg.UpstreamTimeout, "upstream-timeout", server.DefaultUpstreamTimeout, "Timeout for gateway and registry calls. Can also use UPSTREAM_TIMEOUT env var.")
}

// addServeFlags registers the HTTP API flags.
func addServeFlags(cmd *cobra.Command, cfg *serveConfig) {
	addAppFlags(cmd, &cfg.appConfig)

	cmd.Flags().StringVar(&cfg.HTTPAddr, "http-addr", server.DefaultAddr, "HTTP server address. Can also use HTTP_ADDR env var.")
	cmd.Flags().StringVar(&cfg.AppURL, "app-url", server.DefaultAppURL, "Public base URL, used for the connection callback. Can also use APP_URL env var.")
	cmd.Flags().StringVar(&cfg.AppEnv, "app-env", "development", "Deployment environment; production enables secure cookies and HSTS. Can also use APP_ENV env var.")
	cmd.Flags().StringVar(&cfg.OpenAIBaseURL, "openai-base-url", "", "Override the language model API base URL. Can also use OPENAI_BASE_URL env var.")
	cmd.Flags().StringVar(&cfg.AskModel, "ask-model", assistant.DefaultAskModel, "Model used to answer questions. Can also use ASK_MODEL env var.")
	cmd.Flags().StringVar(&cfg.SummaryModel, "summary-model", assistant.DefaultSummaryModel, "Model used to summarize bookings. Can also use SUMMARY_MODEL env var.")
	cmd.Flags().DurationVar(&cfg.AskTimeout, "ask-timeout", server.DefaultAskTimeout, "Timeout for language model requests. Can also use ASK_TIMEOUT env var.")
	cmd.Flags().Float64Var(&cfg.RateLimitRPS, "rate-limit-rps", server.DefaultRateLimitRPS, "Per-IP request rate on /api/ (0 disables). Can also use RATE_LIMIT_RPS env var.")
	cmd.Flags().IntVar(&cfg.RateLimitBurst, "rate-limit-burst", server.DefaultRateLimitBurst, "Per-IP burst on /api/. Can also use RATE_LIMIT_BURST env var.")
	cmd.Flags().BoolVar(&cfg.TrustProxy, "trust-proxy", false, "Trust X-Forwarded-For and X-Real-IP for client IPs. Can also use TRUST_PROXY env var.")
	cmd.Flags().BoolVar(&cfg.MetricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")
}

// applyEnv fills flags that were not set explicitly from the environment.
func applyEnv(cmd *cobra.Command, bindings []envBinding) error {
	for _, b := range bindings {
		if cmd.Flags().Changed(b.flag) {
			continue
		}
		v, ok := os.LookupEnv(b.env)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if err := cmd.Flags().Set(b.flag, strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("invalid value for %s: %w", b.env, err)
		}
	}
	return nil
}

// location returns the display time zone.
func (c appConfig) location() (*time.Location, error) {
	if c.DisplayTimezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid display timezone %q: %w", c.DisplayTimezone, err)
	}
	return loc, nil
}

func (c appConfig) validate() error {
	var errs []error
	if c.ComposioAPIKey == "" {
		errs = append(errs, errors.New("connector platform API key is required (--composio-api-key or COMPOSIO_API_KEY)"))
	}
	if c.AuthConfigID == "" {
		errs = append(errs, errors.New("auth config id is required (--auth-config-id or COMPOSIO_AUTH_CONFIG_ID)"))
	}
	if _, err := c.location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c serveConfig) production() bool {
	return strings.EqualFold(c.AppEnv, envProduction)
}

// serverConfig converts the settings into the HTTP server configuration.
func (c serveConfig) serverConfig() server.Config {
	cfg := server.DefaultConfig()
	cfg.Addr = c.HTTPAddr
	cfg.AppURL = c.AppURL
	cfg.Secure = c.production()
	cfg.AuthConfigID = c.AuthConfigID
	cfg.UpstreamTimeout = c.UpstreamTimeout
	cfg.AskTimeout = c.AskTimeout
	cfg.RateLimitRPS = c.RateLimitRPS
	cfg.RateLimitBurst = c.RateLimitBurst
	cfg.TrustProxy = c.TrustProxy
	return cfg
}
