package server

import (
	"errors"
	"strings"
	"time"
)

const (
	// DefaultAddr is the address the API listens on.
	DefaultAddr = ":3000"

	// DefaultAppURL is used to build the connection callback URL when no
	// public URL is configured.
	DefaultAppURL = "http://localhost:3000"

	// DefaultSuccessPath is where the browser lands after the consent flow.
	DefaultSuccessPath = "/fixed"

	// CallbackPath receives the registry's redirect after consent.
	CallbackPath = "/api/auth/callback"

	DefaultUpstreamTimeout = 30 * time.Second
	DefaultAskTimeout      = 120 * time.Second

	DefaultRateLimitRPS   = 5.0
	DefaultRateLimitBurst = 20

	// maxBodyBytes bounds JSON request bodies.
	maxBodyBytes = 1 << 20
)

// Config holds the HTTP server settings.
type Config struct {
	// Addr is the listen address (e.g., ":3000").
	Addr string

	// AppURL is the public base URL of the application.
	AppURL string

	// Secure marks cookies HTTPS-only and enables HSTS. Set in production.
	Secure bool

	// SuccessPath is the page the callback redirects to.
	SuccessPath string

	// AuthConfigID identifies the calendar auth config at the registry.
	AuthConfigID string

	// UpstreamTimeout bounds bookings and registry calls.
	UpstreamTimeout time.Duration

	// AskTimeout bounds language model calls.
	AskTimeout time.Duration

	// RateLimitRPS is the sustained per-IP request rate on /api/. Zero
	// disables rate limiting.
	RateLimitRPS float64

	// RateLimitBurst is the per-IP burst size.
	RateLimitBurst int

	// TrustProxy honors X-Forwarded-For and X-Real-IP. Only enable behind a
	// proxy that sets them.
	TrustProxy bool
}

// DefaultConfig returns a Config with all defaults applied.
func DefaultConfig() Config {
	return Config{
		Addr:            DefaultAddr,
		AppURL:          DefaultAppURL,
		SuccessPath:     DefaultSuccessPath,
		UpstreamTimeout: DefaultUpstreamTimeout,
		AskTimeout:      DefaultAskTimeout,
		RateLimitRPS:    DefaultRateLimitRPS,
		RateLimitBurst:  DefaultRateLimitBurst,
	}
}

// Validate checks that required settings are present.
func (c Config) Validate() error {
	if c.AuthConfigID == "" {
		return errors.New("auth config id is required")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return errors.New("rate limit settings must not be negative")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.AppURL == "" {
		c.AppURL = DefaultAppURL
	}
	if c.SuccessPath == "" {
		c.SuccessPath = DefaultSuccessPath
	}
	if c.UpstreamTimeout <= 0 {
		c.UpstreamTimeout = DefaultUpstreamTimeout
	}
	if c.AskTimeout <= 0 {
		c.AskTimeout = DefaultAskTimeout
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst <= 0 {
		c.RateLimitBurst = DefaultRateLimitBurst
	}
	return c
}

// CallbackURL is the absolute URL the registry redirects to after consent.
func (c Config) CallbackURL() string {
	base := c.AppURL
	if base == "" {
		base = DefaultAppURL
	}
	return strings.TrimRight(base, "/") + CallbackPath
}
