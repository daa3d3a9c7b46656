package composio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teemow/calendarassist/internal/instrumentation"
	"github.com/teemow/calendarassist/internal/logging"
)

const (
	// DefaultBaseURL is the platform's public API.
	DefaultBaseURL = "https://backend.composio.dev"

	// APIKeyHeader authenticates every request.
	APIKeyHeader = "x-api-key"

	maxErrorBody = 4 << 10
)

// Config configures a Client.
type Config struct {
	APIKey  string
	BaseURL string
	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    *instrumentation.Metrics
}

// Client talks to the platform REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
}

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: cfg.HTTPClient,
		logger:     logging.WithService(cfg.Logger, instrumentation.ServiceRegistry),
		metrics:    cfg.Metrics,
	}
}

// APIError is a non-2xx reply from the platform.
type APIError struct {
	StatusCode int
	// Code is the platform's numeric error code, when present.
	Code    int
	Message string
	Body    string
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("connector platform returned HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("connector platform returned HTTP %d: %s", e.StatusCode, e.Body)
}

// errorBody covers the error shapes the platform is known to return.
type errorBody struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	Error   *struct {
		Message   string `json:"message"`
		Code      int    `json:"code"`
		ErrorCode int    `json:"error_code"`
	} `json:"error"`
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}

	var eb errorBody
	if json.Unmarshal(body, &eb) != nil {
		return apiErr
	}
	apiErr.Message, apiErr.Code = eb.Message, eb.Code
	if eb.Error != nil {
		if eb.Error.Message != "" {
			apiErr.Message = eb.Error.Message
		}
		switch {
		case eb.Error.Code != 0:
			apiErr.Code = eb.Error.Code
		case eb.Error.ErrorCode != 0:
			apiErr.Code = eb.Error.ErrorCode
		}
	}
	return apiErr
}

// do performs one instrumented API call. in and out may be nil.
func (c *Client) do(ctx context.Context, operation, method, path string, query url.Values, in, out any) error {
	ctx, span := instrumentation.StartRegistrySpan(ctx, operation)
	defer span.End()
	start := time.Now()

	err := c.roundTrip(ctx, method, path, query, in, out)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
		c.logger.Warn("connector platform call failed",
			logging.Operation(operation),
			logging.Err(err))
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	if c.metrics != nil {
		c.metrics.RecordRegistryOperation(ctx, operation, status, time.Since(start))
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(APIKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connector platform request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newAPIError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
