package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/teemow/calendarassist/internal/instrumentation"
	"github.com/teemow/calendarassist/internal/logging"
)

const (
	// APIKeyHeader authenticates requests against the gateway.
	APIKeyHeader = "x-api-key"

	// MethodToolsCall is the JSON-RPC method for invoking a named tool.
	MethodToolsCall = "tools/call"

	// maxBodyBytes bounds how much of a gateway reply is read.
	maxBodyBytes = 10 << 20
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	Params  ToolCallParams `json:"params"`
	ID      int            `json:"id"`
}

// ToolCallParams names the tool and carries its arguments.
type ToolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolCall describes one invocation against a resolved endpoint.
type ToolCall struct {
	Endpoint  string
	Name      string
	Arguments map[string]any
	// UserID is only used for audit logging.
	UserID string
}

// InvokerConfig configures an Invoker.
type InvokerConfig struct {
	// HTTPClient performs the POST. Defaults to a client with a 30s timeout.
	HTTPClient *http.Client
	// APIKey is sent in the x-api-key header when set.
	APIKey string
	Logger *slog.Logger
	// Metrics and AuditLogger may be nil.
	Metrics     *instrumentation.Metrics
	AuditLogger *instrumentation.AuditLogger
}

// Invoker posts tools/call requests and decodes either JSON or SSE replies.
type Invoker struct {
	httpClient *http.Client
	apiKey     string
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
	audit      *instrumentation.AuditLogger
}

// NewInvoker creates an Invoker.
func NewInvoker(cfg InvokerConfig) *Invoker {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Invoker{
		httpClient: cfg.HTTPClient,
		apiKey:     cfg.APIKey,
		logger:     logging.WithService(cfg.Logger, "gateway"),
		metrics:    cfg.Metrics,
		audit:      cfg.AuditLogger,
	}
}

// Call invokes a tool and returns the unwrapped JSON-RPC envelope.
func (i *Invoker) Call(ctx context.Context, call ToolCall) (*Envelope, error) {
	ctx, span := instrumentation.StartGatewaySpan(ctx, call.Name)
	defer span.End()

	start := time.Now()
	invocation := instrumentation.NewToolInvocation(call.Name).
		WithUser(call.UserID).
		WithService(instrumentation.ServiceGateway, instrumentation.OperationCall).
		WithSpanContext(ctx)

	env, err := i.call(ctx, call)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
		invocation.CompleteWithError(err)
	} else {
		instrumentation.SetSpanSuccess(span)
		invocation.CompleteSuccess()
	}
	if i.metrics != nil {
		i.metrics.RecordGatewayToolCall(ctx, call.Name, status, time.Since(start))
	}
	if i.audit != nil {
		i.audit.LogToolInvocation(invocation)
	}
	return env, err
}

func (i *Invoker) call(ctx context.Context, call ToolCall) (*Envelope, error) {
	if call.Endpoint == "" {
		return nil, fmt.Errorf("%w: empty endpoint URL", ErrSetup)
	}

	payload, err := json.Marshal(Request{
		JSONRPC: "2.0",
		Method:  MethodToolsCall,
		Params: ToolCallParams{
			Name:      call.Name,
			Arguments: call.Arguments,
		},
		ID: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool call: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, call.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build tool call request: %w", err)
	}
	req.Header.Set("Content-Type", ContentTypeJSON)
	req.Header.Set("Accept", ContentTypeJSON+", "+ContentTypeEventStream)
	if i.apiKey != "" {
		req.Header.Set(APIKeyHeader, i.apiKey)
	}

	i.logger.Debug("calling gateway tool", logging.Tool(call.Name))

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		i.logger.Warn("gateway tool call failed",
			logging.Tool(call.Name),
			slog.Int("status_code", resp.StatusCode))
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	contentType := resp.Header.Get("Content-Type")
	doc, err := DecodeBody(contentType, body)
	if err != nil {
		var mErr *MalformedResponseError
		if errors.As(err, &mErr) {
			i.logger.Warn("gateway returned malformed body",
				logging.Tool(call.Name),
				slog.String("content_type", contentType),
				slog.String("fragment", mErr.Fragment),
				logging.Err(mErr.Err))
		}
		return nil, err
	}

	return ParseEnvelope(doc)
}
