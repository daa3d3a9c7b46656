package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/calendarassist/internal/instrumentation"
	"github.com/teemow/calendarassist/internal/logging"
)

// maxToolPages guards against gateways that never stop paginating.
const maxToolPages = 10

// ToolSetConfig configures an MCP session against a gateway endpoint.
type ToolSetConfig struct {
	APIKey        string
	ClientName    string
	ClientVersion string
	// Timeout bounds each HTTP request of the session (default 60s).
	Timeout time.Duration
	Logger  *slog.Logger
	// UserID is only used for audit logging.
	UserID      string
	Metrics     *instrumentation.Metrics
	AuditLogger *instrumentation.AuditLogger
}

// ToolSet is the set of tools advertised by a gateway endpoint, bound to an
// open MCP session.
type ToolSet struct {
	client *mcpclient.Client
	tools  []mcp.Tool
	cfg    ToolSetConfig
	logger *slog.Logger
}

// OpenToolSet connects to endpoint, performs the MCP handshake and lists the
// available tools. The caller must Close the returned ToolSet.
func OpenToolSet(ctx context.Context, endpoint string, cfg ToolSetConfig) (*ToolSet, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("%w: empty endpoint URL", ErrSetup)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.ClientName == "" {
		cfg.ClientName = "calendarassist"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	opts := []transport.StreamableHTTPCOption{
		transport.WithHTTPTimeout(cfg.Timeout),
	}
	if cfg.APIKey != "" {
		opts = append(opts, transport.WithHTTPHeaders(map[string]string{APIKeyHeader: cfg.APIKey}))
	}

	c, err := mcpclient.NewStreamableHttpClient(endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}

	ts := &ToolSet{
		client: c,
		cfg:    cfg,
		logger: logging.WithService(cfg.Logger, "gateway"),
	}

	if err := ts.handshake(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return ts, nil
}

func (ts *ToolSet) handshake(ctx context.Context) error {
	if err := ts.client.Start(ctx); err != nil {
		return &UpstreamError{Message: "failed to start MCP session", Err: err}
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    ts.cfg.ClientName,
		Version: ts.cfg.ClientVersion,
	}
	if _, err := ts.client.Initialize(ctx, initReq); err != nil {
		return &UpstreamError{Message: "MCP initialize failed", Err: err}
	}

	var listReq mcp.ListToolsRequest
	for page := 0; page < maxToolPages; page++ {
		res, err := ts.client.ListTools(ctx, listReq)
		if err != nil {
			return &UpstreamError{Message: "MCP tools/list failed", Err: err}
		}
		ts.tools = append(ts.tools, res.Tools...)
		if res.NextCursor == "" {
			break
		}
		listReq.Params.Cursor = res.NextCursor
	}

	ts.logger.Debug("opened gateway tool set", slog.Int("tools", len(ts.tools)))
	return nil
}

// Tools returns the advertised tools.
func (ts *ToolSet) Tools() []mcp.Tool {
	return ts.tools
}

// Schema returns the JSON schema of a tool's input, suitable for function
// calling. Object schemas always carry a properties member.
func Schema(tool mcp.Tool) (json.RawMessage, error) {
	if len(tool.RawInputSchema) > 0 {
		return tool.RawInputSchema, nil
	}
	in := tool.InputSchema
	schema := map[string]any{
		"type":       in.Type,
		"properties": in.Properties,
	}
	if in.Type == "" {
		schema["type"] = "object"
	}
	if in.Properties == nil {
		schema["properties"] = map[string]any{}
	}
	if len(in.Required) > 0 {
		schema["required"] = in.Required
	}
	return json.Marshal(schema)
}

// Call invokes a tool through the MCP session and returns its text content.
// A tool-level failure (IsError) is returned as an error whose message is the
// tool's own output, so it can be reported back to the model.
func (ts *ToolSet) Call(ctx context.Context, name string, arguments map[string]any) (string, error) {
	ctx, span := instrumentation.StartGatewaySpan(ctx, name)
	defer span.End()

	start := time.Now()
	invocation := instrumentation.NewToolInvocation(name).
		WithUser(ts.cfg.UserID).
		WithService(instrumentation.ServiceGateway, instrumentation.OperationCall).
		WithSpanContext(ctx)

	text, err := ts.call(ctx, name, arguments)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
		invocation.CompleteWithError(err)
	} else {
		instrumentation.SetSpanSuccess(span)
		invocation.CompleteSuccess()
	}
	if ts.cfg.Metrics != nil {
		ts.cfg.Metrics.RecordGatewayToolCall(ctx, name, status, time.Since(start))
	}
	if ts.cfg.AuditLogger != nil {
		ts.cfg.AuditLogger.LogToolInvocation(invocation)
	}
	return text, err
}

func (ts *ToolSet) call(ctx context.Context, name string, arguments map[string]any) (string, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = arguments

	res, err := ts.client.CallTool(ctx, req)
	if err != nil {
		return "", &UpstreamError{Message: fmt.Sprintf("tools/call %s failed", name), Err: err}
	}

	text := contentText(res.Content)
	if res.IsError {
		return "", fmt.Errorf("tool %s reported an error: %s", name, text)
	}
	return text, nil
}

func contentText(content []mcp.Content) string {
	parts := make([]string, 0, len(content))
	for _, c := range content {
		switch tc := c.(type) {
		case mcp.TextContent:
			parts = append(parts, tc.Text)
		case *mcp.TextContent:
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Close terminates the MCP session.
func (ts *ToolSet) Close() error {
	return ts.client.Close()
}
