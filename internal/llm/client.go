package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/teemow/calendarassist/internal/instrumentation"
	"github.com/teemow/calendarassist/internal/logging"
)

// DefaultMaxToolRounds bounds how many times the model may call tools
// before it must answer.
const DefaultMaxToolRounds = 8

// ErrToolRoundsExceeded is returned when the model keeps calling tools.
var ErrToolRoundsExceeded = errors.New("model did not answer within the tool call limit")

// ProviderError is a failed call to the model API.
type ProviderError struct {
	// StatusCode is the HTTP status, 0 for transport failures.
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("language model request failed with HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("language model request failed: %s", e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func providerError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error(), Err: err}
	}
	return &ProviderError{Message: err.Error(), Err: err}
}

// Config configures a Client.
type Config struct {
	// BaseURL overrides the API endpoint (OpenAI-compatible servers, tests).
	BaseURL    string
	HTTPClient *http.Client
	// MaxToolRounds defaults to DefaultMaxToolRounds.
	MaxToolRounds int
	Logger        *slog.Logger
	Metrics       *instrumentation.Metrics
}

// Client creates chat completions.
type Client struct {
	cfg    Config
	logger *slog.Logger
}

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = DefaultMaxToolRounds
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		logger: logging.WithService(cfg.Logger, instrumentation.ServiceLLM),
	}
}

// Request is one generation.
type Request struct {
	Model      string
	Credential string
	System     string
	Prompt     string
	Tools      []Tool
	MaxTokens  int
	// Temperature is sent only when non-zero.
	Temperature float32
	// Operation labels metrics and spans (ask, summarize).
	Operation string
}

// Response is the outcome of a generation.
type Response struct {
	Text  string
	Usage Usage
	// Rounds is the number of completions requested.
	Rounds int
}

func (c *Client) api(credential string) *openai.Client {
	conf := openai.DefaultConfig(credential)
	if c.cfg.BaseURL != "" {
		conf.BaseURL = c.cfg.BaseURL
	}
	if c.cfg.HTTPClient != nil {
		conf.HTTPClient = c.cfg.HTTPClient
	}
	return openai.NewClientWithConfig(conf)
}

// Generate runs the completion loop. The returned Response is non-nil
// whenever at least one completion succeeded, even when an error is also
// returned, so callers can account for tokens already spent.
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, span := instrumentation.StartLLMSpan(ctx, req.Model, req.Operation)
	defer span.End()
	start := time.Now()

	resp, err := c.generate(ctx, req)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	if resp != nil {
		pricing := PricingFor(req.Model)
		cost := pricing.Cost(resp.Usage)
		instrumentation.SetLLMUsage(span, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, cost)
		if c.cfg.Metrics != nil {
			c.cfg.Metrics.RecordLLMUsage(ctx, req.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, cost)
		}
	}
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.RecordLLMRequest(ctx, req.Model, req.Operation, status, time.Since(start))
	}
	return resp, err
}

func (c *Client) generate(ctx context.Context, req Request) (*Response, error) {
	api := c.api(req.Credential)
	logger := c.logger.With(logging.Model(req.Model), logging.Operation(req.Operation))

	tools, byName, err := functionTools(req.Tools)
	if err != nil {
		return nil, err
	}

	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	var out *Response
	for round := 0; ; round++ {
		completion, err := api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       req.Model,
			Messages:    messages,
			Tools:       tools,
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		})
		if err != nil {
			return out, providerError(err)
		}
		if out == nil {
			out = &Response{}
		}
		out.Rounds++
		out.Usage.Add(Usage{
			PromptTokens:     completion.Usage.PromptTokens,
			CompletionTokens: completion.Usage.CompletionTokens,
		})

		if len(completion.Choices) == 0 {
			return out, nil
		}
		msg := completion.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			out.Text = msg.Content
			return out, nil
		}
		if round >= c.cfg.MaxToolRounds {
			out.Text = msg.Content
			return out, ErrToolRoundsExceeded
		}

		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			result := runTool(ctx, byName, call)
			logger.Debug("model called tool",
				logging.Tool(call.Function.Name),
				slog.Int("round", round+1))
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result,
				Name:       call.Function.Name,
				ToolCallID: call.ID,
			})
		}
	}
}

// runTool executes one tool call. Failures are reported to the model as the
// tool's output rather than aborting the generation.
func runTool(ctx context.Context, byName map[string]Tool, call openai.ToolCall) string {
	tool, ok := byName[call.Function.Name]
	if !ok {
		return fmt.Sprintf("error: unknown tool %q", call.Function.Name)
	}

	args := map[string]any{}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return fmt.Sprintf("error: invalid arguments for %s: %v", tool.Name, err)
		}
	}

	result, err := tool.Call(ctx, args)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Sprintf("error: %v", ctx.Err())
		}
		return fmt.Sprintf("error: %v", err)
	}
	return result
}
