package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/teemow/calendarassist/internal/instrumentation"
	"github.com/teemow/calendarassist/internal/llm"
	"github.com/teemow/calendarassist/internal/logging"
)

const (
	// DefaultAskModel answers calendar questions.
	DefaultAskModel = openai.GPT4oMini
	// DefaultSummaryModel writes booking summaries.
	DefaultSummaryModel = openai.GPT3Dot5Turbo

	// DefaultCostLimitUnits is $0.30 in llm cost units.
	DefaultCostLimitUnits int64 = 30 * llm.CostUnitsPerDollar / 100
)

// Generator runs a language model generation.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// EndpointResolver returns the per-user gateway endpoint.
type EndpointResolver interface {
	Endpoint(ctx context.Context, userID string) (string, error)
}

// ToolSession is an open gateway session whose tools the model may call.
type ToolSession interface {
	llm.ToolCaller
	Close() error
}

// ToolSessionOpener opens a gateway session at endpoint on behalf of userID.
type ToolSessionOpener func(ctx context.Context, endpoint, userID string) (ToolSession, error)

// Config configures a Service.
type Config struct {
	Generator Generator
	Endpoints EndpointResolver
	OpenTools ToolSessionOpener

	// AskModel and SummaryModel default to DefaultAskModel and DefaultSummaryModel.
	AskModel     string
	SummaryModel string
	// AskPricing is the price the cost guard applies. It defaults to
	// llm.PricingGPT4oMini whatever AskModel is, so an unknown model name
	// never zeroes the guard.
	AskPricing *llm.Pricing
	// CostLimitUnits defaults to DefaultCostLimitUnits.
	CostLimitUnits int64

	// Location decides "today". Defaults to UTC.
	Location *time.Location
	Now      func() time.Time
	Logger   *slog.Logger
	Metrics  *instrumentation.Metrics
}

// Service runs the question answering and summary paths.
type Service struct {
	generator    Generator
	endpoints    EndpointResolver
	openTools    ToolSessionOpener
	askModel     string
	summaryModel string
	pricing      llm.Pricing
	limitUnits   int64
	location     *time.Location
	now          func() time.Time
	logger       *slog.Logger
	metrics      *instrumentation.Metrics
}

// NewService creates a Service.
func NewService(cfg Config) *Service {
	if cfg.AskModel == "" {
		cfg.AskModel = DefaultAskModel
	}
	if cfg.SummaryModel == "" {
		cfg.SummaryModel = DefaultSummaryModel
	}
	pricing := llm.PricingGPT4oMini
	if cfg.AskPricing != nil {
		pricing = *cfg.AskPricing
	}
	if cfg.CostLimitUnits <= 0 {
		cfg.CostLimitUnits = DefaultCostLimitUnits
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if _, known := llm.LookupPricing(cfg.AskModel); !known && cfg.AskPricing == nil {
		cfg.Logger.Warn("no price list for ask model, cost guard uses gpt-4o-mini prices",
			slog.String("model", cfg.AskModel))
	}
	return &Service{
		generator:    cfg.Generator,
		endpoints:    cfg.Endpoints,
		openTools:    cfg.OpenTools,
		askModel:     cfg.AskModel,
		summaryModel: cfg.SummaryModel,
		pricing:      pricing,
		limitUnits:   cfg.CostLimitUnits,
		location:     cfg.Location,
		now:          cfg.Now,
		logger:       logging.WithService(cfg.Logger, "assistant"),
		metrics:      cfg.Metrics,
	}
}

func (s *Service) today() string {
	return s.now().In(s.location).Format(time.DateOnly)
}

func requireField(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidInput, name)
	}
	return value, nil
}

// exceedsLimit applies the cost guard. The boundary itself is allowed.
func (s *Service) exceedsLimit(usage llm.Usage) bool {
	return s.pricing.CostUnits(usage) > s.limitUnits
}

func (s *Service) costExceeded(ctx context.Context, usage llm.Usage) *CostExceededError {
	if s.metrics != nil {
		s.metrics.RecordCostRejection(ctx, s.askModel)
	}
	return &CostExceededError{
		Cost:  s.pricing.Cost(usage),
		Limit: float64(s.limitUnits) / llm.CostUnitsPerDollar,
		Usage: usage,
	}
}

func logAttrsForUsage(usage llm.Usage, cost float64) []any {
	return []any{
		slog.Int("prompt_tokens", usage.PromptTokens),
		slog.Int("completion_tokens", usage.CompletionTokens),
		slog.Float64("cost_usd", cost),
	}
}

var _ Generator = (*llm.Client)(nil)
