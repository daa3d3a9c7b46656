package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/teemow/calendarassist/internal/instrumentation"
	"github.com/teemow/calendarassist/internal/llm"
	"github.com/teemow/calendarassist/internal/logging"
	"github.com/teemow/calendarassist/internal/session"
)

const askInstructions = `You are a helpful AI assistant that answers questions about the user's Google Calendar.
You have access to calendar tools that you can use to fetch events.
Always use the current date when querying calendar events. Today's date is: %s.
When answering questions, be concise and helpful. If you don't have information, say so.`

// AskRequest is a question about the user's calendar.
type AskRequest struct {
	Question   string
	Credential string
}

// Answer is a generated answer with its token usage and estimated cost.
type Answer struct {
	Text  string
	Usage llm.Usage
	Cost  float64
}

// Ask answers a question with the gateway tools available to the model.
// Inputs and linkage are checked before any network call.
func (s *Service) Ask(ctx context.Context, req AskRequest, link session.Linkage) (*Answer, error) {
	question, err := requireField("question", req.Question)
	if err != nil {
		return nil, err
	}
	credential, err := requireField("credential", req.Credential)
	if err != nil {
		return nil, err
	}
	if err := link.Require(); err != nil {
		return nil, err
	}

	endpoint, err := s.endpoints.Endpoint(ctx, link.UserID)
	if err != nil {
		return nil, err
	}

	toolSession, err := s.openTools(ctx, endpoint, link.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to open tool session: %w", err)
	}
	defer func() {
		if cerr := toolSession.Close(); cerr != nil {
			s.logger.Debug("failed to close tool session", logging.Err(cerr))
		}
	}()

	tools, err := llm.FromToolSet(toolSession)
	if err != nil {
		return nil, err
	}

	today := s.today()
	resp, genErr := s.generator.Generate(ctx, llm.Request{
		Model:      s.askModel,
		Credential: credential,
		System:     fmt.Sprintf(askInstructions, today),
		Prompt:     fmt.Sprintf("%s Today is %s.", question, today),
		Tools:      tools,
		Operation:  instrumentation.OperationAsk,
	})

	// Spend is accounted for even when the generation failed afterwards.
	if resp != nil && s.exceedsLimit(resp.Usage) {
		rejected := s.costExceeded(ctx, resp.Usage)
		s.logger.Warn("answer discarded by cost guard",
			append([]any{logging.UserHash(link.UserID)}, logAttrsForUsage(resp.Usage, rejected.Cost)...)...)
		return nil, rejected
	}
	if genErr != nil {
		if errors.Is(genErr, llm.ErrToolRoundsExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrEmptyGeneration, genErr)
		}
		return nil, genErr
	}

	if resp == nil {
		return nil, ErrEmptyGeneration
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, ErrEmptyGeneration
	}

	cost := s.pricing.Cost(resp.Usage)
	s.logger.Info("answered question",
		append([]any{logging.UserHash(link.UserID)}, logAttrsForUsage(resp.Usage, cost)...)...)

	return &Answer{Text: text, Usage: resp.Usage, Cost: cost}, nil
}
