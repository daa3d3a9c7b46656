package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/teemow/calendarassist/internal/calendar"
	"github.com/teemow/calendarassist/internal/instrumentation"
	"github.com/teemow/calendarassist/internal/llm"
)

const (
	summaryInstructions = "You are a helpful assistant that generates brief, professional meeting summaries based on available metadata."

	summaryPrompt = `Based on this meeting information, generate a brief, professional summary (2-3 sentences) of what might have been discussed:

Meeting Title: %s
Attendees: %s
Duration: %s
Description: %s

Generate a plausible summary of what was likely discussed in this meeting. Be concise and professional.`

	summaryMaxTokens   = 150
	summaryTemperature = 0.7
)

// SummaryPrompt renders the user prompt for a booking.
func SummaryPrompt(b calendar.Booking) string {
	attendees := strings.Join(b.Attendees, ", ")
	if attendees == "" {
		attendees = "Not specified"
	}
	description := b.Description
	if description == "" {
		description = "No description provided"
	}
	return fmt.Sprintf(summaryPrompt, b.Title, attendees, b.Duration, description)
}

// Summarize writes a short narrative for one booking. It needs no linkage:
// the booking snapshot is supplied by the caller.
func (s *Service) Summarize(ctx context.Context, booking calendar.Booking, credential string) (string, error) {
	credential, err := requireField("credential", credential)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(booking.Title) == "" {
		return "", fmt.Errorf("%w: booking is required", ErrInvalidInput)
	}

	resp, err := s.generator.Generate(ctx, llm.Request{
		Model:       s.summaryModel,
		Credential:  credential,
		System:      summaryInstructions,
		Prompt:      SummaryPrompt(booking),
		MaxTokens:   summaryMaxTokens,
		Temperature: summaryTemperature,
		Operation:   instrumentation.OperationSummarize,
	})
	if err != nil {
		return "", err
	}

	if resp == nil {
		return "", ErrEmptyGeneration
	}
	summary := strings.TrimSpace(resp.Text)
	if summary == "" {
		return "", ErrEmptyGeneration
	}
	return summary, nil
}
