package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/teemow/calendarassist/internal/assistant"
	"github.com/teemow/calendarassist/internal/calendar"
	"github.com/teemow/calendarassist/internal/composio"
	"github.com/teemow/calendarassist/internal/gateway"
	"github.com/teemow/calendarassist/internal/llm"
	"github.com/teemow/calendarassist/internal/logging"
	"github.com/teemow/calendarassist/internal/session"
)

// errBadRequest marks request bodies that could not be decoded.
var errBadRequest = errors.New("bad request")

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type tokenCounts struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

type costErrorBody struct {
	Error  string      `json:"error"`
	Cost   float64     `json:"cost"`
	Tokens tokenCounts `json:"tokens"`
}

// writeJSON writes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a domain error to an HTTP status code.
func statusFor(err error) int {
	var (
		costErr     *assistant.CostExceededError
		upstreamErr *gateway.UpstreamError
		malformed   *gateway.MalformedResponseError
		registryErr *composio.APIError
		providerErr *llm.ProviderError
	)

	switch {
	case errors.Is(err, session.ErrNotConnected):
		return http.StatusUnauthorized
	case errors.Is(err, calendar.ErrInvalidQuery),
		errors.Is(err, assistant.ErrInvalidInput),
		errors.Is(err, errBadRequest),
		errors.As(err, &costErr):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, gateway.ErrSetup),
		errors.Is(err, assistant.ErrEmptyGeneration):
		return http.StatusInternalServerError
	case errors.As(err, &upstreamErr),
		errors.As(err, &malformed),
		errors.As(err, &registryErr),
		errors.As(err, &providerErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage returns the message shown to clients. Internal failures are
// replaced with a generic text; upstream failures get their cause in details.
func publicMessage(status int, err error) string {
	switch status {
	case http.StatusUnauthorized:
		return "Not connected. Please connect your Google Calendar first."
	case http.StatusBadRequest:
		return err.Error()
	case http.StatusGatewayTimeout:
		return "upstream request timed out"
	case http.StatusBadGateway:
		return "upstream service failed"
	default:
		return "internal server error"
	}
}

// writeError logs err and writes the mapped JSON error response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	var costErr *assistant.CostExceededError
	if errors.As(err, &costErr) {
		s.logger.Info("answer rejected by cost guard",
			slog.String("path", r.URL.Path),
			slog.Float64("cost", costErr.Cost),
			slog.Int("prompt_tokens", costErr.Usage.PromptTokens),
			slog.Int("completion_tokens", costErr.Usage.CompletionTokens))
		writeJSON(w, status, costErrorBody{
			Error: costErr.Error(),
			Cost:  costErr.Cost,
			Tokens: tokenCounts{
				PromptTokens:     costErr.Usage.PromptTokens,
				CompletionTokens: costErr.Usage.CompletionTokens,
			},
		})
		return
	}

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "request failed",
		slog.String("path", r.URL.Path),
		logging.Status(http.StatusText(status)),
		logging.Err(err))

	writeJSON(w, status, errorBody{Error: publicMessage(status, err), Details: upstreamDetails(err)})
}

// maxDetailsLen bounds the upstream text relayed in an error body.
const maxDetailsLen = 1000

// upstreamDetails returns what an upstream collaborator said about a failure:
// the gateway's HTTP status and body or JSON-RPC message, the platform's
// status and message, or the language model provider's message.
func upstreamDetails(err error) string {
	var (
		upstreamErr *gateway.UpstreamError
		malformed   *gateway.MalformedResponseError
		registryErr *composio.APIError
		providerErr *llm.ProviderError
		details     string
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ""
	case errors.As(err, &upstreamErr):
		details = upstreamErr.Detail()
	case errors.As(err, &malformed):
		details = "the tool gateway returned a response that could not be parsed"
	case errors.As(err, &registryErr):
		details = registryErr.Message
		if details == "" {
			details = registryErr.Body
		}
		details = fmt.Sprintf("%d %s: %s", registryErr.StatusCode, http.StatusText(registryErr.StatusCode), details)
	case errors.As(err, &providerErr):
		details = providerErr.Message
	}
	if len(details) > maxDetailsLen {
		details = details[:maxDetailsLen]
	}
	return details
}
