package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/teemow/calendarassist/internal/assistant"
	"github.com/teemow/calendarassist/internal/calendar"
	"github.com/teemow/calendarassist/internal/instrumentation"
	"github.com/teemow/calendarassist/internal/logging"
	"github.com/teemow/calendarassist/internal/session"
)

// Callback error codes passed to the success page.
const (
	callbackErrMissingUser  = "missing_user"
	callbackErrNotConnected = "not_connected"
	callbackErrFailed       = "callback_failed"
)

type bookingsResponse struct {
	Bookings []calendar.Booking `json:"bookings"`
}

type summarizeRequest struct {
	Booking    *calendar.Booking `json:"booking"`
	Credential string            `json:"credential"`
	APIKey     string            `json:"apiKey"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

type askRequest struct {
	Question   string `json:"question"`
	Credential string `json:"credential"`
	APIKey     string `json:"apiKey"`
}

type usageBody struct {
	PromptTokens     int     `json:"promptTokens"`
	CompletionTokens int     `json:"completionTokens"`
	TotalTokens      int     `json:"totalTokens"`
	EstimatedCost    float64 `json:"estimatedCost"`
}

type askResponse struct {
	Answer string    `json:"answer"`
	Usage  usageBody `json:"usage"`
}

type connectResponse struct {
	RedirectURL string `json:"redirect_url"`
	UserID      string `json:"user_id"`
}

type statusResponse struct {
	Status bool   `json:"status"`
	Error  string `json:"error,omitempty"`
}

type clearResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func userIDFromCookie(r *http.Request) string {
	return session.FromRequest(r).UserID
}

// credential returns whichever of the two accepted key fields is set.
func credential(primary, legacy string) string {
	if strings.TrimSpace(primary) != "" {
		return primary
	}
	return legacy
}

// decodeJSON reads a bounded JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

func (s *Server) upstreamContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.config.UpstreamTimeout)
}

func (s *Server) askContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.config.AskTimeout)
}

// handleBookings serves GET /api/bookings?partition=future|past&limit=N.
// The partition may also be passed as "type".
func (s *Server) handleBookings(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	name := params.Get("partition")
	if name == "" {
		name = params.Get("type")
	}

	partition, err := calendar.ParsePartition(name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := calendar.ParseLimit(params.Get("limit"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := s.upstreamContext(r)
	defer cancel()

	bookings, err := s.deps.Bookings.ListBookings(ctx, calendar.Query{Partition: partition, Limit: limit}, session.FromRequest(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if bookings == nil {
		bookings = []calendar.Booking{}
	}
	writeJSON(w, http.StatusOK, bookingsResponse{Bookings: bookings})
}

// handleSummarize serves POST /api/bookings/summarize.
func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Booking == nil {
		s.writeError(w, r, fmt.Errorf("%w: booking is required", assistant.ErrInvalidInput))
		return
	}

	ctx, cancel := s.askContext(r)
	defer cancel()

	summary, err := s.deps.Assistant.Summarize(ctx, *req.Booking, credential(req.Credential, req.APIKey))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summarizeResponse{Summary: summary})
}

// handleAsk serves POST /api/ask.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := s.askContext(r)
	defer cancel()

	answer, err := s.deps.Assistant.Ask(ctx, assistant.AskRequest{
		Question:   req.Question,
		Credential: credential(req.Credential, req.APIKey),
	}, session.FromRequest(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		Answer: answer.Text,
		Usage: usageBody{
			PromptTokens:     answer.Usage.PromptTokens,
			CompletionTokens: answer.Usage.CompletionTokens,
			TotalTokens:      answer.Usage.Total(),
			EstimatedCost:    answer.Cost,
		},
	})
}

// handleConnect serves GET /api/auth/connect. Every call starts a new
// connection under a freshly generated user id.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.upstreamContext(r)
	defer cancel()

	userID := s.deps.NewUserID()

	if _, err := s.deps.ToolServer.Server(ctx); err != nil {
		s.metrics.RecordConnectionEvent(ctx, instrumentation.ConnectionFailed)
		s.writeError(w, r, err)
		return
	}

	req, err := s.deps.Registry.Initiate(ctx, userID, s.config.AuthConfigID, s.config.CallbackURL())
	if err != nil {
		s.metrics.RecordConnectionEvent(ctx, instrumentation.ConnectionFailed)
		s.writeError(w, r, err)
		return
	}

	s.cookies.SetUserID(w, userID)
	s.cookies.SetPendingRequestID(w, req.ID)
	s.metrics.RecordConnectionEvent(ctx, instrumentation.ConnectionInitiated)
	s.logger.Info("connection initiated", logging.UserHash(userID))

	writeJSON(w, http.StatusOK, connectResponse{RedirectURL: req.RedirectURL, UserID: userID})
}

// handleCallback serves the registry's redirect after consent and stores
// the connected-account handle.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	userID := userIDFromCookie(r)

	if params.Get("status") == "success" {
		if handle := params.Get("connectedAccountId"); handle != "" {
			s.completeConnection(w, r, userID, handle)
			return
		}
	}

	requestID := params.Get("connection_request_id")
	if requestID == "" {
		requestID = params.Get("id")
	}
	if requestID == "" {
		requestID = session.PendingRequestID(r)
	}

	if requestID != "" && userID != "" {
		ctx, cancel := s.upstreamContext(r)
		defer cancel()

		account, err := s.deps.Registry.Resolve(ctx, requestID)
		if err != nil {
			s.logger.Warn("failed to resolve connection request", logging.UserHash(userID), logging.Err(err))
			s.metrics.RecordConnectionEvent(ctx, instrumentation.ConnectionFailed)
			s.redirectCallback(w, r, callbackErrFailed)
			return
		}
		if account.Active() && account.Handle() != "" {
			s.completeConnection(w, r, userID, account.Handle())
			return
		}
		s.metrics.RecordConnectionEvent(ctx, instrumentation.ConnectionPending)
		s.logger.Info("connection not active yet", logging.UserHash(userID), slog.String("status", account.Status))
	}

	if userID == "" {
		s.redirectCallback(w, r, callbackErrMissingUser)
		return
	}
	s.redirectCallback(w, r, callbackErrNotConnected)
}

func (s *Server) completeConnection(w http.ResponseWriter, r *http.Request, userID, handle string) {
	s.cookies.SetConnectionID(w, handle)
	s.cookies.ClearPendingRequestID(w)
	s.metrics.RecordConnectionEvent(r.Context(), instrumentation.ConnectionActive)
	s.logger.Info("connection active", logging.UserHash(userID))

	q := url.Values{}
	q.Set("type", string(calendar.PartitionFuture))
	q.Set("connected", "true")
	http.Redirect(w, r, s.config.SuccessPath+"?"+q.Encode(), http.StatusFound)
}

func (s *Server) redirectCallback(w http.ResponseWriter, r *http.Request, code string) {
	q := url.Values{}
	q.Set("type", string(calendar.PartitionFuture))
	q.Set("error", code)
	http.Redirect(w, r, s.config.SuccessPath+"?"+q.Encode(), http.StatusFound)
}

// handleStatus serves GET /api/auth/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	link := session.FromRequest(r)
	if err := link.Require(); err != nil {
		writeJSON(w, http.StatusUnauthorized, statusResponse{
			Status: false,
			Error:  publicMessage(http.StatusUnauthorized, err),
		})
		return
	}

	ctx, cancel := s.upstreamContext(r)
	defer cancel()

	active, err := s.deps.Registry.Status(ctx, link.UserID)
	if err != nil {
		s.logger.Warn("failed to check connection status", logging.UserHash(link.UserID), logging.Err(err))
		writeJSON(w, http.StatusServiceUnavailable, statusResponse{
			Status: false,
			Error:  "failed to check connection status",
		})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: active})
}

// handleClear serves POST /api/auth/clear.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.cookies.ClearAll(w)
	s.metrics.RecordConnectionEvent(r.Context(), instrumentation.ConnectionCleared)
	writeJSON(w, http.StatusOK, clearResponse{Success: true, Message: "All cookies cleared successfully"})
}
