package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/teemow/calendarassist/internal/gateway"
	"github.com/teemow/calendarassist/internal/logging"
	"github.com/teemow/calendarassist/internal/session"
)

const (
	// ToolListEvents is the gateway tool that lists calendar events.
	ToolListEvents = "GOOGLECALENDAR_EVENTS_LIST"

	// PrimaryCalendar is the calendar id queried for every user.
	PrimaryCalendar = "primary"
)

// EndpointResolver returns the per-user gateway endpoint.
type EndpointResolver interface {
	Endpoint(ctx context.Context, userID string) (string, error)
}

// ToolInvoker performs one tools/call against a gateway endpoint.
type ToolInvoker interface {
	Call(ctx context.Context, call gateway.ToolCall) (*gateway.Envelope, error)
}

// Config configures a Service.
type Config struct {
	Endpoints EndpointResolver
	Invoker   ToolInvoker
	// Location renders booking times. Defaults to time.Local.
	Location *time.Location
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Service runs the event query pipeline.
type Service struct {
	endpoints EndpointResolver
	invoker   ToolInvoker
	location  *time.Location
	now       func() time.Time
	logger    *slog.Logger
}

// NewService creates a Service.
func NewService(cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		endpoints: cfg.Endpoints,
		invoker:   cfg.Invoker,
		location:  cfg.Location,
		now:       cfg.Now,
		logger:    logging.WithOperation(cfg.Logger, "list_bookings"),
	}
}

// ListBookings returns up to q.Limit bookings on the requested side of now.
// An invalid query or linkage fails before any network call.
func (s *Service) ListBookings(ctx context.Context, q Query, link session.Linkage) ([]Booking, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := link.Require(); err != nil {
		return nil, err
	}

	now := s.now()
	window := WindowFor(q.Partition, now)

	endpoint, err := s.endpoints.Endpoint(ctx, link.UserID)
	if err != nil {
		return nil, err
	}

	env, err := s.invoker.Call(ctx, gateway.ToolCall{
		Endpoint:  endpoint,
		Name:      ToolListEvents,
		Arguments: ListArguments(window, FetchSize(q.Limit), link.ConnectionID),
		UserID:    link.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar events: %w", err)
	}

	events, shape := ExtractEvents(env.Payload())
	selected := Select(events, q.Partition, q.Limit, now)

	bookings := make([]Booking, 0, len(selected))
	for _, ev := range selected {
		bookings = append(bookings, NewBooking(ev, s.location))
	}

	s.logger.Debug("listed bookings",
		logging.Partition(string(q.Partition)),
		logging.UserHash(link.UserID),
		slog.String("shape", string(shape)),
		slog.Int("received", len(events)),
		slog.Int("returned", len(bookings)))

	return bookings, nil
}

// ListArguments builds the tool arguments for a window.
func ListArguments(w Window, maxResults int, connectionID string) map[string]any {
	return map[string]any{
		"calendarId":         PrimaryCalendar,
		"timeMin":            w.Min.UTC().Format(time.RFC3339),
		"timeMax":            w.Max.UTC().Format(time.RFC3339),
		"maxResults":         maxResults,
		"orderBy":            "startTime",
		"singleEvents":       true,
		"connectedAccountId": connectionID,
	}
}
