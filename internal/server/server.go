package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/calendarassist/internal/assistant"
	"github.com/teemow/calendarassist/internal/calendar"
	"github.com/teemow/calendarassist/internal/composio"
	"github.com/teemow/calendarassist/internal/instrumentation"
	"github.com/teemow/calendarassist/internal/logging"
	"github.com/teemow/calendarassist/internal/session"
)

// BookingLister runs the event query pipeline.
type BookingLister interface {
	ListBookings(ctx context.Context, q calendar.Query, link session.Linkage) ([]calendar.Booking, error)
}

// Assistant answers questions and summarizes bookings.
type Assistant interface {
	Ask(ctx context.Context, req assistant.AskRequest, link session.Linkage) (*assistant.Answer, error)
	Summarize(ctx context.Context, booking calendar.Booking, credential string) (string, error)
}

// Registry is the connection registry used by the auth routes.
type Registry interface {
	Initiate(ctx context.Context, userID, authConfigID, callbackURL string) (*composio.ConnectionRequest, error)
	Resolve(ctx context.Context, requestID string) (*composio.Account, error)
	Status(ctx context.Context, userID string) (bool, error)
}

// ToolServer returns the tool-server descriptor, creating it if needed.
type ToolServer interface {
	Server(ctx context.Context) (*composio.Server, error)
}

// Dependencies are the services the HTTP handlers delegate to.
type Dependencies struct {
	Bookings   BookingLister
	Assistant  Assistant
	Registry   Registry
	ToolServer ToolServer

	Metrics *instrumentation.Metrics
	Logger  *slog.Logger

	// NewUserID generates the opaque id for a new connection. Defaults to
	// uuid.NewString.
	NewUserID func() string

	// Version is reported on the detailed health endpoint.
	Version string
}

// Server is the calendar assistant HTTP API.
type Server struct {
	config  Config
	deps    Dependencies
	cookies session.CookieWriter
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	serverContext *ServerContext
	health        *HealthChecker
	limiter       *RateLimiter
	stopCleanup   chan struct{}

	httpServer *http.Server
	listenAddr string
}

// New creates a Server. The context bounds the server's lifetime; in-flight
// requests are cancelled when it ends or Shutdown is called.
func New(ctx context.Context, cfg Config, deps Dependencies) (*Server, error) {
	if deps.Bookings == nil || deps.Assistant == nil || deps.Registry == nil || deps.ToolServer == nil {
		return nil, errors.New("bookings, assistant, registry and tool server dependencies are required")
	}
	cfg = cfg.withDefaults()

	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = &instrumentation.Metrics{}
	}
	if deps.NewUserID == nil {
		deps.NewUserID = uuid.NewString
	}

	sc := NewServerContext(ctx)
	s := &Server{
		config:        cfg,
		deps:          deps,
		cookies:       session.CookieWriter{Secure: cfg.Secure},
		logger:        logging.WithService(deps.Logger, "http"),
		metrics:       deps.Metrics,
		serverContext: sc,
		health:        NewHealthChecker(sc, deps.Version),
		stopCleanup:   make(chan struct{}),
	}
	s.health.AddCheck("tool_server", func(ctx context.Context) error {
		_, err := deps.ToolServer.Server(ctx)
		return err
	})

	if cfg.RateLimitRPS > 0 {
		s.limiter = NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.TrustProxy)
		go s.limiter.RunCleanup(s.stopCleanup)
	}
	return s, nil
}

// Handler returns the root handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/bookings", s.handleBookings)
	api.HandleFunc("POST /api/bookings/summarize", s.handleSummarize)
	api.HandleFunc("POST /api/ask", s.handleAsk)
	api.HandleFunc("GET /api/auth/connect", s.handleConnect)
	api.HandleFunc("GET "+CallbackPath, s.handleCallback)
	api.HandleFunc("GET /api/auth/status", s.handleStatus)
	api.HandleFunc("POST /api/auth/clear", s.handleClear)

	var apiHandler http.Handler = api
	if s.limiter != nil {
		apiHandler = s.limiter.Middleware(api)
	}

	root := http.NewServeMux()
	root.Handle("/api/", apiHandler)
	s.health.RegisterHealthEndpoints(root)

	return securityHeaders(s.config.Secure, s.instrument(root))
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	return s.StartWithReadySignal(nil)
}

// StartWithReadySignal binds the listener, closes ready (when non-nil) once
// the port is open, and then serves until Shutdown.
func (s *Server) StartWithReadySignal(ready chan<- struct{}) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listenAddr = ln.Addr().String()

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Ask requests may run a multi-round tool loop.
		WriteTimeout: s.config.AskTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return s.serverContext.Context()
		},
	}

	s.logger.Info("starting HTTP server", slog.String("addr", s.listenAddr))
	if ready != nil {
		close(ready)
	}
	err = s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown marks the server not ready, stops accepting requests and waits
// for in-flight ones until ctx ends. Remaining requests are then cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)

	select {
	case <-s.stopCleanup:
	default:
		close(s.stopCleanup)
	}

	var err error
	if s.httpServer != nil {
		s.logger.Info("shutting down HTTP server")
		err = s.httpServer.Shutdown(ctx)
	}
	if serr := s.serverContext.Shutdown(); serr != nil {
		err = errors.Join(err, serr)
	}
	return err
}

// ListenAddr returns the bound address once started.
func (s *Server) ListenAddr() string {
	return s.listenAddr
}
