package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/calendarassist/internal/instrumentation"
	"github.com/teemow/calendarassist/internal/logging"
	"github.com/teemow/calendarassist/internal/server"
)

const startupTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	var cfg serveConfig

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the calendar assistant HTTP API.

Routes:
  GET  /api/bookings            bookings before or after now (partition, limit)
  POST /api/bookings/summarize  short summary of one booking
  POST /api/ask                 answer a question about the calendar
  GET  /api/auth/connect        start the Google Calendar connection
  GET  /api/auth/callback       finish the connection
  GET  /api/auth/status         connection status
  POST /api/auth/clear          forget the connection

Required configuration:
  --composio-api-key or COMPOSIO_API_KEY
  --auth-config-id or COMPOSIO_AUTH_CONFIG_ID

The language model API key is supplied per request by the caller.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyEnv(cmd, appEnvBindings); err != nil {
				return err
			}
			if err := applyEnv(cmd, serveEnvBindings); err != nil {
				return err
			}
			if err := cfg.validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	addServeFlags(cmd, &cfg)
	return cmd
}

func runServe(parent context.Context, cfg serveConfig) error {
	if parent == nil {
		parent = context.Background()
	}
	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := logging.NewLogger(os.Stderr, cfg.Debug, cfg.LogFormat)
	slog.SetDefault(logger)

	// Initialize instrumentation provider
	instrConfig, err := instrumentation.LoadConfig(os.LookupEnv)
	if err != nil {
		return fmt.Errorf("invalid instrumentation config: %w", err)
	}
	instrConfig.ServiceVersion = version
	if err := instrConfig.Validate(); err != nil {
		return fmt.Errorf("invalid instrumentation config: %w", err)
	}

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error during instrumentation shutdown", logging.Err(err))
		}
	}()

	obs := observability{
		logger:  logger,
		metrics: provider.Metrics(),
		audit:   instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging),
	}

	svc, err := newServices(cfg.appConfig, obs)
	if err != nil {
		return err
	}
	asst, err := newAssistant(cfg, svc, obs)
	if err != nil {
		return err
	}

	// Start metrics server if enabled
	var metricsServer *server.MetricsServer
	if cfg.MetricsEnabled && provider.Enabled() && instrConfig.MetricsExporter == instrumentation.ExporterPrometheus {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.MetricsAddr,
			Enabled:                 true,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		if err := startInBackground(metricsServer.StartWithReadySignal); err != nil {
			return fmt.Errorf("metrics server failed to start: %w", err)
		}
		logger.Info("metrics server started", slog.String("addr", metricsServer.ListenAddr()))
	}

	srv, err := server.New(ctx, cfg.serverConfig(), server.Dependencies{
		Bookings:   svc.bookings,
		Assistant:  asst,
		Registry:   svc.registry,
		ToolServer: svc.servers,
		Metrics:    obs.metrics,
		Logger:     logger,
		Version:    version,
	})
	if err != nil {
		return err
	}

	serverDone := make(chan error, 1)
	ready := make(chan struct{})
	go func() {
		serverDone <- srv.StartWithReadySignal(ready)
	}()

	select {
	case <-ready:
		logger.Info("calendar assistant ready",
			slog.String("addr", srv.ListenAddr()),
			slog.Bool("secure_cookies", cfg.production()),
			logging.Credential(cfg.ComposioAPIKey))
	case err := <-serverDone:
		return fmt.Errorf("HTTP server failed to start: %w", err)
	case <-time.After(startupTimeout):
		return errors.New("HTTP server startup timed out")
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverDone:
		if err != nil {
			runErr = fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("error shutting down HTTP server: %w", err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("error shutting down metrics server: %w", err))
		}
	}

	if runErr == nil {
		logger.Info("HTTP server gracefully stopped")
	}
	return runErr
}

// startInBackground runs start in a goroutine and waits until it signals
// readiness or fails.
func startInBackground(start func(ready chan<- struct{}) error) error {
	ready := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		if err := start(ready); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ready:
		return nil
	case err := <-errCh:
		if err == nil {
			return errors.New("server stopped before it was ready")
		}
		return err
	case <-time.After(startupTimeout):
		return errors.New("startup timed out")
	}
}
