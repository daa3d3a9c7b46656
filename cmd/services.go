package cmd

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/teemow/calendarassist/internal/assistant"
	"github.com/teemow/calendarassist/internal/calendar"
	"github.com/teemow/calendarassist/internal/composio"
	"github.com/teemow/calendarassist/internal/gateway"
	"github.com/teemow/calendarassist/internal/instrumentation"
	"github.com/teemow/calendarassist/internal/llm"
)

// services are the domain components wired from configuration.
type services struct {
	registry  *composio.Client
	servers   *composio.ServerResolver
	endpoints *composio.EndpointResolver
	bookings  *calendar.Service
}

type observability struct {
	logger  *slog.Logger
	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger
}

// newServices wires the registry, gateway and bookings pipeline. The
// endpoint resolver is shared by the bookings and question answering paths.
func newServices(cfg appConfig, obs observability) (*services, error) {
	loc, err := cfg.location()
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.UpstreamTimeout}

	registry := composio.NewClient(composio.Config{
		APIKey:     cfg.ComposioAPIKey,
		BaseURL:    cfg.ComposioBaseURL,
		HTTPClient: httpClient,
		Logger:     obs.logger,
		Metrics:    obs.metrics,
	})

	servers := composio.NewServerResolver(registry, composio.ServerConfig{
		Name:          cfg.ServerName,
		AuthConfigIDs: []string{cfg.AuthConfigID},
		AllowedTools:  []string{calendar.ToolListEvents},
	})
	endpoints := composio.NewEndpointResolver(servers, registry)

	invoker := gateway.NewInvoker(gateway.InvokerConfig{
		HTTPClient:  httpClient,
		APIKey:      cfg.ComposioAPIKey,
		Logger:      obs.logger,
		Metrics:     obs.metrics,
		AuditLogger: obs.audit,
	})

	bookings := calendar.NewService(calendar.Config{
		Endpoints: endpoints,
		Invoker:   invoker,
		Location:  loc,
		Logger:    obs.logger,
	})

	return &services{
		registry:  registry,
		servers:   servers,
		endpoints: endpoints,
		bookings:  bookings,
	}, nil
}

// newAssistant wires the language model client and the question answering
// service on top of the shared endpoint resolver.
func newAssistant(cfg serveConfig, svc *services, obs observability) (*assistant.Service, error) {
	// "today" in prompts is UTC unless a display time zone is configured.
	var today *time.Location
	if cfg.DisplayTimezone != "" {
		loc, err := cfg.location()
		if err != nil {
			return nil, err
		}
		today = loc
	}

	generator := llm.NewClient(llm.Config{
		BaseURL:    cfg.OpenAIBaseURL,
		HTTPClient: &http.Client{Timeout: cfg.AskTimeout},
		Logger:     obs.logger,
		Metrics:    obs.metrics,
	})

	openTools := func(ctx context.Context, endpoint, userID string) (assistant.ToolSession, error) {
		return gateway.OpenToolSet(ctx, endpoint, gateway.ToolSetConfig{
			APIKey:        cfg.ComposioAPIKey,
			ClientName:    "calendarassist",
			ClientVersion: version,
			Timeout:       cfg.UpstreamTimeout,
			Logger:        obs.logger,
			UserID:        userID,
			Metrics:       obs.metrics,
			AuditLogger:   obs.audit,
		})
	}

	return assistant.NewService(assistant.Config{
		Generator:    generator,
		Endpoints:    svc.endpoints,
		OpenTools:    openTools,
		AskModel:     cfg.AskModel,
		SummaryModel: cfg.SummaryModel,
		Location:     today,
		Now:          time.Now,
		Logger:       obs.logger,
		Metrics:      obs.metrics,
	}), nil
}
