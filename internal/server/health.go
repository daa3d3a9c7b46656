package server

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Health status constants for health check responses.
const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
	healthStatusFailing      = "failing"
)

// checkTimeout bounds each dependency check.
const checkTimeout = 5 * time.Second

// CheckFunc reports whether a dependency is usable.
type CheckFunc func(ctx context.Context) error

type namedCheck struct {
	name  string
	check CheckFunc
}

// HealthChecker provides health check endpoints for Kubernetes probes.
type HealthChecker struct {
	// ready indicates whether the server is ready to receive traffic
	ready atomic.Bool
	// serverContext reports shutdown
	serverContext *ServerContext
	// startTime tracks when the server started
	startTime time.Time
	version   string

	mu     sync.RWMutex
	checks []namedCheck
}

// NewHealthChecker creates a new HealthChecker.
func NewHealthChecker(sc *ServerContext, version string) *HealthChecker {
	h := &HealthChecker{
		serverContext: sc,
		startTime:     time.Now(),
		version:       version,
	}
	// Server starts as ready by default
	h.ready.Store(true)
	return h
}

// AddCheck registers a dependency check run by the readiness and detailed
// endpoints.
func (h *HealthChecker) AddCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, namedCheck{name: name, check: check})
}

// SetReady sets the readiness state of the server.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady returns whether the server is ready to receive traffic.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// isServerShuttingDown checks if the server context is shutting down.
// Returns false if serverContext is nil (safe for testing).
func (h *HealthChecker) isServerShuttingDown() bool {
	return h.serverContext != nil && h.serverContext.IsShutdown()
}

// HealthResponse represents the JSON response for health endpoints.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse provides comprehensive health information.
type DetailedHealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Uptime  string            `json:"uptime"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// evaluate runs the state and dependency checks. The boolean is false when
// any of them failed.
func (h *HealthChecker) evaluate(ctx context.Context) (string, map[string]string, bool) {
	checks := make(map[string]string)
	status := healthStatusOK
	ok := true

	if h.ready.Load() {
		checks["ready"] = healthStatusOK
	} else {
		checks["ready"] = healthStatusNotReady
		status = healthStatusNotReady
		ok = false
	}

	if h.isServerShuttingDown() {
		checks["shutdown"] = healthStatusShuttingDown
		status = healthStatusShuttingDown
		ok = false
	} else {
		checks["shutdown"] = healthStatusOK
	}

	h.mu.RLock()
	registered := append([]namedCheck(nil), h.checks...)
	h.mu.RUnlock()
	sort.Slice(registered, func(i, j int) bool { return registered[i].name < registered[j].name })

	for _, c := range registered {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.check(checkCtx)
		cancel()
		if err != nil {
			checks[c.name] = healthStatusFailing
			if ok {
				status = healthStatusNotReady
			}
			ok = false
			continue
		}
		checks[c.name] = healthStatusOK
	}
	return status, checks, ok
}

// LivenessHandler returns an HTTP handler for the /healthz endpoint.
// Liveness only says the process is running; dependencies are not checked.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler returns an HTTP handler for the /readyz endpoint.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status, checks, ok := h.evaluate(r.Context())
		code := http.StatusOK
		if !ok {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, HealthResponse{Status: status, Checks: checks})
	})
}

// DetailedHealthHandler returns an HTTP handler for the /healthz/detailed
// endpoint with version and uptime.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status, checks, ok := h.evaluate(r.Context())
		code := http.StatusOK
		if !ok {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, DetailedHealthResponse{
			Status:  status,
			Version: h.version,
			Uptime:  time.Since(h.startTime).Truncate(time.Second).String(),
			Checks:  checks,
		})
	})
}

// RegisterHealthEndpoints registers health check endpoints on the given mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("GET /healthz", h.LivenessHandler())
	mux.Handle("GET /readyz", h.ReadinessHandler())
	mux.Handle("GET /healthz/detailed", h.DetailedHealthHandler())
}
