// Package server provides the HTTP API of the calendar assistant.
//
// # Routes
//
//   - GET  /api/bookings            upcoming or past bookings (partition, limit)
//   - POST /api/bookings/summarize  short narrative for one booking
//   - POST /api/ask                 question answering with the gateway tools
//   - GET  /api/auth/connect        start the calendar consent flow
//   - GET  /api/auth/callback       finish the consent flow and store the linkage
//   - GET  /api/auth/status         whether the caller has an active connection
//   - POST /api/auth/clear          drop every linkage cookie
//
// The session linkage (user id and connected-account handle) travels in
// HttpOnly cookies; see package session.
//
// # Operational Endpoints
//
// HealthChecker serves /healthz, /readyz and /healthz/detailed on the API
// listener. MetricsServer exposes Prometheus metrics on a dedicated port.
//
// # Security Features
//
//   - Per-IP token bucket rate limiting on /api/ with Retry-After
//   - Security headers on all responses, no-store on API responses
//   - Secure cookies and HSTS in production
//   - Upstream error bodies are logged, never returned to clients
package server
