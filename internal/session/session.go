package session

import (
	"errors"
	"net/http"
	"time"
)

// Cookie names used to carry the linkage between requests.
const (
	CookieUserID              = "calendar_user_id"
	CookieConnectionID        = "calendar_connection_id"
	CookieConnectionRequestID = "calendar_connection_request_id"
)

// Cookie lifetimes, matching the registry's consent flow.
const (
	LinkageMaxAge = 7 * 24 * time.Hour
	RequestMaxAge = time.Hour
)

// ErrNotConnected is returned when a request carries no complete linkage.
var ErrNotConnected = errors.New("not connected: please connect your Google Calendar first")

// Linkage identifies the remote connection a request acts on.
type Linkage struct {
	UserID       string
	ConnectionID string
}

// Valid reports whether both halves of the linkage are present.
func (l Linkage) Valid() bool {
	return l.UserID != "" && l.ConnectionID != ""
}

// Require returns ErrNotConnected unless the linkage is valid.
func (l Linkage) Require() error {
	if !l.Valid() {
		return ErrNotConnected
	}
	return nil
}

// FromRequest reads the linkage cookies. Missing cookies yield empty fields.
func FromRequest(r *http.Request) Linkage {
	return Linkage{
		UserID:       cookieValue(r, CookieUserID),
		ConnectionID: cookieValue(r, CookieConnectionID),
	}
}

// PendingRequestID returns the connection request id stored during connect.
func PendingRequestID(r *http.Request) string {
	return cookieValue(r, CookieConnectionRequestID)
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// CookieWriter sets and clears linkage cookies with consistent attributes.
type CookieWriter struct {
	// Secure marks cookies as HTTPS-only (production deployments).
	Secure bool
}

// SetUserID stores a freshly generated user id.
func (w CookieWriter) SetUserID(rw http.ResponseWriter, userID string) {
	w.set(rw, CookieUserID, userID, LinkageMaxAge)
}

// SetConnectionID stores the connected-account handle once the flow completes.
func (w CookieWriter) SetConnectionID(rw http.ResponseWriter, connectionID string) {
	w.set(rw, CookieConnectionID, connectionID, LinkageMaxAge)
}

// SetPendingRequestID stores the connection request id until the callback.
func (w CookieWriter) SetPendingRequestID(rw http.ResponseWriter, requestID string) {
	w.set(rw, CookieConnectionRequestID, requestID, RequestMaxAge)
}

// ClearPendingRequestID removes the connection request cookie.
func (w CookieWriter) ClearPendingRequestID(rw http.ResponseWriter) {
	w.clear(rw, CookieConnectionRequestID)
}

// ClearAll removes every linkage cookie.
func (w CookieWriter) ClearAll(rw http.ResponseWriter) {
	w.clear(rw, CookieUserID)
	w.clear(rw, CookieConnectionID)
	w.clear(rw, CookieConnectionRequestID)
}

func (w CookieWriter) set(rw http.ResponseWriter, name, value string, maxAge time.Duration) {
	http.SetCookie(rw, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   w.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (w CookieWriter) clear(rw http.ResponseWriter, name string) {
	http.SetCookie(rw, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   w.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
