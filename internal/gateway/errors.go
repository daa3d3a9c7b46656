package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrSetup is returned when the gateway yields no usable endpoint or server id.
var ErrSetup = errors.New("tool gateway setup failed")

// UpstreamError reports a gateway failure: a non-2xx HTTP status, a JSON-RPC
// error envelope, or a transport failure.
type UpstreamError struct {
	// StatusCode is the HTTP status, or 0 when no response was received or the
	// failure came from a JSON-RPC error envelope.
	StatusCode int
	// Body is the raw response body for HTTP failures.
	Body string
	// Message is the upstream error message from a JSON-RPC envelope, or the
	// step that failed for transport errors.
	Message string
	// Err is the transport or protocol error, if any.
	Err error
}

// Error implements the error interface
func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("tool gateway returned HTTP %d: %s: %v", e.StatusCode, e.Message, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("tool gateway returned HTTP %d: %s", e.StatusCode, e.Body)
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("tool gateway error: %s: %v", e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("tool gateway error: %v", e.Err)
	}
	return fmt.Sprintf("tool gateway error: %s", e.Message)
}

// Unwrap returns the transport or protocol error.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Detail returns the upstream-provided description of the failure: the
// HTTP status and body, or the JSON-RPC error message.
func (e *UpstreamError) Detail() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return e.Message
}

// MalformedResponseError reports a response body that could not be parsed as
// JSON by any supported framing.
type MalformedResponseError struct {
	// Fragment holds (a prefix of) the raw body for diagnosis.
	Fragment string
	Err      error
}

// Error implements the error interface
func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed tool gateway response: %v", e.Err)
	}
	return "malformed tool gateway response"
}

// Unwrap returns the underlying parse error.
func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}
