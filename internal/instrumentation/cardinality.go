package instrumentation

import "strings"

// Cardinality management helpers for metrics.
// These functions reduce high-cardinality label values to prevent metrics explosion.
//
// # Warning
//
// High cardinality in metrics can cause:
// - Increased memory usage in Prometheus/metrics backends
// - Slower query performance
//
// Always use these helpers for label values that come from requests or from
// the tool gateway.

// calendarToolPrefix is shared by every tool of the calendar toolkit.
const calendarToolPrefix = "GOOGLECALENDAR_"

// otherLabel replaces label values outside a known set.
const otherLabel = "other"

// knownRoutes are the HTTP paths reported verbatim on request metrics.
var knownRoutes = map[string]bool{
	"/api/bookings":           true,
	"/api/bookings/summarize": true,
	"/api/ask":                true,
	"/api/auth/connect":       true,
	"/api/auth/callback":      true,
	"/api/auth/status":        true,
	"/api/auth/clear":         true,
	"/healthz":                true,
	"/readyz":                 true,
	"/healthz/detailed":       true,
}

// RouteLabel maps a request path to a bounded label value. Unknown paths
// (scanners, typos) are collapsed into "other".
//
// Example:
//
//	RouteLabel("/api/bookings")  // "/api/bookings"
//	RouteLabel("/wp-login.php")  // "other"
func RouteLabel(path string) string {
	if knownRoutes[path] {
		return path
	}
	return otherLabel
}

// ToolLabel maps a gateway tool name to a label value. The model may call
// any tool the gateway advertises, so unless detailed labels are enabled only
// calendar tools keep their name.
//
// Example:
//
//	ToolLabel("GOOGLECALENDAR_EVENTS_LIST", false)  // "GOOGLECALENDAR_EVENTS_LIST"
//	ToolLabel("GMAIL_SEND_EMAIL", false)            // "other"
//	ToolLabel("GMAIL_SEND_EMAIL", true)             // "GMAIL_SEND_EMAIL"
func ToolLabel(tool string, detailed bool) string {
	if tool == "" {
		return StatusUnknown
	}
	if detailed || strings.HasPrefix(tool, calendarToolPrefix) {
		return tool
	}
	return otherLabel
}

// Operation types for downstream calls.
// Status, connection and service constants are defined in config.go.
const (
	// Gateway
	OperationCall = "call"
	OperationList = "list"

	// Connection registry
	OperationInitiate     = "initiate"
	OperationResolve      = "resolve"
	OperationStatus       = "status"
	OperationCreateServer = "create_server"
	OperationListServers  = "list_servers"
	OperationGetServer    = "get_server"

	// Language model
	OperationAsk       = "ask"
	OperationSummarize = "summarize"
)
