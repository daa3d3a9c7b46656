// Package composio is the adapter for the hosted connector platform that
// plays two roles for calendarassist:
//
//   - Connection Registry: starts the OAuth-style consent flow for a user,
//     resolves a pending connection request and reports whether a user has an
//     active calendar connection.
//   - Tool Gateway directory: registers the tool-server descriptor (which
//     toolkits and tools are exposed) and turns a (user, server) pair into a
//     reachable endpoint URL.
//
// All calls are plain REST over HTTPS authenticated with the platform API key.
// Failures surface as *APIError carrying the HTTP status and the platform's
// error code; nothing is retried.
//
// Example usage:
//
//	client := composio.NewClient(composio.Config{APIKey: key})
//	servers := composio.NewServerResolver(client, composio.ServerConfig{
//	    Name:          "calendarassist",
//	    AuthConfigIDs: []string{authConfigID},
//	    AllowedTools:  []string{"GOOGLECALENDAR_EVENTS_LIST"},
//	})
//	endpoints := composio.NewEndpointResolver(servers, client)
//	url, err := endpoints.Endpoint(ctx, userID)
package composio
