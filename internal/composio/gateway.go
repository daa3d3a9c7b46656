package composio

import (
	"context"
	"fmt"
	"net/url"

	"github.com/teemow/calendarassist/internal/gateway"
)

// ResolveEndpoint returns the per-user gateway endpoint for a registered
// server. An empty server id, or a server without a URL, is a setup failure.
func (c *Client) ResolveEndpoint(ctx context.Context, userID, serverID string) (string, error) {
	if serverID == "" {
		return "", fmt.Errorf("%w: tool server has no id", gateway.ErrSetup)
	}
	server, err := c.GetServer(ctx, serverID)
	if err != nil {
		return "", err
	}
	return EndpointFor(server, userID)
}

// EndpointFor derives the per-user endpoint from a server's base URL.
func EndpointFor(server *Server, userID string) (string, error) {
	if server == nil || server.URL == "" {
		return "", fmt.Errorf("%w: tool server has no endpoint URL", gateway.ErrSetup)
	}
	u, err := url.Parse(server.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: invalid tool server URL %q", gateway.ErrSetup, server.URL)
	}
	q := u.Query()
	q.Set("user_id", userID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// EndpointLookup resolves a server's per-user endpoint.
type EndpointLookup interface {
	ResolveEndpoint(ctx context.Context, userID, serverID string) (string, error)
}

// EndpointResolver combines the memoized server descriptor with the gateway
// lookup. It is the single resolution path shared by the bookings pipeline
// and the question answering path.
type EndpointResolver struct {
	servers *ServerResolver
	lookup  EndpointLookup
}

// NewEndpointResolver creates an EndpointResolver.
func NewEndpointResolver(servers *ServerResolver, lookup EndpointLookup) *EndpointResolver {
	return &EndpointResolver{servers: servers, lookup: lookup}
}

// Endpoint returns the gateway endpoint URL for userID.
func (r *EndpointResolver) Endpoint(ctx context.Context, userID string) (string, error) {
	server, err := r.servers.Server(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to resolve tool server: %w", err)
	}
	if server.ID == "" {
		return "", fmt.Errorf("%w: tool server has no id", gateway.ErrSetup)
	}
	return r.lookup.ResolveEndpoint(ctx, userID, server.ID)
}
