package composio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/teemow/calendarassist/internal/instrumentation"
)

// codeServerExists is the platform error code for a duplicate server name.
const codeServerExists = 1142

// ServerConfig describes the tool-server descriptor to register.
type ServerConfig struct {
	Name          string
	AuthConfigIDs []string
	AllowedTools  []string
}

// Server is a registered tool-server descriptor.
type Server struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// URL is the base endpoint; per-user endpoints are derived from it.
	URL string `json:"mcp_url"`
}

// ServerDirectory creates and lists tool-server descriptors.
type ServerDirectory interface {
	CreateServer(ctx context.Context, cfg ServerConfig) (*Server, error)
	ListServers(ctx context.Context, name string) ([]Server, error)
}

type createServerRequest struct {
	Name          string   `json:"name"`
	AuthConfigIDs []string `json:"auth_config_ids"`
	AllowedTools  []string `json:"allowed_tools,omitempty"`
}

type serverList struct {
	Items []Server `json:"items"`
}

// CreateServer registers a new descriptor. Registering an existing name fails
// with an *APIError for which IsConflict is true.
func (c *Client) CreateServer(ctx context.Context, cfg ServerConfig) (*Server, error) {
	var out Server
	err := c.do(ctx, instrumentation.OperationCreateServer, http.MethodPost, "/api/v3/mcp/servers", nil,
		createServerRequest{Name: cfg.Name, AuthConfigIDs: cfg.AuthConfigIDs, AllowedTools: cfg.AllowedTools}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListServers lists descriptors, filtered by name when name is non-empty.
func (c *Client) ListServers(ctx context.Context, name string) ([]Server, error) {
	q := url.Values{}
	q.Set("limit", "100")
	q.Set("page_no", "1")
	if name != "" {
		q.Set("name", name)
	}

	var out serverList
	if err := c.do(ctx, instrumentation.OperationListServers, http.MethodGet, "/api/v3/mcp/servers", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// GetServer fetches one descriptor by id.
func (c *Client) GetServer(ctx context.Context, id string) (*Server, error) {
	var out Server
	if err := c.do(ctx, instrumentation.OperationGetServer, http.MethodGet, "/api/v3/mcp/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// IsConflict reports whether err means the descriptor already exists.
func IsConflict(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusBadRequest ||
		apiErr.Code == codeServerExists ||
		strings.Contains(strings.ToLower(apiErr.Message), "already exists")
}

// GetOrCreateServer registers the descriptor, or returns the existing one
// with the same name when registration reports a conflict.
func GetOrCreateServer(ctx context.Context, dir ServerDirectory, cfg ServerConfig) (*Server, error) {
	server, err := dir.CreateServer(ctx, cfg)
	if err == nil {
		return server, nil
	}
	if !IsConflict(err) {
		return nil, fmt.Errorf("failed to create tool server %q: %w", cfg.Name, err)
	}

	servers, listErr := dir.ListServers(ctx, cfg.Name)
	if listErr != nil {
		return nil, fmt.Errorf("tool server %q already exists but could not be listed: %w", cfg.Name, listErr)
	}
	for i := range servers {
		if servers[i].Name == cfg.Name {
			return &servers[i], nil
		}
	}
	return nil, fmt.Errorf("tool server %q already exists but was not found in the server list", cfg.Name)
}

// ServerResolver memoizes GetOrCreateServer for the life of the process.
// Failures are not cached.
type ServerResolver struct {
	dir ServerDirectory
	cfg ServerConfig

	mu     sync.Mutex
	server *Server
}

// NewServerResolver creates a ServerResolver.
func NewServerResolver(dir ServerDirectory, cfg ServerConfig) *ServerResolver {
	return &ServerResolver{dir: dir, cfg: cfg}
}

// Server returns the descriptor, registering it on first use.
func (r *ServerResolver) Server(ctx context.Context) (*Server, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.server != nil {
		return r.server, nil
	}
	server, err := GetOrCreateServer(ctx, r.dir, r.cfg)
	if err != nil {
		return nil, err
	}
	r.server = server
	return server, nil
}
