package composio

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "ak_test", BaseURL: srv.URL + "/"})
}

func TestNewAPIError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantCode    int
		wantMessage string
	}{
		{
			name:        "nested error with code",
			status:      http.StatusBadRequest,
			body:        `{"error":{"message":"MCP server with name already exists","code":1142}}`,
			wantCode:    1142,
			wantMessage: "MCP server with name already exists",
		},
		{
			name:        "nested error_code",
			status:      http.StatusConflict,
			body:        `{"error":{"message":"duplicate","error_code":1142}}`,
			wantCode:    1142,
			wantMessage: "duplicate",
		},
		{
			name:        "flat message",
			status:      http.StatusUnauthorized,
			body:        `{"message":"invalid api key","code":401}`,
			wantCode:    401,
			wantMessage: "invalid api key",
		},
		{
			name:   "not JSON",
			status: http.StatusBadGateway,
			body:   "bad gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newAPIError(tt.status, []byte(tt.body))
			assert.Equal(t, tt.status, err.StatusCode)
			assert.Equal(t, tt.wantCode, err.Code)
			assert.Equal(t, tt.wantMessage, err.Message)
			assert.Equal(t, tt.body, err.Body)
		})
	}
}

func TestClient_Initiate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v3/connected_accounts", r.URL.Path)
		assert.Equal(t, "ak_test", r.Header.Get(APIKeyHeader))

		var body initiateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ac_123", body.AuthConfig.ID)
		assert.Equal(t, "user-1", body.Connection.UserID)
		assert.Equal(t, "https://app.example.com/api/auth/callback", body.Connection.CallbackURL)

		_, _ = w.Write([]byte(`{"id":"cr_1","redirect_url":"https://accounts.google.com/o/oauth2/auth?x=1","status":"INITIATED"}`))
	})

	req, err := client.Initiate(context.Background(), "user-1", "ac_123", "https://app.example.com/api/auth/callback")
	require.NoError(t, err)
	assert.Equal(t, "cr_1", req.ID)
	assert.Equal(t, "https://accounts.google.com/o/oauth2/auth?x=1", req.RedirectURL)
}

func TestClient_Initiate_IncompleteReply(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"cr_1"}`))
	})

	_, err := client.Initiate(context.Background(), "user-1", "ac_123", "")
	require.Error(t, err)
}

func TestClient_Initiate_MissingArguments(t *testing.T) {
	client := NewClient(Config{APIKey: "ak_test", BaseURL: "http://127.0.0.1:1"})

	_, err := client.Initiate(context.Background(), "", "ac_123", "")
	require.Error(t, err)
}

func TestClient_Resolve(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/connected_accounts/cr_1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"cr_1","status":"ACTIVE","connected_account_id":"ca_9"}`))
	})

	account, err := client.Resolve(context.Background(), "cr_1")
	require.NoError(t, err)
	assert.True(t, account.Active())
	assert.Equal(t, "ca_9", account.Handle())
}

func TestAccount_Handle(t *testing.T) {
	assert.Equal(t, "ca_1", (&Account{ID: "ca_1"}).Handle())
	assert.Equal(t, "ca_2", (&Account{ID: "cr_1", ConnectedAccountID: "ca_2"}).Handle())
	assert.False(t, (&Account{Status: StatusInitiated}).Active())
}

func TestClient_Status(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		code      int
		want      bool
		wantError bool
	}{
		{name: "active account", reply: `{"items":[{"id":"ca_1","status":"ACTIVE"}]}`, code: http.StatusOK, want: true},
		{name: "no accounts", reply: `{"items":[]}`, code: http.StatusOK, want: false},
		{name: "only expired", reply: `{"items":[{"id":"ca_1","status":"EXPIRED"}]}`, code: http.StatusOK, want: false},
		{name: "platform failure", reply: `{"message":"down"}`, code: http.StatusServiceUnavailable, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "user-1", r.URL.Query().Get("user_ids"))
				assert.Equal(t, StatusActive, r.URL.Query().Get("statuses"))
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.reply))
			})

			got, err := client.Status(context.Background(), "user-1")
			if tt.wantError {
				var apiErr *APIError
				require.True(t, errors.As(err, &apiErr))
				assert.Equal(t, tt.code, apiErr.StatusCode)
				assert.Equal(t, "down", apiErr.Message)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_Status_EmptyUser(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"})

	connected, err := client.Status(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, connected)
}
