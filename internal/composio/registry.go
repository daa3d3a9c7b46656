package composio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/teemow/calendarassist/internal/instrumentation"
)

// Connected account statuses reported by the platform.
const (
	StatusActive    = "ACTIVE"
	StatusInitiated = "INITIATED"
	StatusFailed    = "FAILED"
	StatusExpired   = "EXPIRED"
)

// ConnectionRequest is a started consent flow.
type ConnectionRequest struct {
	ID          string `json:"id"`
	RedirectURL string `json:"redirect_url"`
	Status      string `json:"status,omitempty"`
}

// Account is a connected account, or a connection request that may have
// become one.
type Account struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	// ConnectedAccountID is set when a request resolves to a distinct account.
	ConnectedAccountID string `json:"connected_account_id,omitempty"`
}

// Handle returns the account handle to store for the user.
func (a *Account) Handle() string {
	if a.ConnectedAccountID != "" {
		return a.ConnectedAccountID
	}
	return a.ID
}

// Active reports whether the account can be used.
func (a *Account) Active() bool {
	return a.Status == StatusActive
}

type initiateRequest struct {
	AuthConfig struct {
		ID string `json:"id"`
	} `json:"auth_config"`
	Connection struct {
		UserID      string `json:"user_id"`
		CallbackURL string `json:"callback_url,omitempty"`
	} `json:"connection"`
}

type accountList struct {
	Items []Account `json:"items"`
}

// Initiate starts the consent flow for userID against an auth config. The
// user must be sent to the returned RedirectURL.
func (c *Client) Initiate(ctx context.Context, userID, authConfigID, callbackURL string) (*ConnectionRequest, error) {
	if userID == "" || authConfigID == "" {
		return nil, errors.New("user id and auth config id are required")
	}

	var body initiateRequest
	body.AuthConfig.ID = authConfigID
	body.Connection.UserID = userID
	body.Connection.CallbackURL = callbackURL

	var out ConnectionRequest
	if err := c.do(ctx, instrumentation.OperationInitiate, http.MethodPost, "/api/v3/connected_accounts", nil, body, &out); err != nil {
		return nil, err
	}
	if out.ID == "" || out.RedirectURL == "" {
		return nil, fmt.Errorf("connection request for user is incomplete (id %q)", out.ID)
	}
	return &out, nil
}

// Resolve looks up a connection request or account by id.
func (c *Client) Resolve(ctx context.Context, requestID string) (*Account, error) {
	if requestID == "" {
		return nil, errors.New("connection request id is required")
	}

	var out Account
	if err := c.do(ctx, instrumentation.OperationResolve, http.MethodGet, "/api/v3/connected_accounts/"+url.PathEscape(requestID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status reports whether userID has at least one active connected account.
func (c *Client) Status(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}

	q := url.Values{}
	q.Set("user_ids", userID)
	q.Set("statuses", StatusActive)

	var out accountList
	if err := c.do(ctx, instrumentation.OperationStatus, http.MethodGet, "/api/v3/connected_accounts", q, nil, &out); err != nil {
		return false, err
	}
	for _, a := range out.Items {
		if a.Active() {
			return true, nil
		}
	}
	return false, nil
}
