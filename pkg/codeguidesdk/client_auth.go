package codeguidesdk

import (
	"context"
	"net/http"
)

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/api/auth/register", req)
	if err != nil {
		return nil, err
	}
	var out UserResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Login starts a session and keeps its token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*SessionResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	var out SessionResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	c.SetToken(out.Session.Token)
	return &out, nil
}

// Logout ends the current session and forgets the token.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "/api/auth/logout", nil)
	if err != nil {
		return err
	}
	if err := decodeJSON(resp, nil, http.StatusOK); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

// Session returns the current user and session. A 401 *APIError means nobody
// is logged in.
func (c *Client) Session(ctx context.Context) (*SessionResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodGet, "/api/auth/session", nil)
	if err != nil {
		return nil, err
	}
	var out SessionResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListUsers needs the gateway's debug routes.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	resp, err := c.doJSON(ctx, http.MethodGet, "/api/auth/users", nil)
	if err != nil {
		return nil, err
	}
	var out UsersResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// ClearAllData wipes the gateway's local store. Needs the debug routes.
func (c *Client) ClearAllData(ctx context.Context) error {
	resp, err := c.doJSON(ctx, http.MethodDelete, "/api/auth/data", nil)
	if err != nil {
		return err
	}
	if err := decodeJSON(resp, nil, http.StatusOK); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}
