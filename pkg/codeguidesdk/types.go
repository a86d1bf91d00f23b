package codeguidesdk

import (
	"encoding/json"
	"time"
)

// ProxyRequest is the body of POST /api/openrouter.
type ProxyRequest struct {
	Endpoint string `json:"endpoint"`
	Method   string `json:"method,omitempty"`
	Data     any    `json:"data,omitempty"`
	APIKey   string `json:"apiKey,omitempty"`
}

// ProxyResult is a relayed upstream reply.
type ProxyResult struct {
	StatusCode  int
	ContentType string
	Body        json.RawMessage
}

// Decode unmarshals the upstream body into v.
func (r *ProxyResult) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

// ErrorResponse is the failure envelope every endpoint uses.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// StatusResponse is a bare {success} acknowledgement.
type StatusResponse struct {
	Success bool `json:"success"`
}

type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// User is a registered account without secret material.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is the current login. ExpiresAt is nil for sessions without expiry.
type Session struct {
	UserID    string     `json:"user_id"`
	Token     string     `json:"token"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type UserResponse struct {
	Success bool `json:"success"`
	User    User `json:"user"`
}

type SessionResponse struct {
	Success bool    `json:"success"`
	User    User    `json:"user"`
	Session Session `json:"session"`
}

type UsersResponse struct {
	Success bool   `json:"success"`
	Users   []User `json:"users"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports the dependencies /readyz looks at.
type HealthChecks struct {
	Store  string `json:"store"`
	Signer string `json:"signer"`
}
