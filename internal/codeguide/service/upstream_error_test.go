package service_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/codeguide/internal/codeguide/service"
	"github.com/stretchr/testify/require"
)

func TestExtractUpstreamError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMsg     string
		wantDetails any
	}{
		{
			name:        "nested message",
			status:      http.StatusUnauthorized,
			body:        `{"error":{"message":"bad key","code":401}}`,
			wantMsg:     "bad key",
			wantDetails: map[string]any{"error": map[string]any{"message": "bad key", "code": float64(401)}},
		},
		{
			name:        "string error",
			status:      http.StatusBadRequest,
			body:        `{"error":"model required"}`,
			wantMsg:     "model required",
			wantDetails: map[string]any{"error": "model required"},
		},
		{
			name:        "top level message",
			status:      http.StatusTooManyRequests,
			body:        `{"message":"slow down"}`,
			wantMsg:     "slow down",
			wantDetails: map[string]any{"message": "slow down"},
		},
		{
			name:        "json without message",
			status:      http.StatusBadGateway,
			body:        `{"foo":1}`,
			wantMsg:     "HTTP 502: Bad Gateway",
			wantDetails: map[string]any{"foo": float64(1)},
		},
		{
			name:        "plain text",
			status:      http.StatusServiceUnavailable,
			body:        "upstream down\n",
			wantMsg:     "HTTP 503: Service Unavailable",
			wantDetails: "upstream down",
		},
		{
			name:    "empty",
			status:  http.StatusInternalServerError,
			wantMsg: "HTTP 500: Internal Server Error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, details := service.ExtractUpstreamError(tt.status, []byte(tt.body))
			require.Equal(t, tt.wantMsg, msg)
			require.Equal(t, tt.wantDetails, details)
		})
	}
}

type named string

func (n named) String() string { return "named:" + string(n) }

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"error", errors.New("boom"), "boom"},
		{"string", "plain", "plain"},
		{"map message", map[string]any{"message": "m"}, "m"},
		{"map nested", map[string]any{"error": map[string]any{"message": "nested"}}, "nested"},
		{"map other", map[string]any{"code": 1}, `{"code":1}`},
		{"stringer", named("x"), "named:x"},
		{"number", 42, "42"},
		{"nil", nil, "Unknown error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, service.ErrorMessage(tt.in))
		})
	}
}
