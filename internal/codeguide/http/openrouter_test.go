package http_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/codeguide/pkg/codeguidesdk"
	"github.com/stretchr/testify/require"
)

func TestProxyChatCompletion(t *testing.T) {
	tg := newTestGateway(t, gatewayOpts{}, jsonReply(http.StatusOK, `{"id":"gen-1","choices":[]}`))

	res, err := tg.client.ChatCompletion(t.Context(), testKey, map[string]any{
		"model":    "anthropic/claude-3.5-sonnet",
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "application/json", res.ContentType)
	require.JSONEq(t, `{"id":"gen-1","choices":[]}`, string(res.Body))

	require.Equal(t, http.MethodPost, tg.upstream.method)
	require.Equal(t, "/api/v1/chat/completions", tg.upstream.path)
	require.Equal(t, "Bearer "+testKey, tg.upstream.header.Get("Authorization"))
	require.Equal(t, "CodeGuide AI", tg.upstream.header.Get("X-Title"))
	require.Equal(t, tg.srv.URL, tg.upstream.header.Get("HTTP-Referer"))

	var sent map[string]any
	require.NoError(t, json.Unmarshal(tg.upstream.body, &sent))
	require.Equal(t, "anthropic/claude-3.5-sonnet", sent["model"])
	require.Equal(t, map[string]any{
		"order":           []any{"Anthropic", "OpenAI", "Google"},
		"allow_fallbacks": true,
	}, sent["provider"])
}

func TestProxyGetHasNoBody(t *testing.T) {
	tg := newTestGateway(t, gatewayOpts{}, jsonReply(http.StatusOK, `{"data":[{"id":"openai/gpt-4o"}]}`))

	res, err := tg.client.Models(t.Context(), testKey)
	require.NoError(t, err)

	var models struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, res.Decode(&models))
	require.Len(t, models.Data, 1)

	require.Equal(t, http.MethodGet, tg.upstream.method)
	require.Equal(t, "/api/v1/models", tg.upstream.path)
	require.Empty(t, tg.upstream.body)
}

func TestProxyValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     codeguidesdk.ProxyRequest
		message string
	}{
		{
			name:    "missing key",
			req:     codeguidesdk.ProxyRequest{Endpoint: "/models", Method: http.MethodGet},
			message: "API key is required",
		},
		{
			name:    "bad key prefix",
			req:     codeguidesdk.ProxyRequest{Endpoint: "/models", Method: http.MethodGet, APIKey: "sk-ant-123"},
			message: "invalid API key format",
		},
		{
			name:    "missing endpoint",
			req:     codeguidesdk.ProxyRequest{APIKey: testKey},
			message: "endpoint is required",
		},
		{
			name:    "unsupported method",
			req:     codeguidesdk.ProxyRequest{Endpoint: "/models", Method: http.MethodDelete, APIKey: testKey},
			message: "method must be GET or POST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tg := newTestGateway(t, gatewayOpts{}, jsonReply(http.StatusOK, `{}`))

			_, err := tg.client.Proxy(t.Context(), tt.req)
			apiErr := requireAPIError(t, err, http.StatusBadRequest)
			require.Contains(t, apiErr.Message, tt.message)
			require.Empty(t, tg.upstream.method, "nothing may reach upstream")
		})
	}
}

func TestProxyInvalidJSON(t *testing.T) {
	tg := newTestGateway(t, gatewayOpts{}, jsonReply(http.StatusOK, `{}`))

	resp, err := http.Post(tg.srv.URL+"/api/openrouter", "application/json", strings.NewReader(`{"endpoint":`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body codeguidesdk.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.False(t, body.Success)
	require.Equal(t, "Invalid JSON in request body", body.Error)
}

func TestProxyBodyTooLarge(t *testing.T) {
	tg := newTestGateway(t, gatewayOpts{}, jsonReply(http.StatusOK, `{}`))

	huge := `{"endpoint":"/chat/completions","data":{"x":"` + strings.Repeat("a", 11<<20) + `"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/openrouter", strings.NewReader(huge))
	rec := httptest.NewRecorder()
	tg.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Empty(t, tg.upstream.method)
}

func TestProxyUpstreamError(t *testing.T) {
	tests := []struct {
		name    string
		reply   upstreamFunc
		status  int
		message string
	}{
		{
			name:    "nested error message",
			reply:   jsonReply(http.StatusUnauthorized, `{"error":{"message":"bad key","code":401}}`),
			status:  http.StatusUnauthorized,
			message: "bad key",
		},
		{
			name:    "string error",
			reply:   jsonReply(http.StatusTooManyRequests, `{"error":"slow down"}`),
			status:  http.StatusTooManyRequests,
			message: "slow down",
		},
		{
			name: "plain text body",
			reply: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				w.WriteHeader(http.StatusBadGateway)
				_, _ = io.WriteString(w, "<html>gateway</html>")
			},
			status:  http.StatusBadGateway,
			message: "HTTP 502: Bad Gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tg := newTestGateway(t, gatewayOpts{}, tt.reply)

			_, err := tg.client.Models(t.Context(), testKey)
			apiErr := requireAPIError(t, err, tt.status)
			require.Equal(t, tt.message, apiErr.Message)
			require.NotNil(t, apiErr.Details)
		})
	}
}

func TestProxyUpstreamUnreachable(t *testing.T) {
	tg := newTestGateway(t, gatewayOpts{}, jsonReply(http.StatusOK, `{}`))
	tg.router.GatewayService.BaseURL = "http://127.0.0.1:1"

	_, err := tg.client.Models(t.Context(), testKey)
	requireAPIError(t, err, http.StatusInternalServerError)
}

func TestProxyNonJSONPassthrough(t *testing.T) {
	tg := newTestGateway(t, gatewayOpts{}, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "pong")
	})

	res, err := tg.client.Proxy(t.Context(), codeguidesdk.ProxyRequest{
		Endpoint: "/ping",
		Method:   http.MethodGet,
		APIKey:   testKey,
	})
	require.NoError(t, err)
	require.Equal(t, "text/plain", res.ContentType)
	require.Equal(t, "pong", string(res.Body))
}

func TestProxyStreamsEvents(t *testing.T) {
	events := "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n" +
		"data: [DONE]\n\n"

	tg := newTestGateway(t, gatewayOpts{}, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range strings.SplitAfter(events, "\n\n") {
			_, _ = io.WriteString(w, chunk)
			w.(http.Flusher).Flush()
		}
	})

	res, err := tg.client.ChatCompletion(t.Context(), testKey, map[string]any{"model": "x", "stream": true})
	require.NoError(t, err)
	require.Equal(t, "text/event-stream", res.ContentType)
	require.Equal(t, events, string(res.Body))
}

func TestProxyStreamOutlivesUpstreamTimeout(t *testing.T) {
	var want strings.Builder
	for i := range 6 {
		fmt.Fprintf(&want, "data: %d\n\n", i)
	}
	want.WriteString("data: [DONE]\n\n")

	tg := newTestGateway(t, gatewayOpts{upstreamTimeout: 250 * time.Millisecond}, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		for i := range 6 {
			time.Sleep(100 * time.Millisecond)
			fmt.Fprintf(w, "data: %d\n\n", i)
			w.(http.Flusher).Flush()
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	})

	res, err := tg.client.ChatCompletion(t.Context(), testKey, map[string]any{"model": "x", "stream": true})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, want.String(), string(res.Body), "the whole stream is relayed")
}

func TestProxyServerKeyWins(t *testing.T) {
	tg := newTestGateway(t, gatewayOpts{serverKey: "sk-or-server"}, jsonReply(http.StatusOK, `{}`))

	_, err := tg.client.Models(t.Context(), "not-even-a-key")
	require.NoError(t, err)
	require.Equal(t, "Bearer sk-or-server", tg.upstream.header.Get("Authorization"))
}

func TestProxyRequireSession(t *testing.T) {
	tg := newTestGateway(t, gatewayOpts{requireSession: true}, jsonReply(http.StatusOK, `{}`))

	_, err := tg.client.Models(t.Context(), testKey)
	requireAPIError(t, err, http.StatusUnauthorized)
	require.Empty(t, tg.upstream.method)

	tg.registerAndLogin(t, "alice", "alice@example.com", "hunter22")

	_, err = tg.client.Models(t.Context(), testKey)
	require.NoError(t, err)

	// A token that no longer matches the stored session is refused.
	token := tg.client.Token()
	require.NoError(t, tg.client.Logout(t.Context()))
	tg.client.SetToken(token)

	_, err = tg.client.Models(t.Context(), testKey)
	requireAPIError(t, err, http.StatusUnauthorized)
}
