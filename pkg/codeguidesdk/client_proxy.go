package codeguidesdk

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Proxy sends one envelope through POST /api/openrouter. A 2xx upstream reply
// is returned as is; anything else becomes an *APIError carrying the
// upstream status.
func (c *Client) Proxy(ctx context.Context, req ProxyRequest) (*ProxyResult, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/api/openrouter", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseErrorResponse(resp, body)
	}

	return &ProxyResult{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// ChatCompletion posts data to /chat/completions. apiKey may be empty when
// the gateway holds its own key.
func (c *Client) ChatCompletion(ctx context.Context, apiKey string, data any) (*ProxyResult, error) {
	return c.Proxy(ctx, ProxyRequest{
		Endpoint: "/chat/completions",
		Method:   http.MethodPost,
		Data:     data,
		APIKey:   apiKey,
	})
}

// Models lists upstream models.
func (c *Client) Models(ctx context.Context, apiKey string) (*ProxyResult, error) {
	return c.Proxy(ctx, ProxyRequest{Endpoint: "/models", Method: http.MethodGet, APIKey: apiKey})
}
