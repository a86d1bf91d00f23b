// Package codeguidesdk is a Go client for the CodeGuide gateway: the
// OpenRouter proxy, the local credential store and the health probes.
//
//	c := codeguidesdk.NewClient("http://localhost:8080")
//	res, err := c.ChatCompletion(ctx, apiKey, map[string]any{
//		"model":    "anthropic/claude-3.5-sonnet",
//		"messages": []map[string]string{{"role": "user", "content": "hi"}},
//	})
//
// Failure envelopes come back as *APIError.
package codeguidesdk
