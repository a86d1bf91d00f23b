package domain

import (
	"encoding/json"
	"io"
	"net/http"
)

// Envelope is a single proxy call as submitted by the front-end.
type Envelope struct {
	Endpoint string          `json:"endpoint"`
	Method   string          `json:"method,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	APIKey   string          `json:"apiKey,omitempty"`
}

// ProviderPreferences is injected as the "provider" field of chat completions.
type ProviderPreferences struct {
	Order          []string `json:"order"`
	AllowFallbacks bool     `json:"allow_fallbacks"`
}

// UpstreamResponse is the relayed upstream reply. The caller must close Body.
type UpstreamResponse struct {
	Status      int
	ContentType string
	Body        io.ReadCloser
}

// OK reports a 2xx status.
func (r *UpstreamResponse) OK() bool {
	return r.Status >= http.StatusOK && r.Status < http.StatusMultipleChoices
}
