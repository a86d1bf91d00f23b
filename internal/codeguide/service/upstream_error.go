package service

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ExtractUpstreamError turns an upstream error body into a message and the
// details relayed to the caller. JSON bodies are searched for error.message,
// then a string error, then message. Anything else yields "HTTP <code>: <text>".
func ExtractUpstreamError(status int, body []byte) (string, any) {
	fallback := fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		raw := strings.TrimSpace(string(body))
		if raw == "" {
			return fallback, nil
		}
		return fallback, raw
	}

	if m, ok := decoded.(map[string]any); ok {
		if msg := messageFromMap(m); msg != "" {
			return msg, decoded
		}
	}
	return fallback, decoded
}

func messageFromMap(m map[string]any) string {
	switch e := m["error"].(type) {
	case map[string]any:
		if msg, ok := e["message"].(string); ok && msg != "" {
			return msg
		}
	case string:
		if e != "" {
			return e
		}
	}
	if msg, ok := m["message"].(string); ok && msg != "" {
		return msg
	}
	return ""
}

// ErrorMessage does its best to get a human readable message out of v.
func ErrorMessage(v any) string {
	switch e := v.(type) {
	case nil:
		return "Unknown error"
	case error:
		return e.Error()
	case string:
		return e
	case map[string]any:
		if msg := messageFromMap(e); msg != "" {
			return msg
		}
		if b, err := json.Marshal(e); err == nil {
			return string(b)
		}
	case fmt.Stringer:
		return e.String()
	}
	return fmt.Sprint(v)
}
