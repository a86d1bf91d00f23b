package httpx

import (
	"encoding/json"
	"net/http"
)

// Failure is the envelope every error response uses.
type Failure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// WriteJSON writes v as JSON with the given status code.
// Responses are never cached since most carry credentials or model output.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a {success:false,error} envelope.
func WriteError(w http.ResponseWriter, code int, msg string) {
	WriteJSON(w, code, Failure{Success: false, Error: msg})
}

// WriteErrorDetails is WriteError with a details payload.
func WriteErrorDetails(w http.ResponseWriter, code int, msg string, details any) {
	WriteJSON(w, code, Failure{Success: false, Error: msg, Details: details})
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
