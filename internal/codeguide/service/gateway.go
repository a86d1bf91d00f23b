package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/codeguide/internal/codeguide/domain"
	"github.com/aussiebroadwan/codeguide/pkg/cryptox"
	"github.com/aussiebroadwan/codeguide/pkg/slogx"
)

const (
	DefaultBaseURL   = "https://openrouter.ai/api/v1"
	DefaultKeyPrefix = "sk-or-"
	DefaultTitle     = "CodeGuide AI"

	chatCompletionsPath = "/chat/completions"
)

// DefaultProviders is the routing preference sent with every chat completion.
var DefaultProviders = domain.ProviderPreferences{
	Order:          []string{"Anthropic", "OpenAI", "Google"},
	AllowFallbacks: true,
}

var (
	ErrMissingEndpoint     = errors.New("endpoint is required")
	ErrUnsupportedMethod   = errors.New("method must be GET or POST")
	ErrMissingKey          = errors.New("API key is required")
	ErrInvalidKeyFormat    = errors.New("invalid API key format")
	ErrInvalidPayload      = errors.New("invalid request data")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// IsValidation reports whether err is the caller's fault (a 400).
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingEndpoint) ||
		errors.Is(err, ErrUnsupportedMethod) ||
		errors.Is(err, ErrMissingKey) ||
		errors.Is(err, ErrInvalidKeyFormat) ||
		errors.Is(err, ErrInvalidPayload)
}

// GatewayService relays envelopes to a single fixed upstream base URL.
type GatewayService struct {
	BaseURL    string
	HTTPClient *http.Client

	// ServerKey, when set, is used for every call and envelope keys are ignored.
	ServerKey string
	KeyPrefix string

	Providers domain.ProviderPreferences
	Title     string
}

// NewUpstreamClient returns a client that waits at most timeout for response
// headers. Reading the body is not bounded, so an event stream lasts as long
// as the upstream keeps sending or the caller stays connected.
func NewUpstreamClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout
	return &http.Client{Transport: transport}
}

func (s *GatewayService) baseURL() string {
	if s.BaseURL == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(s.BaseURL, "/")
}

func (s *GatewayService) client() *http.Client {
	if s.HTTPClient == nil {
		return http.DefaultClient
	}
	return s.HTTPClient
}

func (s *GatewayService) keyPrefix() string {
	if s.KeyPrefix == "" {
		return DefaultKeyPrefix
	}
	return s.KeyPrefix
}

func (s *GatewayService) title() string {
	if s.Title == "" {
		return DefaultTitle
	}
	return s.Title
}

func (s *GatewayService) providers() domain.ProviderPreferences {
	if len(s.Providers.Order) == 0 {
		return DefaultProviders
	}
	return domain.ProviderPreferences{Order: s.Providers.Order, AllowFallbacks: true}
}

// resolveKey picks the upstream key. The envelope key is only consulted when
// no server key is configured.
func (s *GatewayService) resolveKey(ctx context.Context, envKey string) (string, error) {
	envKey = strings.TrimSpace(envKey)
	if s.ServerKey != "" {
		if envKey != "" {
			slogx.FromContext(ctx).Warn("ignoring client supplied API key, server key is configured",
				slog.String("client_key", cryptox.MaskSecret(envKey)),
			)
		}
		return s.ServerKey, nil
	}

	if envKey == "" {
		return "", ErrMissingKey
	}
	if !strings.HasPrefix(envKey, s.keyPrefix()) {
		return "", fmt.Errorf("%w: expected prefix %q", ErrInvalidKeyFormat, s.keyPrefix())
	}
	return envKey, nil
}

// Normalise validates env and fills in defaults.
func (s *GatewayService) Normalise(ctx context.Context, env domain.Envelope) (domain.Envelope, string, error) {
	key, err := s.resolveKey(ctx, env.APIKey)
	if err != nil {
		return domain.Envelope{}, "", err
	}

	env.Endpoint = strings.TrimSpace(env.Endpoint)
	if env.Endpoint == "" {
		return domain.Envelope{}, "", ErrMissingEndpoint
	}
	if !strings.HasPrefix(env.Endpoint, "/") {
		env.Endpoint = "/" + env.Endpoint
	}

	env.Method = strings.ToUpper(strings.TrimSpace(env.Method))
	switch env.Method {
	case "":
		env.Method = http.MethodPost
	case http.MethodGet, http.MethodPost:
	default:
		return domain.Envelope{}, "", fmt.Errorf("%w: %s", ErrUnsupportedMethod, env.Method)
	}

	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		data = []byte("{}")
	}
	if !json.Valid(data) {
		return domain.Envelope{}, "", fmt.Errorf("%w: data is not valid JSON", ErrInvalidPayload)
	}
	env.Data = data

	if env.Method == http.MethodPost && isChatCompletions(env.Endpoint) {
		if env.Data, err = s.withProviders(env.Data); err != nil {
			return domain.Envelope{}, "", err
		}
	}

	env.APIKey = ""
	return env, key, nil
}

func isChatCompletions(endpoint string) bool {
	path, _, _ := strings.Cut(endpoint, "?")
	return strings.TrimRight(path, "/") == chatCompletionsPath
}

// withProviders overwrites any caller "provider" field.
func (s *GatewayService) withProviders(data json.RawMessage) (json.RawMessage, error) {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(data, &body); err != nil || body == nil {
		return nil, fmt.Errorf("%w: chat completion data must be a JSON object", ErrInvalidPayload)
	}

	provider, err := json.Marshal(s.providers())
	if err != nil {
		return nil, err
	}
	body["provider"] = provider
	return json.Marshal(body)
}

// Forward sends env upstream and returns the raw reply. Non-2xx statuses are
// not errors here; the caller decides how to relay them.
func (s *GatewayService) Forward(ctx context.Context, env domain.Envelope, referer string) (*domain.UpstreamResponse, error) {
	l := slogx.FromContext(ctx)

	env, key, err := s.Normalise(ctx, env)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if env.Method == http.MethodPost {
		body = bytes.NewReader(env.Data)
	}

	req, err := http.NewRequestWithContext(ctx, env.Method, s.baseURL()+env.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", referer)
	req.Header.Set("Referer", referer)
	req.Header.Set("X-Title", s.title())

	start := time.Now()
	resp, err := s.client().Do(req)
	if err != nil {
		l.Error("upstream request failed",
			slog.String("endpoint", env.Endpoint),
			slog.String("method", env.Method),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	l.Info("upstream request",
		slog.String("endpoint", env.Endpoint),
		slog.String("method", env.Method),
		slog.Int("status", resp.StatusCode),
		slog.String("key", cryptox.MaskSecret(key)),
		slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000.0),
	)

	return &domain.UpstreamResponse{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        resp.Body,
	}, nil
}
