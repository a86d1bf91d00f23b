package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/aussiebroadwan/codeguide/internal/codeguide/domain"
	"github.com/aussiebroadwan/codeguide/internal/codeguide/service"
	"github.com/aussiebroadwan/codeguide/pkg/httpx"
	"github.com/aussiebroadwan/codeguide/pkg/slogx"
)

// maxErrorBody bounds how much of an upstream error body is relayed.
const maxErrorBody = 1 << 20

type OpenRouterHandler struct {
	Gateway *service.GatewayService
	AppURL  string
}

// ServeHTTP godoc
//
//	@Summary		OpenRouter Proxy Endpoint
//	@Description	Forwards {endpoint, method, data, apiKey} to the OpenRouter API and relays the reply.
//	@Description	Chat completions always carry the gateway's provider order. When the gateway holds its own key, apiKey is ignored.
//	@Tags			Proxy
//	@Accept			json
//	@Produce		json
//	@Param			request	body		codeguidesdk.ProxyRequest	true	"Proxy envelope"
//	@Success		200		{object}	object						"Upstream body, verbatim"
//	@Failure		400		{object}	codeguidesdk.ErrorResponse	"Invalid body, missing or malformed key"
//	@Failure		401		{object}	codeguidesdk.ErrorResponse	"Upstream rejected the key"
//	@Failure		429		{object}	codeguidesdk.ErrorResponse	"Rate limited"
//	@Failure		500		{object}	codeguidesdk.ErrorResponse	"Upstream unreachable or internal error"
//	@Security		BearerAuth
//	@Router			/api/openrouter [post].
func (h *OpenRouterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var env domain.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		httpx.WriteError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	resp, err := h.Gateway.Forward(ctx, env, ResolveReferer(r, h.AppURL))
	switch {
	case err == nil:
	case service.IsValidation(err):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	default:
		log.Error("proxy request failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, service.ErrorMessage(err))
		return
	}
	defer resp.Body.Close()

	if !resp.OK() {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg, details := service.ExtractUpstreamError(resp.Status, body)
		log.Warn("upstream returned an error", "status", resp.Status, "error", msg)
		httpx.WriteErrorDetails(w, resp.Status, msg, details)
		return
	}

	if mediaType, _, _ := mime.ParseMediaType(resp.ContentType); mediaType == "text/event-stream" {
		streamUpstream(w, r, resp)
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("reading upstream body failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Failed to read upstream response")
		return
	}

	contentType := resp.ContentType
	switch {
	case json.Valid(body):
		contentType = "application/json"
	case contentType == "":
		contentType = "text/plain; charset=utf-8"
	}

	httpx.NoCache(w)
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.Status)
	_, _ = w.Write(body)
}

// streamUpstream relays a server-sent event stream chunk by chunk.
func streamUpstream(w http.ResponseWriter, r *http.Request, resp *domain.UpstreamResponse) {
	log := slogx.FromContext(r.Context())
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", resp.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(resp.Status)

	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				log.Debug("client went away during stream", "error", werr)
				return
			}
			if ferr := rc.Flush(); ferr != nil && !errors.Is(ferr, http.ErrNotSupported) {
				log.Debug("flush failed", "error", ferr)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warn("upstream stream ended early", "error", err)
			}
			return
		}
	}
}
