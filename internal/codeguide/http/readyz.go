package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/codeguide/internal/codeguide/store"
	"github.com/aussiebroadwan/codeguide/pkg/codeguidesdk"
	"github.com/aussiebroadwan/codeguide/pkg/httpx"
	"github.com/aussiebroadwan/codeguide/pkg/jwtx"
)

// ReadyzHandler godoc
//
//	@Summary		Readiness Probe
//	@Description	Checks the local store and the session signer.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	codeguidesdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	codeguidesdk.HealthResponse	"degraded"
//	@Router			/readyz [get].
func ReadyzHandler(startTime time.Time, version string, st store.Store, signer jwtx.Signer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &codeguidesdk.HealthChecks{Store: "ok", Signer: "ok"}
		status, code := "ok", http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Store = "error: " + err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
		}
		if signer == nil {
			checks.Signer = "error: no signing key"
			status, code = "degraded", http.StatusServiceUnavailable
		} else if err := signer.Validate(); err != nil {
			checks.Signer = "error: " + err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, codeguidesdk.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
