package http

import (
	"net/http"

	"github.com/aussiebroadwan/codeguide/internal/codeguide/service"
	"github.com/aussiebroadwan/codeguide/pkg/codeguidesdk"
	"github.com/aussiebroadwan/codeguide/pkg/httpx"
	"github.com/aussiebroadwan/codeguide/pkg/slogx"
)

// AdminHandler serves the debug routes. They are only mounted when
// CODEGUIDE_DEBUG_ROUTES is on.
type AdminHandler struct {
	Credentials *service.CredentialService
}

// HandleListUsers godoc
//
//	@Summary		List Users
//	@Description	Every registered user, without password material. Debug route.
//	@Tags			Admin
//	@Produce		json
//	@Success		200	{object}	codeguidesdk.UsersResponse
//	@Router			/api/auth/users [get].
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	users, err := h.Credentials.ListUsers(ctx)
	if err != nil {
		slogx.FromContext(ctx).Error("list users failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	out := make([]codeguidesdk.User, 0, len(users))
	for _, u := range users {
		out = append(out, toSDKUser(u))
	}
	httpx.WriteJSON(w, http.StatusOK, codeguidesdk.UsersResponse{Success: true, Users: out})
}

// HandleClearAllData godoc
//
//	@Summary		Clear All Data
//	@Description	Wipes users, session and token from local storage. Debug route.
//	@Tags			Admin
//	@Produce		json
//	@Success		200	{object}	codeguidesdk.StatusResponse
//	@Router			/api/auth/data [delete].
func (h *AdminHandler) HandleClearAllData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.Credentials.ClearAllData(ctx); err != nil {
		slogx.FromContext(ctx).Error("clear all data failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, codeguidesdk.StatusResponse{Success: true})
}
