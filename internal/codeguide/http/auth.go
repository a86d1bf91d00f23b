package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/codeguide/internal/codeguide/domain"
	"github.com/aussiebroadwan/codeguide/internal/codeguide/service"
	"github.com/aussiebroadwan/codeguide/pkg/codeguidesdk"
	"github.com/aussiebroadwan/codeguide/pkg/httpx"
	"github.com/aussiebroadwan/codeguide/pkg/slogx"
)

type AuthHandler struct {
	Credentials *service.CredentialService
}

func toSDKUser(u domain.User) codeguidesdk.User {
	return codeguidesdk.User{ID: u.ID, Username: u.Username, Email: u.Email, CreatedAt: u.CreatedAt}
}

func toSDKSession(s domain.Session) codeguidesdk.Session {
	return codeguidesdk.Session{UserID: s.UserID, Token: s.Token, IssuedAt: s.IssuedAt, ExpiresAt: s.ExpiresAt}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		httpx.WriteError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return false
	}
	return true
}

// HandleRegister godoc
//
//	@Summary		Register
//	@Description	Creates a local account. Does not log in.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		codeguidesdk.RegisterRequest	true	"New account"
//	@Success		201		{object}	codeguidesdk.UserResponse
//	@Failure		400		{object}	codeguidesdk.ErrorResponse	"Missing field or passwords do not match"
//	@Failure		409		{object}	codeguidesdk.ErrorResponse	"Username or email already registered"
//	@Failure		429		{object}	codeguidesdk.ErrorResponse
//	@Router			/api/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req codeguidesdk.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	u, err := h.Credentials.Register(ctx, req.Username, req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRegistration), errors.Is(err, service.ErrPasswordMismatch):
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrDuplicateUser):
			httpx.WriteError(w, http.StatusConflict, err.Error())
		default:
			slogx.FromContext(ctx).Error("register failed", "error", err)
			httpx.WriteError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, codeguidesdk.UserResponse{Success: true, User: toSDKUser(u)})
}

// HandleLogin godoc
//
//	@Summary		Login
//	@Description	Verifies email and password and replaces the current session.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		codeguidesdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	codeguidesdk.SessionResponse
//	@Failure		400		{object}	codeguidesdk.ErrorResponse	"Missing field"
//	@Failure		401		{object}	codeguidesdk.ErrorResponse	"Wrong password"
//	@Failure		404		{object}	codeguidesdk.ErrorResponse	"No such user"
//	@Failure		429		{object}	codeguidesdk.ErrorResponse
//	@Router			/api/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req codeguidesdk.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	u, sess, err := h.Credentials.Login(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			httpx.WriteError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrInvalidCredentials):
			httpx.WriteError(w, http.StatusUnauthorized, err.Error())
		default:
			slogx.FromContext(ctx).Error("login failed", "error", err)
			httpx.WriteError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, codeguidesdk.SessionResponse{
		Success: true,
		User:    toSDKUser(u),
		Session: toSDKSession(sess),
	})
}

// HandleLogout godoc
//
//	@Summary		Logout
//	@Description	Ends the current session. Logging out with no session is not an error.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	codeguidesdk.StatusResponse
//	@Router			/api/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.Credentials.Logout(ctx); err != nil {
		slogx.FromContext(ctx).Error("logout failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, codeguidesdk.StatusResponse{Success: true})
}

// HandleSession godoc
//
//	@Summary		Current Session
//	@Description	Returns the logged in user and session.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	codeguidesdk.SessionResponse
//	@Failure		401	{object}	codeguidesdk.ErrorResponse	"No active session"
//	@Router			/api/auth/session [get].
func (h *AuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	u, sess, err := h.Credentials.CurrentUser(ctx)
	if err != nil {
		if errors.Is(err, service.ErrNoSession) {
			httpx.WriteError(w, http.StatusUnauthorized, err.Error())
			return
		}
		slogx.FromContext(ctx).Error("session lookup failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, codeguidesdk.SessionResponse{
		Success: true,
		User:    toSDKUser(u),
		Session: toSDKSession(sess),
	})
}
