package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/codeguide/pkg/slogx"
)

// TokenValidator resolves a bearer token to the user id it belongs to.
type TokenValidator func(ctx context.Context, token string) (userID string, err error)

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	return raw, raw != ""
}

// RequireBearer rejects requests without a valid session token.
func RequireBearer(validate TokenValidator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw, ok := BearerToken(r)
			if !ok {
				writeBearerError(w, "missing bearer token")
				return
			}

			userID, err := validate(ctx, raw)
			if err != nil {
				slogx.FromContext(ctx).Warn("session token rejected", "err", err)
				writeBearerError(w, "invalid session token")
				return
			}

			next.ServeHTTP(w, r.WithContext(contextWithUserID(ctx, userID)))
		})
	}
}

// RFC 6750 challenge with the JSON failure envelope as body.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteError(w, http.StatusUnauthorized, desc)
}
