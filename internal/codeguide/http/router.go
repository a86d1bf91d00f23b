package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/codeguide/internal/codeguide/service"
	"github.com/aussiebroadwan/codeguide/internal/codeguide/store"
	"github.com/aussiebroadwan/codeguide/pkg/httpx"
	"github.com/aussiebroadwan/codeguide/pkg/jwtx"
	"github.com/aussiebroadwan/codeguide/pkg/slogx"

	_ "github.com/aussiebroadwan/codeguide/api/codeguide" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// MaxBodyBytes caps every request body.
const MaxBodyBytes = 10 << 20

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store
	signer       jwtx.Signer

	CredentialService *service.CredentialService
	GatewayService    *service.GatewayService

	// AppURL is the referer used when a request carries no usable origin.
	AppURL string

	// RequireSession guards the proxy with the current session's bearer token.
	RequireSession bool

	// DebugRoutes exposes user listing and the data wipe.
	DebugRoutes bool
}

func NewRouter(buildVersion string, st store.Store, signer jwtx.Signer, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
		signer:       signer,
	}

	// Recover sits inside the logger so a panic is logged as a 500.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.Recover(),
		httpx.LimitBody(MaxBodyBytes),
	}
	return r
}

func (r *Router) ApplyRoutes() {
	r.registerProxy()
	r.registerAuth()
	if r.DebugRoutes {
		r.registerAdmin()
	}
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpx.Chain(httpSwagger.Handler(),
		httpx.RateLimitByIP(httpx.PublicLimit),
	))
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			CodeGuide Gateway API
//	@version		0.1.0
//	@description	Server side of CodeGuide AI: a proxy to the OpenRouter API and a local credential store.
//	@description
//	@description				Every failure is a {success:false, error, details?} envelope.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/codeguide
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Session token from /api/auth/login. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) validateSession() httpx.TokenValidator {
	return func(ctx context.Context, token string) (string, error) {
		sess, err := r.CredentialService.ValidateToken(ctx, token)
		if err != nil {
			return "", err
		}
		return sess.UserID, nil
	}
}

func (r *Router) registerProxy() {
	h := &OpenRouterHandler{Gateway: r.GatewayService, AppURL: r.AppURL}

	mws := []httpx.Middleware{}
	if r.RequireSession {
		mws = append(mws, httpx.RequireBearer(r.validateSession()))
	}
	mws = append(mws, httpx.RateLimitByUser(httpx.ModerateLimit))

	r.Mux.Handle("POST /api/openrouter", httpx.Chain(h, mws...))
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Credentials: r.CredentialService}

	// Strict limits: register by IP, login by IP + email.
	r.Mux.Handle("POST /api/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /api/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "email"),
		),
	)

	r.Mux.Handle("POST /api/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /api/auth/session",
		httpx.Chain(http.HandlerFunc(h.HandleSession),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerAdmin() {
	h := &AdminHandler{Credentials: r.CredentialService}

	r.Mux.Handle("GET /api/auth/users",
		httpx.Chain(http.HandlerFunc(h.HandleListUsers),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("DELETE /api/auth/data",
		httpx.Chain(http.HandlerFunc(h.HandleClearAllData),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.signer),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}
