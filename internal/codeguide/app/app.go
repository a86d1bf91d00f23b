package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/codeguide/internal/codeguide/domain"
	httpapi "github.com/aussiebroadwan/codeguide/internal/codeguide/http"
	"github.com/aussiebroadwan/codeguide/internal/codeguide/service"
	"github.com/aussiebroadwan/codeguide/internal/codeguide/store"
	"github.com/aussiebroadwan/codeguide/pkg/cryptox"
	"github.com/aussiebroadwan/codeguide/pkg/jwtx"
	"github.com/aussiebroadwan/codeguide/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application is the gateway with all of its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	signer   *jwtx.EdDSASigner
	verifier *jwtx.EdDSAVerifier

	credentialService   *service.CredentialService
	gatewayService      *service.GatewayService
	housekeepingService *service.HousekeepingService // nil without a SESSION_TTL

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "codeguide-gateway",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	cryptox.SetPepperPath(cfg.PepperFile)
	if err := cryptox.LoadPepper(); err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}

	db, err := OpenStore(cfg, app.logger)
	if err != nil {
		return nil, err
	}
	app.db = db

	app.signer, app.verifier, err = InitSessionKeys(cfg, app.logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Handler exposes the routed handler, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	if app.housekeepingService != nil {
		app.housekeepingService.Start()
	}

	app.logger.Info("codeguide gateway starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"store", app.cfg.StoreDriver,
		"server_key", app.cfg.OpenRouterAPIKey != "",
		"require_session", app.cfg.RequireSession,
		"debug_routes", app.cfg.DebugRoutes,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains in-flight requests, stops the housekeeper and closes the store.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down codeguide gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if app.housekeepingService != nil {
		app.housekeepingService.Stop()
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing store", "error", err)
		return err
	}

	app.logger.Info("codeguide gateway stopped")
	return nil
}

func (app *Application) initServices() {
	app.credentialService = &service.CredentialService{
		Store:      app.db,
		Signer:     app.signer,
		Verifier:   app.verifier,
		Issuer:     app.cfg.Issuer,
		SessionTTL: app.cfg.SessionTTL,
	}

	app.gatewayService = &service.GatewayService{
		BaseURL:    app.cfg.OpenRouterBaseURL,
		HTTPClient: service.NewUpstreamClient(app.cfg.UpstreamTimeout),
		ServerKey:  app.cfg.OpenRouterAPIKey,
		KeyPrefix:  app.cfg.KeyPrefix,
		Providers:  domain.ProviderPreferences{Order: app.cfg.ProviderOrder, AllowFallbacks: true},
	}

	if app.cfg.SessionTTL > 0 {
		app.housekeepingService = service.NewHousekeepingService(
			app.credentialService,
			app.logger,
			app.cfg.HousekeepingInterval,
		)
	}
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.signer, app.logger)

	router.CredentialService = app.credentialService
	router.GatewayService = app.gatewayService
	router.AppURL = app.cfg.AppURL
	router.RequireSession = app.cfg.RequireSession
	router.DebugRoutes = app.cfg.DebugRoutes
	router.ApplyRoutes()

	app.router = router

	// No WriteTimeout: completions stream for as long as the upstream does.
	// UPSTREAM_TIMEOUT only bounds the wait for upstream response headers.
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
