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

	"github.com/moviestream/auth/internal/auth/cache"
	redisc "github.com/moviestream/auth/internal/auth/cache/redis"
	httpapi "github.com/moviestream/auth/internal/auth/http"
	"github.com/moviestream/auth/internal/auth/service"
	"github.com/moviestream/auth/internal/auth/store"
	"github.com/moviestream/auth/internal/auth/store/drivers/sqlite"
	"github.com/moviestream/auth/pkg/cryptox"
	"github.com/moviestream/auth/pkg/jwtx"
	"github.com/moviestream/auth/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	sessions cache.SessionCache

	tokenService *service.TokenService
	userService  *service.UserService
	rolesService *service.RolesService
	oauthService *service.OAuthService

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("AUTH_ACCESS_SECRET and AUTH_REFRESH_SECRET must be set")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}

	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initCache(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

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

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.sessions.Close(); err != nil {
		app.logger.Error("error closing session cache", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initCache connects the shared session cache.
func (app *Application) initCache() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sessions, err := redisc.New(ctx, app.cfg.RedisAddr, app.cfg.RedisPassword, app.cfg.RedisDB)
	if err != nil {
		return fmt.Errorf("failed to connect session cache: %w", err)
	}
	app.sessions = sessions
	return nil
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	app.tokenService = &service.TokenService{
		Store:        app.db,
		Cache:        app.sessions,
		AccessCodec:  jwtx.NewCodec([]byte(app.cfg.AccessSecret)),
		RefreshCodec: jwtx.NewCodec([]byte(app.cfg.RefreshSecret)),
		AccessTTL:    app.cfg.AccessTTL,
		RefreshTTL:   app.cfg.RefreshTTL,
	}

	app.userService = &service.UserService{Store: app.db}
	app.rolesService = &service.RolesService{Store: app.db}

	providers := map[string]*service.Provider{}
	if app.cfg.GoogleClientID != "" {
		p := service.NewGoogleProvider(
			app.cfg.GoogleClientID,
			app.cfg.GoogleClientSecret,
			app.cfg.GoogleRedirectURL,
		)
		providers[p.Name] = p
	}
	if app.cfg.YandexClientID != "" {
		p := service.NewYandexProvider(
			app.cfg.YandexClientID,
			app.cfg.YandexClientSecret,
			app.cfg.YandexRedirectURL,
		)
		providers[p.Name] = p
	}

	app.oauthService = &service.OAuthService{
		Store:     app.db,
		Tokens:    app.tokenService,
		Providers: providers,
	}

	if len(providers) == 0 {
		app.logger.Info("no identity providers configured, federated sign-in disabled")
	}
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.sessions, app.logger)

	router.TokenService = app.tokenService
	router.UserService = app.userService
	router.RolesService = app.rolesService
	router.OAuthService = app.oauthService
	router.RequestCeiling = app.cfg.RequestCeiling
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
