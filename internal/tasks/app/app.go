package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpapi "github.com/nimbusworks/taskhive/internal/tasks/http"
	"github.com/nimbusworks/taskhive/internal/tasks/service"
	"github.com/nimbusworks/taskhive/internal/tasks/session"
	"github.com/nimbusworks/taskhive/internal/tasks/store"
	"github.com/nimbusworks/taskhive/internal/tasks/store/drivers/sqlite"
	"github.com/nimbusworks/taskhive/pkg/oidcx"
	"github.com/nimbusworks/taskhive/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the task service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db           store.Store
	sessionStore session.Store
	sessions     *session.Manager
	keys         *oidcx.KeyCache // nil in local mode

	taskService  *service.TaskService
	auditService *service.AuditService
	auth         service.Authenticator

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "taskhive",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initSessions(); err != nil {
		return nil, err
	}
	app.initAuth()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	mode := "provider"
	if app.cfg.LocalLogin {
		mode = "local"
	}
	app.logger.Info("task service starting",
		"port", app.cfg.Port, "version", BuildVersion, "auth_mode", mode)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
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
	app.logger.Info("shutting down task service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.sessionStore.Close(); err != nil {
		app.logger.Error("error closing session store", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("task service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := app.db.ApplyMigrations(); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

func (app *Application) initSessions() error {
	if app.cfg.RedisURL != "" {
		rs, err := session.NewRedisStore(context.Background(), app.cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect session store: %w", err)
		}
		app.sessionStore = rs
	} else {
		app.logger.Warn("REDIS_URL not set, sessions are in-memory and lost on restart")
		app.sessionStore = session.NewMemoryStore()
	}

	secure := app.cfg.Env != "dev"
	app.sessions = session.NewManager(app.sessionStore, app.cfg.SessionTTL, secure)
	return nil
}

func (app *Application) initAuth() {
	if app.cfg.LocalLogin {
		app.auth = service.LocalAuthenticator{}
		return
	}

	app.keys = oidcx.NewKeyCache(app.cfg.JWKSURL())
	app.auth = &service.ProviderAuthenticator{
		Exchanger:  oidcx.NewExchanger(app.cfg.TokenURL(), app.cfg.ClientID, app.cfg.ClientSecret),
		Verifier:   oidcx.NewVerifier(app.keys, app.cfg.IssuerURL(), app.cfg.ClientID),
		AdminGroup: app.cfg.AdminGroup,
	}
}

func (app *Application) initServices() {
	app.taskService = &service.TaskService{Store: app.db}
	app.auditService = &service.AuditService{Store: app.db}
}

func (app *Application) initHTTP() {
	var provider httpapi.ProviderConfig
	if !app.cfg.LocalLogin {
		provider = httpapi.ProviderConfig{
			AuthorizeURL: app.cfg.AuthorizeURL(),
			LogoutURL:    app.cfg.LogoutURL(),
			ClientID:     app.cfg.ClientID,
			RedirectURI:  app.cfg.RedirectURI(),
		}
	}

	app.router = httpapi.NewRouter(
		BuildVersion,
		app.db,
		app.sessions,
		app.keys,
		provider,
		app.logger,
	)
	app.router.Authenticator = app.auth
	app.router.TaskService = app.taskService
	app.router.AuditService = app.auditService
	app.router.ApplyRoutes()

	app.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.cfg.Port),
		Handler: app.router,
	}
}
