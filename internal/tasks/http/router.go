package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/nimbusworks/taskhive/internal/tasks/metrics"
	"github.com/nimbusworks/taskhive/internal/tasks/service"
	"github.com/nimbusworks/taskhive/internal/tasks/session"
	"github.com/nimbusworks/taskhive/internal/tasks/store"
	"github.com/nimbusworks/taskhive/pkg/httpx"
	"github.com/nimbusworks/taskhive/pkg/oidcx"
	"github.com/nimbusworks/taskhive/pkg/slogx"
)

// ProviderConfig carries the hosted identity provider endpoints the login
// handlers redirect to. A zero value means the provider is not configured
// and the local development login is active instead.
type ProviderConfig struct {
	AuthorizeURL string
	LogoutURL    string
	ClientID     string
	RedirectURI  string
}

func (p ProviderConfig) Enabled() bool { return p.AuthorizeURL != "" }

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store    store.Store
	sessions *session.Manager
	keys     *oidcx.KeyCache // nil in local mode
	provider ProviderConfig

	Authenticator service.Authenticator
	TaskService   *service.TaskService
	AuditService  *service.AuditService
}

func NewRouter(
	buildVersion string,
	st store.Store,
	sessions *session.Manager,
	keys *oidcx.KeyCache,
	provider ProviderConfig,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		sessions:     sessions,
		keys:         keys,
		provider:     provider,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		withSession(r.sessions),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerTasks()
	r.registerAdmin()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	loginHandler := &LoginHandler{
		Provider:      r.provider,
		Authenticator: r.Authenticator,
		Sessions:      r.sessions,
		Audit:         r.AuditService,
	}

	r.Mux.Handle("GET /login",
		httpx.Chain(http.HandlerFunc(loginHandler.HandleLogin),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// Local bypass takes a form identity, so key the limiter on IP+email
	// to stop one address cycling identities.
	r.Mux.Handle("POST /login/local",
		httpx.Chain(http.HandlerFunc(loginHandler.HandleLocalLogin),
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "email"),
		),
	)

	r.Mux.Handle("GET /callback",
		httpx.Chain(http.HandlerFunc(loginHandler.HandleCallback),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("GET /logout",
		httpx.Chain(http.HandlerFunc(loginHandler.HandleLogout),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerTasks() {
	tasksHandler := &TasksHandler{Tasks: r.TaskService}

	limit := httpx.RateLimitByIP(httpx.LenientLimit)

	r.Mux.Handle("GET /api/tasks", httpx.Chain(http.HandlerFunc(tasksHandler.HandleList), limit))
	r.Mux.Handle("POST /api/tasks", httpx.Chain(http.HandlerFunc(tasksHandler.HandleCreate), limit))
	r.Mux.Handle("GET /api/tasks/{id}", httpx.Chain(http.HandlerFunc(tasksHandler.HandleGet), limit))
	r.Mux.Handle("PUT /api/tasks/{id}", httpx.Chain(http.HandlerFunc(tasksHandler.HandleUpdate), limit))
	r.Mux.Handle("POST /api/tasks/{id}/status", httpx.Chain(http.HandlerFunc(tasksHandler.HandleStatus), limit))
	r.Mux.Handle("DELETE /api/tasks/{id}", httpx.Chain(http.HandlerFunc(tasksHandler.HandleDelete), limit))
	r.Mux.Handle("GET /api/stats", httpx.Chain(http.HandlerFunc(tasksHandler.HandleStats), limit))
}

func (r *Router) registerAdmin() {
	adminHandler := &AdminHandler{Tasks: r.TaskService, Audit: r.AuditService}

	limit := httpx.RateLimitByIP(httpx.ModerateLimit)

	r.Mux.Handle("GET /api/admin/tasks", httpx.Chain(http.HandlerFunc(adminHandler.HandleAllTasks), limit))
	r.Mux.Handle("GET /api/admin/audit", httpx.Chain(http.HandlerFunc(adminHandler.HandleAuditLog), limit))
	r.Mux.Handle("GET /api/admin/users", httpx.Chain(http.HandlerFunc(adminHandler.HandleUserCounts), limit))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.sessions, r.keys))
	r.Mux.Handle("GET /metrics", metrics.Handler(r.store))
}
