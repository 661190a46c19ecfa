package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/moviestream/auth/internal/auth/cache"
	"github.com/moviestream/auth/internal/auth/service"
	"github.com/moviestream/auth/internal/auth/store"
	"github.com/moviestream/auth/pkg/httpx"
	"github.com/moviestream/auth/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store    store.Store
	sessions cache.SessionCache

	// RequestCeiling is the per-host fixed-window request budget shared
	// through the session cache.
	RequestCeiling int64

	TokenService *service.TokenService
	UserService  *service.UserService
	RolesService *service.RolesService
	OAuthService *service.OAuthService
}

func NewRouter(
	buildVersion string,
	st store.Store,
	sessions cache.SessionCache,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:            http.NewServeMux(),
		buildVersion:   buildVersion,
		startTime:      time.Now(),
		store:          st,
		sessions:       sessions,
		logger:         logger,
		RequestCeiling: 20,
	}

	return r
}

// ApplyRoutes builds the middleware chain and registers every endpoint.
// Call it after any knobs like RequestCeiling have been set.
func (r *Router) ApplyRoutes() {
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		RateLimitByWindow(r.sessions, r.RequestCeiling),
	}

	r.registerAuth()
	r.registerUsers()
	r.registerRoles()
	r.registerOAuth()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		TokenService: r.TokenService,
		UserService:  r.UserService,
		RolesService: r.RolesService,
	}

	// Signup and the login variants are the brute-force targets, so they
	// also carry the in-process burst limiter on top of the shared window.
	r.Mux.Handle("POST /api/v1/auth/signup",
		httpx.Chain(http.HandlerFunc(h.HandleSignup),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("POST /api/v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("POST /api/v1/auth/login-sso",
		httpx.Chain(http.HandlerFunc(h.HandleLoginSSO),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("POST /api/v1/auth/refresh", http.HandlerFunc(h.HandleRefresh))
	r.Mux.Handle("POST /api/v1/auth/logout", http.HandlerFunc(h.HandleLogout))
}

func (r *Router) registerUsers() {
	h := &UsersHandler{
		UserService:  r.UserService,
		RolesService: r.RolesService,
	}

	authn := AuthnMiddleware(r.TokenService)
	admin := RequireAdmin(r.RolesService)

	r.Mux.Handle("GET /api/v1/users/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe), authn))
	r.Mux.Handle("PATCH /api/v1/users/change-login-password",
		httpx.Chain(http.HandlerFunc(h.HandleChangeLoginPassword), authn))
	r.Mux.Handle("GET /api/v1/users/login-history",
		httpx.Chain(http.HandlerFunc(h.HandleLoginHistory), authn))

	// Role checks only need a valid access token; other services call
	// them to gate their own surfaces.
	r.Mux.Handle("POST /api/v1/users/check_roles",
		httpx.Chain(http.HandlerFunc(h.HandleCheckRoles), authn))
	r.Mux.Handle("GET /api/v1/users/check_admin",
		httpx.Chain(http.HandlerFunc(h.HandleCheckAdmin), authn))

	r.Mux.Handle("POST /api/v1/users/add-role",
		httpx.Chain(http.HandlerFunc(h.HandleAddRole), authn, admin))
	r.Mux.Handle("DELETE /api/v1/users/delete-role",
		httpx.Chain(http.HandlerFunc(h.HandleDeleteRole), authn, admin))
	r.Mux.Handle("GET /api/v1/users/roles",
		httpx.Chain(http.HandlerFunc(h.HandleUserRoles), authn, admin))

	// Batch lookup for sibling services; deliberately unauthenticated,
	// like the rest of the service-to-service surface.
	r.Mux.Handle("POST /api/v1/users/user_ids", http.HandlerFunc(h.HandleUserIDs))
}

func (r *Router) registerRoles() {
	h := &RolesHandler{RolesService: r.RolesService}

	authn := AuthnMiddleware(r.TokenService)
	admin := RequireAdmin(r.RolesService)

	// Role management is admin-only.
	r.Mux.Handle("GET /api/v1/roles/{$}",
		httpx.Chain(http.HandlerFunc(h.HandleList), authn, admin))
	r.Mux.Handle("POST /api/v1/roles/create",
		httpx.Chain(http.HandlerFunc(h.HandleCreate), authn, admin))
	r.Mux.Handle("PATCH /api/v1/roles/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleUpdate), authn, admin))
	r.Mux.Handle("DELETE /api/v1/roles/delete/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleDelete), authn, admin))
}

func (r *Router) registerOAuth() {
	h := &OAuthHandler{OAuthService: r.OAuthService}

	r.Mux.Handle("GET /api/v1/oauth/signup/{provider}", http.HandlerFunc(h.HandleSignup))
	r.Mux.Handle("GET /api/v1/oauth/redirect/{provider}", http.HandlerFunc(h.HandleRedirect))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.sessions),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}
