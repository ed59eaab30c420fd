package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tabeldata/oauth-sso/internal/sso/service"
	"github.com/tabeldata/oauth-sso/internal/sso/store"
	"github.com/tabeldata/oauth-sso/pkg/httpx"
	"github.com/tabeldata/oauth-sso/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	adminToken   string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store          store.Store
	TokenStore     *service.TokenStore
	HistoryService *service.History
}

func NewRouter(adminToken, buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		adminToken:   adminToken,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerTokens()
	r.registerHistory()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerTokens() {
	h := &TokensHandler{TokenStore: r.TokenStore}

	// GET /v1/tokens - admin listing of active sessions, moderate limit
	secured := httpx.Chain(http.HandlerFunc(h.HandleList),
		httpx.StaticBearerMiddleware(r.adminToken),
		httpx.RateLimitByIP(httpx.ModerateLimit),
	)

	r.Mux.Handle("GET /v1/tokens", secured)
}

func (r *Router) registerHistory() {
	h := &HistoryHandler{HistoryService: r.HistoryService}

	securedByUser := httpx.Chain(http.HandlerFunc(h.HandleByUser),
		httpx.StaticBearerMiddleware(r.adminToken),
		httpx.RateLimitByIP(httpx.ModerateLimit),
	)
	securedByClient := httpx.Chain(http.HandlerFunc(h.HandleByClient),
		httpx.StaticBearerMiddleware(r.adminToken),
		httpx.RateLimitByIP(httpx.ModerateLimit),
	)
	securedByBoth := httpx.Chain(http.HandlerFunc(h.HandleByUserAndClient),
		httpx.StaticBearerMiddleware(r.adminToken),
		httpx.RateLimitByIP(httpx.ModerateLimit),
	)

	r.Mux.Handle("GET /v1/history/users/{username}", securedByUser)
	r.Mux.Handle("GET /v1/history/clients/{client_id}", securedByClient)
	r.Mux.Handle("GET /v1/history/users/{username}/clients/{client_id}", securedByBoth)
}

func (r *Router) registerSystem() {
	// Health check endpoints - high limits (monitoring systems poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}
