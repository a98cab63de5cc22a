// Package http exposes the ledger over JSON HTTP routes.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/karanb04/18815-GoatTeam/internal/metrics"
)

// Pools is everything the router needs from the hardware pool ledger.
type Pools interface {
	PoolCreator
	PoolReader
	HistoryReader
}

// Users is everything the router needs from the identity store.
type Users interface {
	Authenticator
	UserReader
}

type RouterConfig struct {
	Transfers Transferer
	Pools     Pools
	Projects  ProjectManager
	Users     Users
	Storage   Pinger

	Log     zerolog.Logger
	Metrics *metrics.Metrics
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler

	CORSOrigins    []string
	AdminSecret    string
	RateLimitPerIP string
	Development    bool
}

func NewRouter(cfg RouterConfig) (http.Handler, error) {
	rateLimit, err := NewIPRateLimiter(cfg.RateLimitPerIP)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(chimid.RequestID)
	r.Use(chimid.RealIP)
	r.Use(RequestLogger(cfg.Log))
	r.Use(chimid.Recoverer)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(NewSecure(cfg.Development))
	r.Use(CORS(cfg.CORSOrigins))

	r.NotFound(NotFoundHandler().ServeHTTP)
	r.MethodNotAllowed(MethodNotAllowedHandler().ServeHTTP)

	r.Get("/health", HealthHandler(cfg.Storage))
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(rateLimit)

		r.Post("/add_user", HandleAddUser(cfg.Users))
		r.Post("/login", HandleLogin(cfg.Users))
		r.Get("/main", HandleMain(cfg.Users))

		r.Post("/create_project", HandleCreateProject(cfg.Projects))
		r.Post("/join_project", HandleJoinProject(cfg.Projects))
		r.Post("/get_project_info", HandleGetProjectInfo(cfg.Projects))
		r.Post("/get_user_projects_list", HandleUserProjectsList(cfg.Projects))
		r.Post("/get_project_history", HandleProjectHistory(cfg.Projects, cfg.Pools))

		r.Post("/check_out", HandleCheckOut(cfg.Transfers))
		r.Post("/check_in", HandleCheckIn(cfg.Transfers))

		r.Post("/get_hw_info", HandleGetHWInfo(cfg.Pools))
		r.Post("/get_all_hw_names", HandleAllHWNames(cfg.Pools))
		r.Get("/api/inventory", HandleInventory(cfg.Pools))
		r.Get("/api/availability", HandleAvailability(cfg.Pools))

		r.With(RequireAdminSecret(cfg.AdminSecret)).
			Post("/create_hardware_set", HandleCreateHardwareSet(cfg.Pools))
	})

	return r, nil
}
