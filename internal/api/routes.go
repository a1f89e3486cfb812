package api

import (
	"net/http"
	_ "net/http/pprof"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/forcemap/internal/api/handlers"
	"github.com/onnwee/forcemap/internal/cache"
	"github.com/onnwee/forcemap/internal/config"
	"github.com/onnwee/forcemap/internal/db"
	"github.com/onnwee/forcemap/internal/graph"
	"github.com/onnwee/forcemap/internal/middleware"
)

// Deps carries everything the router hands to handlers.
type Deps struct {
	Queries *db.Queries
	Cache   cache.Cache
	Layout  *graph.Service
	Hub     *handlers.Hub
}

// NewRouter builds the full route table with the middleware stack applied.
func NewRouter(d Deps) *mux.Router {
	cfg := config.Load()

	r := mux.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RecoverWithSentry)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(middleware.CORSWithOrigins(cfg.CORSAllowedOrigins)))

	// WebSocket upgrades and Prometheus scrapes need the raw
	// ResponseWriter, so they sit outside the compression and rate limit
	// chain.
	ws := handlers.NewWebSocketHandler(d.Hub)
	r.HandleFunc("/ws", ws.HandleWebSocket).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/").Subrouter()
	api.Use(middleware.Metrics)
	if cfg.EnableRateLimit {
		limiter := middleware.NewRateLimiter(
			cfg.RateLimitGlobal, cfg.RateLimitGlobalBurst,
			cfg.RateLimitPerIP, cfg.RateLimitPerIPBurst)
		api.Use(limiter.Limit)
	}
	api.Use(middleware.ValidateRequestBody)
	api.Use(middleware.Compress)

	graphs := handlers.NewGraphHandler(d.Queries, d.Cache)
	layouts := handlers.NewLayoutHandler(d.Layout, d.Queries)
	versions := handlers.NewVersionHandler(d.Queries, d.Cache)
	exports := handlers.NewExportHandler(d.Queries)

	// Health and stats
	api.HandleFunc("/healthz", handlers.Health).Methods("GET")
	api.HandleFunc("/status", handlers.GetStatus(d.Queries)).Methods("GET")

	// Graphs
	api.HandleFunc("/graphs", graphs.CreateGraph).Methods("POST")
	api.HandleFunc("/graphs", graphs.ListGraphs).Methods("GET")
	api.Handle("/graphs/{id}", middleware.ETag(http.HandlerFunc(graphs.GetGraph))).Methods("GET")
	api.Handle("/graphs/{id}", adminOnly(http.HandlerFunc(graphs.DeleteGraph))).Methods("DELETE")

	// Layout runs
	api.Handle("/graphs/{id}/layout", adminOnly(http.HandlerFunc(layouts.TriggerLayout))).Methods("POST")
	api.HandleFunc("/graphs/{id}/runs", layouts.ListRuns).Methods("GET")
	api.HandleFunc("/layouts/{id}", layouts.GetLayoutRun).Methods("GET")

	// Version history
	api.HandleFunc("/graphs/{id}/versions", versions.ListVersions).Methods("GET")
	api.HandleFunc("/graphs/{id}/diff", versions.GetDiffSince).Methods("GET")

	// Export
	api.HandleFunc("/graphs/{id}/export", exports.ExportGraph).Methods("GET")

	// Operator surface
	cacheAdmin := handlers.NewCacheAdminHandler(d.Cache)
	api.Handle("/admin/cache/flush", adminOnly(http.HandlerFunc(cacheAdmin.FlushCache))).Methods("POST")
	api.Handle("/admin/cache/stats", adminOnly(http.HandlerFunc(cacheAdmin.GetCacheStats))).Methods("GET")

	// pprof also wants the raw ResponseWriter, so it hangs off the root
	// router like /ws and /metrics do.
	r.PathPrefix("/debug/pprof/").Handler(adminOnly(auditPprof(http.DefaultServeMux)))

	return r
}

// auditPprof logs who pulls runtime profiles before delegating to the
// net/http/pprof handlers registered on the default mux.
func auditPprof(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlers.LogPprofAccess(r.Context(), r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

// adminOnly gates mutating endpoints behind the ADMIN_API_TOKEN bearer token.
func adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg := config.Load()
		if cfg.AdminAPIToken == "" {
			http.Error(w, "admin token not configured", http.StatusServiceUnavailable)
			return
		}
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix || auth[len(prefix):] != cfg.AdminAPIToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
