package server

import (
	"context"
	"database/sql"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"

	"github.com/onnwee/forcemap/internal/api"
	"github.com/onnwee/forcemap/internal/api/handlers"
	"github.com/onnwee/forcemap/internal/cache"
	"github.com/onnwee/forcemap/internal/config"
	"github.com/onnwee/forcemap/internal/db"
	"github.com/onnwee/forcemap/internal/graph"
	"github.com/onnwee/forcemap/internal/integrity"
	"github.com/onnwee/forcemap/internal/logger"
	"github.com/onnwee/forcemap/internal/metrics"
	"github.com/onnwee/forcemap/internal/utils"
)

// Server owns the long-lived pieces of the service: the database pool,
// the response cache, the WebSocket hub, the layout engine and the HTTP
// router, plus the background loops that keep them healthy.
type Server struct {
	Queries *db.Queries
	Cache   cache.Cache
	Hub     *handlers.Hub
	Layout  *graph.Service
	Router  *mux.Router

	conn      *sql.DB
	layoutJob *graph.Job
	collector *metrics.Collector
	integrity *integrity.Service
}

// InitDB opens the Postgres pool and verifies connectivity. The ping is
// retried so the service survives a database that is still starting up.
func InitDB(dbURL string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if err := utils.Retry(5, 2*time.Second, conn.Ping); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// New assembles a server from an open database connection.
func New(conn *sql.DB) (*Server, error) {
	cfg := config.Load()

	queries := db.New(conn)
	responseCache, err := cache.NewLRU(int64(cfg.CacheMaxSizeMB), int64(cfg.CacheMaxItems), cfg.CacheTTL)
	if err != nil {
		return nil, err
	}

	hub := handlers.NewHub()
	layoutService := graph.NewService(queries, responseCache, hub)

	s := &Server{
		Queries:   queries,
		Cache:     responseCache,
		Hub:       hub,
		Layout:    layoutService,
		conn:      conn,
		collector: metrics.NewCollector(queries, responseCache, 30*time.Second),
		integrity: integrity.NewService(conn),
	}
	s.Router = api.NewRouter(api.Deps{
		Queries: queries,
		Cache:   responseCache,
		Layout:  layoutService,
		Hub:     hub,
	})

	if !cfg.DisableLayoutJob {
		s.layoutJob = graph.NewJob(layoutService, cfg.LayoutJobInterval)
	}
	return s, nil
}

// Start launches the background loops. They all stop when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go s.Hub.Run(ctx)
	go s.collector.Start(ctx)
	go s.maintenanceLoop(ctx)
	if s.layoutJob != nil {
		go s.layoutJob.Start(ctx)
	}
	return nil
}

// maintenanceLoop sweeps layout runs orphaned by a crashed or restarted
// process. The layout job only schedules new work, so without the sweep a
// run stuck in running would block its graph forever.
func (s *Server) maintenanceLoop(ctx context.Context) {
	cfg := config.Load()
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		if _, err := s.integrity.FailStaleRuns(ctx, cfg.StaleRunAfter); err != nil {
			logger.Error("Stale run sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
