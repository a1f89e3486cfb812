package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/onnwee/forcemap/internal/config"
	"github.com/onnwee/forcemap/internal/db"
	"github.com/onnwee/forcemap/internal/graph"
	"github.com/onnwee/forcemap/internal/logger"
	"github.com/onnwee/forcemap/internal/server"
)

// One-shot layout recompute. The server runs the same thing on a timer;
// this exists for migrations, cron jobs and manual kicks.
func main() {
	graphID := flag.String("graph", "", "recompute a single graph (UUID) instead of all graphs")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found (falling back to system env)")
	}

	cfg := config.Load()
	logger.Init(cfg.LogLevel)

	conn, err := server.InitDB(os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatalf("DB init failed: %v", err)
	}
	defer conn.Close()

	queries := db.New(conn)
	svc := graph.NewService(queries, nil, nil)
	ctx := context.Background()

	if *graphID != "" {
		id, err := uuid.Parse(*graphID)
		if err != nil {
			log.Fatalf("Invalid graph id %q: %v", *graphID, err)
		}
		run, err := svc.EnqueueLayout(ctx, id, nil)
		if err != nil {
			log.Fatalf("Failed to enqueue layout: %v", err)
		}
		if err := svc.ComputeLayout(ctx, run); err != nil {
			log.Fatalf("Layout failed: %v", err)
		}
		log.Printf("Layout for graph %s recomputed successfully", id)
		return
	}

	if err := svc.RelayoutAll(ctx); err != nil {
		log.Fatalf("Failed to recompute layouts: %v", err)
	}
	log.Println("All layouts recomputed successfully")
}
