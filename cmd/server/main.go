package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/forcemap/internal/config"
	"github.com/onnwee/forcemap/internal/errorreporting"
	"github.com/onnwee/forcemap/internal/logger"
	"github.com/onnwee/forcemap/internal/secrets"
	"github.com/onnwee/forcemap/internal/server"
	"github.com/onnwee/forcemap/internal/tracing"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found (falling back to system env)")
	}

	if err := secrets.ValidateRequired("DATABASE_URL"); err != nil {
		log.Fatalf("Startup aborted: %v", err)
	}

	cfg := config.Load()
	logger.Init(cfg.LogLevel)

	if err := errorreporting.Init(cfg); err != nil {
		log.Printf("⚠️  Sentry init failed: %v", err)
	}

	shutdownTracing, err := tracing.Init("forcemap", cfg)
	if err != nil {
		log.Printf("⚠️  Tracing init failed: %v", err)
	}

	dbURL := os.Getenv("DATABASE_URL")
	log.Printf("Connecting to %s", secrets.MaskDSN(dbURL))
	conn, err := server.InitDB(dbURL)
	if err != nil {
		log.Fatalf("DB init failed: %v", err)
	}
	defer conn.Close()

	srv, err := server.New(conn)
	if err != nil {
		log.Fatalf("Server init failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		log.Fatalf("Background jobs failed to start: %v", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      srv.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("🚀 Server running at http://localhost%s", cfg.ServerAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Graceful shutdown failed: %v", err)
	}

	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Printf("⚠️  Tracing shutdown failed: %v", err)
		}
	}
	errorreporting.Flush(2 * time.Second)
	log.Println("Server stopped")
}
