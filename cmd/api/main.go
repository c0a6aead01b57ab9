package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inferno-games/quantum-salvation/internal/broadcast"
	"github.com/inferno-games/quantum-salvation/internal/config"
	"github.com/inferno-games/quantum-salvation/internal/handlers"
	"github.com/inferno-games/quantum-salvation/internal/logger"
	"github.com/inferno-games/quantum-salvation/internal/middleware"
	"github.com/inferno-games/quantum-salvation/internal/session"
	"github.com/inferno-games/quantum-salvation/internal/storage"
	"github.com/inferno-games/quantum-salvation/pkg/story"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Quantum Salvation API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"data_dir", cfg.DataDir)

	store := storage.NewRedisStorage(cfg.RedisURL, cfg.DataDir, cfg.TTL, log)

	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	if err := store.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}

	catalog, err := store.LoadCatalog(storageCtx)
	if err != nil {
		log.Error("Failed to load campaign catalog", "error", err)
		os.Exit(1)
	}
	log.Info("Campaign catalog loaded",
		"missions", len(catalog.Missions),
		"cinematics", len(catalog.Cinematics),
		"chapters", len(catalog.Chapters))

	broadcaster := broadcast.NewBroadcaster(store.Client(), log)
	manager := session.NewManager(store, catalog, broadcaster, story.Config{
		TotalDuration:    cfg.TotalDuration,
		InitialSeverity:  cfg.InitialSeverity,
		SeverityBaseRate: cfg.SeverityBaseRate,
	}, log)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(store, log)
	mux.Handle("/health", healthHandler)

	sessionHandler := handlers.NewSessionHandler(manager, log)
	mux.Handle("/v1/sessions", sessionHandler)
	mux.Handle("/v1/sessions/", sessionHandler)

	handler := middleware.Logger(mux)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	manager.Close()
	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("Server exited")
}
