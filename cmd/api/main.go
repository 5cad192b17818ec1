package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/novel-engine/internal/config"
	"github.com/jwebster45206/novel-engine/internal/handlers"
	"github.com/jwebster45206/novel-engine/internal/logger"
	"github.com/jwebster45206/novel-engine/internal/middleware"
	"github.com/jwebster45206/novel-engine/internal/services/events"
	"github.com/jwebster45206/novel-engine/internal/storage"
	"github.com/jwebster45206/novel-engine/pkg/content"
	"github.com/jwebster45206/novel-engine/pkg/state"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Novel Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"data_dir", cfg.DataDir,
		"store_backend", cfg.StoreBackend)

	storeCtx, storeCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storeCancel()

	store, err := storage.Open(storeCtx, storage.Options{
		Backend:        cfg.StoreBackend,
		RedisURL:       cfg.RedisURL,
		SQLitePath:     cfg.SQLitePath,
		ConnectRetries: 30,
		RetryDelay:     2 * time.Second,
	}, log)
	if err != nil {
		log.Error("Failed to open save store", "error", err)
		os.Exit(1)
	}
	log.Info("Save store ready", "backend", cfg.StoreBackend)

	repo := content.NewFileRepository(cfg.DataDir, log)
	registry := state.NewRegistry(repo, store, state.Options{
		Profile:       cfg.SaveProfile,
		StartScene:    cfg.StartScene,
		StatsPreset:   cfg.StatsPreset,
		AutoPlaySpeed: cfg.AutoPlaySpeed,
	}, log)

	mux := http.NewServeMux()

	// Live session events need Redis pub/sub.
	var broadcaster *events.Broadcaster
	if rs, ok := store.(*storage.RedisStore); ok {
		broadcaster = events.NewBroadcaster(rs.Client(), log)
		registry.Observe(broadcaster.Observer())
		mux.Handle("/v1/events/sessions/", handlers.NewEventsHandler(rs.Client(), log))
		log.Info("Session event stream enabled")
	}

	healthHandler := handlers.NewHealthHandler(store, registry, log)
	mux.Handle("/health", healthHandler)

	sessionHandler := handlers.NewSessionHandler(registry, broadcaster, log)
	mux.Handle("/v1/sessions", sessionHandler)
	mux.Handle("/v1/sessions/", sessionHandler)

	handler := middleware.Logger(mux)
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the event stream stays open
		IdleTimeout: 60 * time.Second,
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

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	registry.CloseAll()
	if err := store.Close(); err != nil {
		log.Error("Error closing save store", "error", err)
	}

	log.Info("Server exited")
}
