package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/unrepo/devportal/internal/cache"
	"github.com/unrepo/devportal/internal/config"
	"github.com/unrepo/devportal/internal/database"
	"github.com/unrepo/devportal/internal/keystore"
	"github.com/unrepo/devportal/internal/logging"
	"github.com/unrepo/devportal/internal/monitoring"
	"github.com/unrepo/devportal/internal/server"
	"github.com/unrepo/devportal/internal/session"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logging
	logging.Setup(&cfg.Logging, cfg.Server.Env)

	log.Info().
		Str("env", cfg.Server.Env).
		Str("name", cfg.Server.Name).
		Str("backend", cfg.Backend.URL).
		Msg("Starting unrepo developer portal")

	// Initialize Prometheus metrics
	monitoring.Init()

	if cfg.Monitoring.PrometheusEnabled && cfg.Monitoring.PrometheusPort != 0 && cfg.Monitoring.PrometheusPort != cfg.Server.Port {
		go startMetricsServer(cfg.Monitoring.PrometheusPort)
	}

	if cfg.Cache.Backend == "postgres" {
		if err := database.RunMigrations(cfg.Database.URL); err != nil {
			log.Fatal().Err(err).Msg("Failed to run database migrations")
		}
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	keyCache, err := cache.Open(startCtx, cfg)
	cancelStart()
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Cache.Backend).Msg("Failed to open key cache")
	}
	defer keyCache.Close()

	client := keystore.NewClient(&cfg.Backend)

	srv := server.NewAPIServer(cfg, server.Deps{
		Store:  client,
		Users:  client,
		OAuth:  session.NewGitHubOAuth(&cfg.GitHub),
		Cache:  keyCache,
		Tokens: session.NewTokenManager(cfg.Session.Secret, cfg.Session.Expiry),
	})
	defer srv.Close()

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go srv.Registry().Run(sweepCtx, time.Minute)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Int("port", cfg.Server.Port).
			Str("url", cfg.Server.URL).
			Msg("Portal listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().
		Str("signal", sig.String()).
		Msg("Shutdown signal received, gracefully shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited gracefully")
}

func startMetricsServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.Handler())

	metricsServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Info().
		Int("port", port).
		Msg("Prometheus metrics server listening")

	if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Metrics server error")
	}
}
