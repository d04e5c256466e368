package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-collector/src/config"
	"market-collector/src/controlplane"
	"market-collector/src/logger"
	"market-collector/src/rest"
	"market-collector/src/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.New(cfg.LogLevel)
	defer appLogger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Read-side store
	db, err := store.New(&cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("failed to open store: %v", err)
	}
	defer db.Close()

	// Control plane
	cp, err := controlplane.NewRedisControlPlane(ctx, &cfg.Redis, appLogger)
	if err != nil {
		appLogger.Fatal("failed to connect control plane: %v", err)
	}
	defer cp.Close()

	handler := rest.NewHandler(&cfg.API, appLogger, db, cp, cp, cfg.Feed.DefaultExchange)

	server := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	go func() {
		appLogger.Info("REST API listening on %s", cfg.API.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("api server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	appLogger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("api shutdown failed: %v", err)
	}
}
