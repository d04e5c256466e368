package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"market-collector/src/collector"
	"market-collector/src/config"
	"market-collector/src/controlplane"
	"market-collector/src/feeds"
	"market-collector/src/interfaces"
	"market-collector/src/logger"
	"market-collector/src/normalizer"
	"market-collector/src/publishers"
	"market-collector/src/serializers"
	"market-collector/src/store"
)

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

	// Persistence
	db, err := store.New(&cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("failed to open store: %v", err)
	}
	defer db.Close()

	spill, err := store.NewSpillLog(cfg.Writer.SpillDir, appLogger)
	if err != nil {
		appLogger.Fatal("failed to open spill log: %v", err)
	}
	writer := store.NewBatchWriter(&cfg.Writer, appLogger, db, spill)

	// Control plane
	cp, err := controlplane.NewRedisControlPlane(ctx, &cfg.Redis, appLogger)
	if err != nil {
		appLogger.Fatal("failed to connect control plane: %v", err)
	}
	defer cp.Close()

	// Optional fan-out
	var publisher interfaces.IPublisher
	if len(cfg.NATS.Servers) > 0 {
		publisher = publishers.NewNATSPublisher(&cfg.NATS, appLogger, serializers.NewJSONSerializer())
	}

	// Pipeline
	norm := normalizer.NewNormalizer(cfg.Feed.MaxDepth)
	svc := collector.New(cfg.MConfig, appLogger, nil, writer, norm, cp, cp, collector.Options{
		Publisher: publisher,
		Retention: db,
	})
	session := feeds.NewSession(&cfg.Feed, appLogger, svc.OnRawEvent)
	svc.SetSession(session)

	if err := svc.Run(ctx); err != nil {
		appLogger.Fatal("failed to start collector: %v", err)
	}
	defer svc.Stop()

	appLogger.Info("collector running, %d initial symbols. Press Ctrl+C to stop.", len(cfg.Feed.Symbols))

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	appLogger.Info("shutting down...")
}
