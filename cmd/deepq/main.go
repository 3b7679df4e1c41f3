// Package main provides the lila-deepq service: the deep-analysis job
// broker that ingests abuse-detection reports, hands chess games out to
// authenticated analysis workers, and forwards completed reports downstream.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"log/slog"
	"os"

	_ "github.com/lib/pq"

	"github.com/lila-deepq/deepq/internal/aggregation"
	"github.com/lila-deepq/deepq/internal/api"
	"github.com/lila-deepq/deepq/internal/api/middleware"
	"github.com/lila-deepq/deepq/internal/apiauth"
	"github.com/lila-deepq/deepq/internal/bus"
	"github.com/lila-deepq/deepq/internal/config"
	"github.com/lila-deepq/deepq/internal/ingestion"
	"github.com/lila-deepq/deepq/internal/queue"
	"github.com/lila-deepq/deepq/internal/store"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "deepq"
)

// Exit codes, per the external interface contract: 0 clean, 1 configuration
// error, 2 fatal store error at boot, 130 on signal.
const (
	exitOK          = 0
	exitConfigError = 1
	exitStoreError  = 2
	exitSignal      = 130
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(exitOK)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("configuration error: %v\n", err)
		os.Exit(exitConfigError)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	logger.Info("starting lila-deepq service",
		slog.String("service", name),
		slog.String("version", version),
		slog.String("bind", cfg.Bind),
		slog.String("database", cfg.MaskDatabaseURL()),
		slog.Int("channel_capacity", cfg.ChannelCapacity),
		slog.Duration("lease_ttl", cfg.LeaseTTL()),
	)

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database connection", slog.Any("error", err))
		os.Exit(exitStoreError)
	}

	defer db.Close()

	docStore := store.New(db)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.StoreTimeout)

	if err := docStore.HealthCheck(ctx); err != nil {
		cancel()
		logger.Error("store unreachable at boot", slog.Any("error", err))
		os.Exit(exitStoreError)
	}

	cancel()

	eventBus := bus.New(cfg.ChannelCapacity)
	defer eventBus.Close()

	jobQueue := queue.New(docStore, eventBus, cfg.LeaseTTL(), logger)
	games := ingestion.NewGameStore(docStore)
	reports := ingestion.NewReportStore(docStore)
	ingestor := ingestion.New(games, reports, jobQueue, logger)
	authStore := apiauth.New(docStore)

	dispatcher := &aggregation.HTTPDispatcher{URI: cfg.IrwinURI, APIKey: cfg.IrwinAPIKey}
	aggregator := aggregation.New(jobQueue, reports, games, dispatcher, logger)

	aggCtx, stopAggregator := context.WithCancel(context.Background())
	defer stopAggregator()

	go aggregator.Run(aggCtx, eventBus)

	rateLimiter := middleware.NewInMemoryRateLimiter(middleware.LoadConfig())

	serverConfig := api.NewServerConfig(cfg)

	server := api.NewServer(serverConfig, jobQueue, games, reports, ingestor, authStore, rateLimiter, logger)

	if err := server.Start(); err != nil {
		logger.Error("server failed to start", slog.Any("error", err))
		stopAggregator()
		os.Exit(exitConfigError)
	}

	// Start returns nil only after SIGINT/SIGTERM triggered a graceful
	// shutdown. os.Exit skips deferred calls, so release resources first.
	logger.Info("lila-deepq service stopped")
	stopAggregator()
	eventBus.Close()
	db.Close()
	os.Exit(exitSignal)
}
