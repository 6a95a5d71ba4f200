package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"creator-ledger/config"
	"creator-ledger/internal/adapter/events"
	httpHandler "creator-ledger/internal/adapter/http/handler"
	"creator-ledger/internal/adapter/metrics"
	"creator-ledger/internal/adapter/storage/memory"
	pgStorage "creator-ledger/internal/adapter/storage/postgres"
	redisStorage "creator-ledger/internal/adapter/storage/redis"
	"creator-ledger/internal/core/ports"
	"creator-ledger/internal/service"
	"creator-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := checkStorageDriver(cfg.Storage.Driver); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Msg("Starting creator ledger")

	ctx := context.Background()

	// Storage
	var repos repositories
	if cfg.Storage.Driver == "postgres" {
		if cfg.Storage.RunMigrations {
			if err := pgStorage.Migrate(cfg.Database.DSN(), log); err != nil {
				log.Fatal().Err(err).Msg("Failed to migrate database")
			}
		}
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
		repos = postgresRepositories(pool, cfg, log)
	} else {
		log.Warn().Msg("Using in-memory storage; ledger state is lost on exit")
		repos = memoryRepositories(memory.NewStore(), cfg)
	}

	// Redis backs the budget cache, processor nonces and rate limits.
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	ledgerMetrics := metrics.New(registry)

	// Events
	sink, err := events.NewSink(cfg.Events, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create event sink")
	}
	dispatcher := events.NewDispatcher(sink, cfg.Events, ledgerMetrics, log)
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()
	go dispatcher.Run(dispatchCtx)

	// core.Wallets, core.Budgets and core.Payouts have no HTTP routes; callers embed them
	// in-process (see ledgerCore). Only withdrawals, budget queries and audit are served below.
	core := newLedgerCore(
		repos,
		redisStorage.NewBudgetCache(rdb, cfg.Redis.BudgetCacheTTL),
		dispatcher,
		ledgerMetrics,
		cfg.Ledger,
		log,
	)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WithdrawalSvc:  core.Withdrawals,
		BudgetQuerySvc: core.BudgetQuery,
		SigSvc:         service.NewHMACSignatureService(cfg.Processor.WebhookSecret),
		NonceStore:     redisStorage.NewNonceStore(rdb),
		TokenSvc:       service.NewJWTTokenService(cfg.Admin.JWTSecret, cfg.Admin.TokenExpiry, cfg.Admin.JWTIssuer),
		RateLimiter:    redisStorage.NewRateLimitStore(rdb),
		HealthCheckers: []ports.HealthChecker{repos.health, redisStorage.NewHealthCheck(rdb)},
		AuditSvc:       core.Audit,
		Processor:      cfg.Processor,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Logger:         log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Event dispatcher did not drain")
	}

	log.Info().Msg("Server exited")
}
