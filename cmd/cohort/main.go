package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/cohort/pkg/api"
	"github.com/platinummonkey/cohort/pkg/auth"
	"github.com/platinummonkey/cohort/pkg/config"
	"github.com/platinummonkey/cohort/pkg/httputil"
	"github.com/platinummonkey/cohort/pkg/middleware"
	"github.com/platinummonkey/cohort/pkg/observability"
	"github.com/platinummonkey/cohort/pkg/rbac"
	"github.com/platinummonkey/cohort/pkg/storage/postgres"
	"github.com/platinummonkey/cohort/pkg/storage/redis"
)

const poolStatsInterval = 15 * time.Second

func main() {
	boot := logrus.New()
	boot.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.LoadConfig()
	if err != nil {
		boot.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	// PostgreSQL
	db, err := postgres.Connect(cfg.Storage)
	if err != nil {
		boot.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := postgres.RunMigrations(ctx, db); err != nil {
		boot.Fatalf("Failed to run migrations: %v", err)
	}
	boot.Info("Database migrations applied")

	store := postgres.NewStore(db, cfg.Storage)

	// Redis
	cache, err := redis.NewClient(cfg.Storage)
	if err != nil {
		boot.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer cache.Close()

	// Auth stack
	hasher := auth.NewHasher(auth.DefaultArgon2idParams(), cfg.Auth.MaxConcurrentHashes)
	sessions := auth.NewSessionManager(cache, auth.SessionConfig{
		TTL:     cfg.Storage.SessionTTL,
		Sliding: cfg.Storage.SessionSliding,
	})
	service := auth.NewService(store, hasher, sessions)
	engine := rbac.NewEngine(store)

	// Metrics
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	go recordPoolStats(db, metrics)

	server := api.NewServer(store, service, engine, logger, metrics)
	handler := httputil.Chain(
		middleware.RequestID,
		observability.HTTPMetricsMiddleware(metrics),
		httputil.RecoveryMiddleware(logger),
	)(server)

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for probes
	healthMux := http.NewServeMux()
	checker := observability.NewHealthChecker(db, cache.Underlying())
	observability.RegisterHealthRoutes(healthMux, checker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	go func() {
		boot.Infof("Health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			boot.Errorf("Health server error: %v", err)
		}
	}()

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterNamed("postgres", func(ctx context.Context) error {
		return store.Close()
	})
	shutdown.RegisterNamed("redis", func(ctx context.Context) error {
		return cache.Close()
	})
	shutdown.RegisterNamed("health-server", func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})

	go func() {
		boot.Infof("Cohort API listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			boot.Fatalf("Server error: %v", err)
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		boot.Errorf("Shutdown error: %v", err)
		os.Exit(1)
	}
	boot.Info("Shutdown complete")
}

func recordPoolStats(db *sql.DB, metrics *observability.Metrics) {
	ticker := time.NewTicker(poolStatsInterval)
	defer ticker.Stop()
	for range ticker.C {
		metrics.RecordPoolStats(db.Stats())
	}
}
