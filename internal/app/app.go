package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AlisonTamayo/BancoArcbank/internal/accounts"
	"github.com/AlisonTamayo/BancoArcbank/internal/api"
	"github.com/AlisonTamayo/BancoArcbank/internal/config"
	"github.com/AlisonTamayo/BancoArcbank/internal/db"
	"github.com/AlisonTamayo/BancoArcbank/internal/gateway"
	"github.com/AlisonTamayo/BancoArcbank/internal/idempotency"
	"github.com/AlisonTamayo/BancoArcbank/internal/ledger"
	"github.com/AlisonTamayo/BancoArcbank/internal/observability"
	"github.com/AlisonTamayo/BancoArcbank/internal/repository"
	"github.com/AlisonTamayo/BancoArcbank/internal/service"
	"github.com/AlisonTamayo/BancoArcbank/internal/worker"
)

// Run bootstraps the HTTP server and stuck-pending sweep worker, blocking
// until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	redisClient, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	repo := repository.NewRepository(pool)
	accountsClient := accounts.NewClient(cfg.AccountsBaseURL, cfg.AccountsTimeout)
	adjuster := ledger.NewAdjuster(accountsClient)
	switchClient := gateway.NewClient(cfg.SwitchBaseURL, cfg.BankCode, cfg.SwitchTimeout)
	guard := idempotency.NewGuard(redisClient, repo, 0)

	coordinator := service.NewCoordinator(repo, accountsClient, adjuster, switchClient, guard, cfg.BankCode, cfg.ReversalWindow)

	sweep := worker.NewStuckPendingWorker(repo).
		WithInterval(cfg.ReconciliationInterval).
		WithStuckAfter(cfg.PendingStuckAfter)
	stopWorker := sweep.Run(ctx)
	logger.Info("stuck-pending worker started",
		zap.Duration("interval", cfg.ReconciliationInterval),
		zap.Duration("stuck_after", cfg.PendingStuckAfter),
	)

	router := api.NewRouter(api.Deps{
		Config:      cfg,
		Logger:      logger,
		DB:          pool,
		Redis:       redisClient,
		Coordinator: coordinator,
		Inbound:     coordinator,
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping stuck-pending worker")
	stopWorker()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
