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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jeanElossy/api-paynoval-sub000/internal/aml"
	"github.com/jeanElossy/api-paynoval-sub000/internal/api"
	"github.com/jeanElossy/api-paynoval-sub000/internal/api/middleware"
	"github.com/jeanElossy/api-paynoval-sub000/internal/config"
	"github.com/jeanElossy/api-paynoval-sub000/internal/coordinator"
	"github.com/jeanElossy/api-paynoval-sub000/internal/db"
	"github.com/jeanElossy/api-paynoval-sub000/internal/idempotency"
	"github.com/jeanElossy/api-paynoval-sub000/internal/ledger"
	"github.com/jeanElossy/api-paynoval-sub000/internal/notifier"
	"github.com/jeanElossy/api-paynoval-sub000/internal/observability"
	"github.com/jeanElossy/api-paynoval-sub000/internal/rates"
	"github.com/jeanElossy/api-paynoval-sub000/internal/repository"
	"github.com/jeanElossy/api-paynoval-sub000/internal/worker"
)

// Run bootstraps the stores, the ledger service, the background workers and
// the HTTP server, blocking until shutdown.
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
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	balancePool, err := db.Connect(ctx, cfg.BalanceDatabaseURL)
	if err != nil {
		return fmt.Errorf("connect balance store: %w", err)
	}
	defer balancePool.Close()

	ledgerPool := balancePool
	if cfg.LedgerDatabaseURL != cfg.BalanceDatabaseURL {
		ledgerPool, err = db.Connect(ctx, cfg.LedgerDatabaseURL)
		if err != nil {
			return fmt.Errorf("connect ledger store: %w", err)
		}
		defer ledgerPool.Close()
	}

	redisClient, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	balanceStore := repository.NewBalanceStore(balancePool)
	ledgerStore := repository.NewLedgerStore(ledgerPool)
	coord := coordinator.New(balanceStore, ledgerStore, logger)
	logger.Info("coordinator initialized", zap.Bool("atomic", coord.Atomic()))

	refundRate, err := decimal.NewFromString(cfg.CancellationRefundRate)
	if err != nil {
		return fmt.Errorf("invalid CANCELLATION_REFUND_RATE: %w", err)
	}

	svc := ledger.NewService(balanceStore, ledgerStore, coord, aml.NewMockGate(), rates.NewMockRateService(), logger).
		WithCancellationRefundRate(refundRate).
		WithDefaultCurrency(cfg.DefaultCurrency)

	idemStore := idempotency.NewStore(redisClient, ledgerStore, cfg.IdempotencyTTL)

	outboxWorker := worker.NewOutboxWorker(ledgerStore, notifier.NewMockSender(), logger).
		WithPollInterval(cfg.OutboxPollInterval).
		WithBatchSize(cfg.OutboxBatchSize)
	stopOutbox := outboxWorker.Run(ctx)

	retentionWorker := worker.NewRetentionWorker(ledgerStore, logger).
		WithInterval(cfg.RetentionInterval).
		WithOutboxRetention(cfg.OutboxRetention).
		WithIdempotencyTTL(cfg.IdempotencyTTL)
	stopRetention := retentionWorker.Run(ctx)

	router := api.NewRouter(cfg, logger, balanceStore, ledgerStore, svc, idemStore, redisClient)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
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

	logger.Info("stopping workers")
	stopOutbox()
	stopRetention()

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
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
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
