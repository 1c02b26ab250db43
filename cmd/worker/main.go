// Package main runs the background worker: holding cleanup queue and stale upload reaper.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-capture/backend/config"
	"github.com/aura-capture/backend/internal/realtime"
	"github.com/aura-capture/backend/internal/recordings"
	"github.com/aura-capture/backend/internal/settings"
	"github.com/aura-capture/backend/internal/worker"
	"github.com/aura-capture/backend/pkg/database"
	"github.com/aura-capture/backend/pkg/queue"
	"github.com/aura-capture/backend/pkg/redis"
	"github.com/aura-capture/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	var store recordings.Store
	var settingsStore settings.Store
	if cfg.Database.Driver == config.DriverSQLite {
		db, err := database.OpenSQLite(ctx, cfg.Database.SQLitePath, logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer db.Close()
		if err := database.MigrateSQLite(ctx, db); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		store, settingsStore = recordings.NewSQLiteStore(db), settings.NewSQLiteStore(db)
	} else {
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		store, settingsStore = recordings.NewPostgresStore(pool), settings.NewPostgresStore(pool)
	}
	ledger := recordings.NewLedger(store, settingsStore, logger)
	reaper := worker.NewStaleReaper(ledger, cfg.Worker.StaleUploadAfter, cfg.Worker.SweepInterval, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()

		// Publish-only hub: reaper transitions reach sockets held by the API instances.
		reaper.SetNotifier(realtime.NewHub(logger, realtime.NewRedisPubSub(rdb.Client, logger), nil))

		holding, err := newHolding(ctx, cfg.Storage, logger)
		if err != nil {
			logger.Fatal("holding storage", zap.Error(err))
		}
		jobQueue := queue.NewQueue(rdb.Client, logger)
		go worker.NewCleanupProcessor(holding, jobQueue, logger).Run(workerCtx)
		logger.Info("cleanup worker started")
	} else {
		logger.Warn("redis disabled: only the stale upload reaper runs")
	}

	go reaper.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newHolding(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (worker.HoldingDeleter, error) {
	switch cfg.HoldingDriver {
	case config.DriverGCS:
		return storage.NewGCS(ctx, storage.GCSConfig{
			Bucket:          cfg.GCSHoldingBucket,
			CredentialsFile: cfg.GCSCredentialsFile,
			SignerAccount:   cfg.GCSSignerAccount,
		}, logger)
	case config.DriverMemory:
		return storage.NewMemory("holding"), nil
	default:
		return storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			Endpoint:        cfg.S3Endpoint,
			Bucket:          cfg.S3HoldingBucket,
			PartSizeMB:      cfg.S3PartSizeMB,
		}, logger)
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
