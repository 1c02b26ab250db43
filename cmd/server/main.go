// Package main runs the recording share HTTP server with status WebSocket, in-process worker and graceful shutdown.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-capture/backend/config"
	"github.com/aura-capture/backend/internal/analytics"
	"github.com/aura-capture/backend/internal/middleware"
	"github.com/aura-capture/backend/internal/realtime"
	"github.com/aura-capture/backend/internal/recordings"
	"github.com/aura-capture/backend/internal/settings"
	"github.com/aura-capture/backend/internal/share"
	"github.com/aura-capture/backend/internal/transfer"
	"github.com/aura-capture/backend/internal/worker"
	"github.com/aura-capture/backend/pkg/database"
	"github.com/aura-capture/backend/pkg/queue"
	"github.com/aura-capture/backend/pkg/redis"
	"github.com/aura-capture/backend/pkg/response"
	"github.com/aura-capture/backend/pkg/storage"
)

// finalStore is what the engine writes and the stream endpoint reads.
type finalStore interface {
	transfer.FinalStore
	share.ObjectReader
}

type stores struct {
	recordings recordings.Store
	settings   settings.Store
	analytics  analytics.Store
	close      func()
}

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	st, err := openStores(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer st.close()

	holding, err := newHolding(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("holding storage", zap.Error(err))
	}
	final, err := newFinal(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("final storage", zap.Error(err))
	}

	settingsStore := st.settings
	ledger := recordings.NewLedger(st.recordings, settingsStore, logger)
	engine := transfer.NewEngine(ledger, settingsStore, holding, final, transfer.Config{
		SignedURLTTL:    cfg.Storage.SignedURLTTL,
		TransferTimeout: cfg.Server.TransferTimeout,
	}, logger)

	var (
		hub      *realtime.Hub
		jobQueue *queue.Queue
	)
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
		hub = realtime.NewHub(logger, redisPubSub, redisPubSub)
		jobQueue = queue.NewQueue(rdb.Client, logger)
		engine.SetCleanupQueue(jobQueue)
	} else {
		logger.Warn("redis disabled: status push is local to this instance and holding cleanup is inline only")
		hub = realtime.NewHub(logger, nil, nil)
	}
	engine.SetNotifier(hub)

	transferHandler := transfer.NewHandler(engine, cfg.Server.MaxUploadBytes, logger)
	transferHandler.SetPublicBaseURL(cfg.Server.PublicBaseURL)
	recordingHandler := recordings.NewHandler(ledger, logger)
	settingsHandler := settings.NewHandler(settingsStore, logger)
	analyticsHandler := analytics.NewHandler(analytics.NewLedger(st.analytics, ledger, logger), logger)
	shareHandler := share.NewHandler(ledger, final, share.PollPolicy{
		Interval:    cfg.Polling.Interval,
		MaxAttempts: cfg.Polling.MaxAttempts,
	}, logger)

	origins := make([]string, 0)
	for o := range middleware.ParseOrigins(cfg.Server.CORSAllowedOrigins) {
		origins = append(origins, o)
	}
	upgrader := realtime.NewUpgrader(origins)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger, "/health", "/metrics"))
	router.Use(middleware.Metrics())

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Share link (HTML for browsers, JSON for API clients)
	router.GET("/share/:id", shareHandler.Share)

	api := router.Group("/api")
	{
		api.GET("/settings", settingsHandler.Get)
		api.PUT("/settings", settingsHandler.Update)

		// Recordings
		api.POST("/recordings", transferHandler.Create)
		api.GET("/recordings", recordingHandler.List)
		api.GET("/recordings/:id", recordingHandler.Get)
		api.PATCH("/recordings/:id", recordingHandler.Rename)
		api.DELETE("/recordings/:id", transferHandler.Delete)

		// Upload paths
		api.POST("/recordings/:id/upload", transferHandler.Upload)
		api.POST("/recordings/:id/upload-url", transferHandler.UploadURL)
		api.POST("/recordings/:id/transfer", transferHandler.Transfer)

		// Status and playback
		api.GET("/recordings/:id/status", shareHandler.Status)
		api.GET("/recordings/:id/stream", shareHandler.Stream)
		api.HEAD("/recordings/:id/stream", shareHandler.Stream)
		api.GET("/recordings/:id/ws", realtime.ServeWs(hub, ledger, upgrader, logger))

		// Viewer analytics
		api.POST("/recordings/:id/analytics/events", analyticsHandler.RecordEvent)
		api.GET("/recordings/:id/analytics", analyticsHandler.Summary)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second, // 0: uploads and streams are unbounded
	}

	// Background worker (holding cleanup, stale upload reaper)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if cfg.Worker.Inline {
		if jobQueue != nil && holding != nil {
			go worker.NewCleanupProcessor(holding, jobQueue, logger).Run(workerCtx)
			logger.Info("cleanup worker started")
		}
		reaper := worker.NewStaleReaper(ledger, cfg.Worker.StaleUploadAfter, cfg.Worker.SweepInterval, logger)
		reaper.SetNotifier(hub)
		go reaper.Run(workerCtx)
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func openStores(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*stores, error) {
	if cfg.Driver == config.DriverSQLite {
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		if err := database.MigrateSQLite(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return sqliteStores(db), nil
	}

	pool, err := database.NewPostgresPool(ctx, cfg.DSN(), cfg.MaxConns, logger)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return postgresStores(pool), nil
}

func sqliteStores(db *sql.DB) *stores {
	return &stores{
		recordings: recordings.NewSQLiteStore(db),
		settings:   settings.NewSQLiteStore(db),
		analytics:  analytics.NewSQLiteStore(db),
		close:      func() { _ = db.Close() },
	}
}

func postgresStores(pool *pgxpool.Pool) *stores {
	return &stores{
		recordings: recordings.NewPostgresStore(pool),
		settings:   settings.NewPostgresStore(pool),
		analytics:  analytics.NewPostgresStore(pool),
		close:      pool.Close,
	}
}

func newHolding(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (transfer.HoldingArea, error) {
	switch cfg.HoldingDriver {
	case config.DriverGCS:
		return storage.NewGCS(ctx, storage.GCSConfig{
			Bucket:          cfg.GCSHoldingBucket,
			CredentialsFile: cfg.GCSCredentialsFile,
			SignerAccount:   cfg.GCSSignerAccount,
		}, logger)
	case config.DriverMemory:
		logger.Warn("holding area is in memory; signed upload URLs are not reachable by clients")
		return storage.NewMemory("holding"), nil
	default:
		return storage.NewS3(ctx, s3Config(cfg, cfg.S3HoldingBucket), logger)
	}
}

func newFinal(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (finalStore, error) {
	switch cfg.FinalDriver {
	case config.DriverDrive:
		return storage.NewDrive(ctx, storage.DriveConfig{CredentialsFile: cfg.DriveCredentialsFile}, logger)
	case config.DriverMemory:
		logger.Warn("final store is in memory; recordings are lost on restart")
		return storage.NewMemory("final"), nil
	default:
		return storage.NewS3(ctx, s3Config(cfg, cfg.S3FinalBucket), logger)
	}
}

func s3Config(cfg config.StorageConfig, bucket string) storage.S3Config {
	return storage.S3Config{
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		Endpoint:        cfg.S3Endpoint,
		Bucket:          bucket,
		PartSizeMB:      cfg.S3PartSizeMB,
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
