package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/lalith-99/herdstream/internal/api"
	"github.com/lalith-99/herdstream/internal/audit"
	"github.com/lalith-99/herdstream/internal/config"
	"github.com/lalith-99/herdstream/internal/db"
	"github.com/lalith-99/herdstream/internal/middleware"
	"github.com/lalith-99/herdstream/internal/notify"
	"github.com/lalith-99/herdstream/internal/observ"
	"github.com/lalith-99/herdstream/internal/realtime"
	"github.com/lalith-99/herdstream/internal/repository"
	"github.com/lalith-99/herdstream/internal/repository/memory"
	"github.com/lalith-99/herdstream/internal/repository/postgres"
	"github.com/lalith-99/herdstream/internal/storage"
	"go.uber.org/zap"
)

const version = "1.0.0"

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ---------------------------------------------------------------
	// 1. Load config
	// ---------------------------------------------------------------
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// ---------------------------------------------------------------
	// 2. Create logger
	// ---------------------------------------------------------------
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---------------------------------------------------------------
	// 3. Storage
	// ---------------------------------------------------------------
	var (
		store  *repository.Store
		pinger api.Pinger
	)
	switch cfg.Store {
	case config.BackendPostgres:
		database, err := db.New(ctx, cfg.DatabaseURL, db.PoolOptions{}, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer database.Close()
		if err := database.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		store = postgres.NewStore(database.Pool())
		pinger = database
	default:
		logger.Warn("using in-memory store, data is lost on restart")
		store = memory.NewStore()
	}

	// ---------------------------------------------------------------
	// 4. Broker and hub
	// ---------------------------------------------------------------
	var broker realtime.Broker
	switch cfg.Broker {
	case config.BackendRedis:
		rdb, err := realtime.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer rdb.Close()
		broker = realtime.NewRedisBroker(ctx, rdb, logger)
	default:
		broker = realtime.NewMemoryBroker(256)
	}
	defer broker.Close()

	hub := realtime.NewHub(broker, logger)
	go hub.Run(ctx)

	emitter := notify.NewEmitter(store, hub, logger)
	recorder := audit.NewRecorder(store.AuditLogs, emitter, logger)

	// ---------------------------------------------------------------
	// 5. Object storage (optional)
	// ---------------------------------------------------------------
	var images storage.ImageStore
	if cfg.Minio.Endpoint != "" {
		minioStore, err := storage.NewMinioImageStore(ctx, storage.MinioOptions{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
			PublicURL: cfg.Minio.PublicURL,
		}, logger)
		if err != nil {
			return fmt.Errorf("connect to object storage: %w", err)
		}
		images = minioStore
	} else {
		logger.Warn("MINIO_ENDPOINT not set, image uploads disabled")
	}

	// ---------------------------------------------------------------
	// 6. HTTP server
	// ---------------------------------------------------------------
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	wsOpts := realtime.Options{
		PingInterval:    cfg.WebSocket.PingInterval,
		PongWait:        cfg.WebSocket.PongWait,
		WriteWait:       cfg.WebSocket.WriteWait,
		MaxMessageSize:  cfg.WebSocket.MaxMessageSize,
		SendBufferSize:  cfg.WebSocket.SendBufferSize,
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
	}

	router := api.NewRouter(api.Deps{
		Store:     store,
		Realtime:  realtime.NewHandler(hub, store, cfg.JWTSecret, wsOpts, logger),
		Emitter:   emitter,
		Recorder:  recorder,
		Images:    images,
		DB:        pinger,
		WSLimiter: middleware.NewConnectionRateLimiter(cfg.WebSocket.ConnRate, cfg.WebSocket.ConnBurst, clockwork.NewRealClock()),
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.JWTTTL,
		Version:   version,
		Logger:    logger,
	}, gin.Logger())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting herdstream",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.String("store", cfg.Store),
			zap.String("broker", cfg.Broker),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// ---------------------------------------------------------------
	// 7. Graceful shutdown
	// ---------------------------------------------------------------
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}
	// Stops the hub before the deferred broker and pool closes run.
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
