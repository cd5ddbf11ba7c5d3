package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/deepdive-md/deepdive/config"
	"github.com/deepdive-md/deepdive/internal/document"
	"github.com/deepdive-md/deepdive/internal/logging"
	"github.com/deepdive-md/deepdive/internal/preview"
	"github.com/deepdive-md/deepdive/internal/relay"
	"github.com/deepdive-md/deepdive/internal/rulebook"
	"github.com/deepdive-md/deepdive/internal/seeder"
	"github.com/deepdive-md/deepdive/internal/server"
	"github.com/deepdive-md/deepdive/internal/telemetry"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}

	// 2. Init logging
	logger, err := logging.Setup(cfg)
	if err != nil {
		logrus.Fatalf("failed to init logging: %v", err)
	}

	// 3. Init telemetry
	ctx := context.Background()
	shutdownTracer, err := telemetry.Setup(ctx, "deepdive", cfg, logger)
	if err != nil {
		logger.Fatalf("failed to init tracer: %v", err)
	}
	defer shutdownTracer()

	// 4. Load rulebook
	book, err := rulebook.Load(cfg.RulebookPath)
	if err != nil {
		logger.Fatalf("failed to load rulebook: %v", err)
	}
	def, _ := book.Default()
	logger.WithFields(logrus.Fields{
		"providers": len(book.Providers),
		"default":   def.Key,
	}).Info("Rulebook loaded")

	// 5. Open document store
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("failed to open document store: %v", err)
	}
	defer closeStore()

	// 6. Seed welcome document if SEED_DOCUMENT=true
	if cfg.SeedDocument {
		seeder.SeedWelcomeDocument(ctx, store, logger)
	}

	// 7. Init handlers
	tracer := otel.GetTracerProvider().Tracer("deepdive")
	upstream := &http.Client{Timeout: cfg.UpstreamTimeout}

	router := server.NewRouter(server.Deps{
		Book:      book,
		Relay:     relay.NewHandler(book, upstream, tracer, logger),
		Documents: document.NewHandler(store, logger),
		Preview:   preview.NewHandler(preview.NewRenderer(), logger),
		Logger:    logger,
	})

	// 8. Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Infof("Deep Dive starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	<-quit
	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("forced shutdown: %v", err)
	}
	logger.Info("Server stopped")
}

func openStore(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (document.Store, func(), error) {
	switch cfg.DocumentStore {
	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		logger.Info("Redis connected")
		return document.NewRedisStore(rdb), func() { _ = rdb.Close() }, nil

	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to ping postgres: %w", err)
		}
		store := document.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("PostgreSQL connected")
		return store, pool.Close, nil

	default:
		return document.NewMemoryStore(), func() {}, nil
	}
}
