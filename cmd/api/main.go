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

	"wtb-catalog/internal/catalog"
	"wtb-catalog/internal/config"
	"wtb-catalog/internal/database"
	"wtb-catalog/internal/logger"
	"wtb-catalog/internal/repository"
	"wtb-catalog/internal/server"
	"wtb-catalog/internal/service"
	"wtb-catalog/internal/snapshot"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := config.Load()

	log := logger.NewWithFallback(cfg.Server.Env, cfg.Server.LogLevel)
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("Service stopped with error", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting WTB catalog API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("catalog", cfg.Catalog.BaseURL),
		zap.String("snapshot_backend", cfg.Snapshot.Backend),
	)

	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Info("Connected to redis", zap.String("addr", cfg.Redis.Addr()))
	}

	var db database.Service
	if cfg.Snapshot.Backend == config.SnapshotBackendPostgres {
		svc, err := database.New(ctx, cfg.Database)
		if err != nil {
			closeResources(nil, redisClient, log)
			return err
		}
		db = svc
		log.Info("Database health check", zap.Any("health", db.Health(ctx)))

		if err := database.RunMigrations(db.DB(), log); err != nil {
			closeResources(db, redisClient, log)
			return err
		}
		if version, err := database.MigrationVersion(db.DB()); err != nil {
			log.Warn("Could not read migration version", zap.Error(err))
		} else {
			log.Info("Database schema ready", zap.Int64("migration_version", version))
		}
	}

	repo, err := snapshotRepository(cfg, db, redisClient)
	if err != nil {
		closeResources(db, redisClient, log)
		return err
	}

	client := catalog.NewClient(catalog.Config{
		BaseURL:     cfg.Catalog.BaseURL,
		PageSize:    cfg.Catalog.PageSize,
		PageTimeout: cfg.Catalog.PageTimeout,
		MaxPages:    cfg.Catalog.MaxPages,
		Paginate:    cfg.Catalog.Paginate,
		UserAgent:   cfg.Catalog.UserAgent,
	}, log)
	store := snapshot.NewStore(repo, cfg.Cache.Duration, cfg.Catalog.BaseURL, log)
	cache := service.NewProductCache(client, store, service.Options{
		BaseURL:         cfg.Catalog.BaseURL,
		RefreshInterval: cfg.Cache.RefreshInterval,
	}, log)

	srv := server.NewServer(cfg, log, cache, db, redisClient)
	defer srv.Close()

	// A failed first load still lets the server start; the background
	// refresh retries at the next interval.
	if err := cache.Refresh(ctx, false); err != nil {
		log.Warn("Initial cache load failed", zap.Error(err))
	}
	if ctx.Err() != nil {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := cache.StartBackgroundRefresh(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down gracefully, press Ctrl+C again to force")
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server forced to shutdown", zap.Error(err))
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("Graceful shutdown complete")
	return nil
}

func snapshotRepository(cfg *config.Config, db database.Service, redisClient *redis.Client) (repository.SnapshotRepository, error) {
	switch cfg.Snapshot.Backend {
	case config.SnapshotBackendFile:
		return repository.NewFileSnapshotRepository(cfg.Snapshot.File), nil
	case config.SnapshotBackendRedis:
		return repository.NewRedisSnapshotRepository(redisClient, cfg.Snapshot.RedisKey), nil
	case config.SnapshotBackendPostgres:
		return repository.NewPostgresSnapshotRepository(db.DB(), cfg.Snapshot.Name), nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.Snapshot.Backend)
	}
}

// closeResources releases connections opened before startup failed
func closeResources(db database.Service, client *redis.Client, log *zap.Logger) {
	if db != nil {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database connection", zap.Error(err))
		}
	}
	if client != nil {
		if err := client.Close(); err != nil {
			log.Error("Failed to close redis connection", zap.Error(err))
		}
	}
}
