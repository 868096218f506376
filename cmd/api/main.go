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

	"github.com/SergeiKhy/timewatch-admin/internal/config"
	"github.com/SergeiKhy/timewatch-admin/internal/handler"
	"github.com/SergeiKhy/timewatch-admin/internal/logger"
	"github.com/SergeiKhy/timewatch-admin/internal/metrics"
	"github.com/SergeiKhy/timewatch-admin/internal/middleware"
	"github.com/SergeiKhy/timewatch-admin/internal/repository"
	"github.com/SergeiKhy/timewatch-admin/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "timewatch-admin",
		Short:        "Admin API for the event calendar and domain mappings",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(newServeCmd(), newCreateAdminCmd(), newBackfillCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

// app: общие зависимости всех команд
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	mongo  *repository.MongoDB
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	if cfg.Auth.SessionSecret == config.DefaultSessionSecret {
		log.Warn("Development mode: using the built-in SESSION_SECRET")
	}

	db, err := repository.NewMongoDB(ctx, cfg.Mongo)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	log.Info("Connected to MongoDB", zap.String("database", cfg.Mongo.Database))

	return &app{cfg: cfg, logger: log, mongo: db}, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.mongo.Close(ctx); err != nil {
		a.logger.Warn("Failed to disconnect from MongoDB", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// cache возвращает Redis-кэш или заглушку, если Redis не настроен
func (a *app) cache(ctx context.Context) (repository.CacheRepository, func()) {
	if !a.cfg.Redis.Enabled() {
		a.logger.Info("Redis is not configured, mapped domain cache disabled")
		return repository.NewNoopCache(), func() {}
	}

	redis, err := repository.NewRedisClient(ctx, a.cfg.Redis)
	if err != nil {
		a.logger.Warn("Redis unavailable, mapped domain cache disabled", zap.Error(err))
		return repository.NewNoopCache(), func() {}
	}
	a.logger.Info("Connected to Redis")

	return repository.NewCacheRepository(redis), func() { _ = redis.Close() }
}

func runServe(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.mongo.EnsureIndexes(ctx); err != nil {
		// Старые данные могут нарушать уникальность, пока не выполнен backfill-domains
		a.logger.Warn("Failed to ensure indexes", zap.Error(err))
	}

	cacheRepo, closeCache := a.cache(ctx)
	defer closeCache()

	// Инициализация репозиториев
	eventRepo := repository.NewEventRepository(a.mongo)
	mappingRepo := repository.NewMappingRepository(a.mongo)
	trafficRepo := repository.NewTrafficRepository(a.mongo)
	userRepo := repository.NewUserRepository(a.mongo)

	services := handler.Services{
		Events:   service.NewEventService(eventRepo, a.logger),
		Mappings: service.NewMappingService(mappingRepo, cacheRepo, a.logger),
		Unmapped: service.NewUnmappedService(mappingRepo, trafficRepo, cacheRepo, a.cfg.Redis.CacheTTL, a.logger),
		Auth:     service.NewAuthService(userRepo, a.logger),
	}

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: a.cfg.RateLimit.RequestsPerSecond,
		BurstSize:         a.cfg.RateLimit.BurstSize,
		CleanupInterval:   time.Minute,
	})
	defer rateLimiter.Stop()

	if len(a.cfg.Auth.APIKeys) > 0 {
		a.logger.Info("API key authentication enabled", zap.Int("keys_count", len(a.cfg.Auth.APIKeys)))
	}
	if a.cfg.App.IsDevelopment() {
		a.logger.Warn("Development mode: event routes are open without a session")
	}

	router := handler.NewRouter(services, a.cfg, rateLimiter, metrics.New(), a.logger)

	srv := &http.Server{
		Addr:         ":" + a.cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Server starting", zap.String("port", a.cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		a.logger.Error("Failed to start server", zap.Error(err))
		return err
	case <-quit:
	}

	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	a.logger.Info("Server exited")
	return nil
}
