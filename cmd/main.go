package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "bugtracker-service/docs"
	"bugtracker-service/internal/config"
	"bugtracker-service/internal/handlers"
	"bugtracker-service/internal/logger"
	"bugtracker-service/internal/metrics"
	"bugtracker-service/internal/middleware"
	"bugtracker-service/internal/repository"
	"bugtracker-service/internal/services"
	"bugtracker-service/internal/services/cache"
	"bugtracker-service/internal/services/caches"
	"bugtracker-service/internal/storage"
)

// @title Bug Tracker Service API
// @version 1.0
// @description Bug lifecycle with project membership checks and an audit trail.
// @BasePath /api
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "bugtracker: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// run serves until ctx is done. Startup failures are returned so main can exit
// non-zero after the logger is flushed.
func run(ctx context.Context) error {
	cfg, err := InitConfig()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	db, err := ConnectDatabase(cfg, log)
	if err != nil {
		return err
	}
	if err := MigrateDatabase(db, log); err != nil {
		return err
	}

	bugCache, closeCache := InitBugCache(ctx, cfg, log)
	defer closeCache()

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)
	gate := services.NewAccessGate(repository.NewMemberRepository(db))
	bugService := services.NewBugService(repository.NewBugRepository(db), gate, log,
		services.WithCache(bugCache),
		services.WithMetrics(m),
	)

	var archiver handlers.HistoryArchiver
	if cfg.Minio.Enabled() {
		minioClient, err := storage.NewMinioClient(ctx, cfg.Minio, log)
		if err != nil {
			log.Errorw("MinIO client initialization failed", "error", err)
			return fmt.Errorf("minio: %w", err)
		}
		archiver = services.NewArchiveService(bugService, minioClient, cfg.Minio.Bucket, log)
	} else {
		log.Infow("history archiving disabled, no MinIO endpoint configured")
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTP.RequestTimeout,
		WriteTimeout: cfg.HTTP.RequestTimeout,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(log.Named("http")))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	h := handlers.NewBugHandler(bugService, archiver, log)
	h.Register(api.Group("", middleware.RequireActor()))

	for _, r := range app.GetRoutes(true) {
		log.Debugw("route registered", "method", r.Method, "path", r.Path)
	}

	listenErr := make(chan error, 1)
	go func() {
		log.Infow("server listening", "addr", cfg.ServerAddr())
		listenErr <- app.Listen(cfg.ServerAddr())
	}()

	select {
	case err := <-listenErr:
		log.Errorw("failed to start server", "error", err)
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	if err := app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
		log.Warnw("server shutdown", "timeout", cfg.Server.ShutdownTimeout, "error", err)
	}
	return nil
}

func InitConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func ConnectDatabase(cfg *config.Config, log *zap.SugaredLogger) (*gorm.DB, error) {
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Errorw("database connection failed", "host", cfg.Postgres.Host, "error", err)
		return nil, fmt.Errorf("database: %w", err)
	}
	return db, nil
}

func MigrateDatabase(db *gorm.DB, log *zap.SugaredLogger) error {
	if err := repository.AutoMigrate(db); err != nil {
		log.Errorw("database migration failed", "error", err)
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// InitBugCache prefers the shared Redis cache and falls back to the in-process one.
func InitBugCache(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (cache.BugCache, func()) {
	if cfg.Redis.Enabled() {
		client, err := storage.NewRedisClient(ctx, cfg.Redis.Host, cfg.Redis.Port)
		if err == nil {
			log.Infow("bug cache ready", "backend", "redis", "host", cfg.Redis.Host)
			return caches.NewRedisCache(client, cfg.Redis.TTL), func() { _ = client.Close() }
		}
		log.Warnw("redis unavailable, using in-memory bug cache", "error", err)
	}
	log.Infow("bug cache ready", "backend", "memory", "max_entries", cfg.Cache.MaxEntries)
	return caches.NewMemoryCache(cfg.Cache.MaxEntries, cfg.Cache.TTL), func() {}
}
