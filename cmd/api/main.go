package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	httptransport "github.com/spec-kit/idea-service/internal/api/http"
	"github.com/spec-kit/idea-service/internal/api/http/handlers"
	"github.com/spec-kit/idea-service/internal/auth"
	"github.com/spec-kit/idea-service/internal/cache"
	"github.com/spec-kit/idea-service/internal/config"
	"github.com/spec-kit/idea-service/internal/events"
	"github.com/spec-kit/idea-service/internal/observability"
	"github.com/spec-kit/idea-service/internal/persistence"
	"github.com/spec-kit/idea-service/internal/repository"
	"github.com/spec-kit/idea-service/internal/repository/memory"
	"github.com/spec-kit/idea-service/internal/security"
	"github.com/spec-kit/idea-service/internal/seed"
	"github.com/spec-kit/idea-service/internal/service"
	"github.com/spec-kit/idea-service/internal/worker"
)

type repositories struct {
	users   repository.UserRepository
	ideas   repository.IdeaRepository
	updates repository.UpdateRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var repos repositories
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(cfg.Postgres.DSN, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		pool := pg.PoolHandle()
		repos = repositories{
			users:   repository.NewUserRepository(pool),
			ideas:   repository.NewIdeaRepository(pool),
			updates: repository.NewUpdateRepository(pool),
		}
	} else {
		store := memory.New()
		repos = repositories{users: store.Users(), ideas: store.Ideas(), updates: store.Updates()}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	dispatcher := events.NewInMemoryDispatcher(logger)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:     repos.users,
		TokenManager: tokens,
		Logger:       logger,
	})
	ideaService := service.NewIdeaService(service.IdeaDependencies{
		IdeaRepo:   repos.ideas,
		UpdateRepo: repos.updates,
		UserRepo:   repos.users,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	statsService := service.NewStatsService(service.StatsDependencies{
		IdeaRepo:   repos.ideas,
		Cache:      cache.NewStatsCache(redis.Client, cfg.Cache.StatsTTL()),
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	statsService.RegisterHandlers()
	directoryService := service.NewDirectoryService(repos.users)

	var notifications *worker.NotificationWorker
	if cfg.Notification.WebhookURL != "" {
		if err := security.ValidateWebhookURL(cfg.Notification.WebhookURL); err != nil {
			logger.Fatal("invalid webhook url", zap.Error(err))
		}
		notifications = worker.NewNotificationWorker(worker.WebhookOptions{
			URL:       cfg.Notification.WebhookURL,
			Workers:   cfg.Notification.Workers,
			QueueSize: cfg.Notification.QueueSize,
			Timeout:   cfg.Notification.Timeout(),
		}, security.NewWebhookClient(cfg.Notification.Timeout()), logger, metrics)
		notifications.Start()
		service.NewNotificationService(dispatcher, notifications, logger).RegisterHandlers()
	}

	if _, err := seed.FromFile(ctx, cfg.Seed.UsersFile, authService, repos.users, logger); err != nil {
		logger.Fatal("failed to seed users", zap.Error(err))
	}

	var limiter *httptransport.RateLimiter
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter = httptransport.NewRateLimiter(httptransport.RateLimiterConfig{
			Rate:  rate.Limit(cfg.RateLimit.RequestsPerSecond),
			Burst: cfg.RateLimit.Burst,
		}, logger)
		defer limiter.Stop()
	}

	app := httptransport.NewApp(cfg.App.Name, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Ideas:          handlers.NewIdeasHandler(ideaService),
		Directory:      handlers.NewDirectoryHandler(directoryService),
		Stats:          handlers.NewStatsHandler(statsService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, repos.users),
		RateLimiter:    limiter,
		Metrics:        metrics,
	})

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.App.Addr()), zap.String("env", cfg.App.Env))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if notifications != nil {
		drainCtx, drainCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := notifications.Stop(drainCtx); err != nil {
			logger.Warn("notification worker did not drain", zap.Error(err))
		}
		drainCancel()
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
