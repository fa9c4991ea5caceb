package main

import (
	"context"
	"log"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/rsams/attendance-service/internal/api/http"
	"github.com/rsams/attendance-service/internal/api/http/handlers"
	"github.com/rsams/attendance-service/internal/auth"
	"github.com/rsams/attendance-service/internal/config"
	"github.com/rsams/attendance-service/internal/events"
	"github.com/rsams/attendance-service/internal/observability"
	"github.com/rsams/attendance-service/internal/persistence"
	"github.com/rsams/attendance-service/internal/service"
	"github.com/rsams/attendance-service/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Name)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()

	store, err := persistence.OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to open account store", zap.Error(err))
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	metrics := observability.NewMetrics()

	dispatcher := events.NewInMemoryDispatcher(logger)
	var publisher *events.AMQPPublisher
	if cfg.Events.RabbitMQURL != "" {
		publisher, err = events.NewAMQPPublisher(cfg.Events.RabbitMQURL, cfg.Events.Queue, logger)
		if err != nil {
			logger.Warn("rabbitmq unavailable, events stay local", zap.Error(err))
			publisher = nil
		}
	}
	worker.StartEventWorkers(dispatcher, service.NewAuditService(dispatcher, logger), publisher)

	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL())
	dashboard := service.NewDashboardService(store.Accounts, redis.Client, cfg.Redis.DashboardCacheTTL(), logger)

	authn := service.NewAuthenticator(cfg.Auth, service.AuthenticatorDependencies{
		Accounts:   store.Accounts,
		Hasher:     hasher,
		Tokens:     tokens,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	accounts := service.NewAccountService(cfg.Auth.MinPasswordLength, service.AccountServiceDependencies{
		Accounts:   store.Accounts,
		Hasher:     hasher,
		Dispatcher: dispatcher,
		Stats:      dashboard,
		Logger:     logger,
	})

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout(), !cfg.App.IsProduction())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"database": store,
			"redis":    redis,
		}, metrics),
		Auth:           handlers.NewAuthHandler(authn, accounts),
		Admin:          handlers.NewAdminHandler(accounts, dashboard),
		Profiles:       handlers.NewProfileHandler(),
		AuthMiddleware: auth.NewAuthMiddleware(authn),
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("db_driver", cfg.Database.Driver))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	wait := gfshutdown.GracefulShutdown(ctx, shutdownTimeout, map[string]gfshutdown.Operation{
		"http": func(ctx context.Context) error {
			return app.ShutdownWithContext(ctx)
		},
		"storage": func(context.Context) error {
			store.Close()
			redis.Close()
			if publisher != nil {
				return publisher.Close()
			}
			return nil
		},
	})

	exitCode := <-wait
	logger.Info("shutdown complete", zap.Int("exit_code", exitCode))
	_ = logger.Sync()
	os.Exit(exitCode)
}
