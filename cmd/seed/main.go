package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"github.com/rsams/attendance-service/internal/auth"
	"github.com/rsams/attendance-service/internal/config"
	"github.com/rsams/attendance-service/internal/domain"
	"github.com/rsams/attendance-service/internal/events"
	"github.com/rsams/attendance-service/internal/observability"
	"github.com/rsams/attendance-service/internal/persistence"
	"github.com/rsams/attendance-service/internal/service"
	apperrors "github.com/rsams/attendance-service/pkg/util/errorutil"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Name+"-seed")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	store, err := persistence.OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to open account store", zap.Error(err))
	}
	defer store.Close()

	dispatcher := events.NewInMemoryDispatcher(logger)
	service.NewAuditService(dispatcher, logger).RegisterHandlers()

	accounts := service.NewAccountService(cfg.Auth.MinPasswordLength, service.AccountServiceDependencies{
		Accounts:   store.Accounts,
		Hasher:     auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	admin, err := accounts.CreateAccount(ctx, events.Actor{}, service.RegisterInput{
		Email:    cfg.Seed.AdminEmail,
		Password: cfg.Seed.AdminPassword,
		Role:     domain.RoleAdmin,
		Name:     "System Administrator",
	})
	switch {
	case apperrors.HasCode(err, apperrors.CodeDuplicateEmail):
		logger.Info("admin account already exists, skipping", zap.String("email", domain.NormalizeEmail(cfg.Seed.AdminEmail)))
	case err != nil:
		logger.Fatal("failed to seed admin account", zap.Error(err))
	default:
		logger.Info("admin account created", zap.String("id", admin.ID), zap.String("email", admin.Email))
	}
}
