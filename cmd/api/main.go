package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/campuskit/helpdesk-service/internal/api/http"
	"github.com/campuskit/helpdesk-service/internal/api/http/handlers"
	"github.com/campuskit/helpdesk-service/internal/auth"
	"github.com/campuskit/helpdesk-service/internal/cache"
	"github.com/campuskit/helpdesk-service/internal/config"
	"github.com/campuskit/helpdesk-service/internal/observability"
	"github.com/campuskit/helpdesk-service/internal/persistence"
	"github.com/campuskit/helpdesk-service/internal/repository"
	"github.com/campuskit/helpdesk-service/internal/routing"
	"github.com/campuskit/helpdesk-service/internal/service"
)

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

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	store := repository.NewStore(pg.PoolHandle())
	metrics := observability.NewMetrics()

	superAdmins := cache.NewSuperAdminCache(redis.Client, store,
		time.Duration(cfg.Routing.SuperAdminCacheTTLSecs)*time.Second, logger)
	statuses := cache.NewStatusCache(redis.Client, store,
		time.Duration(cfg.Routing.StatusCacheTTLSeconds)*time.Second, logger)

	resolver := routing.NewResolver(superAdmins)
	ticketService := service.NewTicketService(store, resolver, logger, service.TicketOptions{
		DefaultTAT:       cfg.TAT.DefaultTAT(),
		AckTAT:           cfg.TAT.AckTAT(),
		ForwardCeiling:   cfg.Routing.ForwardCeiling,
		MaxMetadataBytes: cfg.Routing.MaxMetadataBytes,
	})
	statusService := service.NewStatusService(store, statuses)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	identityService := service.NewIdentityService(store, tokens, superAdmins, cfg.Auth.BcryptCost)
	authMiddleware := auth.NewAuthMiddleware(tokens, store.Users())

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(identityService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Statuses:       handlers.NewStatusesHandler(statusService),
		Outbox:         handlers.NewOutboxHandler(store, cfg.Outbox.MaxAttempts),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
