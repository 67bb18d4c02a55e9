package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/campuskit/helpdesk-service/internal/cache"
	"github.com/campuskit/helpdesk-service/internal/config"
	"github.com/campuskit/helpdesk-service/internal/notify"
	"github.com/campuskit/helpdesk-service/internal/observability"
	"github.com/campuskit/helpdesk-service/internal/outbox"
	"github.com/campuskit/helpdesk-service/internal/persistence"
	"github.com/campuskit/helpdesk-service/internal/repository"
	"github.com/campuskit/helpdesk-service/internal/routing"
	"github.com/campuskit/helpdesk-service/internal/service"
)

// The worker process runs the outbox dispatcher and the overdue sweeper. It
// shares no in-process state with the API; coordination happens through the
// database.
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

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	store := repository.NewStore(pg.PoolHandle())

	dispatcher := outbox.NewDispatcher(store.Outbox(), logger, outbox.Config{
		BatchSize:      cfg.Outbox.BatchSize,
		MaxAttempts:    cfg.Outbox.MaxAttempts,
		PollInterval:   cfg.Outbox.PollInterval(),
		HandlerTimeout: cfg.Outbox.HandlerTimeout(),
	})
	dispatcher.UseMetrics(observability.NewMetrics())

	channels := []notify.Channel{notify.NewEmailChannel(cfg.Notification, logger)}
	if cfg.Notification.WebhookURL != "" {
		channels = append(channels, notify.NewWebhookChannel(cfg.Notification.WebhookURL, nil))
	}
	notify.NewWorkers(logger, channels...).RegisterAll(dispatcher)

	superAdmins := cache.NewSuperAdminCache(redis.Client, store,
		time.Duration(cfg.Routing.SuperAdminCacheTTLSecs)*time.Second, logger)
	resolver := routing.NewResolver(superAdmins)
	ticketService := service.NewTicketService(store, resolver, logger, service.TicketOptions{
		DefaultTAT:     cfg.TAT.DefaultTAT(),
		AckTAT:         cfg.TAT.AckTAT(),
		ForwardCeiling: cfg.Routing.ForwardCeiling,
	})

	go runSweeper(ctx, ticketService, cfg.Outbox.SweepInterval(), cfg.Outbox.SweepBatchSize, logger)

	go func() {
		logger.Info("outbox dispatcher started",
			zap.Int("batch_size", cfg.Outbox.BatchSize),
			zap.Duration("poll_interval", cfg.Outbox.PollInterval()))
		if err := dispatcher.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("dispatcher stopped", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()
}

// runSweeper escalates tickets past their adjusted resolution deadline.
func runSweeper(ctx context.Context, tickets *service.TicketService, interval time.Duration, batch int, logger *zap.Logger) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := tickets.EscalateOverdue(ctx, batch)
			if err != nil {
				logger.Error("overdue sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("overdue tickets escalated", zap.Int("count", n))
			}
		}
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
