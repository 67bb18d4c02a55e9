// Package outbox drains the durable event queue written by ticket commands
// and drives the notification workers. Delivery is at-least-once: rows are
// claimed with row-level locking, retried with exponential backoff and left
// dead-lettered once the attempt ceiling is hit.
package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/campuskit/helpdesk-service/internal/domain"
	"github.com/campuskit/helpdesk-service/internal/observability"
)

// Store is the slice of the outbox repository the dispatcher needs.
type Store interface {
	ClaimDue(ctx context.Context, limit, maxAttempts int, now time.Time) ([]domain.OutboxEntry, error)
	MarkProcessed(ctx context.Context, id string, now time.Time) error
	MarkFailed(ctx context.Context, id string, attempts int, nextRetryAt time.Time, cause string) error
}

// Handler processes one claimed entry. Errors count against the entry's
// retry budget.
type Handler func(ctx context.Context, entry domain.OutboxEntry) error

// Config bounds the polling loop.
type Config struct {
	BatchSize      int
	MaxAttempts    int
	PollInterval   time.Duration
	HandlerTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.HandlerTimeout <= 0 {
		c.HandlerTimeout = 5 * time.Second
	}
	return c
}

// Dispatcher polls the outbox and invokes the handler registered for each
// entry's event type. Batch items are processed independently: one failing
// row never aborts the rest.
type Dispatcher struct {
	store    Store
	handlers map[string]Handler
	logger   *zap.Logger
	cfg      Config
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewDispatcher constructs a dispatcher with the given polling bounds.
func NewDispatcher(store Store, logger *zap.Logger, cfg Config) *Dispatcher {
	return &Dispatcher{
		store:    store,
		handlers: make(map[string]Handler),
		logger:   logger,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
}

// Register installs the handler for an event type.
func (d *Dispatcher) Register(eventType string, handler Handler) {
	d.handlers[eventType] = handler
}

// UseMetrics attaches delivery counters. Safe to skip; a nil Metrics is a
// no-op.
func (d *Dispatcher) UseMetrics(m *observability.Metrics) {
	d.metrics = m
}

// Run polls until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if n, err := d.ProcessOnce(ctx); err != nil {
			d.logger.Error("outbox poll failed", zap.Error(err))
		} else if n > 0 {
			// drained a full batch; poll again without sleeping
			if n == d.cfg.BatchSize {
				continue
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessOnce claims and processes a single batch, returning how many rows
// were claimed.
func (d *Dispatcher) ProcessOnce(ctx context.Context) (int, error) {
	now := d.now()
	entries, err := d.store.ClaimDue(ctx, d.cfg.BatchSize, d.cfg.MaxAttempts, now)
	if err != nil {
		return 0, err
	}
	for _, entry := range entries {
		d.process(ctx, entry)
	}
	return len(entries), nil
}

func (d *Dispatcher) process(ctx context.Context, entry domain.OutboxEntry) {
	handler, ok := d.handlers[entry.EventType]
	if !ok {
		// unknown types are skipped permanently, not retried
		d.logger.Warn("skipping outbox entry with unknown event type",
			zap.String("outbox_id", entry.ID),
			zap.String("event_type", entry.EventType))
		if err := d.store.MarkProcessed(ctx, entry.ID, d.now()); err != nil {
			d.logger.Error("failed to mark unknown entry processed", zap.String("outbox_id", entry.ID), zap.Error(err))
		}
		return
	}

	handlerCtx, cancel := context.WithTimeout(ctx, d.cfg.HandlerTimeout)
	err := handler(handlerCtx, entry)
	cancel()

	d.metrics.RecordDispatch(entry.EventType, err == nil)

	if err == nil {
		if err := d.store.MarkProcessed(ctx, entry.ID, d.now()); err != nil {
			d.logger.Error("failed to mark entry processed", zap.String("outbox_id", entry.ID), zap.Error(err))
		}
		return
	}

	attempts := entry.Attempts + 1
	retryAt := d.now().Add(Backoff(attempts))
	if markErr := d.store.MarkFailed(ctx, entry.ID, attempts, retryAt, err.Error()); markErr != nil {
		d.logger.Error("failed to record delivery failure", zap.String("outbox_id", entry.ID), zap.Error(markErr))
		return
	}
	if attempts >= d.cfg.MaxAttempts {
		d.logger.Error("outbox entry dead-lettered",
			zap.String("outbox_id", entry.ID),
			zap.String("event_type", entry.EventType),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return
	}
	d.logger.Warn("outbox delivery failed, retry scheduled",
		zap.String("outbox_id", entry.ID),
		zap.String("event_type", entry.EventType),
		zap.Int("attempts", attempts),
		zap.Time("next_retry_at", retryAt),
		zap.Error(err))
}

// Backoff returns the retry delay after the given attempt count:
// 2^attempts minutes.
func Backoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 16 {
		attempts = 16
	}
	return time.Duration(1<<uint(attempts)) * time.Minute
}
