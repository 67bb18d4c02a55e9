// Package cache provides explicit, injected TTL caches backed by redis,
// replacing the source system's module-level memoization. Every cache
// carries an invalidation hook and degrades to its backing store when redis
// is unreachable.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/campuskit/helpdesk-service/internal/domain"
	"github.com/campuskit/helpdesk-service/internal/repository"
)

const (
	statusListKey = "helpdesk:statuses"
	superAdminKey = "helpdesk:super_admin"
)

// StatusCache fronts the status registry with a TTL'd redis entry.
type StatusCache struct {
	client *redis.Client
	store  repository.Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewStatusCache constructs the cache.
func NewStatusCache(client *redis.Client, store repository.Store, ttl time.Duration, logger *zap.Logger) *StatusCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &StatusCache{client: client, store: store, ttl: ttl, logger: logger}
}

// List returns the registry, from cache when fresh.
func (c *StatusCache) List(ctx context.Context) ([]domain.StatusDefinition, error) {
	if c.client != nil {
		raw, err := c.client.Get(ctx, statusListKey).Bytes()
		if err == nil {
			var defs []domain.StatusDefinition
			if err := json.Unmarshal(raw, &defs); err == nil {
				return defs, nil
			}
		} else if err != redis.Nil {
			c.logger.Warn("status cache read failed", zap.Error(err))
		}
	}

	defs, err := c.store.Statuses().List(ctx)
	if err != nil {
		return nil, err
	}
	if c.client != nil {
		if raw, err := json.Marshal(defs); err == nil {
			if err := c.client.Set(ctx, statusListKey, raw, c.ttl).Err(); err != nil {
				c.logger.Warn("status cache write failed", zap.Error(err))
			}
		}
	}
	return defs, nil
}

// Invalidate drops the cached registry; called after privileged writes.
func (c *StatusCache) Invalidate(ctx context.Context) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, statusListKey).Err(); err != nil {
		c.logger.Warn("status cache invalidation failed", zap.Error(err))
	}
}

// SuperAdminCache memoizes the system-wide fallback handler lookup.
type SuperAdminCache struct {
	client *redis.Client
	store  repository.Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewSuperAdminCache constructs the cache.
func NewSuperAdminCache(client *redis.Client, store repository.Store, ttl time.Duration, logger *zap.Logger) *SuperAdminCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SuperAdminCache{client: client, store: store, ttl: ttl, logger: logger}
}

// SuperAdminID implements routing.SuperAdminSource.
func (c *SuperAdminCache) SuperAdminID(ctx context.Context) (string, error) {
	if c.client != nil {
		id, err := c.client.Get(ctx, superAdminKey).Result()
		if err == nil && id != "" {
			return id, nil
		}
		if err != nil && err != redis.Nil {
			c.logger.Warn("super admin cache read failed", zap.Error(err))
		}
	}

	admin, err := c.store.Users().GetSuperAdmin(ctx)
	if err != nil {
		return "", err
	}
	if c.client != nil {
		if err := c.client.Set(ctx, superAdminKey, admin.ID, c.ttl).Err(); err != nil {
			c.logger.Warn("super admin cache write failed", zap.Error(err))
		}
	}
	return admin.ID, nil
}

// Invalidate drops the memoized id; called when admin accounts change.
func (c *SuperAdminCache) Invalidate(ctx context.Context) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, superAdminKey).Err(); err != nil {
		c.logger.Warn("super admin cache invalidation failed", zap.Error(err))
	}
}
