package service

import (
	"context"
	"strings"

	"github.com/campuskit/helpdesk-service/internal/cache"
	"github.com/campuskit/helpdesk-service/internal/domain"
	"github.com/campuskit/helpdesk-service/internal/repository"
	apperrors "github.com/campuskit/helpdesk-service/pkg/util"
)

// StatusService manages the status registry: presentation metadata for the
// closed set of lifecycle codes. Reads go through the TTL cache; privileged
// writes invalidate it.
type StatusService struct {
	store repository.Store
	cache *cache.StatusCache
}

// NewStatusService constructs the service.
func NewStatusService(store repository.Store, statusCache *cache.StatusCache) *StatusService {
	return &StatusService{store: store, cache: statusCache}
}

// List returns the registry ordered by sort_order.
func (s *StatusService) List(ctx context.Context) ([]domain.StatusDefinition, error) {
	return s.cache.List(ctx)
}

// Upsert creates or updates a registry row. The value must be one of the
// canonical lifecycle codes; the registry cannot invent states the lifecycle
// engine does not know.
func (s *StatusService) Upsert(ctx context.Context, actor domain.Actor, def *domain.StatusDefinition) error {
	if actor.Role != domain.RoleSuperAdmin {
		return apperrors.NewForbidden("super admin role required")
	}
	if !knownStatus(def.Value) {
		return apperrors.NewValidationError("unknown status value", map[string]any{"value": def.Value})
	}
	if strings.TrimSpace(def.Label) == "" {
		return apperrors.NewValidationError("label required", nil)
	}
	if def.Progress < 0 || def.Progress > 100 {
		return apperrors.NewValidationError("progress must be 0-100", nil)
	}
	if err := s.store.Statuses().Upsert(ctx, def); err != nil {
		return err
	}
	s.cache.Invalidate(ctx)
	return nil
}

// Delete removes a registry row. Lifecycle semantics are unaffected; a code
// without a registry row renders with defaults.
func (s *StatusService) Delete(ctx context.Context, actor domain.Actor, value domain.StatusCode) error {
	if actor.Role != domain.RoleSuperAdmin {
		return apperrors.NewForbidden("super admin role required")
	}
	if err := s.store.Statuses().Delete(ctx, value); err != nil {
		return err
	}
	s.cache.Invalidate(ctx)
	return nil
}

func knownStatus(value domain.StatusCode) bool {
	switch value {
	case domain.StatusOpen, domain.StatusInProgress, domain.StatusAwaitingStudent,
		domain.StatusEscalated, domain.StatusForwarded, domain.StatusResolved, domain.StatusReopened:
		return true
	}
	return false
}
