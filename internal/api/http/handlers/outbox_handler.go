package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/campuskit/helpdesk-service/internal/api/dto"
	"github.com/campuskit/helpdesk-service/internal/repository"
)

// OutboxHandler exposes dead-lettered outbox entries for operator triage.
// Entries are never deleted; redelivery after a fix means resetting attempts
// directly in the database.
type OutboxHandler struct {
	store       repository.Store
	maxAttempts int
}

// NewOutboxHandler constructs handler.
func NewOutboxHandler(store repository.Store, maxAttempts int) *OutboxHandler {
	return &OutboxHandler{store: store, maxAttempts: maxAttempts}
}

// ListDeadLetters GET /admin/outbox/dead-letters.
func (h *OutboxHandler) ListDeadLetters(c *fiber.Ctx) error {
	limit := queryInt(c, "limit", 100)
	entries, err := h.store.Outbox().ListDeadLettered(c.UserContext(), h.maxAttempts, limit)
	if err != nil {
		return err
	}
	items := make([]dto.DeadLetterResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.DeadLetterResponse{
			ID:        entry.ID,
			EventType: entry.EventType,
			Attempts:  entry.Attempts,
			LastError: entry.LastError,
			CreatedAt: entry.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}
