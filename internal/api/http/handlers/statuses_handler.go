package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/campuskit/helpdesk-service/internal/api/dto"
	"github.com/campuskit/helpdesk-service/internal/domain"
	"github.com/campuskit/helpdesk-service/internal/service"
	apperrors "github.com/campuskit/helpdesk-service/pkg/util"
)

// StatusesHandler manages the status registry endpoints.
type StatusesHandler struct {
	service *service.StatusService
}

// NewStatusesHandler constructs handler.
func NewStatusesHandler(statusService *service.StatusService) *StatusesHandler {
	return &StatusesHandler{service: statusService}
}

// List GET /statuses.
func (h *StatusesHandler) List(c *fiber.Ctx) error {
	defs, err := h.service.List(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.StatusResponse, 0, len(defs))
	for _, def := range defs {
		items = append(items, dto.StatusResponse{
			Value:     def.Value,
			Label:     def.Label,
			Progress:  def.Progress,
			IsFinal:   def.IsFinal,
			SortOrder: def.SortOrder,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// Upsert PUT /statuses.
func (h *StatusesHandler) Upsert(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.UpsertStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	def := &domain.StatusDefinition{
		Value:     req.Value,
		Label:     req.Label,
		Progress:  req.Progress,
		IsFinal:   req.IsFinal,
		SortOrder: req.SortOrder,
	}
	if err := h.service.Upsert(c.UserContext(), actor, def); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.StatusResponse{
		Value:     def.Value,
		Label:     def.Label,
		Progress:  def.Progress,
		IsFinal:   def.IsFinal,
		SortOrder: def.SortOrder,
	}})
}

// Delete DELETE /statuses/:value.
func (h *StatusesHandler) Delete(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), actor, domain.StatusCode(c.Params("value"))); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
