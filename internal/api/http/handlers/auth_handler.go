package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/campuskit/helpdesk-service/internal/api/dto"
	"github.com/campuskit/helpdesk-service/internal/auth"
	"github.com/campuskit/helpdesk-service/internal/domain"
	"github.com/campuskit/helpdesk-service/internal/service"
	apperrors "github.com/campuskit/helpdesk-service/pkg/util"
)

// AuthHandler manages login and account registration.
type AuthHandler struct {
	service *service.IdentityService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(identityService *service.IdentityService) *AuthHandler {
	return &AuthHandler{service: identityService}
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	session, err := h.service.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SessionResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      userResponse(session.User),
	}})
}

// Register POST /auth/register. Unauthenticated callers may only create
// student accounts; staff accounts require a super admin bearer token.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	actor := domain.Actor{}
	if principal, ok := auth.PrincipalFromContext(c); ok && principal.User != nil {
		actor = principal.Actor()
	}

	user, err := h.service.Register(c.UserContext(), actor, service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Hostel:   req.Hostel,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": userResponse(user)})
}

func userResponse(u *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Role:   u.Role,
		Hostel: u.Hostel,
	}
}
