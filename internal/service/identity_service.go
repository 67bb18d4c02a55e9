package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/campuskit/helpdesk-service/internal/auth"
	"github.com/campuskit/helpdesk-service/internal/cache"
	"github.com/campuskit/helpdesk-service/internal/domain"
	"github.com/campuskit/helpdesk-service/internal/repository"
	apperrors "github.com/campuskit/helpdesk-service/pkg/util"
)

// IdentityService authenticates users and registers accounts.
type IdentityService struct {
	store      repository.Store
	tokens     *auth.TokenManager
	admins     *cache.SuperAdminCache
	bcryptCost int
}

// NewIdentityService constructs the service.
func NewIdentityService(store repository.Store, tokens *auth.TokenManager, admins *cache.SuperAdminCache, bcryptCost int) *IdentityService {
	return &IdentityService{store: store, tokens: tokens, admins: admins, bcryptCost: bcryptCost}
}

// Session is an issued access token.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// Login verifies credentials and issues a session token.
func (s *IdentityService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password required", nil)
	}

	user, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if !user.Active {
		return nil, apperrors.NewUnauthorized("account disabled")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// RegisterInput describes an account creation request.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
	Hostel   *string
}

// Register creates an account. Staff roles require a super admin actor;
// creating or disabling admins invalidates the fallback-handler cache.
func (s *IdentityService) Register(ctx context.Context, actor domain.Actor, input RegisterInput) (*domain.User, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Email == "" || !strings.Contains(input.Email, "@") {
		return nil, apperrors.NewValidationError("valid email required", nil)
	}
	if len(input.Password) < 8 {
		return nil, apperrors.NewValidationError("password must be at least 8 characters", nil)
	}
	if input.Role == "" {
		input.Role = domain.RoleStudent
	}
	if input.Role != domain.RoleStudent && actor.Role != domain.RoleSuperAdmin {
		return nil, apperrors.NewForbidden("super admin role required to create staff accounts")
	}

	if _, err := s.store.Users().GetByEmail(ctx, input.Email); err == nil {
		return nil, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	user := &domain.User{
		Name:         strings.TrimSpace(input.Name),
		Email:        input.Email,
		PasswordHash: hash,
		Role:         input.Role,
		Hostel:       input.Hostel,
		Active:       true,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	if user.Role == domain.RoleSuperAdmin {
		s.admins.Invalidate(ctx)
	}
	return user, nil
}
