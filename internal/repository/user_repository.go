package repository

import (
	"context"

	"github.com/campuskit/helpdesk-service/internal/domain"
)

// UserRepository reads principals for identity checks and routing lookups.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	// GetSuperAdmin returns the oldest active super admin, the system-wide
	// fallback target of the assignment cascade.
	GetSuperAdmin(ctx context.Context) (*domain.User, error)
}

type userRepository struct {
	q Querier
}

const userColumns = `id, name, email, password_hash, role, hostel, active, created_at, updated_at`

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
}

func (r *userRepository) GetSuperAdmin(ctx context.Context) (*domain.User, error) {
	const query = `
        SELECT ` + userColumns + ` FROM users
        WHERE role='SUPER_ADMIN' AND active
        ORDER BY created_at LIMIT 1`
	return r.fetchSingle(ctx, query)
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (name, email, password_hash, role, hostel, active)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.q.QueryRow(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Hostel,
		user.Active,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var u domain.User
	if err := r.q.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.Hostel,
		&u.Active,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}
