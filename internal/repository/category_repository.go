package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/campuskit/helpdesk-service/internal/domain"
)

// CategoryRepository reads the three-level content hierarchy and its routing
// configuration.
type CategoryRepository interface {
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	GetSubcategory(ctx context.Context, id string) (*domain.Subcategory, error)
	GetSubSubcategory(ctx context.Context, id string) (*domain.SubSubcategory, error)
	// ListFieldsBySlugs returns the subcategory's dynamic fields matching the
	// given slugs, ordered by display order.
	ListFieldsBySlugs(ctx context.Context, subcategoryID string, slugs []string) ([]domain.CategoryField, error)
	// ListCoverage returns category coverage rows ordered by insertion.
	ListCoverage(ctx context.Context, categoryID string) ([]domain.CategoryCoverage, error)
}

type categoryRepository struct {
	q Querier
}

func (r *categoryRepository) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	const query = `
        SELECT id, name, domain, scope, dynamic_scope, scope_attribute, default_admin_id, is_active, created_at, updated_at
        FROM categories WHERE id=$1`
	var c domain.Category
	if err := r.q.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.Name,
		&c.Domain,
		&c.Scope,
		&c.DynamicScope,
		&c.ScopeAttribute,
		&c.DefaultAdminID,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *categoryRepository) GetSubcategory(ctx context.Context, id string) (*domain.Subcategory, error) {
	const query = `
        SELECT id, category_id, name, assigned_admin_id, is_active, created_at
        FROM subcategories WHERE id=$1`
	var s domain.Subcategory
	if err := r.q.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.CategoryID,
		&s.Name,
		&s.AssignedAdminID,
		&s.IsActive,
		&s.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *categoryRepository) GetSubSubcategory(ctx context.Context, id string) (*domain.SubSubcategory, error) {
	const query = `
        SELECT id, subcategory_id, name, assigned_admin_id, is_active, created_at
        FROM sub_subcategories WHERE id=$1`
	var s domain.SubSubcategory
	if err := r.q.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.SubcategoryID,
		&s.Name,
		&s.AssignedAdminID,
		&s.IsActive,
		&s.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *categoryRepository) ListFieldsBySlugs(ctx context.Context, subcategoryID string, slugs []string) ([]domain.CategoryField, error) {
	if len(slugs) == 0 {
		return nil, nil
	}
	const query = `
        SELECT id, subcategory_id, slug, label, field_type, options, assigned_admin_id, display_order, created_at
        FROM category_fields
        WHERE subcategory_id=$1 AND slug = ANY($2)
        ORDER BY display_order, slug`
	rows, err := r.q.Query(ctx, query, subcategoryID, slugs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFields(rows)
}

func (r *categoryRepository) ListCoverage(ctx context.Context, categoryID string) ([]domain.CategoryCoverage, error) {
	const query = `
        SELECT id, category_id, admin_id, is_primary, priority, created_at
        FROM category_assignments WHERE category_id=$1
        ORDER BY created_at, id`
	rows, err := r.q.Query(ctx, query, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.CategoryCoverage
	for rows.Next() {
		var cov domain.CategoryCoverage
		if err := rows.Scan(&cov.ID, &cov.CategoryID, &cov.AdminID, &cov.IsPrimary, &cov.Priority, &cov.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, cov)
	}
	return result, rows.Err()
}

func scanFields(rows pgx.Rows) ([]domain.CategoryField, error) {
	var result []domain.CategoryField
	for rows.Next() {
		var f domain.CategoryField
		if err := rows.Scan(&f.ID, &f.SubcategoryID, &f.Slug, &f.Label, &f.FieldType, &f.Options, &f.AssignedAdminID, &f.DisplayOrder, &f.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	return result, rows.Err()
}
