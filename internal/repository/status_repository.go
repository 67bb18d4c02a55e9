package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/campuskit/helpdesk-service/internal/domain"
)

// StatusRepository manages the configurable status registry.
type StatusRepository interface {
	List(ctx context.Context) ([]domain.StatusDefinition, error)
	Upsert(ctx context.Context, def *domain.StatusDefinition) error
	Delete(ctx context.Context, value domain.StatusCode) error
}

type statusRepository struct {
	q Querier
}

func (r *statusRepository) List(ctx context.Context) ([]domain.StatusDefinition, error) {
	const query = `
        SELECT value, label, progress, is_final, sort_order, created_at, updated_at
        FROM ticket_statuses ORDER BY sort_order, value`
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StatusDefinition
	for rows.Next() {
		var def domain.StatusDefinition
		if err := rows.Scan(&def.Value, &def.Label, &def.Progress, &def.IsFinal, &def.SortOrder, &def.CreatedAt, &def.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, def)
	}
	return result, rows.Err()
}

func (r *statusRepository) Upsert(ctx context.Context, def *domain.StatusDefinition) error {
	const query = `
        INSERT INTO ticket_statuses (value, label, progress, is_final, sort_order)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (value) DO UPDATE SET
            label=EXCLUDED.label, progress=EXCLUDED.progress,
            is_final=EXCLUDED.is_final, sort_order=EXCLUDED.sort_order, updated_at=NOW()
        RETURNING created_at, updated_at`
	return r.q.QueryRow(ctx, query, def.Value, def.Label, def.Progress, def.IsFinal, def.SortOrder).
		Scan(&def.CreatedAt, &def.UpdatedAt)
}

func (r *statusRepository) Delete(ctx context.Context, value domain.StatusCode) error {
	cmd, err := r.q.Exec(ctx, `DELETE FROM ticket_statuses WHERE value=$1`, value)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
