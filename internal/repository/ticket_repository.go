package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/campuskit/helpdesk-service/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	CreatedBy      *string
	AssignedTo     *string
	CategoryID     *string
	Statuses       []domain.StatusCode
	NeedsAttention *bool
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
	Limit          int
	Offset         int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// GetByIDForUpdate locks the ticket row; callable only inside a transaction.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// CountOpenAssigned returns the number of unresolved tickets per handler,
	// used for the load-balancing tie-break during assignment.
	CountOpenAssigned(ctx context.Context, handlerIDs []string) (map[string]int, error)
	// ListDueCandidates returns unresolved tickets with a resolution deadline,
	// for the overdue sweeper. The pure overdue check happens in the lifecycle
	// package.
	ListDueCandidates(ctx context.Context, before time.Time, limit int) ([]domain.Ticket, error)
}

type ticketRepository struct {
	q Querier
}

const ticketColumns = `id, external_key, created_by, category_id, subcategory_id, sub_subcategory_id,
        assigned_to, needs_attention, description, location, status, escalation_level,
        tat_seconds, ack_due_at, resolution_due_at, tat_paused_seconds, tat_paused_at,
        resolved_at, reopen_count, rating, feedback, metadata, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	meta, err := json.Marshal(ticket.Metadata)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO tickets (external_key, created_by, category_id, subcategory_id, sub_subcategory_id,
            assigned_to, needs_attention, description, location, status, escalation_level,
            tat_seconds, ack_due_at, resolution_due_at, tat_paused_seconds, tat_paused_at,
            resolved_at, reopen_count, rating, feedback, metadata)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
        RETURNING id, created_at, updated_at`
	return r.q.QueryRow(ctx, query,
		ticket.ExternalKey,
		ticket.CreatedBy,
		ticket.CategoryID,
		ticket.SubcategoryID,
		ticket.SubSubcategoryID,
		ticket.AssignedTo,
		ticket.NeedsAttention,
		ticket.Description,
		ticket.Location,
		ticket.Status,
		ticket.EscalationLevel,
		int64(ticket.TAT/time.Second),
		ticket.AckDueAt,
		ticket.ResolutionDueAt,
		int64(ticket.TATPausedFor/time.Second),
		ticket.TATPausedAt,
		ticket.ResolvedAt,
		ticket.ReopenCount,
		ticket.Rating,
		ticket.Feedback,
		meta,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	meta, err := json.Marshal(ticket.Metadata)
	if err != nil {
		return err
	}
	const query = `
        UPDATE tickets SET assigned_to=$1, needs_attention=$2, status=$3, escalation_level=$4,
            tat_seconds=$5, ack_due_at=$6, resolution_due_at=$7, tat_paused_seconds=$8,
            tat_paused_at=$9, resolved_at=$10, reopen_count=$11, rating=$12, feedback=$13,
            metadata=$14, updated_at=NOW()
        WHERE id=$15`
	cmd, err := r.q.Exec(ctx, query,
		ticket.AssignedTo,
		ticket.NeedsAttention,
		ticket.Status,
		ticket.EscalationLevel,
		int64(ticket.TAT/time.Second),
		ticket.AckDueAt,
		ticket.ResolutionDueAt,
		int64(ticket.TATPausedFor/time.Second),
		ticket.TATPausedAt,
		ticket.ResolvedAt,
		ticket.ReopenCount,
		ticket.Rating,
		ticket.Feedback,
		meta,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 FOR UPDATE`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	row := r.q.QueryRow(ctx, query, arg)
	ticket, err := scanTicket(row)
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		clauses = append(clauses, fmt.Sprintf("category_id=$%d", len(args)))
	}
	if filter.NeedsAttention != nil {
		args = append(args, *filter.NeedsAttention)
		clauses = append(clauses, fmt.Sprintf("needs_attention=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) CountOpenAssigned(ctx context.Context, handlerIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(handlerIDs))
	for _, id := range handlerIDs {
		counts[id] = 0
	}
	if len(handlerIDs) == 0 {
		return counts, nil
	}
	const query = `
        SELECT assigned_to, COUNT(*) FROM tickets
        WHERE assigned_to = ANY($1) AND status <> 'RESOLVED'
        GROUP BY assigned_to`
	rows, err := r.q.Query(ctx, query, handlerIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func (r *ticketRepository) ListDueCandidates(ctx context.Context, before time.Time, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
        SELECT %s FROM tickets
        WHERE status IN ('OPEN','IN_PROGRESS','AWAITING_STUDENT','ESCALATED','FORWARDED')
          AND resolution_due_at IS NOT NULL AND resolution_due_at <= $1
        ORDER BY resolution_due_at LIMIT %d`, ticketColumns, limit)
	rows, err := r.q.Query(ctx, query, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		ticket    domain.Ticket
		tatSec    int64
		pausedSec int64
		metaRaw   []byte
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.ExternalKey,
		&ticket.CreatedBy,
		&ticket.CategoryID,
		&ticket.SubcategoryID,
		&ticket.SubSubcategoryID,
		&ticket.AssignedTo,
		&ticket.NeedsAttention,
		&ticket.Description,
		&ticket.Location,
		&ticket.Status,
		&ticket.EscalationLevel,
		&tatSec,
		&ticket.AckDueAt,
		&ticket.ResolutionDueAt,
		&pausedSec,
		&ticket.TATPausedAt,
		&ticket.ResolvedAt,
		&ticket.ReopenCount,
		&ticket.Rating,
		&ticket.Feedback,
		&metaRaw,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	ticket.TAT = time.Duration(tatSec) * time.Second
	ticket.TATPausedFor = time.Duration(pausedSec) * time.Second
	if len(metaRaw) > 0 {
		if err := json.Unmarshal(metaRaw, &ticket.Metadata); err != nil {
			return nil, err
		}
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
