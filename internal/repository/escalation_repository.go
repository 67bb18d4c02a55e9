package repository

import (
	"context"

	"github.com/campuskit/helpdesk-service/internal/domain"
)

// EscalationRuleRepository resolves routing targets in the domain/scope
// hierarchy.
type EscalationRuleRepository interface {
	// GetRule returns the rule for (domain, scope, level); scope nil matches
	// the domain-wide rule.
	GetRule(ctx context.Context, routingDomain string, scope *string, level int) (*domain.EscalationRule, error)
}

// EscalationRepository persists escalation history records.
type EscalationRepository interface {
	Create(ctx context.Context, esc *domain.Escalation) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Escalation, error)
}

type escalationRuleRepository struct {
	q Querier
}

func (r *escalationRuleRepository) GetRule(ctx context.Context, routingDomain string, scope *string, level int) (*domain.EscalationRule, error) {
	const withScope = `
        SELECT id, domain, scope, level, assignee_id, channel, created_at
        FROM escalation_rules WHERE domain=$1 AND scope=$2 AND level=$3`
	const withoutScope = `
        SELECT id, domain, scope, level, assignee_id, channel, created_at
        FROM escalation_rules WHERE domain=$1 AND scope IS NULL AND level=$2`

	var rule domain.EscalationRule
	var err error
	if scope != nil {
		err = r.q.QueryRow(ctx, withScope, routingDomain, *scope, level).Scan(
			&rule.ID, &rule.Domain, &rule.Scope, &rule.Level, &rule.AssigneeID, &rule.Channel, &rule.CreatedAt)
	} else {
		err = r.q.QueryRow(ctx, withoutScope, routingDomain, level).Scan(
			&rule.ID, &rule.Domain, &rule.Scope, &rule.Level, &rule.AssigneeID, &rule.Channel, &rule.CreatedAt)
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

type escalationRepository struct {
	q Querier
}

func (r *escalationRepository) Create(ctx context.Context, esc *domain.Escalation) error {
	const query = `
        INSERT INTO escalations (ticket_id, from_level, to_level, actor_id, reason)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.q.QueryRow(ctx, query,
		esc.TicketID,
		esc.FromLevel,
		esc.ToLevel,
		esc.ActorID,
		esc.Reason,
	).Scan(&esc.ID, &esc.CreatedAt)
}

func (r *escalationRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Escalation, error) {
	const query = `
        SELECT id, ticket_id, from_level, to_level, actor_id, reason, created_at
        FROM escalations WHERE ticket_id=$1 ORDER BY created_at`
	rows, err := r.q.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Escalation
	for rows.Next() {
		var esc domain.Escalation
		if err := rows.Scan(&esc.ID, &esc.TicketID, &esc.FromLevel, &esc.ToLevel, &esc.ActorID, &esc.Reason, &esc.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, esc)
	}
	return result, rows.Err()
}
