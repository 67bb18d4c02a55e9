package domain

import "time"

// EscalationRule maps a (domain, scope, level) triple to a responsible
// handler and notification channel. Level is 1-based; level 1 doubles as the
// final fallback of the assignment cascade.
type EscalationRule struct {
	ID         string
	Domain     string
	Scope      *string
	Level      int
	AssigneeID string
	Channel    string
	CreatedAt  time.Time
}

// Escalation is an immutable history record appended whenever a ticket's
// escalation level increments.
type Escalation struct {
	ID        string
	TicketID  string
	FromLevel int
	ToLevel   int
	ActorID   *string
	Reason    string
	CreatedAt time.Time
}
