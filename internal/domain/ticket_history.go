package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeStatus      TicketChangeType = "STATUS_CHANGE"
	ChangeTypeAssignee    TicketChangeType = "ASSIGNEE_CHANGE"
	ChangeTypeRouting     TicketChangeType = "ROUTING_RESOLVED"
	ChangeTypeEscalation  TicketChangeType = "ESCALATION"
	ChangeTypeForward     TicketChangeType = "FORWARD"
	ChangeTypeReopen      TicketChangeType = "REOPEN"
	ChangeTypeTATExtended TicketChangeType = "TAT_EXTENDED"
	ChangeTypeRating      TicketChangeType = "RATING"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID         string
	TicketID   string
	ActorID    *string
	ChangeType TicketChangeType
	OldValue   map[string]any
	NewValue   map[string]any
	CreatedAt  time.Time
}
