package outbox

import (
	"encoding/json"

	"github.com/campuskit/helpdesk-service/internal/domain"
)

// Event type tags persisted on outbox rows. Unknown tags are logged and
// skipped by the dispatcher, never retried.
const (
	EventTicketCreated      = "ticket.created"
	EventTicketCommentAdded = "ticket.comment_added"
	EventTicketStatusChange = "ticket.status_changed"
	EventTicketEscalated    = "ticket.escalated"
)

// TicketCreatedPayload describes a new ticket.
type TicketCreatedPayload struct {
	TicketID   string  `json:"ticket_id"`
	CategoryID string  `json:"category_id"`
	CreatedBy  string  `json:"created_by"`
	AssignedTo string  `json:"assigned_to"`
	Step       string  `json:"routing_step"`
	Location   *string `json:"location,omitempty"`
}

// CommentAddedPayload describes a new comment on a ticket thread.
type CommentAddedPayload struct {
	TicketID   string                   `json:"ticket_id"`
	CommentID  string                   `json:"comment_id"`
	AuthorID   string                   `json:"author_id"`
	Visibility domain.CommentVisibility `json:"visibility"`
	Preview    string                   `json:"preview"`
}

// StatusChangedPayload describes a lifecycle transition.
type StatusChangedPayload struct {
	TicketID  string            `json:"ticket_id"`
	OldStatus domain.StatusCode `json:"old_status"`
	NewStatus domain.StatusCode `json:"new_status"`
	ActorID   string            `json:"actor_id"`
	Reason    string            `json:"reason,omitempty"`
}

// EscalatedPayload describes an escalation-level increment.
type EscalatedPayload struct {
	TicketID   string `json:"ticket_id"`
	FromLevel  int    `json:"from_level"`
	ToLevel    int    `json:"to_level"`
	AssignedTo string `json:"assigned_to"`
	Reason     string `json:"reason,omitempty"`
	Channel    string `json:"channel,omitempty"`
}

// NewEntry marshals a payload into an outbox row ready for Append.
func NewEntry(eventType string, payload any) (*domain.OutboxEntry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &domain.OutboxEntry{EventType: eventType, Payload: raw}, nil
}
