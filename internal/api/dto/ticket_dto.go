package dto

import (
	"time"

	"github.com/campuskit/helpdesk-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	CategoryID       string            `json:"category_id"`
	SubcategoryID    *string           `json:"subcategory_id"`
	SubSubcategoryID *string           `json:"sub_subcategory_id"`
	FieldValues      map[string]string `json:"field_values"`
	Description      string            `json:"description"`
	Location         *string           `json:"location"`
}

// ChangeStatusRequest payload.
type ChangeStatusRequest struct {
	Status domain.StatusCode `json:"status"`
	Reason string            `json:"reason"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body       string                   `json:"body"`
	Visibility domain.CommentVisibility `json:"visibility"`
	AwaitReply bool                     `json:"await_reply"`
}

// EscalateRequest payload.
type EscalateRequest struct {
	Reason string `json:"reason"`
}

// ForwardRequest payload. Target may be a handler id or "auto" for the
// next-level escalation rule target.
type ForwardRequest struct {
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// ReassignRequest payload.
type ReassignRequest struct {
	HandlerID string `json:"handler_id"`
}

// ExtendTATRequest payload.
type ExtendTATRequest struct {
	TATHours int `json:"tat_hours"`
}

// RateRequest payload.
type RateRequest struct {
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback"`
}

// TicketSummary response.
type TicketSummary struct {
	ID              string            `json:"id"`
	ExternalKey     string            `json:"external_key"`
	CategoryID      string            `json:"category_id"`
	SubcategoryID   *string           `json:"subcategory_id"`
	AssignedTo      string            `json:"assigned_to"`
	NeedsAttention  bool              `json:"needs_attention"`
	Status          domain.StatusCode `json:"status"`
	EscalationLevel int               `json:"escalation_level"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description     string            `json:"description"`
	Location        *string           `json:"location"`
	FieldValues     map[string]string `json:"field_values,omitempty"`
	AckDueAt        *time.Time        `json:"ack_due_at"`
	ResolutionDueAt *time.Time        `json:"resolution_due_at"`
	Overdue         bool              `json:"overdue"`
	ResolvedAt      *time.Time        `json:"resolved_at"`
	ReopenCount     int               `json:"reopen_count"`
	Rating          *int              `json:"rating,omitempty"`
	Comments        []CommentResponse `json:"comments"`
}

// CommentResponse represents a thread comment.
type CommentResponse struct {
	ID         string                   `json:"id"`
	AuthorID   string                   `json:"author_id"`
	AuthorRole domain.Role              `json:"author_role"`
	Visibility domain.CommentVisibility `json:"visibility"`
	Body       string                   `json:"body"`
	CreatedAt  time.Time                `json:"created_at"`
}

// EscalationResponse represents an escalation history record.
type EscalationResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	FromLevel int       `json:"from_level"`
	ToLevel   int       `json:"to_level"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryResponse represents an audit trail entry.
type HistoryResponse struct {
	ID         string                  `json:"id"`
	ActorID    *string                 `json:"actor_id"`
	ChangeType domain.TicketChangeType `json:"change_type"`
	OldValue   map[string]any          `json:"old_value,omitempty"`
	NewValue   map[string]any          `json:"new_value,omitempty"`
	CreatedAt  time.Time               `json:"created_at"`
}
