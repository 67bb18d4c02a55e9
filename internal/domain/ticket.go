package domain

import "time"

// StatusCode enumerates canonical lifecycle states for tickets. The status
// registry table stores presentation metadata for these codes; the lifecycle
// engine only ever deals in this closed set.
type StatusCode string

const (
	StatusOpen            StatusCode = "OPEN"
	StatusInProgress      StatusCode = "IN_PROGRESS"
	StatusAwaitingStudent StatusCode = "AWAITING_STUDENT"
	StatusEscalated       StatusCode = "ESCALATED"
	StatusForwarded       StatusCode = "FORWARDED"
	StatusResolved        StatusCode = "RESOLVED"
	StatusReopened        StatusCode = "REOPENED"
)

// HandlerUnassigned is the sentinel stored in AssignedTo when no routing
// configuration produced a handler. Tickets carrying it are flagged for
// operator attention instead of failing creation.
const HandlerUnassigned = "UNASSIGNED"

// TATExtension is an immutable audit entry recorded each time a handler
// extends the turnaround window of an in-progress ticket.
type TATExtension struct {
	PreviousTAT time.Duration `json:"previous_tat"`
	NewTAT      time.Duration `json:"new_tat"`
	ExtendedAt  time.Time     `json:"extended_at"`
	ActorID     string        `json:"actor_id"`
}

// AttachmentReference stores metadata for files attached to a ticket.
type AttachmentReference struct {
	StorageKey string `json:"storage_key"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
}

// TicketMetadata replaces the source system's untyped JSON bag with explicit
// sub-structures so the lifecycle and TAT logic get checked access to the
// fields they depend on.
type TicketMetadata struct {
	FieldValues   map[string]string     `json:"field_values,omitempty"`
	TATExtensions []TATExtension        `json:"tat_extensions,omitempty"`
	Attachments   []AttachmentReference `json:"attachments,omitempty"`
	ForwardCount  int                   `json:"forward_count,omitempty"`
}

// Ticket is the aggregate for helpdesk requests.
type Ticket struct {
	ID               string
	ExternalKey      string
	CreatedBy        string
	CategoryID       string
	SubcategoryID    *string
	SubSubcategoryID *string
	AssignedTo       string
	NeedsAttention   bool
	Description      string
	Location         *string
	Status           StatusCode
	EscalationLevel  int
	TAT              time.Duration
	AckDueAt         *time.Time
	ResolutionDueAt  *time.Time
	TATPausedFor     time.Duration
	TATPausedAt      *time.Time
	ResolvedAt       *time.Time
	ReopenCount      int
	Rating           *int
	Feedback         *string
	Metadata         TicketMetadata
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsTerminal reports whether the status ends TAT tracking. RESOLVED is
// terminal for the clock but not absorbing: reopening is a legal transition.
func (s StatusCode) IsTerminal() bool {
	return s == StatusResolved
}

// Assigned reports whether the ticket has a real handler.
func (t *Ticket) Assigned() bool {
	return t.AssignedTo != "" && t.AssignedTo != HandlerUnassigned
}
