package domain

import (
	"encoding/json"
	"time"
)

// OutboxEntry is an append-only event record written in the same transaction
// as the ticket mutation it describes and drained asynchronously by the
// dispatcher. Rows that exhaust their retry budget stay in place for operator
// inspection.
type OutboxEntry struct {
	ID          string
	EventType   string
	Payload     json.RawMessage
	Attempts    int
	NextRetryAt *time.Time
	ProcessedAt *time.Time
	LastError   *string
	CreatedAt   time.Time
}
