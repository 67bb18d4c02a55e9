package dto

import "time"

// DeadLetterResponse surfaces an exhausted outbox entry for operators.
type DeadLetterResponse struct {
	ID        string    `json:"id"`
	EventType string    `json:"event_type"`
	Attempts  int       `json:"attempts"`
	LastError *string   `json:"last_error"`
	CreatedAt time.Time `json:"created_at"`
}
