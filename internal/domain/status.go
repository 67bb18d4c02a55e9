package domain

import "time"

// StatusDefinition is a status registry row: presentation metadata for a
// canonical status code. Mutated only through privileged configuration
// endpoints, never by ticket-processing code.
type StatusDefinition struct {
	Value     StatusCode
	Label     string
	Progress  int
	IsFinal   bool
	SortOrder int
	CreatedAt time.Time
	UpdatedAt time.Time
}
