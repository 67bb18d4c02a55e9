package dto

import "github.com/campuskit/helpdesk-service/internal/domain"

// UpsertStatusRequest payload for registry writes.
type UpsertStatusRequest struct {
	Value     domain.StatusCode `json:"value"`
	Label     string            `json:"label"`
	Progress  int               `json:"progress"`
	IsFinal   bool              `json:"is_final"`
	SortOrder int               `json:"sort_order"`
}

// StatusResponse represents a registry row.
type StatusResponse struct {
	Value     domain.StatusCode `json:"value"`
	Label     string            `json:"label"`
	Progress  int               `json:"progress"`
	IsFinal   bool              `json:"is_final"`
	SortOrder int               `json:"sort_order"`
}
