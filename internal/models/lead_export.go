package models

import (
	"time"

	"github.com/google/uuid"
)

// Lead export job states.
const (
	ExportStatusPending   = "pending"
	ExportStatusCompleted = "completed"
	ExportStatusFailed    = "failed"
)

// LeadExport tracks one CSV export of a session's funnel to object storage.
type LeadExport struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Status    string    `json:"status"`
	S3Key     string    `json:"s3_key,omitempty"`
	RowCount  int       `json:"row_count"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
