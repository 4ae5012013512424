package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/contractor-tools/estimator/constants"
)

// QueueEntry is one row of the durable estimate-generation queue.
type QueueEntry struct {
	ID           uuid.UUID             `json:"id"`
	JobID        uuid.UUID             `json:"job_id"`
	WorkspaceID  uuid.UUID             `json:"workspace_id"`
	Status       constants.QueueStatus `json:"status"`
	Attempts     int                   `json:"attempts"`
	MaxAttempts  int                   `json:"max_attempts"`
	ErrorMessage *string               `json:"error_message,omitempty"`
	LockedAt     *time.Time            `json:"locked_at,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
}
