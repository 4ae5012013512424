package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/contractor-tools/estimator/constants"
)

// Job represents a contractor job for data transfer between layers.
type Job struct {
	ID           uuid.UUID           `json:"id"`
	WorkspaceID  uuid.UUID           `json:"workspace_id"`
	CustomerID   *uuid.UUID          `json:"customer_id,omitempty"`
	Title        string              `json:"title"`
	Scope        string              `json:"scope"`
	DueDate      *time.Time          `json:"due_date,omitempty"`
	Status       constants.JobStatus `json:"status"`
	ErrorMessage *string             `json:"error_message,omitempty"`
	EstimatedAt  *time.Time          `json:"estimated_at,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// JobItem is an ordered child of a Job. Only line_item rows carry pricing
// fields; the other kinds are free-form content.
type JobItem struct {
	ID          uuid.UUID          `json:"id"`
	JobID       uuid.UUID          `json:"job_id"`
	Position    int                `json:"position"`
	Kind        constants.ItemKind `json:"kind"`
	Description string             `json:"description"`
	Unit        *string            `json:"unit,omitempty"`
	UnitPrice   *float64           `json:"unit_price,omitempty"`
	Quantity    *float64           `json:"quantity,omitempty"`
}

// JobPhoto is an uploaded photo attached to a job, stored in object storage.
type JobPhoto struct {
	ID          uuid.UUID `json:"id"`
	JobID       uuid.UUID `json:"job_id"`
	ObjectKey   string    `json:"object_key"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}
