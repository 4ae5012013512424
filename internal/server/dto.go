package server

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/contractor-tools/estimator/constants"
	"github.com/contractor-tools/estimator/internal/common"
	"github.com/contractor-tools/estimator/internal/entity"
)

type createJobRequest struct {
	Title      string     `json:"title" binding:"required"`
	Scope      string     `json:"scope"`
	DueDate    string     `json:"due_date"`
	CustomerID *uuid.UUID `json:"customer_id"`
}

type updateJobRequest struct {
	Title      string     `json:"title" binding:"required"`
	Scope      string     `json:"scope"`
	DueDate    string     `json:"due_date"`
	CustomerID *uuid.UUID `json:"customer_id"`
}

// parseDueDate accepts a date-only string; empty means no due date.
func parseDueDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, common.NewAppError("INVALID_DUE_DATE", "due_date must be YYYY-MM-DD", common.ErrInvalidInput)
	}
	return &t, nil
}

type itemRequest struct {
	Kind        string   `json:"kind"`
	Description string   `json:"description"`
	Unit        *string  `json:"unit"`
	UnitPrice   *float64 `json:"unit_price"`
	Quantity    *float64 `json:"quantity"`
}

type replaceItemsRequest struct {
	Items []itemRequest `json:"items"`
}

func (r replaceItemsRequest) toEntities(jobID uuid.UUID) ([]entity.JobItem, error) {
	items := make([]entity.JobItem, len(r.Items))
	for i, it := range r.Items {
		kind := constants.ItemKind(it.Kind)
		switch kind {
		case constants.ItemKindLineItem, constants.ItemKindText, constants.ItemKindLink,
			constants.ItemKindFile, constants.ItemKindChecklist:
		case "":
			kind = constants.ItemKindText
		default:
			return nil, common.NewAppError("INVALID_ITEM_KIND", "unknown item kind "+it.Kind, common.ErrInvalidInput)
		}
		items[i] = entity.JobItem{
			JobID:       jobID,
			Position:    i,
			Kind:        kind,
			Description: it.Description,
			Unit:        it.Unit,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
		}
	}
	return items, nil
}

type jobResponse struct {
	entity.Job
	Items []entity.JobItem `json:"items,omitempty"`
}

type addPhotoRequest struct {
	FileName    string `json:"file_name" binding:"required"`
	ContentType string `json:"content_type"`
}

type photoUploadResponse struct {
	PhotoID   uuid.UUID `json:"photo_id"`
	ObjectKey string    `json:"object_key"`
	UploadURL string    `json:"upload_url"`
	ExpiresIn int64     `json:"expires_in_seconds"`
}

type generateResponse struct {
	Job      *entity.Job             `json:"job"`
	Estimate *entity.EstimatePayload `json:"estimate"`
}

type enqueueResponse struct {
	QueueID  uuid.UUID             `json:"queue_id"`
	JobID    uuid.UUID             `json:"job_id"`
	Status   constants.QueueStatus `json:"status"`
	Attempts int                   `json:"attempts"`
}

type estimateResponse struct {
	ID        uuid.UUID       `json:"id"`
	JobID     uuid.UUID       `json:"job_id"`
	Model     string          `json:"model"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

func toEstimateResponse(rec entity.EstimateRecord) estimateResponse {
	return estimateResponse{
		ID:        rec.ID,
		JobID:     rec.JobID,
		Model:     rec.Model,
		CreatedAt: rec.CreatedAt,
		Payload:   rec.Payload,
	}
}

type settingsRequest struct {
	HourlyRate      float64    `json:"hourly_rate"`
	MarkupPercent   float64    `json:"markup_percent"`
	TaxRatePercent  float64    `json:"tax_rate_percent"`
	Trade           string     `json:"trade"`
	DefaultPromptID *uuid.UUID `json:"default_prompt_id"`
}

func (r settingsRequest) validate() error {
	if r.HourlyRate < 0 || r.MarkupPercent < 0 || r.TaxRatePercent < 0 {
		return common.NewAppError("INVALID_RATES", "rates must be non-negative", common.ErrInvalidInput)
	}
	return nil
}
