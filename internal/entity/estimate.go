package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/contractor-tools/estimator/constants"
)

// LaborLine is one labor row of a generated estimate.
type LaborLine struct {
	Task  string  `json:"task"`
	Hours float64 `json:"hours"`
	Rate  float64 `json:"rate"`
	Total float64 `json:"total"`
}

// MaterialLine is one material row of a generated estimate. Cost is always
// resolved server-side; any cost the model proposed is discarded.
type MaterialLine struct {
	Item              string                   `json:"item"`
	Qty               float64                  `json:"qty"`
	Cost              float64                  `json:"cost"`
	PricingStatus     constants.PricingStatus  `json:"pricing_status"`
	PricingSource     constants.PricingSource  `json:"pricing_source"`
	PricingConfidence *float64                 `json:"pricing_confidence,omitempty"`
	MissingReason     *constants.MissingReason `json:"missing_reason,omitempty"`
}

// ClientInfo is the customer block of the persisted estimate payload.
type ClientInfo struct {
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	Address       string `json:"address"`
	Phone         string `json:"phone"`
	PreferredDate string `json:"preferredDate"`
}

// EstimateBody is the estimate block of the persisted payload, the stable
// contract consumed by the PDF generator and the UI.
type EstimateBody struct {
	EstimateNumber   string         `json:"estimateNumber"`
	Project          string         `json:"project"`
	JobDescription   string         `json:"jobDescription"`
	JobNotes         string         `json:"jobNotes"`
	FormattingStatus string         `json:"formattingStatus"`
	Labor            []LaborLine    `json:"labor"`
	Materials        []MaterialLine `json:"materials"`
	Subtotal         float64        `json:"subtotal"`
	Tax              float64        `json:"tax"`
	Total            float64        `json:"total"`
}

// ImageAnalysis is the model's per-photo observations.
type ImageAnalysis struct {
	ImageURL     string `json:"image_url"`
	Observations string `json:"observations"`
}

// EstimateMetadata records the rates and provenance used for one generation.
type EstimateMetadata struct {
	TaxRatePercent      float64   `json:"tax_rate_percent"`
	MarkupPercent       float64   `json:"markup_percent"`
	HourlyRate          float64   `json:"hourly_rate"`
	Model               string    `json:"model"`
	PromptID            string    `json:"prompt_id,omitempty"`
	PromptSource        string    `json:"prompt_source"`
	PromptTrade         string    `json:"prompt_trade,omitempty"`
	GeneratedAt         time.Time `json:"generated_at"`
	PricingMissingCount int       `json:"pricing_missing_count"`
}

// EstimatePayload is the full ai_json document persisted per generation.
type EstimatePayload struct {
	Client        ClientInfo       `json:"client"`
	Estimate      EstimateBody     `json:"estimate"`
	ImageAnalysis []ImageAnalysis  `json:"image_analysis"`
	Metadata      EstimateMetadata `json:"metadata"`
}

// EstimateRecord is one immutable persisted generation. A job accumulates
// records append-only; "latest" is resolved by CreatedAt.
type EstimateRecord struct {
	ID        uuid.UUID       `json:"id"`
	JobID     uuid.UUID       `json:"job_id"`
	Payload   json.RawMessage `json:"payload"`
	Model     string          `json:"model"`
	CreatedAt time.Time       `json:"created_at"`
}
