package llm

import (
	"context"
	"errors"
)

// ErrMalformedResponse marks a response the provider delivered but we could
// not use: non-JSON content or JSON that fails the schema. Transport errors
// are returned as-is so callers can tell the two apart.
var ErrMalformedResponse = errors.New("llm returned malformed response")

// DraftLabor is one labor row as proposed by the model. Hours only; the
// rate and total are always computed server-side.
type DraftLabor struct {
	Task  string  `json:"task"`
	Hours float64 `json:"hours"`
}

// DraftMaterial is one material row as proposed by the model. Cost is
// untrusted: whatever the model guessed is discarded during pricing.
type DraftMaterial struct {
	Item string  `json:"item"`
	Qty  float64 `json:"qty"`
	Cost float64 `json:"cost,omitempty"`
}

// ImageObservation is the model's read of one job photo.
type ImageObservation struct {
	ImageURL     string `json:"image_url"`
	Observations string `json:"observations"`
}

// EstimateDraft is the normalized shape we want from the LLM.
type EstimateDraft struct {
	Project        string             `json:"project"`
	JobDescription string             `json:"jobDescription"`
	JobNotes       string             `json:"jobNotes,omitempty"`
	Labor          []DraftLabor       `json:"labor"`
	Materials      []DraftMaterial    `json:"materials"`
	ImageAnalysis  []ImageObservation `json:"image_analysis,omitempty"`
}

// DraftRequest carries everything the model needs for one generation.
type DraftRequest struct {
	SystemPrompt string
	JobTitle     string
	Scope        string
	DueDate      string
	LineItems    []string
	PhotoURLs    []string

	// CandidateHints is a pre-filtered slice of catalog keys included in
	// the prompt as a steering aid. It never affects final pricing.
	CandidateHints []string
}

// EstimateDrafter is the interface the orchestrator and queue runner
// depend on. Implementations must return strict JSON validated against
// BuildEstimateJSONSchema; the raw content comes back for provenance.
type EstimateDrafter interface {
	DraftEstimate(ctx context.Context, req DraftRequest) (EstimateDraft, []byte, error)
	Model() string
}
