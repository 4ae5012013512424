package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/contractor-tools/estimator/constants"
)

// Workspace is the tenant boundary. Entitlement derives from
// SubscriptionActive or an unexpired trial.
type Workspace struct {
	ID                 uuid.UUID  `json:"id"`
	Name               string     `json:"name"`
	SubscriptionActive bool       `json:"subscription_active"`
	TrialEndsAt        *time.Time `json:"trial_ends_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// WorkspaceSettings holds the rates applied during estimate generation.
// Unset values default to zero.
type WorkspaceSettings struct {
	WorkspaceID     uuid.UUID       `json:"workspace_id"`
	HourlyRate      float64         `json:"hourly_rate"`
	MarkupPercent   float64         `json:"markup_percent"`
	TaxRatePercent  float64         `json:"tax_rate_percent"`
	Trade           constants.Trade `json:"trade"`
	DefaultPromptID *uuid.UUID      `json:"default_prompt_id,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Customer is a workspace's client; jobs and customer-tier catalog rows
// reference it.
type Customer struct {
	ID            uuid.UUID `json:"id"`
	WorkspaceID   uuid.UUID `json:"workspace_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Address       string    `json:"address"`
	PreferredDate string    `json:"preferred_date"`
	CreatedAt     time.Time `json:"created_at"`
}
