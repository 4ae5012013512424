package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/contractor-tools/estimator/constants"
)

// CatalogEntry is one priced row from any of the three pricing tiers.
// CustomerID set -> customer tier; WorkspaceID set without CustomerID ->
// workspace tier; neither set -> global catalog.
type CatalogEntry struct {
	ID          uuid.UUID       `json:"id"`
	WorkspaceID *uuid.UUID      `json:"workspace_id,omitempty"`
	CustomerID  *uuid.UUID      `json:"customer_id,omitempty"`
	Trade       constants.Trade `json:"trade"`
	Key         string          `json:"key"`
	Description string          `json:"description"`
	Unit        string          `json:"unit"`
	UnitCost    float64         `json:"unit_cost"`
	Aliases     []string        `json:"aliases,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
