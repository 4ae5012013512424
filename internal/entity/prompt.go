package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/contractor-tools/estimator/constants"
)

// PromptTemplate is one system-prompt override. Resolution is layered:
// customer-specific, workspace default-by-id, workspace default flag,
// trade template, built-in fallback. First hit wins.
type PromptTemplate struct {
	ID          uuid.UUID        `json:"id"`
	WorkspaceID *uuid.UUID       `json:"workspace_id,omitempty"`
	CustomerID  *uuid.UUID       `json:"customer_id,omitempty"`
	Trade       *constants.Trade `json:"trade,omitempty"`
	IsDefault   bool             `json:"is_default"`
	Body        string           `json:"body"`
	CreatedAt   time.Time        `json:"created_at"`
}
