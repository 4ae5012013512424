// Package billing answers the one entitlement question the generation
// paths ask: may this workspace run an estimate right now.
package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/contractor-tools/estimator/internal/repository"
)

// AccessChecker reports whether a workspace may generate estimates.
type AccessChecker interface {
	HasAccess(ctx context.Context, workspaceID uuid.UUID) (bool, error)
}

type Service struct {
	workspaces repository.WorkspaceRepository
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(workspaces repository.WorkspaceRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{workspaces: workspaces, logger: logger, now: time.Now}
}

// HasAccess is true when the subscription is active or the trial has not
// expired.
func (s *Service) HasAccess(ctx context.Context, workspaceID uuid.UUID) (bool, error) {
	ws, err := s.workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		return false, err
	}
	if ws.SubscriptionActive {
		return true, nil
	}
	if ws.TrialEndsAt != nil && s.now().Before(*ws.TrialEndsAt) {
		return true, nil
	}
	s.logger.Warn("workspace access denied", "workspace_id", workspaceID)
	return false, nil
}
