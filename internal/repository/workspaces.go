package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contractor-tools/estimator/internal/common"
	"github.com/contractor-tools/estimator/internal/entity"
)

type WorkspaceRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Workspace, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (*entity.Customer, error)
}

type workspaceRepo struct {
	db  *pgxpool.Pool
	log *slog.Logger
}

func NewWorkspaceRepository(db *pgxpool.Pool, log *slog.Logger) WorkspaceRepository {
	if log == nil {
		log = slog.Default()
	}
	return &workspaceRepo{db: db, log: log}
}

func (r *workspaceRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Workspace, error) {
	row := r.db.QueryRow(ctx, `
		select id, name, subscription_active, trial_ends_at, created_at
		  from workspaces
		 where id = $1`, id)
	var w entity.Workspace
	err := row.Scan(&w.ID, &w.Name, &w.SubscriptionActive, &w.TrialEndsAt, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewAppError("WORKSPACE_NOT_FOUND", "workspace not found", common.ErrNotFound)
	}
	if err != nil {
		return nil, common.WrapError(err, "get workspace")
	}
	return &w, nil
}

func (r *workspaceRepo) GetCustomer(ctx context.Context, id uuid.UUID) (*entity.Customer, error) {
	row := r.db.QueryRow(ctx, `
		select id, workspace_id, name, email, phone, address, preferred_date, created_at
		  from customers
		 where id = $1`, id)
	var c entity.Customer
	err := row.Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.PreferredDate, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewAppError("CUSTOMER_NOT_FOUND", "customer not found", common.ErrNotFound)
	}
	if err != nil {
		return nil, common.WrapError(err, "get customer")
	}
	return &c, nil
}
