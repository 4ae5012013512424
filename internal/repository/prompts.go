package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contractor-tools/estimator/constants"
	"github.com/contractor-tools/estimator/internal/common"
	"github.com/contractor-tools/estimator/internal/entity"
)

// PromptRepository exposes the individual lookups the layered prompt
// resolution walks through. Each returns (nil, nil) on a miss so the
// resolver can fall through.
type PromptRepository interface {
	GetByCustomer(ctx context.Context, workspaceID, customerID uuid.UUID) (*entity.PromptTemplate, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.PromptTemplate, error)
	GetWorkspaceDefault(ctx context.Context, workspaceID uuid.UUID) (*entity.PromptTemplate, error)
	GetTradeTemplate(ctx context.Context, trade constants.Trade) (*entity.PromptTemplate, error)
}

type promptRepo struct {
	db  *pgxpool.Pool
	log *slog.Logger
}

func NewPromptRepository(db *pgxpool.Pool, log *slog.Logger) PromptRepository {
	if log == nil {
		log = slog.Default()
	}
	return &promptRepo{db: db, log: log}
}

const promptColumns = `id, workspace_id, customer_id, trade, is_default, body, created_at`

func (r *promptRepo) scanOne(row pgx.Row) (*entity.PromptTemplate, error) {
	var p entity.PromptTemplate
	err := row.Scan(&p.ID, &p.WorkspaceID, &p.CustomerID, &p.Trade, &p.IsDefault, &p.Body, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, common.WrapError(err, "scan prompt")
	}
	return &p, nil
}

func (r *promptRepo) GetByCustomer(ctx context.Context, workspaceID, customerID uuid.UUID) (*entity.PromptTemplate, error) {
	return r.scanOne(r.db.QueryRow(ctx, `
		select `+promptColumns+`
		  from prompt_templates
		 where workspace_id = $1 and customer_id = $2
		 order by created_at desc
		 limit 1`, workspaceID, customerID))
}

func (r *promptRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.PromptTemplate, error) {
	return r.scanOne(r.db.QueryRow(ctx, `
		select `+promptColumns+`
		  from prompt_templates
		 where id = $1`, id))
}

func (r *promptRepo) GetWorkspaceDefault(ctx context.Context, workspaceID uuid.UUID) (*entity.PromptTemplate, error) {
	return r.scanOne(r.db.QueryRow(ctx, `
		select `+promptColumns+`
		  from prompt_templates
		 where workspace_id = $1 and customer_id is null and is_default
		 order by created_at desc
		 limit 1`, workspaceID))
}

func (r *promptRepo) GetTradeTemplate(ctx context.Context, trade constants.Trade) (*entity.PromptTemplate, error) {
	return r.scanOne(r.db.QueryRow(ctx, `
		select `+promptColumns+`
		  from prompt_templates
		 where workspace_id is null and trade = $1
		 order by created_at desc
		 limit 1`, trade))
}
