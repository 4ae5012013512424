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

type SettingsRepository interface {
	// Get returns the workspace rates. A workspace with no settings row
	// gets zero-valued rates, never an error: generation must not fail
	// just because nobody configured a markup yet.
	Get(ctx context.Context, workspaceID uuid.UUID) (*entity.WorkspaceSettings, error)
	Upsert(ctx context.Context, s *entity.WorkspaceSettings) error
}

type settingsRepo struct {
	db  *pgxpool.Pool
	log *slog.Logger
}

func NewSettingsRepository(db *pgxpool.Pool, log *slog.Logger) SettingsRepository {
	if log == nil {
		log = slog.Default()
	}
	return &settingsRepo{db: db, log: log}
}

func (r *settingsRepo) Get(ctx context.Context, workspaceID uuid.UUID) (*entity.WorkspaceSettings, error) {
	row := r.db.QueryRow(ctx, `
		select workspace_id, hourly_rate, markup_percent, tax_rate_percent, trade, default_prompt_id, updated_at
		  from workspace_settings
		 where workspace_id = $1`, workspaceID)
	var s entity.WorkspaceSettings
	err := row.Scan(&s.WorkspaceID, &s.HourlyRate, &s.MarkupPercent, &s.TaxRatePercent,
		&s.Trade, &s.DefaultPromptID, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &entity.WorkspaceSettings{
			WorkspaceID: workspaceID,
			Trade:       constants.GeneralContractor,
		}, nil
	}
	if err != nil {
		return nil, common.WrapError(err, "get workspace settings")
	}
	return &s, nil
}

func (r *settingsRepo) Upsert(ctx context.Context, s *entity.WorkspaceSettings) error {
	_, err := r.db.Exec(ctx, `
		insert into workspace_settings (workspace_id, hourly_rate, markup_percent, tax_rate_percent, trade, default_prompt_id)
		values ($1, $2, $3, $4, $5, $6)
		on conflict (workspace_id)
		do update set hourly_rate = excluded.hourly_rate,
		              markup_percent = excluded.markup_percent,
		              tax_rate_percent = excluded.tax_rate_percent,
		              trade = excluded.trade,
		              default_prompt_id = excluded.default_prompt_id,
		              updated_at = now()`,
		s.WorkspaceID, s.HourlyRate, s.MarkupPercent, s.TaxRatePercent, s.Trade, s.DefaultPromptID)
	if err != nil {
		return common.WrapError(err, "upsert workspace settings")
	}
	r.log.Info("workspace settings saved", "workspace_id", s.WorkspaceID)
	return nil
}
