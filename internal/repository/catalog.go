package repository

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contractor-tools/estimator/constants"
	"github.com/contractor-tools/estimator/internal/common"
	"github.com/contractor-tools/estimator/internal/entity"
)

// CatalogTiers is one generation's worth of priced rows, already split by
// priority tier.
type CatalogTiers struct {
	Customer  []entity.CatalogEntry
	Workspace []entity.CatalogEntry
	Global    []entity.CatalogEntry
}

type CatalogRepository interface {
	// LoadTiers reads all three tiers in one pass. customerID may be nil,
	// in which case the customer tier comes back empty. For the
	// general_contractor trade the global catalog is searched
	// trade-agnostically.
	LoadTiers(ctx context.Context, workspaceID uuid.UUID, customerID *uuid.UUID, trade constants.Trade) (*CatalogTiers, error)
	// UpsertEntries writes workspace- or customer-tier rows keyed on
	// (workspace, customer, trade, key).
	UpsertEntries(ctx context.Context, entries []entity.CatalogEntry) (int, error)
}

type catalogRepo struct {
	db  *pgxpool.Pool
	log *slog.Logger
}

func NewCatalogRepository(db *pgxpool.Pool, log *slog.Logger) CatalogRepository {
	if log == nil {
		log = slog.Default()
	}
	return &catalogRepo{db: db, log: log}
}

const catalogColumns = `id, workspace_id, customer_id, trade, key, description, unit, unit_cost, aliases, created_at, updated_at`

func scanCatalogRows(rows pgx.Rows) ([]entity.CatalogEntry, error) {
	defer rows.Close()
	var out []entity.CatalogEntry
	for rows.Next() {
		var e entity.CatalogEntry
		if err := rows.Scan(&e.ID, &e.WorkspaceID, &e.CustomerID, &e.Trade, &e.Key,
			&e.Description, &e.Unit, &e.UnitCost, &e.Aliases, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, common.WrapError(err, "scan catalog entry")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *catalogRepo) LoadTiers(ctx context.Context, workspaceID uuid.UUID, customerID *uuid.UUID, trade constants.Trade) (*CatalogTiers, error) {
	tiers := &CatalogTiers{}

	if customerID != nil {
		rows, err := r.db.Query(ctx, `
			select `+catalogColumns+`
			  from catalog_entries
			 where workspace_id = $1 and customer_id = $2 and trade = $3`,
			workspaceID, *customerID, trade)
		if err != nil {
			return nil, common.WrapError(err, "load customer tier")
		}
		if tiers.Customer, err = scanCatalogRows(rows); err != nil {
			return nil, err
		}
	}

	rows, err := r.db.Query(ctx, `
		select `+catalogColumns+`
		  from catalog_entries
		 where workspace_id = $1 and customer_id is null and trade = $2`,
		workspaceID, trade)
	if err != nil {
		return nil, common.WrapError(err, "load workspace tier")
	}
	if tiers.Workspace, err = scanCatalogRows(rows); err != nil {
		return nil, err
	}

	// Global master list: trade-indexed, or the whole list in
	// general-contractor mode.
	rows, err = r.db.Query(ctx, `
		select `+catalogColumns+`
		  from catalog_entries
		 where workspace_id is null
		   and ($2 or trade = $1)`,
		trade, constants.TradeAgnostic(trade))
	if err != nil {
		return nil, common.WrapError(err, "load global catalog")
	}
	if tiers.Global, err = scanCatalogRows(rows); err != nil {
		return nil, err
	}

	r.log.Debug("catalog tiers loaded",
		"workspace_id", workspaceID,
		"customer_rows", len(tiers.Customer),
		"workspace_rows", len(tiers.Workspace),
		"global_rows", len(tiers.Global),
	)
	return tiers, nil
}

func (r *catalogRepo) UpsertEntries(ctx context.Context, entries []entity.CatalogEntry) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, common.WrapError(err, "begin catalog upsert")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	n := 0
	for _, e := range entries {
		id := e.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		tag, err := tx.Exec(ctx, `
			insert into catalog_entries (id, workspace_id, customer_id, trade, key, description, unit, unit_cost, aliases)
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			on conflict (coalesce(workspace_id, '00000000-0000-0000-0000-000000000000'::uuid),
			             coalesce(customer_id, '00000000-0000-0000-0000-000000000000'::uuid),
			             trade, key)
			do update set description = excluded.description,
			              unit = excluded.unit,
			              unit_cost = excluded.unit_cost,
			              aliases = excluded.aliases,
			              updated_at = now()`,
			id, e.WorkspaceID, e.CustomerID, e.Trade, e.Key, e.Description, e.Unit, e.UnitCost, e.Aliases)
		if err != nil {
			return n, common.WrapError(err, "upsert catalog entry")
		}
		n += int(tag.RowsAffected())
	}
	if err := tx.Commit(ctx); err != nil {
		return n, common.WrapError(err, "commit catalog upsert")
	}
	r.log.Info("catalog entries upserted", "count", n)
	return n, nil
}
