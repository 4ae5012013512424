// Package catalogimport loads price-list spreadsheets into the catalog.
// Contractors maintain their prices in XLSX; the importer upserts them
// into the workspace or customer tier.
package catalogimport

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/contractor-tools/estimator/constants"
	"github.com/contractor-tools/estimator/internal/common"
	"github.com/contractor-tools/estimator/internal/entity"
	"github.com/contractor-tools/estimator/internal/repository"
)

// Result summarizes one import run.
type Result struct {
	Imported int
	Skipped  int
}

type Importer struct {
	catalog repository.CatalogRepository
	logger  *slog.Logger
}

func NewImporter(catalog repository.CatalogRepository, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{catalog: catalog, logger: logger}
}

// header aliases accepted in row one, matched case-insensitively.
var headerNames = map[string]string{
	"item":        "key",
	"key":         "key",
	"material":    "key",
	"description": "description",
	"unit":        "unit",
	"uom":         "unit",
	"unit cost":   "cost",
	"cost":        "cost",
	"price":       "cost",
	"unit price":  "cost",
	"aliases":     "aliases",
}

// ImportXLSX reads the first sheet of an XLSX workbook and upserts its rows
// into the given tier. customerID nil targets the workspace tier. Rows
// without a usable key or cost are counted as skipped, not fatal; a
// workbook with no usable rows at all is an input error.
func (im *Importer) ImportXLSX(ctx context.Context, workspaceID uuid.UUID, customerID *uuid.UUID, trade constants.Trade, r io.Reader) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, common.NewAppError("INVALID_WORKBOOK", "could not read spreadsheet", common.ErrInvalidInput)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, common.NewAppError("EMPTY_WORKBOOK", "workbook has no sheets", common.ErrInvalidInput)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, common.NewAppError("INVALID_WORKBOOK", "could not read sheet", common.ErrInvalidInput)
	}
	if len(rows) < 2 {
		return nil, common.NewAppError("EMPTY_WORKBOOK", "sheet has no data rows", common.ErrInvalidInput)
	}

	cols := map[string]int{}
	for i, h := range rows[0] {
		if field, ok := headerNames[strings.ToLower(strings.TrimSpace(h))]; ok {
			if _, taken := cols[field]; !taken {
				cols[field] = i
			}
		}
	}
	if _, ok := cols["key"]; !ok {
		return nil, common.NewAppError("MISSING_COLUMN", "no item column found", common.ErrInvalidInput)
	}
	if _, ok := cols["cost"]; !ok {
		return nil, common.NewAppError("MISSING_COLUMN", "no cost column found", common.ErrInvalidInput)
	}

	ws := workspaceID

	var entries []entity.CatalogEntry
	skipped := 0
	for _, row := range rows[1:] {
		key := strings.TrimSpace(cell(row, cols["key"]))
		costRaw := strings.TrimSpace(cell(row, cols["cost"]))
		if key == "" || costRaw == "" {
			skipped++
			continue
		}
		cost, err := parseCost(costRaw)
		if err != nil {
			im.logger.Warn("catalogimport.bad_cost", "key", key, "raw", costRaw)
			skipped++
			continue
		}
		e := entity.CatalogEntry{
			WorkspaceID: &ws,
			CustomerID:  customerID,
			Trade:       trade,
			Key:         key,
			UnitCost:    cost,
		}
		if c, ok := cols["description"]; ok {
			e.Description = strings.TrimSpace(cell(row, c))
		}
		if c, ok := cols["unit"]; ok {
			e.Unit = strings.TrimSpace(cell(row, c))
		}
		if c, ok := cols["aliases"]; ok {
			e.Aliases = splitAliases(cell(row, c))
		}
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return nil, common.NewAppError("EMPTY_WORKBOOK", "no usable rows in sheet", common.ErrInvalidInput)
	}

	n, err := im.catalog.UpsertEntries(ctx, entries)
	if err != nil {
		return nil, err
	}
	im.logger.Info("catalogimport.ok",
		"workspace_id", workspaceID, "trade", trade, "imported", n, "skipped", skipped)
	return &Result{Imported: n, Skipped: skipped}, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// parseCost tolerates currency symbols and thousands separators.
func parseCost(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	return strconv.ParseFloat(s, 64)
}

func splitAliases(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
