package estimate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/contractor-tools/estimator/internal/entity"
	"github.com/contractor-tools/estimator/internal/repository"
)

// Exporter produces XLSX bytes from a job's latest persisted estimate, for
// contractors who hand-edit bids in a spreadsheet.
type Exporter struct {
	estimates repository.EstimateRepository
	logger    *slog.Logger
}

func NewExporter(estimates repository.EstimateRepository, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{estimates: estimates, logger: logger}
}

// ExportLatestXLSX renders the latest estimate of a job as a workbook with
// a labor sheet and a materials sheet. Unpriced materials carry their
// missing reason so they are easy to spot.
func (e *Exporter) ExportLatestXLSX(ctx context.Context, jobID uuid.UUID) ([]byte, error) {
	start := time.Now()

	rec, err := e.estimates.Latest(ctx, jobID)
	if err != nil {
		return nil, err
	}
	var payload entity.EstimatePayload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode estimate payload: %w", err)
	}

	f := excelize.NewFile()
	const laborSheet = "Labor"
	const materialsSheet = "Materials"
	if err := f.SetSheetName("Sheet1", laborSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(materialsSheet); err != nil {
		return nil, err
	}

	write := func(sheet string, col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	est := payload.Estimate
	write(laborSheet, 1, 1, "Estimate")
	write(laborSheet, 2, 1, est.EstimateNumber)
	write(laborSheet, 1, 2, "Project")
	write(laborSheet, 2, 2, est.Project)

	laborHeaders := []string{"Task", "Hours", "Rate", "Total"}
	for i, h := range laborHeaders {
		write(laborSheet, i+1, 4, h)
	}
	row := 5
	for _, l := range est.Labor {
		write(laborSheet, 1, row, l.Task)
		write(laborSheet, 2, row, l.Hours)
		write(laborSheet, 3, row, l.Rate)
		write(laborSheet, 4, row, l.Total)
		row++
	}
	row++
	write(laborSheet, 3, row, "Subtotal")
	write(laborSheet, 4, row, est.Subtotal)
	row++
	write(laborSheet, 3, row, "Tax")
	write(laborSheet, 4, row, est.Tax)
	row++
	write(laborSheet, 3, row, "Total")
	write(laborSheet, 4, row, est.Total)

	materialHeaders := []string{"Item", "Qty", "Unit Cost", "Line Total", "Pricing", "Source", "Missing Reason"}
	for i, h := range materialHeaders {
		write(materialsSheet, i+1, 1, h)
	}
	for i, m := range est.Materials {
		r := i + 2
		write(materialsSheet, 1, r, m.Item)
		write(materialsSheet, 2, r, m.Qty)
		write(materialsSheet, 3, r, m.Cost)
		write(materialsSheet, 4, r, m.Qty*m.Cost)
		write(materialsSheet, 5, r, string(m.PricingStatus))
		write(materialsSheet, 6, r, string(m.PricingSource))
		if m.MissingReason != nil {
			write(materialsSheet, 7, r, string(*m.MissingReason))
		}
	}

	_ = f.SetColWidth(laborSheet, "A", "A", 42)
	_ = f.SetColWidth(laborSheet, "B", "D", 12)
	_ = f.SetColWidth(materialsSheet, "A", "A", 36)
	_ = f.SetColWidth(materialsSheet, "B", "D", 12)
	_ = f.SetColWidth(materialsSheet, "E", "G", 16)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	e.logger.Info("export.xlsx.ok",
		"job_id", jobID.String(),
		"labor_rows", len(est.Labor),
		"material_rows", len(est.Materials),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
