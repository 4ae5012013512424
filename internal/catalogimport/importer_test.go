package catalogimport

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/contractor-tools/estimator/constants"
	"github.com/contractor-tools/estimator/internal/common"
	"github.com/contractor-tools/estimator/internal/entity"
	"github.com/contractor-tools/estimator/internal/repository"
)

type stubCatalog struct {
	got []entity.CatalogEntry
	err error
}

var _ repository.CatalogRepository = (*stubCatalog)(nil)

func (s *stubCatalog) LoadTiers(ctx context.Context, workspaceID uuid.UUID, customerID *uuid.UUID, trade constants.Trade) (*repository.CatalogTiers, error) {
	return &repository.CatalogTiers{}, nil
}

func (s *stubCatalog) UpsertEntries(ctx context.Context, entries []entity.CatalogEntry) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.got = append(s.got, entries...)
	return len(entries), nil
}

func workbook(t *testing.T, rows [][]any) *bytes.Reader {
	t.Helper()
	f := excelize.NewFile()
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetCellValue("Sheet1", cell, v); err != nil {
				t.Fatalf("set cell: %v", err)
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func TestImportXLSX(t *testing.T) {
	wsID := uuid.New()
	repo := &stubCatalog{}
	im := NewImporter(repo, nil)

	r := workbook(t, [][]any{
		{"Item", "Description", "Unit", "Unit Cost", "Aliases"},
		{"white grout", "Sanded grout, white", "bag", "$25.00", "grout, sanded grout"},
		{"ceramic tile", "", "sqft", "4", ""},
		{"", "", "", "9", ""},         // no key
		{"mystery caulk", "", "", ""}, // no cost
		{"bad cost", "", "", "n/a"},   // unparseable
	})

	res, err := im.ImportXLSX(context.Background(), wsID, nil, constants.GeneralContractor, r)
	if err != nil {
		t.Fatalf("ImportXLSX: %v", err)
	}
	if res.Imported != 2 || res.Skipped != 3 {
		t.Fatalf("result = %+v, want 2 imported 3 skipped", res)
	}

	grout := repo.got[0]
	if grout.Key != "white grout" || grout.UnitCost != 25 || grout.Unit != "bag" {
		t.Fatalf("grout row = %+v", grout)
	}
	if len(grout.Aliases) != 2 || grout.Aliases[0] != "grout" {
		t.Fatalf("aliases = %v, want split on commas", grout.Aliases)
	}
	if grout.WorkspaceID == nil || *grout.WorkspaceID != wsID {
		t.Fatalf("workspace id not stamped: %+v", grout)
	}
	if grout.CustomerID != nil {
		t.Fatalf("workspace-tier row carries customer id")
	}
}

func TestImportXLSXCustomerTier(t *testing.T) {
	repo := &stubCatalog{}
	im := NewImporter(repo, nil)
	custID := uuid.New()

	r := workbook(t, [][]any{
		{"Material", "Price"},
		{"copper pipe", 9.5},
	})
	res, err := im.ImportXLSX(context.Background(), uuid.New(), &custID, constants.Trade("plumbing"), r)
	if err != nil {
		t.Fatalf("ImportXLSX: %v", err)
	}
	if res.Imported != 1 {
		t.Fatalf("imported = %d, want 1", res.Imported)
	}
	row := repo.got[0]
	if row.CustomerID == nil || *row.CustomerID != custID {
		t.Fatalf("customer id not stamped: %+v", row)
	}
	if row.Trade != constants.Trade("plumbing") {
		t.Fatalf("trade = %q, want plumbing", row.Trade)
	}
}

func TestImportXLSXRejectsMissingColumns(t *testing.T) {
	im := NewImporter(&stubCatalog{}, nil)
	r := workbook(t, [][]any{
		{"Name", "Color"},
		{"grout", "white"},
	})
	_, err := im.ImportXLSX(context.Background(), uuid.New(), nil, constants.GeneralContractor, r)
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestImportXLSXRejectsEmptySheet(t *testing.T) {
	im := NewImporter(&stubCatalog{}, nil)
	r := workbook(t, [][]any{
		{"Item", "Cost"},
	})
	_, err := im.ImportXLSX(context.Background(), uuid.New(), nil, constants.GeneralContractor, r)
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestImportXLSXRejectsGarbage(t *testing.T) {
	im := NewImporter(&stubCatalog{}, nil)
	_, err := im.ImportXLSX(context.Background(), uuid.New(), nil, constants.GeneralContractor,
		bytes.NewReader([]byte("not a zip archive")))
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}
