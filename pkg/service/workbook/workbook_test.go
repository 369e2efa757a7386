package workbook_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/domain/types"
	"github.com/secmon-lab/casesync/pkg/service/workbook"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, sheet string, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		gt.NoError(t, err).Required()
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		gt.NoError(t, err).Required()
		gt.NoError(t, f.SetSheetRow(sheet, cell, &row)).Required()
	}

	path := filepath.Join(t.TempDir(), "cases.xlsx")
	gt.NoError(t, f.SaveAs(path)).Required()
	return path
}

func TestSource_FetchBatch(t *testing.T) {
	path := writeWorkbook(t, "Main", [][]any{
		{"Control No.", " Category ", "Barangay", "Description"},
		{"WB-1", "Flooding", "Dinaga"},
		{},
		{" WB-2 ", "", "", "Fallen tree"},
	})

	src := workbook.NewSource(path)
	gt.Value(t, src.Type()).Equal(types.SourceTypeWorkbook)

	batch, err := src.FetchBatch(context.Background())
	gt.NoError(t, err).Required()
	gt.Value(t, batch.Source).Equal(types.SourceTypeWorkbook)
	gt.Value(t, batch.Headers).Equal([]string{"Control No.", "Category", "Barangay", "Description"})
	gt.Array(t, batch.Rows).Length(3).Required()

	first := batch.Rows[0]
	gt.Value(t, first.Locator).Equal("Main!A2")
	gt.Value(t, first.Cells["Control No."]).Equal(any("WB-1"))
	gt.Value(t, first.Cells["Description"]).Equal(any(""))

	gt.Value(t, batch.Rows[1].Cells["Control No."]).Equal(any(""))

	third := batch.Rows[2]
	gt.Value(t, third.Locator).Equal("Main!A4")
	gt.Value(t, third.Cells["Control No."]).Equal(any("WB-2"))
	gt.Value(t, third.Cells["Description"]).Equal(any("Fallen tree"))
}

func TestSource_SheetSelection(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", [][]any{
		{"Control No."},
		{"S-1"},
	})

	t.Run("first sheet when Main is absent", func(t *testing.T) {
		batch, err := workbook.NewSource(path).FetchBatch(context.Background())
		gt.NoError(t, err).Required()
		gt.Array(t, batch.Rows).Length(1)
	})

	t.Run("explicit sheet missing", func(t *testing.T) {
		_, err := workbook.NewSource(path, workbook.WithSheet("Archive")).FetchBatch(context.Background())
		gt.Bool(t, errors.Is(err, model.ErrSourceNotFound)).True()
	})
}

func TestSource_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := workbook.NewSource(filepath.Join(t.TempDir(), "nope.xlsx")).FetchBatch(context.Background())
		gt.Bool(t, errors.Is(err, model.ErrSourceNotFound)).True()
	})

	t.Run("not a workbook", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "junk.xlsx")
		gt.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o600)).Required()

		_, err := workbook.NewSource(path).FetchBatch(context.Background())
		gt.Bool(t, errors.Is(err, model.ErrTransport)).True()
	})
}

func TestExport_RoundTrip(t *testing.T) {
	created := time.Date(2025, 10, 20, 8, 0, 0, 0, time.UTC)
	cases := []*model.Case{
		{
			BusinessKey:     "A-1",
			Category:        "Flooding",
			Location:        "Panganiban Dr.",
			SubLocation:     "Dinaga",
			Description:     "Clogged drainage",
			CreatedAt:       created,
			Status:          types.CaseStatusResolved,
			AssignedOffice:  "CEO",
			ResponseMessage: model.StringPtr("Cleared"),
			Source:          types.SourceTypeSheet,
		},
		{BusinessKey: "A-2", Status: types.CaseStatusOpen, CreatedAt: created},
	}

	var buf bytes.Buffer
	gt.NoError(t, workbook.Export(&buf, cases)).Required()

	path := filepath.Join(t.TempDir(), "export.xlsx")
	gt.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600)).Required()

	batch, err := workbook.NewSource(path, workbook.WithSheet(workbook.ExportSheet)).FetchBatch(context.Background())
	gt.NoError(t, err).Required()
	gt.Value(t, batch.Headers).Equal(workbook.ExportHeaders)
	gt.Array(t, batch.Rows).Length(2).Required()

	cols := model.ResolveColumns(batch.Aliases, batch.Headers)
	for _, f := range []types.CaseField{
		types.CaseFieldBusinessKey,
		types.CaseFieldLocation,
		types.CaseFieldStatus,
		types.CaseFieldResponseMessage,
		types.CaseFieldCreatedAt,
	} {
		_, ok := cols.Header(f)
		gt.Bool(t, ok).True()
	}

	row := batch.Rows[0]
	gt.Value(t, row.Cells["Control No."]).Equal(any("A-1"))
	gt.Value(t, row.Cells["OPEN/RESOLVED/FOR REROUTING"]).Equal(any("RESOLVED"))
	gt.Value(t, row.Cells["Updates Sent to User"]).Equal(any("Cleared"))
	gt.Value(t, row.Cells["Date Created"]).Equal(any("2025-10-20T08:00:00Z"))
}
