package sheets_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/domain/types"
	"github.com/secmon-lab/casesync/pkg/service/sheets"
)

const testSheetURL = "https://docs.google.com/spreadsheets/d/1AbC_dEf-123/edit#gid=42"

func TestSource_API(t *testing.T) {
	svc := newTestClient(t, &fakeSheetsAPI{})

	src, err := sheets.NewSource(testSheetURL, sheets.WithService(svc))
	gt.NoError(t, err).Required()
	gt.Value(t, src.Type()).Equal(types.SourceTypeSheet)
	gt.Value(t, src.Ref().SpreadsheetID).Equal("1AbC_dEf-123")

	batch, err := src.FetchBatch(context.Background())
	gt.NoError(t, err).Required()
	gt.Value(t, batch.Headers).Equal([]string{"Control No.", "Category"})
	gt.Array(t, batch.Rows).Length(1).Required()

	row := batch.Rows[0]
	gt.Value(t, row.Locator).Equal("Main!A2")
	gt.Value(t, row.Cells["Control No."]).Equal(any("A-1"))
	// numbers from the API arrive as text like every other cell
	gt.Value(t, row.Cells["Category"]).Equal(any("12"))
}

func TestSource_APIWithTab(t *testing.T) {
	svc := newTestClient(t, &fakeSheetsAPI{})

	src, err := sheets.NewSource(testSheetURL, sheets.WithService(svc), sheets.WithTab("Intake"))
	gt.NoError(t, err).Required()
	gt.Value(t, src.Ref().Tab).Equal("Intake")

	batch, err := src.FetchBatch(context.Background())
	gt.NoError(t, err).Required()
	gt.Value(t, batch.Rows[0].Locator).Equal("Intake!A2")
}

func TestSource_APIAuthFailure(t *testing.T) {
	svc := newTestClient(t, &fakeSheetsAPI{status: 403})

	src, err := sheets.NewSource(testSheetURL, sheets.WithService(svc))
	gt.NoError(t, err).Required()

	_, err = src.FetchBatch(context.Background())
	gt.Bool(t, errors.Is(err, model.ErrAuthentication)).True()
}

func TestSource_InvalidURLWithService(t *testing.T) {
	svc := newTestClient(t, &fakeSheetsAPI{})
	_, err := sheets.NewSource("https://example.com/not/a/sheet", sheets.WithService(svc))
	gt.Value(t, err).NotNil()
}

func TestBuildBatch(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		batch := sheets.BuildBatch(types.SourceTypeSheet, nil, func(int) string { return "" })
		gt.Array(t, batch.Rows).Length(0)
		gt.Array(t, batch.Headers).Length(0)
	})

	t.Run("short and long rows", func(t *testing.T) {
		batch := sheets.BuildBatch(types.SourceTypeSheet, [][]string{
			{"Control No.", "Category", "Status"},
			{"A-1"},
			{"A-2", "Flooding", "open", "stray"},
		}, func(n int) string { return "row" })

		gt.Array(t, batch.Rows).Length(2).Required()
		gt.Value(t, batch.Rows[0].Cells["Status"]).Equal(any(""))
		gt.Number(t, len(batch.Rows[1].Cells)).Equal(3)
		gt.Number(t, batch.Rows[1].Row).Equal(2)
	})

	t.Run("duplicate headers keep the first column", func(t *testing.T) {
		batch := sheets.BuildBatch(types.SourceTypeSheet, [][]string{
			{"Control No.", "Status", "Status"},
			{"A-1", "open", "resolved"},
		}, func(n int) string { return "row" })

		gt.Value(t, batch.Rows[0].Cells["Status"]).Equal(any("open"))
	})
}
