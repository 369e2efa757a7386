package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/casesync/pkg/domain/model"
)

func TestParseSheetRef(t *testing.T) {
	t.Run("edit URL with gid in fragment", func(t *testing.T) {
		ref, err := model.ParseSheetRef("https://docs.google.com/spreadsheets/d/1AbC-d_9/edit#gid=123456")
		gt.NoError(t, err).Required()
		gt.Value(t, ref.SpreadsheetID).Equal("1AbC-d_9")
		gt.Value(t, ref.GID).NotNil()
		gt.Number(t, *ref.GID).Equal(123456)
		gt.Value(t, ref.CSVExportURL()).Equal("https://docs.google.com/spreadsheets/d/1AbC-d_9/export?format=csv&gid=123456")
	})

	t.Run("URL without gid", func(t *testing.T) {
		ref, err := model.ParseSheetRef("https://docs.google.com/spreadsheets/d/xyz/edit")
		gt.NoError(t, err).Required()
		gt.Value(t, ref.GID).Nil()
		gt.Value(t, ref.CSVExportURL()).Equal("https://docs.google.com/spreadsheets/d/xyz/export?format=csv")
	})

	t.Run("bare spreadsheet id", func(t *testing.T) {
		ref, err := model.ParseSheetRef("  xyz123  ")
		gt.NoError(t, err).Required()
		gt.Value(t, ref.SpreadsheetID).Equal("xyz123")
	})

	t.Run("not a sheet URL", func(t *testing.T) {
		_, err := model.ParseSheetRef("https://example.com/files/1")
		gt.Value(t, err).NotNil()
	})
}

func TestColumnLetter(t *testing.T) {
	for pos, want := range map[int]string{0: "A", 3: "D", 13: "N", 25: "Z", 26: "AA", 51: "AZ", 52: "BA"} {
		gt.Value(t, model.ColumnLetter(pos)).Equal(want)
	}
}

func TestWriteBackColumns_Validate(t *testing.T) {
	gt.NoError(t, model.DefaultWriteBackColumns.Validate())
	gt.Number(t, model.DefaultWriteBackColumns.Last()).Equal(13)

	cols := model.DefaultWriteBackColumns
	cols.AssignedOffice = cols.AssignedCluster
	gt.Value(t, cols.Validate()).NotNil()
}

func TestFailureCategoryOf(t *testing.T) {
	gt.Value(t, model.FailureCategoryOf(nil)).Equal(model.FailureCategory(""))
	gt.Value(t, model.FailureCategoryOf(model.ErrAuthentication)).Equal(model.FailureAuthentication)
	gt.Bool(t, model.FailureAuthentication.NeedsOperator()).True()
	gt.Bool(t, model.FailureTransport.NeedsOperator()).False()
}
