package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/domain/types"
)

func TestResolveColumn(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		field   types.CaseField
		want    string
		found   bool
	}{
		{
			name:    "first alias wins when several are present",
			headers: []string{"Address", "Location", "Sender's Location"},
			field:   types.CaseFieldLocation,
			want:    "Sender's Location",
			found:   true,
		},
		{
			name:    "later alias used when earlier ones are absent",
			headers: []string{"Description", "Address"},
			field:   types.CaseFieldLocation,
			want:    "Address",
			found:   true,
		},
		{
			name:    "matching is case sensitive",
			headers: []string{"location"},
			field:   types.CaseFieldLocation,
			found:   false,
		},
		{
			name:    "no alias present",
			headers: []string{"Foo", "Bar"},
			field:   types.CaseFieldBusinessKey,
			found:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := model.ResolveColumn(model.SheetColumnAliases, tt.headers, tt.field)
			gt.Value(t, ok).Equal(tt.found)
			gt.Value(t, got).Equal(tt.want)
		})
	}
}

func TestResolveColumns(t *testing.T) {
	headers := []string{"ID", "Control No.", "Type", "Brgy", "Status", "Updates Sent to User"}

	t.Run("resolves each field once", func(t *testing.T) {
		cols := model.ResolveColumns(model.SheetColumnAliases, headers)

		h, ok := cols.Header(types.CaseFieldBusinessKey)
		gt.Bool(t, ok).True()
		gt.Value(t, h).Equal("Control No.")

		h, ok = cols.Header(types.CaseFieldCategory)
		gt.Bool(t, ok).True()
		gt.Value(t, h).Equal("Type")

		h, ok = cols.Header(types.CaseFieldSubLocation)
		gt.Bool(t, ok).True()
		gt.Value(t, h).Equal("Brgy")

		_, ok = cols.Header(types.CaseFieldReporterName)
		gt.Bool(t, ok).False()
	})

	t.Run("deterministic for the same headers", func(t *testing.T) {
		a := model.ResolveColumns(model.SheetColumnAliases, headers)
		b := model.ResolveColumns(model.SheetColumnAliases, headers)
		gt.Value(t, a).Equal(b)
	})

	t.Run("report aliases map cluster status to two fields", func(t *testing.T) {
		cols := model.ResolveColumns(model.ReportColumnAliases, []string{
			model.ReportKeyControlNumber,
			model.ReportKeyClusterStatus,
		})
		gt.Value(t, cols[types.CaseFieldStatus]).Equal(model.ReportKeyClusterStatus)
		gt.Value(t, cols[types.CaseFieldExternalStatusLabel]).Equal(model.ReportKeyClusterStatus)
	})
}

func TestZipRow(t *testing.T) {
	headers := []string{"A", "B", "", "D"}

	cells := model.ZipRow(headers, []string{"1"})
	gt.Value(t, cells["A"]).Equal(any("1"))
	gt.Value(t, cells["B"]).Equal(any(""))
	gt.Value(t, cells["D"]).Equal(any(""))
	gt.Number(t, len(cells)).Equal(3)

	cells = model.ZipRow(headers, []string{"1", "2", "3", "4", "5"})
	gt.Value(t, cells["D"]).Equal(any("4"))
	gt.Number(t, len(cells)).Equal(3)
}
