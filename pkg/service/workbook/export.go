package workbook

import (
	"io"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/xuri/excelize/v2"
)

// Context keys for error values
const (
	PathKey  = "path"
	SheetKey = "sheet"
)

// ExportSheet is the name of the sheet written by Export
const ExportSheet = "Cases"

// ExportHeaders are written in the first row. They are the primary aliases of
// the tabular layout, so an exported workbook can be imported again.
var ExportHeaders = []string{
	"Control No.",
	"Category",
	"Refined Category",
	"Sender's Location",
	"Barangay",
	"Description",
	"Date Created",
	"OPEN/RESOLVED/FOR REROUTING",
	"Cluster",
	"Office",
	"MyNaga App Status",
	"Updates Sent to User",
	"Reported by",
	"Contact Number",
	"Attached Media",
	"Link to Report",
	"Source",
	"Last Synced At",
}

func exportRow(c *model.Case) []any {
	msg := ""
	if c.ResponseMessage != nil {
		msg = *c.ResponseMessage
	}
	return []any{
		c.BusinessKey,
		c.Category,
		c.RefinedCategory,
		c.Location,
		c.SubLocation,
		c.Description,
		c.CreatedAt.UTC().Format(time.RFC3339),
		c.Status.String(),
		c.AssignedCluster,
		c.AssignedOffice,
		c.ExternalStatusLabel,
		msg,
		c.ReporterName,
		c.ReporterContact,
		c.MediaURLs,
		c.ExternalLink,
		c.Source.String(),
		c.LastSyncedAt.UTC().Format(time.RFC3339),
	}
}

// Export writes cases as an xlsx workbook to w
func Export(w io.Writer, cases []*model.Case) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", ExportSheet); err != nil {
		return goerr.Wrap(err, "failed to name export sheet")
	}

	if err := f.SetSheetRow(ExportSheet, "A1", &ExportHeaders); err != nil {
		return goerr.Wrap(err, "failed to write header row")
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return goerr.Wrap(err, "failed to create header style")
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(ExportHeaders), 1)
	if err != nil {
		return goerr.Wrap(err, "failed to address header row")
	}
	if err := f.SetCellStyle(ExportSheet, "A1", lastHeader, bold); err != nil {
		return goerr.Wrap(err, "failed to style header row")
	}

	for i, c := range cases {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return goerr.Wrap(err, "failed to address row", goerr.V("row", i+2))
		}
		row := exportRow(c)
		if err := f.SetSheetRow(ExportSheet, cell, &row); err != nil {
			return goerr.Wrap(err, "failed to write case row",
				goerr.V(model.BusinessKeyKey, c.BusinessKey),
				goerr.V("row", i+2))
		}
	}

	if err := f.Write(w); err != nil {
		return goerr.Wrap(err, "failed to write workbook")
	}
	return nil
}
