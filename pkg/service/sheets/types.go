package sheets

import "context"

// ValueRender selects how cell values are returned by GetValues
type ValueRender string

const (
	// RenderFormatted returns values as displayed in the sheet
	RenderFormatted ValueRender = "FORMATTED_VALUE"
	// RenderFormula returns formulas instead of computed values
	RenderFormula ValueRender = "FORMULA"
)

// Service provides the subset of the Google Sheets API used for sync
type Service interface {
	// ResolveTab returns the title of the tab with the given sheet id. When gid
	// is nil, a tab named "Main" is preferred, then the first tab.
	ResolveTab(ctx context.Context, spreadsheetID string, gid *int64) (string, error)

	// GetValues reads an A1 range. Trailing empty rows and cells are omitted
	// by the API.
	GetValues(ctx context.Context, spreadsheetID, a1Range string, render ValueRender) ([][]any, error)

	// UpdateValues writes an A1 range in one request, interpreting values as
	// if typed by a user
	UpdateValues(ctx context.Context, spreadsheetID, a1Range string, values [][]any) error
}
