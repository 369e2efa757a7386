package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/domain/interfaces"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/service/sheets"
	"github.com/secmon-lab/casesync/pkg/utils/logging"
)

// WriteBack pushes the whitelisted case fields back into the source sheet.
// It only ever rewrites existing rows and only the whitelisted cells of them.
type WriteBack struct {
	svc  sheets.Service
	ref  model.SheetRef
	cols model.WriteBackColumns
}

var _ interfaces.SheetWriter = &WriteBack{}

// WriteBackOption configures a WriteBack
type WriteBackOption func(*WriteBack)

// WithWriteBackColumns overrides the default column layout
func WithWriteBackColumns(cols model.WriteBackColumns) WriteBackOption {
	return func(w *WriteBack) {
		w.cols = cols
	}
}

// NewWriteBack creates a WriteBack for the tab addressed by ref
func NewWriteBack(svc sheets.Service, ref model.SheetRef, opts ...WriteBackOption) (*WriteBack, error) {
	if ref.SpreadsheetID == "" {
		return nil, goerr.New("spreadsheet id is required for write-back")
	}

	w := &WriteBack{
		svc:  svc,
		ref:  ref,
		cols: model.DefaultWriteBackColumns,
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.cols.Validate(); err != nil {
		return nil, goerr.Wrap(errors.Join(ErrInvalidColumns, err), "invalid write-back columns")
	}
	return w, nil
}

// Push locates the row whose key cell equals change.BusinessKey and
// overwrites the whitelisted cells in a single update
func (w *WriteBack) Push(ctx context.Context, change model.WriteBackChange) error {
	key := strings.TrimSpace(change.BusinessKey)
	if key == "" {
		return goerr.New("business key is required for write-back")
	}

	tab := w.ref.Tab
	if tab == "" {
		resolved, err := w.svc.ResolveTab(ctx, w.ref.SpreadsheetID, w.ref.GID)
		if err != nil {
			return goerr.Wrap(err, "failed to resolve tab for write-back", goerr.V(model.BusinessKeyKey, key))
		}
		tab = resolved
	}

	rowNum, err := w.findRow(ctx, tab, key)
	if err != nil {
		return err
	}

	last := w.cols.Last()
	rowRange := model.A1Range(tab, fmt.Sprintf("A%d:%s%d", rowNum, model.ColumnLetter(last), rowNum))
	current, err := w.svc.GetValues(ctx, w.ref.SpreadsheetID, rowRange, sheets.RenderFormula)
	if err != nil {
		return goerr.Wrap(err, "failed to read row for write-back",
			goerr.V(model.BusinessKeyKey, key),
			goerr.V(model.RangeKey, rowRange))
	}

	row := make([]any, last+1)
	for i := range row {
		row[i] = ""
	}
	if len(current) > 0 {
		for i, v := range current[0] {
			if i < len(row) {
				row[i] = keepLiteral(v)
			}
		}
	}

	set := func(pos int, v *string) {
		if v != nil {
			row[pos] = *v
		}
	}
	set(w.cols.AssignedCluster, change.AssignedCluster)
	set(w.cols.AssignedOffice, change.AssignedOffice)
	set(w.cols.ExternalStatusLabel, change.ExternalStatusLabel)
	if change.ResponseMessage != nil && *change.ResponseMessage != "" {
		row[w.cols.ResponseMessage] = *change.ResponseMessage
	}

	if err := w.svc.UpdateValues(ctx, w.ref.SpreadsheetID, rowRange, [][]any{row}); err != nil {
		return goerr.Wrap(err, "failed to write back row",
			goerr.V(model.BusinessKeyKey, key),
			goerr.V(model.RangeKey, rowRange))
	}

	logging.From(ctx).Info("Wrote case back to sheet",
		"business_key", key,
		"range", rowRange)
	return nil
}

// keepLiteral makes a cell read with the FORMULA render survive a
// USER_ENTERED write unchanged. Text is quoted so Sheets does not turn
// "0917..." into a number or "2025-10-18" into a date; formulas, numbers and
// blanks pass through.
func keepLiteral(v any) any {
	s, ok := v.(string)
	if !ok || s == "" || strings.HasPrefix(s, "=") {
		return v
	}
	return "'" + s
}

// findRow returns the 1-based sheet row of the first key cell matching key
func (w *WriteBack) findRow(ctx context.Context, tab, key string) (int, error) {
	letter := model.ColumnLetter(w.cols.Key)
	keyRange := model.A1Range(tab, letter+":"+letter)
	values, err := w.svc.GetValues(ctx, w.ref.SpreadsheetID, keyRange, sheets.RenderFormatted)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to read key column",
			goerr.V(model.RangeKey, keyRange),
			goerr.V(model.BusinessKeyKey, key))
	}

	for i, v := range values {
		if len(v) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(v[0])) == key {
			return i + 1, nil
		}
	}
	return 0, goerr.Wrap(model.ErrWriteBackMismatch, "no sheet row for business key",
		goerr.V(model.BusinessKeyKey, key),
		goerr.V(TabKey, tab))
}
