package workbook

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/domain/interfaces"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/domain/types"
	"github.com/secmon-lab/casesync/pkg/service/sheets"
	"github.com/secmon-lab/casesync/pkg/utils/safe"
	"github.com/xuri/excelize/v2"
)

// PreferredSheet is read when no sheet is configured and the workbook has one
const PreferredSheet = "Main"

// Source reads cases from one sheet of a local xlsx workbook, laid out like
// the shared spreadsheet
type Source struct {
	path  string
	sheet string
}

var _ interfaces.CaseSource = &Source{}

// SourceOption configures a Source
type SourceOption func(*Source)

// WithSheet selects the sheet to read
func WithSheet(name string) SourceOption {
	return func(s *Source) {
		s.sheet = name
	}
}

func NewSource(path string, opts ...SourceOption) *Source {
	s := &Source{path: path}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) Type() types.SourceType {
	return types.SourceTypeWorkbook
}

func (s *Source) FetchBatch(ctx context.Context) (*model.RawBatch, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(model.ErrSourceNotFound, "workbook not found", goerr.V(PathKey, s.path))
		}
		return nil, goerr.Wrap(errors.Join(model.ErrTransport, err), "failed to open workbook", goerr.V(PathKey, s.path))
	}
	defer safe.Close(ctx, f)

	sheet, err := s.pickSheet(f)
	if err != nil {
		return nil, err
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, goerr.Wrap(errors.Join(model.ErrTransport, err), "failed to read workbook sheet",
			goerr.V(PathKey, s.path),
			goerr.V(SheetKey, sheet))
	}

	return sheets.BuildBatch(types.SourceTypeWorkbook, rows, func(sheetRow int) string {
		return fmt.Sprintf("%s!A%d", sheet, sheetRow)
	}), nil
}

func (s *Source) pickSheet(f *excelize.File) (string, error) {
	list := f.GetSheetList()
	if s.sheet != "" {
		if !slices.Contains(list, s.sheet) {
			return "", goerr.Wrap(model.ErrSourceNotFound, "sheet not found in workbook",
				goerr.V(PathKey, s.path),
				goerr.V(SheetKey, s.sheet))
		}
		return s.sheet, nil
	}

	if slices.Contains(list, PreferredSheet) {
		return PreferredSheet, nil
	}
	if len(list) == 0 {
		return "", goerr.Wrap(model.ErrSourceNotFound, "workbook has no sheet", goerr.V(PathKey, s.path))
	}
	return list[0], nil
}
