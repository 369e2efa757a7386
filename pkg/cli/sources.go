package cli

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/cli/config"
	"github.com/secmon-lab/casesync/pkg/domain/types"
	"github.com/secmon-lab/casesync/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// sourceConfig gathers the flags of every source adapter
type sourceConfig struct {
	sync      config.Sync
	sheets    config.Sheets
	reportAPI config.ReportAPI
	workbook  config.Workbook
}

func (x *sourceConfig) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, x.sync.Flags()...)
	flags = append(flags, x.sheets.Flags()...)
	flags = append(flags, x.reportAPI.Flags()...)
	flags = append(flags, x.workbook.Flags()...)
	return flags
}

// sources is the set of configured adapters with their sync intervals
type sources struct {
	sheet     *config.SheetTarget
	reportAPI *config.ReportAPITarget
	workbook  *config.WorkbookTarget
	runOpts   []usecase.ReconcilerOption
}

func (x *sourceConfig) Configure(ctx context.Context) (*sources, error) {
	file, err := x.sync.Load()
	if err != nil {
		return nil, err
	}

	out := &sources{runOpts: x.sync.ReconcilerOptions()}
	if out.sheet, err = x.sheets.Configure(ctx, file, x.sync.FetchTimeout()); err != nil {
		return nil, goerr.Wrap(err, "failed to configure sheet source")
	}
	if out.reportAPI, err = x.reportAPI.Configure(file, x.sync.FetchTimeout()); err != nil {
		return nil, goerr.Wrap(err, "failed to configure report API source")
	}
	if out.workbook, err = x.workbook.Configure(file); err != nil {
		return nil, goerr.Wrap(err, "failed to configure workbook source")
	}
	return out, nil
}

// empty reports whether no source is configured at all
func (s *sources) empty() bool {
	return s.sheet == nil && s.reportAPI == nil && s.workbook == nil
}

// useCaseOptions registers every configured source and the sheet writer
func (s *sources) useCaseOptions() []usecase.Option {
	opts := []usecase.Option{usecase.WithReconcilerOptions(s.runOpts...)}
	if s.sheet != nil {
		opts = append(opts, usecase.WithSource(s.sheet.Source))
		if s.sheet.Writer != nil {
			opts = append(opts, usecase.WithSheetWriter(s.sheet.Writer))
		}
	}
	if s.reportAPI != nil {
		opts = append(opts, usecase.WithSource(s.reportAPI.Source))
	}
	if s.workbook != nil {
		opts = append(opts, usecase.WithSource(s.workbook.Source))
	}
	return opts
}

// intervals returns the recurring interval of each scheduled source
func (s *sources) intervals() map[types.SourceType]time.Duration {
	out := map[types.SourceType]time.Duration{}
	if s.sheet != nil && s.sheet.Interval > 0 {
		out[types.SourceTypeSheet] = s.sheet.Interval
	}
	if s.reportAPI != nil && s.reportAPI.Interval > 0 {
		out[types.SourceTypeReportAPI] = s.reportAPI.Interval
	}
	if s.workbook != nil && s.workbook.Interval > 0 {
		out[types.SourceTypeWorkbook] = s.workbook.Interval
	}
	return out
}

// parseSourceTypes parses a --source selection. Empty selects every source.
func parseSourceTypes(raw []string) ([]types.SourceType, error) {
	var out []types.SourceType
	for _, r := range raw {
		st, err := types.ParseSourceType(r)
		if err != nil {
			return nil, goerr.Wrap(config.ErrInvalidConfig, "unknown source", goerr.V("source", r))
		}
		out = append(out, st)
	}
	return out, nil
}
