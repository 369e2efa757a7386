package config

import (
	"log/slog"
	"time"

	"github.com/secmon-lab/casesync/pkg/service/workbook"
	"github.com/urfave/cli/v3"
)

// Workbook holds CLI flags for a local xlsx source
type Workbook struct {
	path     string
	sheet    string
	interval time.Duration
}

// WorkbookTarget is a configured workbook source
type WorkbookTarget struct {
	Source   *workbook.Source
	Path     string
	Interval time.Duration
}

func (x *Workbook) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "workbook-path",
			Usage:       "Path to an xlsx workbook of cases",
			Category:    "Workbook",
			Sources:     cli.EnvVars("CASESYNC_WORKBOOK_PATH"),
			Destination: &x.path,
		},
		&cli.StringFlag{
			Name:        "workbook-sheet",
			Usage:       "Sheet to read (default: " + workbook.PreferredSheet + ", then the first sheet)",
			Category:    "Workbook",
			Sources:     cli.EnvVars("CASESYNC_WORKBOOK_SHEET"),
			Destination: &x.sheet,
		},
		&cli.DurationFlag{
			Name:        "workbook-interval",
			Usage:       "Sync interval of the workbook source (0 to trigger manually only)",
			Category:    "Workbook",
			Sources:     cli.EnvVars("CASESYNC_WORKBOOK_INTERVAL"),
			Destination: &x.interval,
		},
	}
}

func (x Workbook) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("path", x.path),
		slog.String("sheet", x.sheet),
		slog.Duration("interval", x.interval),
	)
}

// SetPath overrides the workbook path, as the import command takes it as an argument
func (x *Workbook) SetPath(path string) {
	x.path = path
}

// Configure builds the workbook source. It returns nil when no path is set.
func (x *Workbook) Configure(file *SourcesFile) (*WorkbookTarget, error) {
	path := firstNonEmpty(x.path, file.Workbook.Path)
	if path == "" {
		return nil, nil
	}

	interval := x.interval
	if interval == 0 {
		d, err := parseInterval(file.Workbook.Interval)
		if err != nil {
			return nil, err
		}
		interval = d
	}

	var opts []workbook.SourceOption
	if sheet := firstNonEmpty(x.sheet, file.Workbook.Sheet); sheet != "" {
		opts = append(opts, workbook.WithSheet(sheet))
	}
	return &WorkbookTarget{
		Source:   workbook.NewSource(path, opts...),
		Path:     path,
		Interval: interval,
	}, nil
}
