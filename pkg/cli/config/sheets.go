package config

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/service/sheets"
	"github.com/secmon-lab/casesync/pkg/usecase"
	"github.com/secmon-lab/casesync/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Sheets holds CLI flags for the tabular source and its write-back target
type Sheets struct {
	url             string
	tab             string
	credentialsFile string
	interval        time.Duration
	writeBack       bool
}

// SheetTarget is a configured sheet source. Writer is nil when write-back is
// unavailable.
type SheetTarget struct {
	Source   *sheets.Source
	Writer   *usecase.WriteBack
	Interval time.Duration
}

func (x *Sheets) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sheet-url",
			Usage:       "URL of the case sheet (edit link or published CSV link)",
			Category:    "Sheet",
			Sources:     cli.EnvVars("CASESYNC_SHEET_URL"),
			Destination: &x.url,
		},
		&cli.StringFlag{
			Name:        "sheet-tab",
			Usage:       "Tab name to read; resolved from the URL gid when empty",
			Category:    "Sheet",
			Sources:     cli.EnvVars("CASESYNC_SHEET_TAB"),
			Destination: &x.tab,
		},
		&cli.StringFlag{
			Name:        "sheets-credentials-file",
			Usage:       "Service account JSON for the Sheets API. Without it the published CSV is read and write-back is off",
			Category:    "Sheet",
			Sources:     cli.EnvVars("CASESYNC_SHEETS_CREDENTIALS_FILE"),
			Destination: &x.credentialsFile,
		},
		&cli.DurationFlag{
			Name:        "sheet-interval",
			Usage:       "Sync interval of the sheet source (0 to trigger manually only)",
			Category:    "Sheet",
			Sources:     cli.EnvVars("CASESYNC_SHEET_INTERVAL"),
			Destination: &x.interval,
		},
		&cli.BoolFlag{
			Name:        "sheet-write-back",
			Usage:       "Push local edits back to the sheet",
			Category:    "Sheet",
			Value:       true,
			Sources:     cli.EnvVars("CASESYNC_SHEET_WRITE_BACK"),
			Destination: &x.writeBack,
		},
	}
}

func (x Sheets) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("url", x.url),
		slog.String("tab", x.tab),
		slog.String("credentials_file", x.credentialsFile),
		slog.Duration("interval", x.interval),
		slog.Bool("write_back", x.writeBack),
	)
}

// Configure builds the sheet source. It returns nil when no sheet URL is set
// by flag or file.
func (x *Sheets) Configure(ctx context.Context, file *SourcesFile, fetchTimeout time.Duration) (*SheetTarget, error) {
	url := firstNonEmpty(x.url, file.Sheet.URL)
	if url == "" {
		return nil, nil
	}

	interval := x.interval
	if interval == 0 {
		d, err := parseInterval(file.Sheet.Interval)
		if err != nil {
			return nil, err
		}
		interval = d
	}

	opts := []sheets.SourceOption{sheets.WithFetchTimeout(fetchTimeout)}
	if tab := firstNonEmpty(x.tab, file.Sheet.Tab); tab != "" {
		opts = append(opts, sheets.WithTab(tab))
	}

	var svc sheets.Service
	if x.credentialsFile != "" {
		// #nosec G304 - path is provided by operator
		creds, err := os.ReadFile(x.credentialsFile)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read sheets credentials", goerr.V(ConfigPathKey, x.credentialsFile))
		}
		svc, err = sheets.New(ctx, sheets.WithCredentialsJSON(creds))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create sheets service")
		}
		opts = append(opts, sheets.WithService(svc))
	}

	src, err := sheets.NewSource(url, opts...)
	if err != nil {
		return nil, goerr.Wrap(errors.Join(ErrInvalidConfig, err), "invalid sheet source", goerr.V(FlagKey, "sheet-url"))
	}
	target := &SheetTarget{Source: src, Interval: interval}

	writeBack := x.writeBack && (file.Sheet.WriteBack == nil || *file.Sheet.WriteBack)
	switch {
	case !writeBack:
		logging.Default().Info("Sheet write-back disabled")
	case svc == nil:
		logging.Default().Warn("Sheet write-back needs --sheets-credentials-file; edits stay local")
	default:
		w, err := usecase.NewWriteBack(svc, src.Ref(), usecase.WithWriteBackColumns(file.Sheet.Columns))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to configure sheet write-back")
		}
		target.Writer = w
	}

	logging.Default().Info("Sheet source configured", "sheet", x, "api", svc != nil)
	return target, nil
}
