package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/service/reportapi"
	"github.com/secmon-lab/casesync/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// SourcesFile is the optional TOML file declaring the sync sources. Secrets
// never live here; tokens and credentials come from flags or env vars.
type SourcesFile struct {
	Sheet     SheetSection     `toml:"sheet"`
	ReportAPI ReportAPISection `toml:"report_api"`
	Workbook  WorkbookSection  `toml:"workbook"`
}

type SheetSection struct {
	URL       string                 `toml:"url"`
	Tab       string                 `toml:"tab"`
	Interval  string                 `toml:"interval"`
	WriteBack *bool                  `toml:"write_back"`
	Columns   model.WriteBackColumns `toml:"write_back_columns"`
}

type ReportAPISection struct {
	BaseURL  string `toml:"base_url"`
	LinkBase string `toml:"link_base"`
	From     string `toml:"from"`
	To       string `toml:"to"`
	Interval string `toml:"interval"`
}

type WorkbookSection struct {
	Path     string `toml:"path"`
	Sheet    string `toml:"sheet"`
	Interval string `toml:"interval"`
}

// DefaultSourcesFile is the file used when no --config is given
func DefaultSourcesFile() *SourcesFile {
	return &SourcesFile{
		Sheet: SheetSection{Columns: model.DefaultWriteBackColumns},
	}
}

// LoadSourcesFile reads and validates a sources file. Keys missing from the
// file keep their defaults.
func LoadSourcesFile(path string) (*SourcesFile, error) {
	// #nosec G304 - path is provided by operator
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrConfigNotFound, "sources file does not exist", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read sources file", goerr.V(ConfigPathKey, path))
	}

	file := DefaultSourcesFile()
	if err := toml.Unmarshal(data, file); err != nil {
		return nil, goerr.Wrap(errors.Join(ErrInvalidConfig, err), "failed to parse sources file", goerr.V(ConfigPathKey, path))
	}
	if err := file.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid sources file", goerr.V(ConfigPathKey, path))
	}
	return file, nil
}

// Validate checks intervals, window bounds and write-back columns
func (f *SourcesFile) Validate() error {
	for name, raw := range map[string]string{
		"sheet.interval":      f.Sheet.Interval,
		"report_api.interval": f.ReportAPI.Interval,
		"workbook.interval":   f.Workbook.Interval,
	} {
		if _, err := parseInterval(raw); err != nil {
			return goerr.Wrap(err, "invalid interval", goerr.V("key", name))
		}
	}
	for name, raw := range map[string]string{
		"report_api.from": f.ReportAPI.From,
		"report_api.to":   f.ReportAPI.To,
	} {
		if _, err := parseWindowBound(raw); err != nil {
			return goerr.Wrap(err, "invalid report window bound", goerr.V("key", name))
		}
	}
	if err := f.Sheet.Columns.Validate(); err != nil {
		return goerr.Wrap(errors.Join(ErrInvalidConfig, err), "invalid write-back columns")
	}
	return nil
}

// parseInterval parses a Go duration. Empty means not scheduled.
func parseInterval(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, goerr.Wrap(errors.Join(ErrInvalidConfig, err), "failed to parse interval", goerr.V("interval", raw))
	}
	if d < 0 {
		return 0, goerr.Wrap(ErrInvalidConfig, "interval must not be negative", goerr.V("interval", raw))
	}
	return d, nil
}

// parseWindowBound accepts RFC3339 or a plain date. Empty means unset.
func parseWindowBound(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, goerr.Wrap(ErrInvalidConfig, "time must be RFC3339 or YYYY-MM-DD", goerr.V("value", raw))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Sync holds the settings shared by every source: the sources file, the
// fetch timeout and the mapper's phone region
type Sync struct {
	path         string
	fetchTimeout time.Duration
	phoneRegion  string
}

func (x *Sync) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to the TOML sources file",
			Category:    "Sync",
			Sources:     cli.EnvVars("CASESYNC_CONFIG"),
			Destination: &x.path,
		},
		&cli.DurationFlag{
			Name:        "fetch-timeout",
			Usage:       "Timeout of one source fetch",
			Category:    "Sync",
			Value:       reportapi.DefaultTimeout,
			Sources:     cli.EnvVars("CASESYNC_FETCH_TIMEOUT"),
			Destination: &x.fetchTimeout,
		},
		&cli.StringFlag{
			Name:        "phone-region",
			Usage:       "Default region for reporter contact numbers",
			Category:    "Sync",
			Value:       usecase.DefaultPhoneRegion,
			Sources:     cli.EnvVars("CASESYNC_PHONE_REGION"),
			Destination: &x.phoneRegion,
		},
	}
}

func (x Sync) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("config", x.path),
		slog.Duration("fetch_timeout", x.fetchTimeout),
		slog.String("phone_region", x.phoneRegion),
	)
}

// FetchTimeout returns the per-fetch timeout
func (x *Sync) FetchTimeout() time.Duration {
	return x.fetchTimeout
}

// Load returns the sources file, or defaults when no path is set
func (x *Sync) Load() (*SourcesFile, error) {
	if x.fetchTimeout <= 0 {
		return nil, goerr.Wrap(ErrInvalidConfig, "fetch-timeout must be positive", goerr.V(FlagKey, "fetch-timeout"))
	}
	if x.path == "" {
		return DefaultSourcesFile(), nil
	}
	return LoadSourcesFile(x.path)
}

// ReconcilerOptions returns the options applied to every reconciler
func (x *Sync) ReconcilerOptions() []usecase.ReconcilerOption {
	return []usecase.ReconcilerOption{
		usecase.WithMapper(usecase.NewMapper(usecase.WithPhoneRegion(x.phoneRegion))),
	}
}
