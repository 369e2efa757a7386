package config

import (
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/service/reportapi"
	"github.com/secmon-lab/casesync/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// ReportAPI holds CLI flags for the report API source
type ReportAPI struct {
	token    string
	baseURL  string
	linkBase string
	from     string
	to       string
	interval time.Duration
}

// ReportAPITarget is a configured report API source
type ReportAPITarget struct {
	Source   *reportapi.Source
	Interval time.Duration
}

func (x *ReportAPI) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "report-api-token",
			Usage:       "Token sent in the Authorization header of report API requests",
			Category:    "Report API",
			Sources:     cli.EnvVars("CASESYNC_REPORT_API_TOKEN"),
			Destination: &x.token,
		},
		&cli.StringFlag{
			Name:        "report-api-base-url",
			Usage:       "Reports endpoint (default " + reportapi.DefaultBaseURL + ")",
			Category:    "Report API",
			Sources:     cli.EnvVars("CASESYNC_REPORT_API_BASE_URL"),
			Destination: &x.baseURL,
		},
		&cli.StringFlag{
			Name:        "report-api-link-base",
			Usage:       "Base URL of report links (default " + reportapi.DefaultLinkBase + ")",
			Category:    "Report API",
			Sources:     cli.EnvVars("CASESYNC_REPORT_API_LINK_BASE"),
			Destination: &x.linkBase,
		},
		&cli.StringFlag{
			Name:        "report-api-from",
			Usage:       "Start of the creation window, RFC3339 or YYYY-MM-DD (default: first day of the month)",
			Category:    "Report API",
			Sources:     cli.EnvVars("CASESYNC_REPORT_API_FROM"),
			Destination: &x.from,
		},
		&cli.StringFlag{
			Name:        "report-api-to",
			Usage:       "End of the creation window, RFC3339 or YYYY-MM-DD (default: now)",
			Category:    "Report API",
			Sources:     cli.EnvVars("CASESYNC_REPORT_API_TO"),
			Destination: &x.to,
		},
		&cli.DurationFlag{
			Name:        "report-api-interval",
			Usage:       "Sync interval of the report API source (0 to trigger manually only)",
			Category:    "Report API",
			Sources:     cli.EnvVars("CASESYNC_REPORT_API_INTERVAL"),
			Destination: &x.interval,
		},
	}
}

func (x ReportAPI) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("token.len", len(x.token)),
		slog.String("base_url", x.baseURL),
		slog.String("from", x.from),
		slog.String("to", x.to),
		slog.Duration("interval", x.interval),
	)
}

// Configure builds the report API source. It returns nil when no token is set.
func (x *ReportAPI) Configure(file *SourcesFile, fetchTimeout time.Duration) (*ReportAPITarget, error) {
	if x.token == "" {
		return nil, nil
	}

	from, err := parseWindowBound(firstNonEmpty(x.from, file.ReportAPI.From))
	if err != nil {
		return nil, goerr.Wrap(err, "invalid report window", goerr.V(FlagKey, "report-api-from"))
	}
	to, err := parseWindowBound(firstNonEmpty(x.to, file.ReportAPI.To))
	if err != nil {
		return nil, goerr.Wrap(err, "invalid report window", goerr.V(FlagKey, "report-api-to"))
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, goerr.Wrap(ErrInvalidConfig, "report window ends before it starts",
			goerr.V("from", *from), goerr.V("to", *to))
	}

	interval := x.interval
	if interval == 0 {
		if interval, err = parseInterval(file.ReportAPI.Interval); err != nil {
			return nil, err
		}
	}

	var clientOpts []reportapi.Option
	if base := firstNonEmpty(x.baseURL, file.ReportAPI.BaseURL); base != "" {
		clientOpts = append(clientOpts, reportapi.WithBaseURL(base))
	}
	svc, err := reportapi.New(x.token, clientOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create report API client")
	}

	srcOpts := []reportapi.SourceOption{
		reportapi.WithWindow(from, to),
		reportapi.WithFetchTimeout(fetchTimeout),
	}
	if link := firstNonEmpty(x.linkBase, file.ReportAPI.LinkBase); link != "" {
		srcOpts = append(srcOpts, reportapi.WithLinkBase(link))
	}

	logging.Default().Info("Report API source configured", "report_api", x)
	return &ReportAPITarget{
		Source:   reportapi.NewSource(svc, srcOpts...),
		Interval: interval,
	}, nil
}
