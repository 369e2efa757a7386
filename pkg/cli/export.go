package cli

import (
	"context"
	"io"
	"os"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/cli/config"
	"github.com/secmon-lab/casesync/pkg/domain/interfaces"
	"github.com/secmon-lab/casesync/pkg/domain/types"
	"github.com/secmon-lab/casesync/pkg/service/workbook"
	"github.com/secmon-lab/casesync/pkg/utils/logging"
	"github.com/secmon-lab/casesync/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// exportTarget is where an export is written
type exportTarget struct {
	output    string
	gcsBucket string
	gcsObject string
}

func (x *exportTarget) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "Output xlsx path, '-' for stdout (ignored with --gcs-bucket)",
			Value:       "cases.xlsx",
			Destination: &x.output,
		},
		&cli.StringFlag{
			Name:        "gcs-bucket",
			Usage:       "Upload the export to this Cloud Storage bucket",
			Category:    "Export",
			Sources:     cli.EnvVars("CASESYNC_EXPORT_GCS_BUCKET"),
			Destination: &x.gcsBucket,
		},
		&cli.StringFlag{
			Name:        "gcs-object",
			Usage:       "Object name in the bucket (default: exports/cases-<timestamp>.xlsx)",
			Category:    "Export",
			Sources:     cli.EnvVars("CASESYNC_EXPORT_GCS_OBJECT"),
			Destination: &x.gcsObject,
		},
	}
}

// write runs fn against the configured destination and returns where it went
func (x *exportTarget) write(ctx context.Context, now time.Time, fn func(w io.Writer) error) (string, error) {
	if x.gcsBucket != "" {
		return x.upload(ctx, now, fn)
	}

	if x.output == "-" {
		return "stdout", fn(os.Stdout)
	}

	// #nosec G304 - path is provided by operator
	f, err := os.OpenFile(x.output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create export file", goerr.V("path", x.output))
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to close export file", goerr.V("path", x.output))
	}
	return x.output, nil
}

func (x *exportTarget) upload(ctx context.Context, now time.Time, fn func(w io.Writer) error) (string, error) {
	object := x.gcsObject
	if object == "" {
		object = path.Join("exports", "cases-"+now.UTC().Format("20060102T150405Z")+".xlsx")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create storage client")
	}
	defer func() {
		if err := client.Close(); err != nil {
			logging.Default().Error("failed to close storage client", "error", err)
		}
	}()

	w := client.Bucket(x.gcsBucket).Object(object).NewWriter(ctx)
	w.ContentType = xlsxContentType
	if err := fn(w); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to upload export",
			goerr.V("bucket", x.gcsBucket), goerr.V("object", object))
	}
	return "gs://" + x.gcsBucket + "/" + object, nil
}

func cmdExport() *cli.Command {
	var repoCfg config.Repository
	var target exportTarget
	var status, source string
	var limit int

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "status",
			Usage:       "Only export cases with this status [OPEN|RESOLVED|FOR_REROUTING]",
			Destination: &status,
		},
		&cli.StringFlag{
			Name:        "source",
			Usage:       "Only export cases last seen from this source [sheet|report_api|workbook]",
			Destination: &source,
		},
		&cli.IntFlag{
			Name:        "limit",
			Usage:       "Maximum number of cases (0 for all)",
			Destination: &limit,
		},
	}
	flags = append(flags, target.Flags()...)
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:  "export",
		Usage: "Write the stored cases to an xlsx workbook",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			var opts []interfaces.ListCaseOption
			if status != "" {
				st, err := types.ParseCaseStatus(status)
				if err != nil {
					return goerr.Wrap(config.ErrInvalidConfig, "unknown status", goerr.V("status", status))
				}
				opts = append(opts, interfaces.WithStatus(st))
			}
			if source != "" {
				st, err := types.ParseSourceType(source)
				if err != nil {
					return goerr.Wrap(config.ErrInvalidConfig, "unknown source", goerr.V("source", source))
				}
				opts = append(opts, interfaces.WithSource(st))
			}
			if limit > 0 {
				opts = append(opts, interfaces.WithLimit(limit))
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer safe.Close(ctx, repo)

			cases, err := repo.Case().List(ctx, opts...)
			if err != nil {
				return goerr.Wrap(err, "failed to list cases")
			}

			dest, err := target.write(ctx, time.Now(), func(w io.Writer) error {
				return workbook.Export(w, cases)
			})
			if err != nil {
				return err
			}
			logging.Default().Info("Exported cases", "count", len(cases), "destination", dest)
			return nil
		},
	}
}
