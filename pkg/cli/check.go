package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/secmon-lab/casesync/pkg/domain/types"
	"github.com/secmon-lab/casesync/pkg/repository/memory"
	"github.com/secmon-lab/casesync/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdCheck() *cli.Command {
	var srcCfg sourceConfig
	var selected []string

	flags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:        "source",
			Usage:       "Source to check [sheet|report_api|workbook]; repeat for several (default: all configured)",
			Destination: &selected,
		},
	}
	flags = append(flags, srcCfg.Flags()...)

	return &cli.Command{
		Name:  "check",
		Usage: "Fetch each source and report column resolution and mapping without writing",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			only, err := parseSourceTypes(selected)
			if err != nil {
				return err
			}
			srcs, err := srcCfg.Configure(ctx)
			if err != nil {
				return err
			}

			// the store is never written by Inspect
			uc := usecase.New(memory.New(), srcs.useCaseOptions()...)
			reconcilers, err := selectReconcilers(uc, only)
			if err != nil {
				return err
			}

			failed := false
			for _, r := range reconcilers {
				got, err := r.Inspect(ctx)
				if err != nil {
					failed = true
					printCheckFailure(os.Stdout, r.Source().String(), err)
					continue
				}
				printInspection(os.Stdout, got)
			}
			if failed {
				return ErrSyncFailed
			}
			return nil
		},
	}
}

func printCheckFailure(w io.Writer, source string, err error) {
	ng := color.New(color.FgRed, color.Bold).SprintFunc()
	_, _ = fmt.Fprintf(w, "%s %s: %s\n", ng("NG"), source, err.Error())
}

func printInspection(w io.Writer, in *usecase.Inspection) {
	title := color.New(color.Bold).SprintFunc()
	ok := color.New(color.FgGreen).SprintFunc()
	warn := color.New(color.FgYellow).SprintFunc()

	_, _ = fmt.Fprintf(w, "%s (%d headers)\n", title(in.Source), len(in.Headers))
	for _, field := range types.AllCaseFields() {
		if header, found := in.Columns.Header(field); found {
			_, _ = fmt.Fprintf(w, "  %s %-22s <- %q\n", ok("+"), field, header)
		}
	}
	for _, field := range in.Missing {
		_, _ = fmt.Fprintf(w, "  %s %-22s (no matching header)\n", warn("-"), field)
	}

	s := in.Stats
	_, _ = fmt.Fprintf(w, "  rows=%d mappable=%d skipped=%d duplicates=%d errored=%d\n",
		s.Fetched, in.Mappable, s.Skipped, s.Duplicates, s.Errored)
	for _, e := range s.Errors {
		_, _ = fmt.Fprintf(w, "    %s\n", warn(e.String()))
	}
}
