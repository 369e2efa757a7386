package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/domain/types"
	"github.com/secmon-lab/casesync/pkg/usecase"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

// ErrSyncFailed is returned by the sync command when any run failed
var ErrSyncFailed = goerr.New("one or more sync runs failed")

func cmdSync() *cli.Command {
	var rtCfg runtimeConfig
	var selected []string

	flags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:        "source",
			Usage:       "Source to sync [sheet|report_api|workbook]; repeat for several (default: all configured)",
			Destination: &selected,
		},
	}
	flags = append(flags, rtCfg.Flags()...)

	return &cli.Command{
		Name:  "sync",
		Usage: "Run one sync of the configured sources and exit",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			only, err := parseSourceTypes(selected)
			if err != nil {
				return err
			}

			rt, err := rtCfg.Configure(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			reconcilers, err := selectReconcilers(rt.uc, only)
			if err != nil {
				return err
			}

			runs := runAll(ctx, reconcilers)
			printRunSummary(os.Stdout, runs)

			for _, run := range runs {
				if !run.Succeeded() {
					return ErrSyncFailed
				}
			}
			return nil
		},
	}
}

func selectReconcilers(uc *usecase.UseCases, only []types.SourceType) ([]*usecase.Reconciler, error) {
	if len(only) == 0 {
		all := uc.Reconcilers()
		if len(all) == 0 {
			return nil, goerr.Wrap(model.ErrSourceNotEnabled, "no source is configured")
		}
		return all, nil
	}

	var out []*usecase.Reconciler
	for _, st := range only {
		r, err := uc.Reconciler(st)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// runAll runs every reconciler once in parallel. A failed run does not
// cancel the others; failures are carried in the returned runs.
func runAll(ctx context.Context, reconcilers []*usecase.Reconciler) []*model.SyncRun {
	runs := make([]*model.SyncRun, len(reconcilers))

	var eg errgroup.Group
	for i, r := range reconcilers {
		eg.Go(func() error {
			run, err := r.Run(ctx)
			if run == nil {
				// dropped before it started
				run = &model.SyncRun{
					Source:          r.Source(),
					Outcome:         types.RunOutcomeFailed,
					FailureCategory: model.FailureCategoryOf(err),
					FailureReason:   err.Error(),
				}
			}
			runs[i] = run
			return nil
		})
	}
	_ = eg.Wait()
	return runs
}

func printRunSummary(w io.Writer, runs []*model.SyncRun) {
	ok := color.New(color.FgGreen, color.Bold).SprintFunc()
	ng := color.New(color.FgRed, color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	sorted := slices.Clone(runs)
	slices.SortStableFunc(sorted, func(a, b *model.SyncRun) int {
		return slices.Index(types.AllSourceTypes(), a.Source) - slices.Index(types.AllSourceTypes(), b.Source)
	})

	for _, run := range sorted {
		s := run.Stats
		if run.Succeeded() {
			_, _ = fmt.Fprintf(w, "%s %-10s fetched=%d created=%d updated=%d unchanged=%d skipped=%d duplicates=%d errored=%d %s\n",
				ok("OK"), run.Source, s.Fetched, s.Created, s.Updated, s.Unchanged, s.Skipped, s.Duplicates, s.Errored,
				dim(run.FinishedAt.Sub(run.StartedAt).String()))
		} else {
			_, _ = fmt.Fprintf(w, "%s %-10s [%s] %s\n", ng("NG"), run.Source, run.FailureCategory, run.FailureReason)
		}
		for _, e := range s.Errors {
			_, _ = fmt.Fprintf(w, "   %s\n", dim(e.String()))
		}
	}
}
