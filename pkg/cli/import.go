package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/cli/config"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/usecase"
	"github.com/secmon-lab/casesync/pkg/utils/logging"
	"github.com/secmon-lab/casesync/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdImport() *cli.Command {
	var repoCfg config.Repository
	var syncCfg config.Sync
	var wbCfg config.Workbook

	var flags []cli.Flag
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, syncCfg.Flags()...)
	flags = append(flags, wbCfg.Flags()...)

	return &cli.Command{
		Name:      "import",
		Usage:     "Reconcile the cases of an xlsx workbook into the store",
		ArgsUsage: "[FILE.xlsx]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if path := c.Args().First(); path != "" {
				wbCfg.SetPath(path)
			}

			file, err := syncCfg.Load()
			if err != nil {
				return err
			}
			target, err := wbCfg.Configure(file)
			if err != nil {
				return err
			}
			if target == nil {
				return goerr.Wrap(config.ErrInvalidConfig, "a workbook path is required", goerr.V(config.FlagKey, "workbook-path"))
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer safe.Close(ctx, repo)

			r := usecase.NewReconciler(target.Source, repo, syncCfg.ReconcilerOptions()...)
			logging.Default().Info("Importing workbook", "path", target.Path)
			run, err := r.Run(ctx)
			if run != nil {
				printRunSummary(os.Stdout, []*model.SyncRun{run})
			}
			if err != nil {
				return goerr.Wrap(err, "workbook import failed", goerr.V("path", target.Path))
			}
			return nil
		},
	}
}
