package cli

import (
	"context"

	"github.com/secmon-lab/casesync/pkg/cli/config"
	"github.com/secmon-lab/casesync/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func Run(ctx context.Context, args []string, version string) error {
	var loggerCfg config.Logger
	var sentryCfg config.Sentry
	var closer func()
	var flush func()

	flags := append(loggerCfg.Flags(), sentryCfg.Flags()...)

	app := &cli.Command{
		Name:    "casesync",
		Usage:   "Reconcile case records from sheets and the report API into one store",
		Version: version,
		Flags:   flags,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			f, err := loggerCfg.Configure()
			if err != nil {
				return ctx, err
			}
			closer = f

			fl, err := sentryCfg.Configure(version)
			if err != nil {
				return ctx, err
			}
			flush = fl

			logging.Default().Info("Starting casesync", "logger", loggerCfg, "sentry", sentryCfg)
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if flush != nil {
				flush()
			}
			if closer != nil {
				closer()
			}
			return nil
		},
		Commands: []*cli.Command{
			cmdServe(),
			cmdSync(),
			cmdCheck(),
			cmdImport(),
			cmdExport(),
			cmdMigrate(),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		logging.Default().Error("failed to run app", "error", err)
		return err
	}

	return nil
}
