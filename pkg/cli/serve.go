package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/cli/config"
	httpctrl "github.com/secmon-lab/casesync/pkg/controller/http"
	"github.com/secmon-lab/casesync/pkg/service/worker"
	"github.com/secmon-lab/casesync/pkg/usecase"
	"github.com/secmon-lab/casesync/pkg/utils/logging"
	"github.com/secmon-lab/casesync/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

// runtimeConfig is the flag set shared by commands that run reconcilers
type runtimeConfig struct {
	repo    config.Repository
	sources sourceConfig
	slack   config.Slack
	runLock config.RunLock
}

func (x *runtimeConfig) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, x.repo.Flags()...)
	flags = append(flags, x.sources.Flags()...)
	flags = append(flags, x.slack.Flags()...)
	flags = append(flags, x.runLock.Flags()...)
	return flags
}

// runtime is a wired set of use cases. close releases everything it opened.
type runtime struct {
	uc      *usecase.UseCases
	sources *sources
	close   func()
}

func (x *runtimeConfig) Configure(ctx context.Context) (*runtime, error) {
	srcs, err := x.sources.Configure(ctx)
	if err != nil {
		return nil, err
	}
	if srcs.empty() {
		logging.Default().Warn("No source configured; set --sheet-url, --report-api-token or --workbook-path")
	}

	notifier, err := x.slack.Configure()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure slack alerts")
	}

	repo, err := x.repo.Configure(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize repository")
	}
	closers := []func(){func() { safe.Close(ctx, repo) }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	lock, lockCloser, err := x.runLock.Configure(ctx)
	if err != nil {
		closeAll()
		return nil, goerr.Wrap(err, "failed to configure run lock")
	}
	if lockCloser != nil {
		closers = append(closers, lockCloser)
	}

	var runOpts []usecase.ReconcilerOption
	if notifier != nil {
		runOpts = append(runOpts, usecase.WithNotifier(notifier))
		logging.Default().Info("Slack alerts enabled")
	}
	if lock != nil {
		runOpts = append(runOpts, usecase.WithRunLock(lock))
	}

	opts := append(srcs.useCaseOptions(), usecase.WithReconcilerOptions(runOpts...))
	return &runtime{
		uc:      usecase.New(repo, opts...),
		sources: srcs,
		close:   closeAll,
	}, nil
}

func cmdServe() *cli.Command {
	var addr string
	var rtCfg runtimeConfig

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("CASESYNC_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, rtCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the sync scheduler and HTTP API",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			rt, err := rtCfg.Configure(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			var runners []worker.Runner
			for _, r := range rt.uc.Reconcilers() {
				runners = append(runners, r)
			}
			scheduler := worker.NewScheduler(runners...)
			defer scheduler.StopAll()

			for source, interval := range rt.sources.intervals() {
				if err := scheduler.Start(ctx, source, interval); err != nil {
					return goerr.Wrap(err, "failed to schedule source", goerr.V("source", source))
				}
			}

			server := &http.Server{
				Addr: addr,
				Handler: httpctrl.New(
					httpctrl.WithScheduler(scheduler),
					httpctrl.WithRunHistory(rt.uc),
					httpctrl.WithCaseUseCase(rt.uc.Case),
				),
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				// Stop recurring triggers first; in-flight runs finish
				scheduler.StopAll()

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
