package worker

import (
	"context"
	"errors"
	"time"

	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/domain/types"
	"github.com/secmon-lab/casesync/pkg/utils/logging"
)

// Runner performs one reconciliation of a single source
type Runner interface {
	Source() types.SourceType
	Run(ctx context.Context) (*model.SyncRun, error)
	State() types.RunState
	LastRun() *model.SyncRun
}

// SyncWorker triggers a Runner on a fixed interval.
//
// Architecture assumptions:
// - One worker per source per process
// - Cross-process exclusion, when needed, is the Runner's job (see runlock)
type SyncWorker struct {
	runner   Runner
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewSyncWorker creates a worker for runner
func NewSyncWorker(runner Runner, interval time.Duration) *SyncWorker {
	return &SyncWorker{
		runner:   runner,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Interval returns the trigger interval
func (w *SyncWorker) Interval() time.Duration {
	return w.interval
}

// Start begins the trigger loop in the background. The first trigger fires
// immediately.
func (w *SyncWorker) Start(ctx context.Context) {
	logging.From(ctx).Info("Sync worker starting",
		"source", w.runner.Source(),
		"interval", w.interval.String())

	go w.run(ctx)
}

// Stop ends the trigger loop. An in-flight run is allowed to finish.
func (w *SyncWorker) Stop() {
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("Sync worker stopped", "source", w.runner.Source())
}

func (w *SyncWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	select {
	case <-w.stopCh:
		return
	default:
	}
	w.trigger(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.trigger(ctx)

		case <-w.stopCh:
			return

		case <-ctx.Done():
			logging.From(ctx).Info("Sync worker context cancelled", "source", w.runner.Source())
			return
		}
	}
}

// trigger runs one sync. Failures are already logged and recorded by the
// runner, and transport failures wait for the next tick.
func (w *SyncWorker) trigger(ctx context.Context) {
	if _, err := w.runner.Run(ctx); err != nil {
		if errors.Is(err, model.ErrAlreadyRunning) {
			logging.From(ctx).Info("Scheduled sync skipped, previous run still active",
				"source", w.runner.Source())
			return
		}
		logging.From(ctx).Debug("Scheduled sync failed, will retry next interval",
			"source", w.runner.Source(),
			"error", err.Error())
	}
}
