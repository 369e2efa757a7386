package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/domain/interfaces"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/domain/types"
)

// DefaultRunHistoryLimit caps ListRuns when no limit is given
const DefaultRunHistoryLimit = 50

type UseCases struct {
	repo        interfaces.Repository
	writer      interfaces.SheetWriter
	sources     []interfaces.CaseSource
	runOpts     []ReconcilerOption
	clock       func() time.Time
	reconcilers map[types.SourceType]*Reconciler

	Case *CaseUseCase
}

type Option func(*UseCases)

// WithSource registers a source to reconcile. A later source of the same
// type replaces an earlier one.
func WithSource(src interfaces.CaseSource) Option {
	return func(uc *UseCases) {
		uc.sources = append(uc.sources, src)
	}
}

// WithSheetWriter enables write-back of local edits
func WithSheetWriter(w interfaces.SheetWriter) Option {
	return func(uc *UseCases) {
		uc.writer = w
	}
}

// WithReconcilerOptions applies opts to every reconciler
func WithReconcilerOptions(opts ...ReconcilerOption) Option {
	return func(uc *UseCases) {
		uc.runOpts = append(uc.runOpts, opts...)
	}
}

// WithUseCaseClock sets the time source of the case use case and every reconciler
func WithUseCaseClock(clock func() time.Time) Option {
	return func(uc *UseCases) {
		uc.clock = clock
	}
}

func New(repo interfaces.Repository, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:        repo,
		clock:       time.Now,
		reconcilers: map[types.SourceType]*Reconciler{},
	}

	for _, opt := range opts {
		opt(uc)
	}

	runOpts := append([]ReconcilerOption{WithClock(uc.clock)}, uc.runOpts...)
	for _, src := range uc.sources {
		uc.reconcilers[src.Type()] = NewReconciler(src, repo, runOpts...)
	}
	uc.Case = NewCaseUseCase(repo, uc.writer, uc.clock)

	return uc
}

// Reconciler returns the reconciler of a configured source
func (uc *UseCases) Reconciler(source types.SourceType) (*Reconciler, error) {
	r, ok := uc.reconcilers[source]
	if !ok {
		return nil, goerr.Wrap(model.ErrSourceNotEnabled, "source is not configured", goerr.V(model.SourceKey, source))
	}
	return r, nil
}

// Reconcilers returns every configured reconciler in source type order
func (uc *UseCases) Reconcilers() []*Reconciler {
	var out []*Reconciler
	for _, st := range types.AllSourceTypes() {
		if r, ok := uc.reconcilers[st]; ok {
			out = append(out, r)
		}
	}
	return out
}

// ListRuns returns the run history, newest first
func (uc *UseCases) ListRuns(ctx context.Context, source types.SourceType, limit int) ([]*model.SyncRun, error) {
	if limit <= 0 {
		limit = DefaultRunHistoryLimit
	}
	runs, err := uc.repo.SyncRun().List(ctx, source, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list sync runs", goerr.V(model.SourceKey, source))
	}
	return runs, nil
}
