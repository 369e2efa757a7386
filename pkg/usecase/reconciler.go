package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/domain/interfaces"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/domain/types"
	"github.com/secmon-lab/casesync/pkg/utils/async"
	"github.com/secmon-lab/casesync/pkg/utils/errutil"
	"github.com/secmon-lab/casesync/pkg/utils/logging"
)

// Reconciler pulls one source into the case store. At most one run per
// Reconciler is in flight; a trigger while busy is dropped with
// model.ErrAlreadyRunning.
type Reconciler struct {
	source   interfaces.CaseSource
	repo     interfaces.Repository
	mapper   *Mapper
	lock     interfaces.RunLock
	notifier Notifier
	clock    func() time.Time

	state atomic.Int32

	mu      sync.RWMutex
	lastRun *model.SyncRun
}

// ReconcilerOption configures a Reconciler
type ReconcilerOption func(*Reconciler)

// WithMapper replaces the default mapper
func WithMapper(m *Mapper) ReconcilerOption {
	return func(r *Reconciler) {
		r.mapper = m
	}
}

// WithRunLock extends the busy guard across processes
func WithRunLock(lock interfaces.RunLock) ReconcilerOption {
	return func(r *Reconciler) {
		r.lock = lock
	}
}

// WithNotifier sets where failures needing an operator are reported
func WithNotifier(n Notifier) ReconcilerOption {
	return func(r *Reconciler) {
		r.notifier = n
	}
}

// WithClock sets the time source
func WithClock(clock func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		r.clock = clock
	}
}

// NewReconciler creates a Reconciler for one source
func NewReconciler(source interfaces.CaseSource, repo interfaces.Repository, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		source: source,
		repo:   repo,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.mapper == nil {
		r.mapper = NewMapper()
	}
	return r
}

// Source returns the type of the reconciled source
func (r *Reconciler) Source() types.SourceType {
	return r.source.Type()
}

// State returns the current run phase
func (r *Reconciler) State() types.RunState {
	return types.RunState(r.state.Load())
}

// LastRun returns a copy of the last finished run, or nil
func (r *Reconciler) LastRun() *model.SyncRun {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastRun.Copy()
}

// Run performs one reconciliation. The returned run is always non-nil unless
// the trigger was dropped. A non-nil error means the run failed and nothing
// was committed.
func (r *Reconciler) Run(ctx context.Context) (*model.SyncRun, error) {
	src := r.source.Type()
	if !r.state.CompareAndSwap(int32(types.RunStateIdle), int32(types.RunStateFetching)) {
		return nil, goerr.Wrap(model.ErrAlreadyRunning, "sync trigger dropped",
			goerr.V(model.SourceKey, src),
			goerr.V("state", r.State().String()))
	}
	defer r.state.Store(int32(types.RunStateIdle))

	run := &model.SyncRun{
		ID:        model.NewSyncRunID(),
		Source:    src,
		StartedAt: r.clock(),
	}
	logger := logging.From(ctx).With("source", src, "run_id", run.ID)
	ctx = logging.With(ctx, logger)

	var err error
	if r.lock != nil {
		release, ok, lockErr := r.lock.TryAcquire(ctx, "sync:"+src.String())
		switch {
		case lockErr != nil:
			// recorded as a failed run so the status reflects the outage
			err = goerr.Wrap(errors.Join(model.ErrTransport, lockErr), "failed to acquire run lock",
				goerr.V(model.SourceKey, src))
		case !ok:
			return nil, goerr.Wrap(model.ErrAlreadyRunning, "sync running on another instance",
				goerr.V(model.SourceKey, src))
		default:
			defer release()
		}
	}

	if err == nil {
		logger.Info("Sync run started")
		err = r.reconcile(ctx, run)
	}
	run.FinishedAt = r.clock()
	if err != nil {
		run.Outcome = types.RunOutcomeFailed
		run.FailureCategory = model.FailureCategoryOf(err)
		run.FailureReason = err.Error()
	} else {
		run.Outcome = types.RunOutcomeSucceeded
	}

	r.mu.Lock()
	r.lastRun = run.Copy()
	r.mu.Unlock()

	if saveErr := r.repo.SyncRun().Save(ctx, run.Copy()); saveErr != nil {
		_ = errutil.Handle(ctx, goerr.Wrap(saveErr, "failed to save sync run", goerr.V(RunIDKey, run.ID)), "run history not recorded")
	}

	if err != nil {
		_ = errutil.Handle(ctx, err, "Sync run failed")
		if run.FailureCategory.NeedsOperator() && r.notifier != nil {
			failed := run.Copy()
			async.Dispatch(ctx, "notify-run-failure", func(ctx context.Context) error {
				return r.notifier.NotifyRunFailure(ctx, failed)
			})
		}
		return run, err
	}

	logger.Info("Sync run finished",
		"fetched", run.Stats.Fetched,
		"created", run.Stats.Created,
		"updated", run.Stats.Updated,
		"unchanged", run.Stats.Unchanged,
		"skipped", run.Stats.Skipped,
		"duplicates", run.Stats.Duplicates,
		"errored", run.Stats.Errored,
		"duration", run.FinishedAt.Sub(run.StartedAt).String())
	return run, nil
}

func (r *Reconciler) reconcile(ctx context.Context, run *model.SyncRun) error {
	batch, err := r.source.FetchBatch(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to fetch batch", goerr.V(model.SourceKey, run.Source))
	}
	r.state.Store(int32(types.RunStateMappingAndUpserting))

	cols := model.ResolveColumns(batch.Aliases, batch.Headers)
	if _, ok := cols.Header(types.CaseFieldBusinessKey); !ok {
		logging.From(ctx).Warn("No business key column in batch, every row will be skipped",
			"headers", batch.Headers)
	}

	mapped := r.mapBatch(ctx, batch, cols, run.StartedAt)
	syncedAt := r.clock()

	var stats model.RunStats
	err = r.repo.Case().RunSync(ctx, func(ctx context.Context, tx interfaces.CaseTransaction) error {
		s, err := upsert(ctx, tx, mapped, syncedAt)
		if err != nil {
			return err
		}
		stats = s
		return nil
	})
	if err != nil {
		run.Stats = mapped.stats
		return goerr.Wrap(err, "failed to commit sync", goerr.V(model.SourceKey, run.Source))
	}

	run.Stats = stats
	return nil
}

// mappedBatch is the outcome of mapping every row, computed once outside the
// store transaction
type mappedBatch struct {
	records []*model.CaseRecord
	// keys holds each business key once, in first-seen order
	keys []string
	// last is the index in records of the final row for each key
	last  map[string]int
	stats model.RunStats
}

func (r *Reconciler) mapBatch(ctx context.Context, batch *model.RawBatch, cols model.ColumnMap, ingestedAt time.Time) *mappedBatch {
	logger := logging.From(ctx)
	out := &mappedBatch{last: map[string]int{}}
	out.stats.Fetched = len(batch.Rows)

	for _, row := range batch.Rows {
		rec, err := r.mapRow(row, cols, batch.Source, ingestedAt)
		if err != nil {
			out.stats.AddError(model.RowError{
				Row:         row.Row,
				Locator:     row.Locator,
				BusinessKey: rawKey(row, cols),
				Message:     err.Error(),
			})
			logger.Warn("Row rejected", "row", row.Row, "locator", row.Locator, "error", err.Error())
			continue
		}
		if rec == nil {
			out.stats.Skipped++
			continue
		}

		key := rec.Values.BusinessKey
		if prev, ok := out.last[key]; ok {
			out.stats.Duplicates++
			logger.Warn("Duplicate business key in batch, later row wins",
				"business_key", key,
				"row", row.Row,
				"previous_row", out.records[prev].Row)
		} else {
			out.keys = append(out.keys, key)
		}
		out.last[key] = len(out.records)
		out.records = append(out.records, rec)
	}
	return out
}

func (r *Reconciler) mapRow(row model.RawRow, cols model.ColumnMap, source types.SourceType, ingestedAt time.Time) (rec *model.CaseRecord, err error) {
	defer func() {
		if p := recover(); p != nil {
			rec = nil
			err = goerr.Wrap(model.ErrMapping, "panic while mapping row",
				goerr.V(RowKey, row.Row),
				goerr.V("panic", fmt.Sprint(p)))
		}
	}()
	return r.mapper.Map(row, cols, source, ingestedAt)
}

// upsert applies mapped records to the store. It starts from the mapping
// stats on every call because the store may retry it.
func upsert(ctx context.Context, tx interfaces.CaseTransaction, mapped *mappedBatch, now time.Time) (model.RunStats, error) {
	stats := mapped.stats
	stats.Errors = append([]model.RowError(nil), mapped.stats.Errors...)

	if len(mapped.keys) == 0 {
		return stats, nil
	}

	stored, err := tx.GetMany(ctx, mapped.keys)
	if err != nil {
		return stats, goerr.Wrap(err, "failed to load existing cases", goerr.V("count", len(mapped.keys)))
	}

	working := make(map[string]*model.Case, len(mapped.keys))
	for i, rec := range mapped.records {
		key := rec.Values.BusinessKey
		cur, ok := working[key]
		if !ok {
			cur = stored[key]
		}
		if cur == nil {
			working[key] = model.NewCaseFromRecord(rec, now)
		} else {
			working[key], _ = model.MergeCase(cur, rec, now)
		}

		if mapped.last[key] != i {
			continue
		}

		final := working[key]
		original := stored[key]
		counter := &stats.Created
		switch {
		case original == nil:
		case model.SameContent(original, final):
			final.UpdatedAt = original.UpdatedAt
			counter = &stats.Unchanged
		default:
			final.UpdatedAt = now
			counter = &stats.Updated
		}

		if err := tx.Put(final); err != nil {
			stats.AddError(model.RowError{
				Row:         rec.Row,
				Locator:     rec.Locator,
				BusinessKey: key,
				Message:     err.Error(),
			})
			continue
		}
		*counter++
	}
	return stats, nil
}

// rawKey returns the business key cell as text for error reports
func rawKey(row model.RawRow, cols model.ColumnMap) string {
	header, ok := cols.Header(types.CaseFieldBusinessKey)
	if !ok {
		return ""
	}
	switch v := row.Cells[header].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
