package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/casesync/pkg/domain/interfaces"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/domain/types"
	"github.com/secmon-lab/casesync/pkg/repository/memory"
	"github.com/secmon-lab/casesync/pkg/usecase"
)

// mockSource serves a fixed batch. When gate is set, FetchBatch signals
// started and blocks until gate is closed.
type mockSource struct {
	mu      sync.Mutex
	batch   *model.RawBatch
	err     error
	calls   int
	started chan struct{}
	gate    chan struct{}
}

func (s *mockSource) Type() types.SourceType {
	return types.SourceTypeSheet
}

func (s *mockSource) FetchBatch(ctx context.Context) (*model.RawBatch, error) {
	s.mu.Lock()
	s.calls++
	batch, err, started, gate := s.batch, s.err, s.started, s.gate
	s.mu.Unlock()

	if started != nil {
		close(started)
	}
	if gate != nil {
		<-gate
	}
	return batch, err
}

func (s *mockSource) set(batch *model.RawBatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batch = batch
}

var sheetHeaders = []string{"Control No.", "Category", "Description", "Reported by", "Status"}

// newBatch builds a sheet batch from rows of values ordered as sheetHeaders
func newBatch(rows ...[]string) *model.RawBatch {
	batch := &model.RawBatch{
		Source:  types.SourceTypeSheet,
		Headers: sheetHeaders,
		Aliases: model.SheetColumnAliases,
	}
	for i, values := range rows {
		batch.Rows = append(batch.Rows, model.RawRow{
			Row:     i + 1,
			Locator: fmt.Sprintf("Main!A%d", i+2),
			Cells:   model.ZipRow(sheetHeaders, values),
		})
	}
	return batch
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *testClock {
	return &testClock{now: time.Date(2025, 10, 22, 9, 0, 0, 0, time.UTC)}
}

func TestReconciler_Idempotent(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	clock := newClock()
	src := &mockSource{batch: newBatch(
		[]string{"A-1", "Flooding", "Clogged drainage", "Juan", "open"},
		[]string{"A-2", "Garbage", "Uncollected", "Maria", "resolved"},
		[]string{"A-3", "", "", "", ""},
	)}
	r := usecase.NewReconciler(src, repo, usecase.WithClock(clock.Now))

	first, err := r.Run(ctx)
	gt.NoError(t, err).Required()
	gt.Number(t, first.Stats.Fetched).Equal(3)
	gt.Number(t, first.Stats.Created).Equal(3)
	gt.Number(t, first.Stats.Updated).Equal(0)

	before, err := repo.Case().List(ctx)
	gt.NoError(t, err).Required()

	clock.Advance(time.Hour)
	second, err := r.Run(ctx)
	gt.NoError(t, err).Required()
	gt.Number(t, second.Stats.Created).Equal(0)
	gt.Number(t, second.Stats.Updated).Equal(0)
	gt.Number(t, second.Stats.Unchanged).Equal(3)

	after, err := repo.Case().List(ctx)
	gt.NoError(t, err).Required()
	gt.Array(t, after).Length(len(before))
	for i := range before {
		gt.Bool(t, model.SameContent(before[i], after[i])).True()
		gt.Bool(t, after[i].UpdatedAt.Equal(before[i].UpdatedAt)).True()
		gt.Bool(t, after[i].LastSyncedAt.After(before[i].LastSyncedAt)).True()
	}
}

func TestReconciler_IdempotentWithPartialDates(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	clock := newClock()
	headers := []string{"Control No.", "Date Created"}
	src := &mockSource{batch: &model.RawBatch{
		Source:  types.SourceTypeSheet,
		Headers: headers,
		Aliases: model.SheetColumnAliases,
		Rows: []model.RawRow{
			{Row: 1, Cells: model.ZipRow(headers, []string{"P-1", "18/10/2025"})},
			{Row: 2, Cells: model.ZipRow(headers, []string{"P-2", "10:30 am"})},
		},
	}}
	r := usecase.NewReconciler(src, repo, usecase.WithClock(clock.Now))

	first, err := r.Run(ctx)
	gt.NoError(t, err).Required()
	gt.Number(t, first.Stats.Created).Equal(2)

	clock.Advance(10 * time.Second)
	second, err := r.Run(ctx)
	gt.NoError(t, err).Required()
	gt.Number(t, second.Stats.Updated).Equal(0)
	gt.Number(t, second.Stats.Unchanged).Equal(2)

	got, err := repo.Case().Get(ctx, "P-1")
	gt.NoError(t, err).Required()
	gt.Bool(t, got.CreatedAt.Equal(time.Date(2025, 10, 18, 0, 0, 0, 0, time.UTC))).True()
}

func TestReconciler_TwoRunScenario(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	clock := newClock()
	src := &mockSource{batch: newBatch(
		[]string{"A-1", "Flooding", "Clogged drainage", "Juan", "open"},
	)}
	r := usecase.NewReconciler(src, repo, usecase.WithClock(clock.Now))

	run1, err := r.Run(ctx)
	gt.NoError(t, err).Required()
	gt.Number(t, run1.Stats.Created).Equal(1)

	// run 2 drops the reporter column and changes the description
	src.set(&model.RawBatch{
		Source:  types.SourceTypeSheet,
		Headers: []string{"Control No.", "Description"},
		Aliases: model.SheetColumnAliases,
		Rows: []model.RawRow{{
			Row:   1,
			Cells: map[string]any{"Control No.": "A-1", "Description": "Drainage cleared, still flooding"},
		}},
	})
	clock.Advance(time.Hour)

	run2, err := r.Run(ctx)
	gt.NoError(t, err).Required()
	gt.Number(t, run2.Stats.Created).Equal(0)
	gt.Number(t, run2.Stats.Updated).Equal(1)

	got, err := repo.Case().Get(ctx, "A-1")
	gt.NoError(t, err).Required()
	gt.Value(t, got.BusinessKey).Equal("A-1")
	gt.Value(t, got.Description).Equal("Drainage cleared, still flooding")
	gt.Value(t, got.ReporterName).Equal("Juan")
	gt.Value(t, got.Category).Equal("Flooding")
	gt.Bool(t, got.UpdatedAt.Equal(clock.Now())).True()
}

func TestReconciler_RowErrorDoesNotAbort(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	var rows [][]string
	for i := 1; i <= 10; i++ {
		key := fmt.Sprintf("R-%d", i)
		if i == 3 {
			key = strings.Repeat("9", model.MaxBusinessKeyLength+10)
		}
		rows = append(rows, []string{key, "Flooding", "desc", "", ""})
	}
	r := usecase.NewReconciler(&mockSource{batch: newBatch(rows...)}, repo)

	run, err := r.Run(ctx)
	gt.NoError(t, err).Required()
	gt.Bool(t, run.Succeeded()).True()
	gt.Number(t, run.Stats.Fetched).Equal(10)
	gt.Number(t, run.Stats.Created).Equal(9)
	gt.Number(t, run.Stats.Errored).Equal(1)
	gt.Array(t, run.Stats.Errors).Length(1).Required()
	gt.Number(t, run.Stats.Errors[0].Row).Equal(3)
	gt.Value(t, run.Stats.Errors[0].Locator).Equal("Main!A4")

	cases, err := repo.Case().List(ctx)
	gt.NoError(t, err).Required()
	gt.Array(t, cases).Length(9)
}

func TestReconciler_SkipsRowsWithoutKey(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	r := usecase.NewReconciler(&mockSource{batch: newBatch(
		[]string{"K-1", "Flooding"},
		[]string{"", "Flooding", "no key"},
		[]string{"   "},
	)}, repo)

	run, err := r.Run(ctx)
	gt.NoError(t, err).Required()
	gt.Number(t, run.Stats.Created).Equal(1)
	gt.Number(t, run.Stats.Skipped).Equal(2)
	gt.Number(t, run.Stats.Errored).Equal(0)
}

func TestReconciler_DuplicateKeysLastRowWins(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	r := usecase.NewReconciler(&mockSource{batch: newBatch(
		[]string{"DUP-1", "Flooding", "first", "Juan", ""},
		[]string{"DUP-1", "", "second", "", "resolved"},
	)}, repo)

	run, err := r.Run(ctx)
	gt.NoError(t, err).Required()
	gt.Number(t, run.Stats.Created).Equal(1)
	gt.Number(t, run.Stats.Duplicates).Equal(1)

	got, err := repo.Case().Get(ctx, "DUP-1")
	gt.NoError(t, err).Required()
	gt.Value(t, got.Description).Equal("second")
	gt.Value(t, got.Status).Equal(types.CaseStatusResolved)
	// the second row had no category or reporter, so the first row's stand
	gt.Value(t, got.Category).Equal("Flooding")
	gt.Value(t, got.ReporterName).Equal("Juan")
}

func TestReconciler_FetchFailure(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	gt.NoError(t, repo.Case().Put(ctx, &model.Case{BusinessKey: "KEEP", Description: "untouched"})).Required()

	notified := make(chan *model.SyncRun, 1)
	src := &mockSource{err: model.ErrAuthentication}
	r := usecase.NewReconciler(src, repo, usecase.WithNotifier(notifierFunc(func(ctx context.Context, run *model.SyncRun) error {
		notified <- run
		return nil
	})))

	run, err := r.Run(ctx)
	gt.Value(t, err).NotNil()
	gt.Bool(t, errors.Is(err, model.ErrAuthentication)).True()
	gt.Value(t, run).NotNil().Required()
	gt.Value(t, run.Outcome).Equal(types.RunOutcomeFailed)
	gt.Value(t, run.FailureCategory).Equal(model.FailureAuthentication)
	gt.String(t, run.FailureReason).NotEqual("")

	got, err := repo.Case().Get(ctx, "KEEP")
	gt.NoError(t, err).Required()
	gt.Value(t, got.Description).Equal("untouched")

	select {
	case n := <-notified:
		gt.Value(t, n.ID).Equal(run.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("operator was not notified")
	}

	last := r.LastRun()
	gt.Value(t, last).NotNil().Required()
	gt.Value(t, last.ID).Equal(run.ID)
	gt.Value(t, r.State()).Equal(types.RunStateIdle)

	history, err := repo.SyncRun().List(ctx, types.SourceTypeSheet, 10)
	gt.NoError(t, err).Required()
	gt.Array(t, history).Length(1)
}

func TestReconciler_TransportFailureIsNotEscalated(t *testing.T) {
	notified := make(chan struct{}, 1)
	r := usecase.NewReconciler(&mockSource{err: model.ErrTransport}, memory.New(),
		usecase.WithNotifier(notifierFunc(func(ctx context.Context, run *model.SyncRun) error {
			notified <- struct{}{}
			return nil
		})))

	run, err := r.Run(context.Background())
	gt.Value(t, err).NotNil()
	gt.Value(t, run.FailureCategory).Equal(model.FailureTransport)

	select {
	case <-notified:
		t.Fatal("transport failures must not page an operator")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestReconciler_CommitFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	repo := &failingCommitRepo{Repository: inner, err: errors.New("commit refused")}
	r := usecase.NewReconciler(&mockSource{batch: newBatch(
		[]string{"C-1", "Flooding"},
		[]string{"C-2", "Flooding"},
	)}, repo)

	run, err := r.Run(ctx)
	gt.Value(t, err).NotNil()
	gt.Value(t, run.Outcome).Equal(types.RunOutcomeFailed)
	gt.Value(t, run.FailureCategory).Equal(model.FailureInternal)
	gt.String(t, run.FailureReason).Contains("commit refused")
	gt.Number(t, run.Stats.Fetched).Equal(2)
	gt.Number(t, run.Stats.Created).Equal(0)

	cases, err := inner.Case().List(ctx)
	gt.NoError(t, err).Required()
	gt.Array(t, cases).Length(0)
}

func TestReconciler_RetriedTransactionCountsOnce(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	repo := &retryingRepo{Repository: inner}
	r := usecase.NewReconciler(&mockSource{batch: newBatch(
		[]string{"T-1", "Flooding"},
		[]string{"T-2", "Flooding"},
		[]string{"", ""},
	)}, repo)

	run, err := r.Run(ctx)
	gt.NoError(t, err).Required()
	gt.Number(t, repo.attempts).Equal(2)
	gt.Number(t, run.Stats.Created).Equal(2)
	gt.Number(t, run.Stats.Skipped).Equal(1)
}

func TestReconciler_ConcurrentTriggerIsDropped(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	src := &mockSource{
		batch:   newBatch([]string{"C-1", "Flooding"}),
		started: make(chan struct{}),
		gate:    make(chan struct{}),
	}
	r := usecase.NewReconciler(src, repo)

	type result struct {
		run *model.SyncRun
		err error
	}
	done := make(chan result, 1)
	go func() {
		run, err := r.Run(ctx)
		done <- result{run, err}
	}()

	<-src.started
	gt.Value(t, r.State()).Equal(types.RunStateFetching)

	dropped, err := r.Run(ctx)
	gt.Value(t, dropped).Nil()
	gt.Bool(t, errors.Is(err, model.ErrAlreadyRunning)).True()

	close(src.gate)
	res := <-done
	gt.NoError(t, res.err).Required()
	gt.Number(t, res.run.Stats.Created).Equal(1)

	src.mu.Lock()
	gt.Number(t, src.calls).Equal(1)
	src.mu.Unlock()

	history, err := repo.SyncRun().List(ctx, "", 10)
	gt.NoError(t, err).Required()
	gt.Array(t, history).Length(1)
	gt.Value(t, r.State()).Equal(types.RunStateIdle)
}

func TestReconciler_RunLockHeldElsewhere(t *testing.T) {
	src := &mockSource{batch: newBatch([]string{"L-1"})}
	r := usecase.NewReconciler(src, memory.New(), usecase.WithRunLock(&mockLock{held: true}))

	_, err := r.Run(context.Background())
	gt.Bool(t, errors.Is(err, model.ErrAlreadyRunning)).True()
	gt.Number(t, src.calls).Equal(0)
	gt.Value(t, r.State()).Equal(types.RunStateIdle)
}

func TestReconciler_RunLockReleased(t *testing.T) {
	lock := &mockLock{}
	r := usecase.NewReconciler(&mockSource{batch: newBatch([]string{"L-1"})}, memory.New(), usecase.WithRunLock(lock))

	_, err := r.Run(context.Background())
	gt.NoError(t, err).Required()
	gt.Value(t, lock.names).Equal([]string{"sync:sheet"})
	gt.Number(t, lock.released).Equal(1)
}

func TestReconciler_RunLockUnavailable(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	src := &mockSource{batch: newBatch([]string{"L-1"})}
	r := usecase.NewReconciler(src, repo, usecase.WithRunLock(&mockLock{err: errors.New("dial tcp: connection refused")}))

	run, err := r.Run(ctx)
	gt.Value(t, err).NotNil()
	gt.Value(t, run).NotNil().Required()
	gt.Value(t, run.Outcome).Equal(types.RunOutcomeFailed)
	gt.Value(t, run.FailureCategory).Equal(model.FailureTransport)
	gt.Number(t, src.calls).Equal(0)

	gt.Value(t, r.LastRun()).NotNil().Required()
	gt.Value(t, r.LastRun().ID).Equal(run.ID)

	history, err := repo.SyncRun().List(ctx, types.SourceTypeSheet, 10)
	gt.NoError(t, err).Required()
	gt.Array(t, history).Length(1)
}

type notifierFunc func(ctx context.Context, run *model.SyncRun) error

func (f notifierFunc) NotifyRunFailure(ctx context.Context, run *model.SyncRun) error {
	return f(ctx, run)
}

type mockLock struct {
	err      error
	held     bool
	names    []string
	released int
}

func (l *mockLock) TryAcquire(ctx context.Context, name string) (func(), bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	l.names = append(l.names, name)
	return func() { l.released++ }, true, nil
}

// failingCommitRepo runs the unit of work and then refuses to commit it
type failingCommitRepo struct {
	interfaces.Repository
	err error
}

func (r *failingCommitRepo) Case() interfaces.CaseRepository {
	return &failingCommitCases{CaseRepository: r.Repository.Case(), err: r.err}
}

type failingCommitCases struct {
	interfaces.CaseRepository
	err error
}

func (c *failingCommitCases) RunSync(ctx context.Context, fn func(ctx context.Context, tx interfaces.CaseTransaction) error) error {
	return c.CaseRepository.RunSync(ctx, func(ctx context.Context, tx interfaces.CaseTransaction) error {
		if err := fn(ctx, tx); err != nil {
			return err
		}
		return c.err
	})
}

// retryingRepo makes the store run every unit of work twice, discarding the
// first attempt, the way Firestore does under contention
type retryingRepo struct {
	interfaces.Repository
	attempts int
}

func (r *retryingRepo) Case() interfaces.CaseRepository {
	return &retryingCases{CaseRepository: r.Repository.Case(), repo: r}
}

type retryingCases struct {
	interfaces.CaseRepository
	repo *retryingRepo
}

var errContention = errors.New("contention")

func (c *retryingCases) RunSync(ctx context.Context, fn func(ctx context.Context, tx interfaces.CaseTransaction) error) error {
	for {
		err := c.CaseRepository.RunSync(ctx, func(ctx context.Context, tx interfaces.CaseTransaction) error {
			c.repo.attempts++
			if err := fn(ctx, tx); err != nil {
				return err
			}
			if c.repo.attempts == 1 {
				return errContention
			}
			return nil
		})
		if errors.Is(err, errContention) {
			continue
		}
		return err
	}
}
