package worker

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/domain/types"
)

// MinInterval is the shortest accepted trigger interval
const MinInterval = time.Second

// Scheduler owns the recurring sync trigger of every configured source
type Scheduler struct {
	runners map[types.SourceType]Runner

	mu      sync.Mutex
	workers map[types.SourceType]*SyncWorker
}

// NewScheduler creates a Scheduler for runners. Nothing is scheduled until Start.
func NewScheduler(runners ...Runner) *Scheduler {
	s := &Scheduler{
		runners: make(map[types.SourceType]Runner, len(runners)),
		workers: map[types.SourceType]*SyncWorker{},
	}
	for _, r := range runners {
		s.runners[r.Source()] = r
	}
	return s
}

func (s *Scheduler) runner(source types.SourceType) (Runner, error) {
	r, ok := s.runners[source]
	if !ok {
		return nil, goerr.Wrap(model.ErrSourceNotEnabled, "source is not configured", goerr.V(model.SourceKey, source))
	}
	return r, nil
}

// Start schedules source every interval, replacing an existing schedule. The
// worker outlives ctx cancellation but keeps its values.
func (s *Scheduler) Start(ctx context.Context, source types.SourceType, interval time.Duration) error {
	r, err := s.runner(source)
	if err != nil {
		return err
	}
	if interval < MinInterval {
		return goerr.New("sync interval too short",
			goerr.V(model.SourceKey, source),
			goerr.V("interval", interval.String()),
			goerr.V("min", MinInterval.String()))
	}

	w := NewSyncWorker(r, interval)

	s.mu.Lock()
	prev, replaced := s.workers[source]
	s.workers[source] = w
	s.mu.Unlock()

	// an in-flight run of prev makes the first trigger of w a dropped one
	if replaced {
		prev.Stop()
	}
	w.Start(context.WithoutCancel(ctx))
	return nil
}

// Stop cancels the recurring trigger of source. It reports whether a
// schedule existed.
func (s *Scheduler) Stop(source types.SourceType) bool {
	s.mu.Lock()
	w, ok := s.workers[source]
	delete(s.workers, source)
	s.mu.Unlock()

	if ok {
		w.Stop()
	}
	return ok
}

// StopAll cancels every schedule
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	workers := s.workers
	s.workers = map[types.SourceType]*SyncWorker{}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *SyncWorker) {
			defer wg.Done()
			w.Stop()
		}(w)
	}
	wg.Wait()
}

// Trigger runs one manual sync of source under the same busy guard as the
// schedule. The run is detached from ctx cancellation: a caller that goes
// away does not abort a run in flight.
func (s *Scheduler) Trigger(ctx context.Context, source types.SourceType) (*model.SyncRun, error) {
	r, err := s.runner(source)
	if err != nil {
		return nil, err
	}
	return r.Run(context.WithoutCancel(ctx))
}

// Status reports every known source type, configured or not
func (s *Scheduler) Status() []model.SourceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.SourceStatus
	for _, st := range types.AllSourceTypes() {
		status := model.SourceStatus{Source: st}
		r, ok := s.runners[st]
		if !ok {
			out = append(out, status)
			continue
		}

		status.Configured = true
		status.Running = r.State() != types.RunStateIdle
		if w, ok := s.workers[st]; ok {
			status.Scheduled = true
			status.Interval = w.Interval()
		}
		if last := r.LastRun(); last != nil {
			at := last.FinishedAt
			status.LastRunAt = &at
			status.LastRun = last
		}
		out = append(out, status)
	}
	return out
}
