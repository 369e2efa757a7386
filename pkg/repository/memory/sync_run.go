package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/domain/types"
)

type syncRunRepository struct {
	mu   sync.RWMutex
	runs map[model.SyncRunID]*model.SyncRun
}

func newSyncRunRepository() *syncRunRepository {
	return &syncRunRepository{
		runs: make(map[model.SyncRunID]*model.SyncRun),
	}
}

func (r *syncRunRepository) Save(ctx context.Context, run *model.SyncRun) error {
	if run == nil || run.ID == "" {
		return goerr.New("sync run with ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs[run.ID] = run.Copy()
	return nil
}

func (r *syncRunRepository) List(ctx context.Context, source types.SourceType, limit int) ([]*model.SyncRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]*model.SyncRun, 0, len(r.runs))
	for _, run := range r.runs {
		if source != "" && run.Source != source {
			continue
		}
		runs = append(runs, run.Copy())
	}

	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].ID > runs[j].ID
	})

	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
