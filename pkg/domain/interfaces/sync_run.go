package interfaces

import (
	"context"

	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/domain/types"
)

// SyncRunRepository keeps the history of reconciliation runs
type SyncRunRepository interface {
	Save(ctx context.Context, run *model.SyncRun) error

	// List returns runs of source (all sources when empty), newest first, at most limit
	List(ctx context.Context, source types.SourceType, limit int) ([]*model.SyncRun, error)
}
