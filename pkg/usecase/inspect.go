package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/domain/types"
)

// Inspection is a dry run of one source: what the columns resolve to and how
// the rows would map. Nothing is written.
type Inspection struct {
	Source  types.SourceType
	Headers []string
	Columns model.ColumnMap
	// Missing lists canonical fields no header resolved to
	Missing []types.CaseField
	// Mappable counts distinct business keys that would be upserted
	Mappable int
	Stats    model.RunStats
}

// Inspect fetches a batch and maps it without touching the store or the busy
// guard
func (r *Reconciler) Inspect(ctx context.Context) (*Inspection, error) {
	src := r.source.Type()
	batch, err := r.source.FetchBatch(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch batch", goerr.V(model.SourceKey, src))
	}

	cols := model.ResolveColumns(batch.Aliases, batch.Headers)
	out := &Inspection{
		Source:  src,
		Headers: batch.Headers,
		Columns: cols,
	}
	for _, f := range types.AllCaseFields() {
		if _, ok := cols.Header(f); !ok {
			out.Missing = append(out.Missing, f)
		}
	}

	mapped := r.mapBatch(ctx, batch, cols, r.clock())
	out.Mappable = len(mapped.keys)
	out.Stats = mapped.stats
	return out, nil
}
