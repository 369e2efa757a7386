package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/domain/interfaces"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/domain/types"
	"google.golang.org/api/iterator"
)

const syncRunsCollection = "sync_runs"

type syncRunRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.SyncRunRepository = &syncRunRepository{}

func newSyncRunRepository(client *firestore.Client) *syncRunRepository {
	return &syncRunRepository{
		client: client,
	}
}

type rowErrorDoc struct {
	Row         int    `firestore:"row"`
	Locator     string `firestore:"locator"`
	BusinessKey string `firestore:"business_key"`
	Message     string `firestore:"message"`
}

type runStatsDoc struct {
	Fetched    int           `firestore:"fetched"`
	Created    int           `firestore:"created"`
	Updated    int           `firestore:"updated"`
	Unchanged  int           `firestore:"unchanged"`
	Skipped    int           `firestore:"skipped"`
	Duplicates int           `firestore:"duplicates"`
	Errored    int           `firestore:"errored"`
	Errors     []rowErrorDoc `firestore:"errors"`
}

// syncRunDoc is the Firestore persistence model
type syncRunDoc struct {
	ID              string      `firestore:"id"`
	Source          string      `firestore:"source"`
	StartedAt       time.Time   `firestore:"started_at"`
	FinishedAt      time.Time   `firestore:"finished_at"`
	Outcome         string      `firestore:"outcome"`
	FailureCategory string      `firestore:"failure_category"`
	FailureReason   string      `firestore:"failure_reason"`
	Stats           runStatsDoc `firestore:"stats"`
}

func toSyncRunDoc(run *model.SyncRun) *syncRunDoc {
	doc := &syncRunDoc{
		ID:              string(run.ID),
		Source:          run.Source.String(),
		StartedAt:       run.StartedAt,
		FinishedAt:      run.FinishedAt,
		Outcome:         string(run.Outcome),
		FailureCategory: string(run.FailureCategory),
		FailureReason:   run.FailureReason,
		Stats: runStatsDoc{
			Fetched:    run.Stats.Fetched,
			Created:    run.Stats.Created,
			Updated:    run.Stats.Updated,
			Unchanged:  run.Stats.Unchanged,
			Skipped:    run.Stats.Skipped,
			Duplicates: run.Stats.Duplicates,
			Errored:    run.Stats.Errored,
		},
	}
	for _, e := range run.Stats.Errors {
		doc.Stats.Errors = append(doc.Stats.Errors, rowErrorDoc(e))
	}
	return doc
}

func (d *syncRunDoc) toModel() *model.SyncRun {
	run := &model.SyncRun{
		ID:              model.SyncRunID(d.ID),
		Source:          types.SourceType(d.Source),
		StartedAt:       d.StartedAt,
		FinishedAt:      d.FinishedAt,
		Outcome:         types.RunOutcome(d.Outcome),
		FailureCategory: model.FailureCategory(d.FailureCategory),
		FailureReason:   d.FailureReason,
		Stats: model.RunStats{
			Fetched:    d.Stats.Fetched,
			Created:    d.Stats.Created,
			Updated:    d.Stats.Updated,
			Unchanged:  d.Stats.Unchanged,
			Skipped:    d.Stats.Skipped,
			Duplicates: d.Stats.Duplicates,
			Errored:    d.Stats.Errored,
		},
	}
	for _, e := range d.Stats.Errors {
		run.Stats.Errors = append(run.Stats.Errors, model.RowError(e))
	}
	return run
}

func (r *syncRunRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, syncRunsCollection))
}

func (r *syncRunRepository) Save(ctx context.Context, run *model.SyncRun) error {
	if run == nil || run.ID == "" {
		return goerr.New("sync run with ID is required")
	}
	if _, err := r.collection().Doc(string(run.ID)).Set(ctx, toSyncRunDoc(run)); err != nil {
		return goerr.Wrap(err, "failed to save sync run", goerr.V("run_id", run.ID))
	}
	return nil
}

func (r *syncRunRepository) List(ctx context.Context, source types.SourceType, limit int) ([]*model.SyncRun, error) {
	q := r.collection().Query
	if source != "" {
		q = q.Where("source", "==", source.String())
	}
	q = q.OrderBy("started_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var runs []*model.SyncRun
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate sync runs")
		}

		var doc syncRunDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode sync run", goerr.V("doc_id", snap.Ref.ID))
		}
		runs = append(runs, doc.toModel())
	}
	return runs, nil
}
