package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/domain/interfaces"
)

type Firestore struct {
	client   *firestore.Client
	caseRepo *caseRepository
	syncRun  *syncRunRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix namespaces every collection, e.g. "test" gives
// "test_cases"
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.caseRepo.collectionPrefix = prefix
		f.syncRun.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID))
	}

	f := &Firestore{
		client:   client,
		caseRepo: newCaseRepository(client),
		syncRun:  newSyncRunRepository(client),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Case() interfaces.CaseRepository {
	return f.caseRepo
}

func (f *Firestore) SyncRun() interfaces.SyncRunRepository {
	return f.syncRun
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func collectionName(prefix, name string) string {
	if prefix != "" {
		return prefix + "_" + name
	}
	return name
}
