package firestore

import (
	"context"
	"net/url"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/domain/interfaces"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	casesCollection = "cases"

	// getAllChunk bounds the document references passed to one GetAll
	getAllChunk = 100
)

type caseRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.CaseRepository = &caseRepository{}

func newCaseRepository(client *firestore.Client) *caseRepository {
	return &caseRepository{
		client: client,
	}
}

// caseDoc is the Firestore persistence model
type caseDoc struct {
	BusinessKey         string    `firestore:"business_key"`
	Category            string    `firestore:"category"`
	RefinedCategory     string    `firestore:"refined_category"`
	Location            string    `firestore:"location"`
	SubLocation         string    `firestore:"sub_location"`
	Description         string    `firestore:"description"`
	CreatedAt           time.Time `firestore:"created_at"`
	Status              string    `firestore:"status"`
	AssignedCluster     string    `firestore:"assigned_cluster"`
	AssignedOffice      string    `firestore:"assigned_office"`
	ExternalStatusLabel string    `firestore:"external_status_label"`
	ResponseMessage     *string   `firestore:"response_message"`
	ReporterName        string    `firestore:"reporter_name"`
	ReporterContact     string    `firestore:"reporter_contact"`
	MediaURLs           string    `firestore:"media_urls"`
	ExternalLink        string    `firestore:"external_link"`
	Source              string    `firestore:"source"`
	LastSyncedAt        time.Time `firestore:"last_synced_at"`
	UpdatedAt           time.Time `firestore:"updated_at"`
}

func toCaseDoc(c *model.Case) *caseDoc {
	return &caseDoc{
		BusinessKey:         c.BusinessKey,
		Category:            c.Category,
		RefinedCategory:     c.RefinedCategory,
		Location:            c.Location,
		SubLocation:         c.SubLocation,
		Description:         c.Description,
		CreatedAt:           c.CreatedAt,
		Status:              c.Status.String(),
		AssignedCluster:     c.AssignedCluster,
		AssignedOffice:      c.AssignedOffice,
		ExternalStatusLabel: c.ExternalStatusLabel,
		ResponseMessage:     c.ResponseMessage,
		ReporterName:        c.ReporterName,
		ReporterContact:     c.ReporterContact,
		MediaURLs:           c.MediaURLs,
		ExternalLink:        c.ExternalLink,
		Source:              c.Source.String(),
		LastSyncedAt:        c.LastSyncedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}

func (d *caseDoc) toModel() *model.Case {
	return &model.Case{
		BusinessKey:         d.BusinessKey,
		Category:            d.Category,
		RefinedCategory:     d.RefinedCategory,
		Location:            d.Location,
		SubLocation:         d.SubLocation,
		Description:         d.Description,
		CreatedAt:           d.CreatedAt,
		Status:              types.CaseStatus(d.Status).Normalize(),
		AssignedCluster:     d.AssignedCluster,
		AssignedOffice:      d.AssignedOffice,
		ExternalStatusLabel: d.ExternalStatusLabel,
		ResponseMessage:     d.ResponseMessage,
		ReporterName:        d.ReporterName,
		ReporterContact:     d.ReporterContact,
		MediaURLs:           d.MediaURLs,
		ExternalLink:        d.ExternalLink,
		Source:              types.SourceType(d.Source),
		LastSyncedAt:        d.LastSyncedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}

func (r *caseRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, casesCollection))
}

// docRef maps a business key to its document. Keys may contain '/', which
// Firestore treats as a path separator, so they are escaped.
func (r *caseRepository) docRef(businessKey string) *firestore.DocumentRef {
	return r.collection().Doc(url.PathEscape(businessKey))
}

func (r *caseRepository) Get(ctx context.Context, businessKey string) (*model.Case, error) {
	snap, err := r.docRef(businessKey).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrCaseNotFound, "case not found", goerr.V(model.BusinessKeyKey, businessKey))
		}
		return nil, goerr.Wrap(err, "failed to get case", goerr.V(model.BusinessKeyKey, businessKey))
	}

	var doc caseDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode case", goerr.V(model.BusinessKeyKey, businessKey))
	}
	return doc.toModel(), nil
}

func (r *caseRepository) List(ctx context.Context, opts ...interfaces.ListCaseOption) ([]*model.Case, error) {
	cfg := interfaces.BuildListCaseConfig(opts...)

	q := r.collection().Query
	if s := cfg.Status(); s != nil {
		q = q.Where("status", "==", s.String())
	}
	if s := cfg.Source(); s != nil {
		q = q.Where("source", "==", s.String())
	}
	q = q.OrderBy("created_at", firestore.Desc)
	if limit := cfg.Limit(); limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var cases []*model.Case
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate cases")
		}

		var doc caseDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode case", goerr.V("doc_id", snap.Ref.ID))
		}
		cases = append(cases, doc.toModel())
	}
	return cases, nil
}

func (r *caseRepository) Put(ctx context.Context, c *model.Case) error {
	if c == nil || c.BusinessKey == "" {
		return goerr.New("case with business key is required")
	}
	if _, err := r.docRef(c.BusinessKey).Set(ctx, toCaseDoc(c)); err != nil {
		return goerr.Wrap(err, "failed to put case", goerr.V(model.BusinessKeyKey, c.BusinessKey))
	}
	return nil
}

func (r *caseRepository) Delete(ctx context.Context, businessKey string) error {
	_, err := r.docRef(businessKey).Delete(ctx, firestore.Exists)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(model.ErrCaseNotFound, "case not found", goerr.V(model.BusinessKeyKey, businessKey))
		}
		return goerr.Wrap(err, "failed to delete case", goerr.V(model.BusinessKeyKey, businessKey))
	}
	return nil
}

func (r *caseRepository) RunSync(ctx context.Context, fn func(ctx context.Context, tx interfaces.CaseTransaction) error) error {
	err := r.client.RunTransaction(ctx, func(ctx context.Context, ftx *firestore.Transaction) error {
		return fn(ctx, &caseTransaction{repo: r, tx: ftx})
	})
	if err != nil {
		return goerr.Wrap(err, "sync transaction failed")
	}
	return nil
}

type caseTransaction struct {
	repo *caseRepository
	tx   *firestore.Transaction
}

func (t *caseTransaction) GetMany(ctx context.Context, keys []string) (map[string]*model.Case, error) {
	found := make(map[string]*model.Case, len(keys))

	for start := 0; start < len(keys); start += getAllChunk {
		end := min(start+getAllChunk, len(keys))
		refs := make([]*firestore.DocumentRef, 0, end-start)
		for _, key := range keys[start:end] {
			refs = append(refs, t.repo.docRef(key))
		}

		snaps, err := t.tx.GetAll(refs)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to get cases in transaction", goerr.V("count", len(refs)))
		}
		for _, snap := range snaps {
			if !snap.Exists() {
				continue
			}
			var doc caseDoc
			if err := snap.DataTo(&doc); err != nil {
				return nil, goerr.Wrap(err, "failed to decode case", goerr.V("doc_id", snap.Ref.ID))
			}
			found[doc.BusinessKey] = doc.toModel()
		}
	}
	return found, nil
}

func (t *caseTransaction) Put(c *model.Case) error {
	if c == nil || c.BusinessKey == "" {
		return goerr.New("case with business key is required")
	}
	if err := t.tx.Set(t.repo.docRef(c.BusinessKey), toCaseDoc(c)); err != nil {
		return goerr.Wrap(err, "failed to stage case", goerr.V(model.BusinessKeyKey, c.BusinessKey))
	}
	return nil
}
