package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/domain/interfaces"
	"github.com/secmon-lab/casesync/pkg/domain/model"
)

type caseRepository struct {
	mu    sync.RWMutex
	cases map[string]*model.Case
}

func newCaseRepository() *caseRepository {
	return &caseRepository{
		cases: make(map[string]*model.Case),
	}
}

func (r *caseRepository) Get(ctx context.Context, businessKey string) (*model.Case, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, exists := r.cases[businessKey]
	if !exists {
		return nil, goerr.Wrap(model.ErrCaseNotFound, "case not found", goerr.V(model.BusinessKeyKey, businessKey))
	}
	return c.Copy(), nil
}

func (r *caseRepository) List(ctx context.Context, opts ...interfaces.ListCaseOption) ([]*model.Case, error) {
	cfg := interfaces.BuildListCaseConfig(opts...)

	r.mu.RLock()
	defer r.mu.RUnlock()

	cases := make([]*model.Case, 0, len(r.cases))
	for _, c := range r.cases {
		if s := cfg.Status(); s != nil && c.Status != *s {
			continue
		}
		if s := cfg.Source(); s != nil && c.Source != *s {
			continue
		}
		cases = append(cases, c.Copy())
	}

	sort.Slice(cases, func(i, j int) bool {
		if !cases[i].CreatedAt.Equal(cases[j].CreatedAt) {
			return cases[i].CreatedAt.After(cases[j].CreatedAt)
		}
		return cases[i].BusinessKey < cases[j].BusinessKey
	})

	if limit := cfg.Limit(); limit > 0 && len(cases) > limit {
		cases = cases[:limit]
	}
	return cases, nil
}

func (r *caseRepository) Put(ctx context.Context, c *model.Case) error {
	if c == nil || c.BusinessKey == "" {
		return goerr.New("case with business key is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.cases[c.BusinessKey] = c.Copy()
	return nil
}

func (r *caseRepository) Delete(ctx context.Context, businessKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.cases[businessKey]; !exists {
		return goerr.Wrap(model.ErrCaseNotFound, "case not found", goerr.V(model.BusinessKeyKey, businessKey))
	}
	delete(r.cases, businessKey)
	return nil
}

// RunSync holds the write lock for the whole unit of work and applies the
// staged cases only when fn succeeds. fn must go through tx; calling back into
// the repository would deadlock.
func (r *caseRepository) RunSync(ctx context.Context, fn func(ctx context.Context, tx interfaces.CaseTransaction) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &caseTransaction{repo: r, staged: map[string]*model.Case{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return goerr.Wrap(err, "sync cancelled before commit")
	}

	for key, c := range tx.staged {
		r.cases[key] = c
	}
	return nil
}

// caseTransaction reads committed state only; staged writes are invisible
// until commit, matching the Firestore backend.
type caseTransaction struct {
	repo   *caseRepository
	staged map[string]*model.Case
	wrote  bool
}

func (tx *caseTransaction) GetMany(ctx context.Context, keys []string) (map[string]*model.Case, error) {
	if tx.wrote {
		return nil, goerr.New("read after write in sync transaction")
	}

	found := make(map[string]*model.Case, len(keys))
	for _, key := range keys {
		if c, ok := tx.repo.cases[key]; ok {
			found[key] = c.Copy()
		}
	}
	return found, nil
}

func (tx *caseTransaction) Put(c *model.Case) error {
	if c == nil || c.BusinessKey == "" {
		return goerr.New("case with business key is required")
	}
	tx.wrote = true
	tx.staged[c.BusinessKey] = c.Copy()
	return nil
}
