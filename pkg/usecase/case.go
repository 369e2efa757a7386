package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/domain/interfaces"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/domain/types"
	"github.com/secmon-lab/casesync/pkg/utils/logging"
)

// CaseEdit is a local edit of a stored case. Nil fields are left as they are.
type CaseEdit struct {
	Status              *types.CaseStatus `json:"status,omitempty"`
	AssignedCluster     *string           `json:"assigned_cluster,omitempty"`
	AssignedOffice      *string           `json:"assigned_office,omitempty"`
	ExternalStatusLabel *string           `json:"external_status_label,omitempty"`
	ResponseMessage     *string           `json:"response_message,omitempty"`
}

func (e CaseEdit) empty() bool {
	return e.Status == nil && e.AssignedCluster == nil && e.AssignedOffice == nil &&
		e.ExternalStatusLabel == nil && e.ResponseMessage == nil
}

// writeBackChange carries only the sheet-backed fields touched by the edit
func (e CaseEdit) writeBackChange(key string) (model.WriteBackChange, bool) {
	change := model.WriteBackChange{
		BusinessKey:         key,
		AssignedCluster:     e.AssignedCluster,
		AssignedOffice:      e.AssignedOffice,
		ExternalStatusLabel: e.ExternalStatusLabel,
		ResponseMessage:     e.ResponseMessage,
	}
	touched := e.AssignedCluster != nil || e.AssignedOffice != nil ||
		e.ExternalStatusLabel != nil || e.ResponseMessage != nil
	return change, touched
}

// WriteBackResult reports what happened to the sheet after a local edit
type WriteBackResult struct {
	Attempted bool                  `json:"attempted"`
	Succeeded bool                  `json:"succeeded"`
	Category  model.FailureCategory `json:"category,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// EditResult is the stored case after an edit plus the write-back outcome
type EditResult struct {
	Case      *model.Case     `json:"case"`
	WriteBack WriteBackResult `json:"write_back"`
}

type CaseUseCase struct {
	repo   interfaces.Repository
	writer interfaces.SheetWriter
	clock  func() time.Time
}

func NewCaseUseCase(repo interfaces.Repository, writer interfaces.SheetWriter, clock func() time.Time) *CaseUseCase {
	if clock == nil {
		clock = time.Now
	}
	return &CaseUseCase{
		repo:   repo,
		writer: writer,
		clock:  clock,
	}
}

func (uc *CaseUseCase) GetCase(ctx context.Context, businessKey string) (*model.Case, error) {
	c, err := uc.repo.Case().Get(ctx, businessKey)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get case", goerr.V(model.BusinessKeyKey, businessKey))
	}
	return c, nil
}

func (uc *CaseUseCase) ListCases(ctx context.Context, opts ...interfaces.ListCaseOption) ([]*model.Case, error) {
	cases, err := uc.repo.Case().List(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list cases")
	}
	return cases, nil
}

// EditCase applies edit to the stored case and then pushes the sheet-backed
// fields to the sheet. A write-back failure does not undo the stored edit; it
// is reported in the result.
func (uc *CaseUseCase) EditCase(ctx context.Context, businessKey string, edit CaseEdit) (*EditResult, error) {
	if edit.empty() {
		return nil, goerr.Wrap(ErrEmptyEdit, "no field to edit", goerr.V(model.BusinessKeyKey, businessKey))
	}
	if edit.Status != nil && !edit.Status.IsValid() {
		return nil, goerr.New("invalid case status",
			goerr.V(model.BusinessKeyKey, businessKey),
			goerr.V("status", edit.Status.String()))
	}

	var updated *model.Case
	err := uc.repo.Case().RunSync(ctx, func(ctx context.Context, tx interfaces.CaseTransaction) error {
		found, err := tx.GetMany(ctx, []string{businessKey})
		if err != nil {
			return goerr.Wrap(err, "failed to load case")
		}
		existing, ok := found[businessKey]
		if !ok {
			return goerr.Wrap(model.ErrCaseNotFound, "case not found")
		}

		c := applyEdit(existing, edit)
		if !model.SameContent(existing, c) {
			c.UpdatedAt = uc.clock()
		}
		if err := tx.Put(c); err != nil {
			return goerr.Wrap(err, "failed to stage case")
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to edit case", goerr.V(model.BusinessKeyKey, businessKey))
	}

	result := &EditResult{Case: updated}
	change, touched := edit.writeBackChange(businessKey)
	if uc.writer == nil || !touched {
		return result, nil
	}

	result.WriteBack.Attempted = true
	if err := uc.writer.Push(ctx, change); err != nil {
		result.WriteBack.Category = model.FailureCategoryOf(err)
		result.WriteBack.Error = err.Error()
		logging.From(ctx).Warn("Write-back failed, local edit kept",
			"business_key", businessKey,
			"category", result.WriteBack.Category,
			"error", err.Error())
		return result, nil
	}
	result.WriteBack.Succeeded = true
	return result, nil
}

// PushCase re-sends every whitelisted field of the stored case to the sheet,
// for when an earlier write-back failed
func (uc *CaseUseCase) PushCase(ctx context.Context, businessKey string) error {
	if uc.writer == nil {
		return goerr.Wrap(ErrNoWriteBack, "cannot push case", goerr.V(model.BusinessKeyKey, businessKey))
	}

	c, err := uc.repo.Case().Get(ctx, businessKey)
	if err != nil {
		return goerr.Wrap(err, "failed to get case", goerr.V(model.BusinessKeyKey, businessKey))
	}

	if err := uc.writer.Push(ctx, model.WriteBackChangeFromCase(c)); err != nil {
		return goerr.Wrap(err, "failed to push case", goerr.V(model.BusinessKeyKey, businessKey))
	}
	return nil
}

// CaseStats counts stored cases by canonical status and by the status label
// the external source shows. Every canonical status is present, zero or not.
type CaseStats struct {
	Total            int                      `json:"total"`
	ByStatus         map[types.CaseStatus]int `json:"by_status"`
	ByExternalStatus map[string]int           `json:"by_external_status"`
}

// Stats counts the cases matching opts. Cases without an external label are
// left out of ByExternalStatus.
func (uc *CaseUseCase) Stats(ctx context.Context, opts ...interfaces.ListCaseOption) (*CaseStats, error) {
	cases, err := uc.repo.Case().List(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list cases for stats")
	}

	stats := &CaseStats{
		Total:            len(cases),
		ByStatus:         make(map[types.CaseStatus]int, len(types.AllCaseStatuses())),
		ByExternalStatus: map[string]int{},
	}
	for _, st := range types.AllCaseStatuses() {
		stats.ByStatus[st] = 0
	}
	for _, c := range cases {
		stats.ByStatus[c.Status.Normalize()]++
		if c.ExternalStatusLabel != "" {
			stats.ByExternalStatus[c.ExternalStatusLabel]++
		}
	}
	return stats, nil
}

func applyEdit(existing *model.Case, edit CaseEdit) *model.Case {
	c := existing.Copy()
	if edit.Status != nil {
		c.Status = *edit.Status
	}
	if edit.AssignedCluster != nil {
		c.AssignedCluster = *edit.AssignedCluster
	}
	if edit.AssignedOffice != nil {
		c.AssignedOffice = *edit.AssignedOffice
	}
	if edit.ExternalStatusLabel != nil {
		c.ExternalStatusLabel = *edit.ExternalStatusLabel
	}
	if edit.ResponseMessage != nil {
		c.ResponseMessage = model.StringPtr(*edit.ResponseMessage)
	}
	return c
}
