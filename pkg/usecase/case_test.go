package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/casesync/pkg/domain/interfaces"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/domain/types"
	"github.com/secmon-lab/casesync/pkg/repository/memory"
	"github.com/secmon-lab/casesync/pkg/usecase"
)

type mockWriter struct {
	changes []model.WriteBackChange
	err     error
}

func (w *mockWriter) Push(ctx context.Context, change model.WriteBackChange) error {
	w.changes = append(w.changes, change)
	return w.err
}

var caseCreatedAt = time.Date(2025, 10, 20, 8, 0, 0, 0, time.UTC)

func seedCase(t *testing.T, repo interfaces.Repository, key string) *model.Case {
	t.Helper()
	c := &model.Case{
		BusinessKey:  key,
		Category:     "Flooding",
		Location:     "Panganiban Dr.",
		SubLocation:  "Dinaga",
		Description:  "Clogged drainage",
		CreatedAt:    caseCreatedAt,
		Status:       types.CaseStatusOpen,
		ReporterName: "Juan",
		Source:       types.SourceTypeSheet,
		LastSyncedAt: caseCreatedAt,
		UpdatedAt:    caseCreatedAt,
	}
	gt.NoError(t, repo.Case().Put(context.Background(), c)).Required()
	return c
}

func TestCaseUseCase_EditCase(t *testing.T) {
	now := time.Date(2025, 10, 22, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("stores the edit and writes back sheet fields", func(t *testing.T) {
		ctx := context.Background()
		repo := memory.New()
		seedCase(t, repo, "A-1")
		writer := &mockWriter{}
		uc := usecase.NewCaseUseCase(repo, writer, clock)

		resolved := types.CaseStatusResolved
		result, err := uc.EditCase(ctx, "A-1", usecase.CaseEdit{
			Status:          &resolved,
			AssignedOffice:  model.StringPtr("CEO"),
			ResponseMessage: model.StringPtr("Drainage cleared"),
		})
		gt.NoError(t, err).Required()
		gt.Value(t, result.Case.Status).Equal(types.CaseStatusResolved)
		gt.Bool(t, result.WriteBack.Attempted).True()
		gt.Bool(t, result.WriteBack.Succeeded).True()

		stored, err := repo.Case().Get(ctx, "A-1")
		gt.NoError(t, err).Required()
		gt.Value(t, stored.AssignedOffice).Equal("CEO")
		gt.Value(t, *stored.ResponseMessage).Equal("Drainage cleared")
		gt.Value(t, stored.Description).Equal("Clogged drainage")
		gt.Bool(t, stored.UpdatedAt.Equal(now)).True()

		gt.Array(t, writer.changes).Length(1).Required()
		change := writer.changes[0]
		gt.Value(t, change.BusinessKey).Equal("A-1")
		gt.Value(t, *change.AssignedOffice).Equal("CEO")
		gt.Value(t, change.AssignedCluster).Nil()
		gt.Value(t, change.ExternalStatusLabel).Nil()
	})

	t.Run("status only edit is not written back", func(t *testing.T) {
		repo := memory.New()
		seedCase(t, repo, "A-1")
		writer := &mockWriter{}
		uc := usecase.NewCaseUseCase(repo, writer, clock)

		rerouting := types.CaseStatusForRerouting
		result, err := uc.EditCase(context.Background(), "A-1", usecase.CaseEdit{Status: &rerouting})
		gt.NoError(t, err).Required()
		gt.Bool(t, result.WriteBack.Attempted).False()
		gt.Array(t, writer.changes).Length(0)
	})

	t.Run("write-back failure keeps the local edit", func(t *testing.T) {
		ctx := context.Background()
		repo := memory.New()
		seedCase(t, repo, "A-1")
		writer := &mockWriter{err: model.ErrWriteBackMismatch}
		uc := usecase.NewCaseUseCase(repo, writer, clock)

		result, err := uc.EditCase(ctx, "A-1", usecase.CaseEdit{AssignedCluster: model.StringPtr("Cluster 2")})
		gt.NoError(t, err).Required()
		gt.Bool(t, result.WriteBack.Attempted).True()
		gt.Bool(t, result.WriteBack.Succeeded).False()
		gt.Value(t, result.WriteBack.Category).Equal(model.FailureWriteBackMismatch)
		gt.String(t, result.WriteBack.Error).NotEqual("")

		stored, err := repo.Case().Get(ctx, "A-1")
		gt.NoError(t, err).Required()
		gt.Value(t, stored.AssignedCluster).Equal("Cluster 2")
	})

	t.Run("no writer configured", func(t *testing.T) {
		repo := memory.New()
		seedCase(t, repo, "A-1")
		uc := usecase.NewCaseUseCase(repo, nil, clock)

		result, err := uc.EditCase(context.Background(), "A-1", usecase.CaseEdit{AssignedOffice: model.StringPtr("CEO")})
		gt.NoError(t, err).Required()
		gt.Bool(t, result.WriteBack.Attempted).False()
	})

	t.Run("unchanged edit keeps updated_at", func(t *testing.T) {
		ctx := context.Background()
		repo := memory.New()
		seeded := seedCase(t, repo, "A-1")
		uc := usecase.NewCaseUseCase(repo, nil, clock)

		open := types.CaseStatusOpen
		result, err := uc.EditCase(ctx, "A-1", usecase.CaseEdit{Status: &open})
		gt.NoError(t, err).Required()
		gt.Bool(t, result.Case.UpdatedAt.Equal(seeded.UpdatedAt)).True()
	})

	t.Run("missing case", func(t *testing.T) {
		writer := &mockWriter{}
		uc := usecase.NewCaseUseCase(memory.New(), writer, clock)

		_, err := uc.EditCase(context.Background(), "GHOST", usecase.CaseEdit{AssignedOffice: model.StringPtr("CEO")})
		gt.Value(t, err).NotNil()
		gt.Bool(t, errors.Is(err, model.ErrCaseNotFound)).True()
		gt.Array(t, writer.changes).Length(0)
	})

	t.Run("empty edit", func(t *testing.T) {
		repo := memory.New()
		seedCase(t, repo, "A-1")
		uc := usecase.NewCaseUseCase(repo, nil, clock)

		_, err := uc.EditCase(context.Background(), "A-1", usecase.CaseEdit{})
		gt.Bool(t, errors.Is(err, usecase.ErrEmptyEdit)).True()
	})

	t.Run("invalid status", func(t *testing.T) {
		repo := memory.New()
		seedCase(t, repo, "A-1")
		uc := usecase.NewCaseUseCase(repo, nil, clock)

		bogus := types.CaseStatus("closed-ish")
		_, err := uc.EditCase(context.Background(), "A-1", usecase.CaseEdit{Status: &bogus})
		gt.Value(t, err).NotNil()
	})
}

func TestCaseUseCase_PushCase(t *testing.T) {
	ctx := context.Background()

	t.Run("pushes every sheet field", func(t *testing.T) {
		repo := memory.New()
		c := seedCase(t, repo, "A-1")
		c.AssignedCluster = "Cluster 1"
		c.ResponseMessage = model.StringPtr("Received")
		gt.NoError(t, repo.Case().Put(ctx, c)).Required()

		writer := &mockWriter{}
		uc := usecase.NewCaseUseCase(repo, writer, nil)
		gt.NoError(t, uc.PushCase(ctx, "A-1")).Required()

		gt.Array(t, writer.changes).Length(1).Required()
		change := writer.changes[0]
		gt.Value(t, *change.AssignedCluster).Equal("Cluster 1")
		gt.Value(t, *change.AssignedOffice).Equal("")
		gt.Value(t, *change.ResponseMessage).Equal("Received")
	})

	t.Run("without writer", func(t *testing.T) {
		repo := memory.New()
		seedCase(t, repo, "A-1")
		uc := usecase.NewCaseUseCase(repo, nil, nil)
		gt.Bool(t, errors.Is(uc.PushCase(ctx, "A-1"), usecase.ErrNoWriteBack)).True()
	})
}

func TestCaseUseCase_ListCases(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	seedCase(t, repo, "A-1")
	c := seedCase(t, repo, "A-2")
	c.Status = types.CaseStatusResolved
	gt.NoError(t, repo.Case().Put(ctx, c)).Required()

	uc := usecase.NewCaseUseCase(repo, nil, nil)
	all, err := uc.ListCases(ctx)
	gt.NoError(t, err).Required()
	gt.Array(t, all).Length(2)

	resolved, err := uc.ListCases(ctx, interfaces.WithStatus(types.CaseStatusResolved))
	gt.NoError(t, err).Required()
	gt.Array(t, resolved).Length(1).Required()
	gt.Value(t, resolved[0].BusinessKey).Equal("A-2")

	_, err = uc.GetCase(ctx, "GHOST")
	gt.Bool(t, errors.Is(err, model.ErrCaseNotFound)).True()
}

func TestCaseUseCase_Stats(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	uc := usecase.NewCaseUseCase(repo, nil, nil)

	t.Run("empty store reports every status", func(t *testing.T) {
		stats, err := uc.Stats(ctx)
		gt.NoError(t, err).Required()
		gt.Number(t, stats.Total).Equal(0)
		gt.Number(t, len(stats.ByStatus)).Equal(len(types.AllCaseStatuses()))
		gt.Number(t, stats.ByStatus[types.CaseStatusOpen]).Equal(0)
		gt.Number(t, len(stats.ByExternalStatus)).Equal(0)
	})

	a1 := seedCase(t, repo, "A-1")
	a1.ExternalStatusLabel = "Under Review"
	gt.NoError(t, repo.Case().Put(ctx, a1)).Required()
	a2 := seedCase(t, repo, "A-2")
	a2.Status = types.CaseStatusResolved
	a2.ExternalStatusLabel = "Resolved"
	gt.NoError(t, repo.Case().Put(ctx, a2)).Required()
	a3 := seedCase(t, repo, "A-3")
	a3.ExternalStatusLabel = "Under Review"
	a3.Source = types.SourceTypeReportAPI
	gt.NoError(t, repo.Case().Put(ctx, a3)).Required()
	seedCase(t, repo, "A-4")

	t.Run("counts by status and label", func(t *testing.T) {
		stats, err := uc.Stats(ctx)
		gt.NoError(t, err).Required()
		gt.Number(t, stats.Total).Equal(4)
		gt.Number(t, stats.ByStatus[types.CaseStatusOpen]).Equal(3)
		gt.Number(t, stats.ByStatus[types.CaseStatusResolved]).Equal(1)
		gt.Number(t, stats.ByStatus[types.CaseStatusForRerouting]).Equal(0)
		gt.Number(t, stats.ByExternalStatus["Under Review"]).Equal(2)
		gt.Number(t, stats.ByExternalStatus["Resolved"]).Equal(1)
		gt.Number(t, len(stats.ByExternalStatus)).Equal(2)
	})

	t.Run("filtered by source", func(t *testing.T) {
		stats, err := uc.Stats(ctx, interfaces.WithSource(types.SourceTypeReportAPI))
		gt.NoError(t, err).Required()
		gt.Number(t, stats.Total).Equal(1)
		gt.Number(t, stats.ByExternalStatus["Under Review"]).Equal(1)
	})
}
