package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/domain/types"
	"github.com/secmon-lab/casesync/pkg/usecase"
	"github.com/slack-go/slack"
)

type mockSlack struct {
	channelID string
	blocks    []slack.Block
	text      string
	err       error
}

func (m *mockSlack) PostMessage(ctx context.Context, channelID string, blocks []slack.Block, text string) (string, error) {
	m.channelID = channelID
	m.blocks = blocks
	m.text = text
	return "1700000000.000100", m.err
}

func failedRun(category model.FailureCategory) *model.SyncRun {
	return &model.SyncRun{
		ID:              "run-1",
		Source:          types.SourceTypeSheet,
		StartedAt:       time.Date(2025, 10, 22, 9, 0, 0, 0, time.UTC),
		Outcome:         types.RunOutcomeFailed,
		FailureCategory: category,
		FailureReason:   "failed to fetch batch: source rejected credentials",
	}
}

func TestSlackNotifier_NotifyRunFailure(t *testing.T) {
	svc := &mockSlack{}
	n := usecase.NewSlackNotifier(svc, "C0OPS")

	gt.NoError(t, n.NotifyRunFailure(context.Background(), failedRun(model.FailureAuthentication))).Required()
	gt.Value(t, svc.channelID).Equal("C0OPS")
	gt.String(t, svc.text).Contains("sheet sync failed")
	gt.String(t, svc.text).Contains("authentication")
	gt.Array(t, svc.blocks).Length(4)
}

func TestSlackNotifier_PostError(t *testing.T) {
	svc := &mockSlack{err: errors.New("channel_not_found")}
	n := usecase.NewSlackNotifier(svc, "C0OPS")

	err := n.NotifyRunFailure(context.Background(), failedRun(model.FailureNotFound))
	gt.Value(t, err).NotNil()
	gt.String(t, err.Error()).Contains("channel_not_found")
}

func TestBuildRunFailureBlocks(t *testing.T) {
	t.Run("auth failure carries a hint", func(t *testing.T) {
		blocks := usecase.BuildRunFailureBlocks(failedRun(model.FailureAuthentication))
		gt.Array(t, blocks).Length(4).Required()

		header, ok := blocks[0].(*slack.HeaderBlock)
		gt.Bool(t, ok).True()
		gt.String(t, header.Text.Text).Contains("sheet")

		reason, ok := blocks[2].(*slack.SectionBlock)
		gt.Bool(t, ok).True()
		gt.String(t, reason.Text.Text).Contains("rejected credentials")

		_, ok = blocks[3].(*slack.ContextBlock)
		gt.Bool(t, ok).True()
	})

	t.Run("other failures have no hint", func(t *testing.T) {
		blocks := usecase.BuildRunFailureBlocks(failedRun(model.FailureInternal))
		gt.Array(t, blocks).Length(3)
	})
}
