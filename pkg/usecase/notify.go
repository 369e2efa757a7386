package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	slacksvc "github.com/secmon-lab/casesync/pkg/service/slack"
	"github.com/slack-go/slack"
)

// Notifier alerts an operator about a run that cannot recover on its own
type Notifier interface {
	NotifyRunFailure(ctx context.Context, run *model.SyncRun) error
}

// SlackNotifier posts run failures to a Slack channel
type SlackNotifier struct {
	svc       slacksvc.Service
	channelID string
}

var _ Notifier = &SlackNotifier{}

// NewSlackNotifier creates a Notifier posting to channelID
func NewSlackNotifier(svc slacksvc.Service, channelID string) *SlackNotifier {
	return &SlackNotifier{svc: svc, channelID: channelID}
}

func (n *SlackNotifier) NotifyRunFailure(ctx context.Context, run *model.SyncRun) error {
	text := fmt.Sprintf("casesync: %s sync failed (%s)", run.Source, run.FailureCategory)
	blocks := buildRunFailureBlocks(run)

	if _, err := n.svc.PostMessage(ctx, n.channelID, blocks, text); err != nil {
		return goerr.Wrap(err, "failed to post run failure",
			goerr.V(RunIDKey, run.ID),
			goerr.V(model.SourceKey, run.Source))
	}
	return nil
}

func buildRunFailureBlocks(run *model.SyncRun) []slack.Block {
	header := slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType,
		fmt.Sprintf("Sync failed: %s", run.Source), false, false))

	var hint string
	switch run.FailureCategory {
	case model.FailureAuthentication:
		hint = "The source rejected our credentials. Check the token, the service account, or that the sheet is shared or published."
	case model.FailureNotFound:
		hint = "The source could not be found. Check the configured URL, spreadsheet id and tab."
	}

	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject(slack.MarkdownType, "*Category*\n"+string(run.FailureCategory), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, "*Run*\n"+string(run.ID), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, "*Started*\n"+run.StartedAt.UTC().Format(time.RFC3339), false, false),
	}

	blocks := []slack.Block{
		header,
		slack.NewSectionBlock(nil, fields, nil),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType,
			slacksvc.SectionText(run.FailureReason), false, false), nil, nil),
	}
	if hint != "" {
		blocks = append(blocks, slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType, hint, false, false)))
	}
	return blocks
}
