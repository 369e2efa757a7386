package slack

import (
	"context"

	"github.com/slack-go/slack"
)

// Service posts operator alerts
type Service interface {
	// PostMessage sends blocks to channelID and returns the message ts.
	// fallback is shown where blocks cannot be rendered.
	PostMessage(ctx context.Context, channelID string, blocks []slack.Block, fallback string) (string, error)
}
