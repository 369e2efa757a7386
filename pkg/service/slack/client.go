package slack

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"
)

// MaxSectionTextBytes is the limit Slack enforces on a section block's text
const MaxSectionTextBytes = 3000

// client implements Service interface
type client struct {
	api *slack.Client
}

// Option is a functional option for client configuration
type Option func(*clientConfig)

type clientConfig struct {
	apiURL string
}

// WithAPIURL points the client at another Slack API endpoint
func WithAPIURL(u string) Option {
	return func(c *clientConfig) {
		c.apiURL = u
	}
}

// New creates a new Slack service with the provided bot token
func New(token string, opts ...Option) (Service, error) {
	if token == "" {
		return nil, goerr.New("Slack bot token is required")
	}

	cfg := &clientConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	var apiOpts []slack.Option
	if cfg.apiURL != "" {
		apiOpts = append(apiOpts, slack.OptionAPIURL(cfg.apiURL))
	}

	return &client{api: slack.New(token, apiOpts...)}, nil
}

func (c *client) PostMessage(ctx context.Context, channelID string, blocks []slack.Block, text string) (string, error) {
	if channelID == "" {
		return "", goerr.New("channel ID is required")
	}

	_, ts, err := c.api.PostMessageContext(ctx, channelID,
		slack.MsgOptionBlocks(blocks...),
		slack.MsgOptionText(text, false),
	)
	if err != nil {
		return "", goerr.Wrap(err, "failed to post message", goerr.V("channel_id", channelID))
	}
	return ts, nil
}

// EscapeText escapes the control characters of Slack mrkdwn
func EscapeText(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}

// truncateToMaxBytes cuts s to at most maxBytes without splitting a rune,
// marking the cut with an ellipsis
func truncateToMaxBytes(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	const ellipsis = "..."
	cut := maxBytes - len(ellipsis)
	if cut <= 0 {
		return ellipsis[:maxBytes]
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + ellipsis
}

// SectionText returns s escaped and truncated to fit one section block
func SectionText(s string) string {
	return truncateToMaxBytes(EscapeText(s), MaxSectionTextBytes)
}
