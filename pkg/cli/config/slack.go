package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/service/slack"
	"github.com/secmon-lab/casesync/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// Slack holds CLI flags for operator alerts
type Slack struct {
	botToken     string
	alertChannel string
}

func (x *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-bot-token",
			Usage:       "Slack Bot User OAuth Token used to post alerts",
			Category:    "Slack",
			Destination: &x.botToken,
			Sources:     cli.EnvVars("CASESYNC_SLACK_BOT_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "slack-alert-channel",
			Usage:       "Slack channel ID receiving sync failures that need an operator",
			Category:    "Slack",
			Destination: &x.alertChannel,
			Sources:     cli.EnvVars("CASESYNC_SLACK_ALERT_CHANNEL"),
		},
	}
}

func (x Slack) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("bot-token.len", len(x.botToken)),
		slog.String("alert-channel", x.alertChannel),
	)
}

// IsConfigured reports whether alerts can be posted
func (x *Slack) IsConfigured() bool {
	return x.botToken != "" && x.alertChannel != ""
}

// Configure returns a notifier, or nil when Slack is not configured. Setting
// only one of the two flags is an error.
func (x *Slack) Configure() (usecase.Notifier, error) {
	if x.botToken == "" && x.alertChannel == "" {
		return nil, nil
	}
	if !x.IsConfigured() {
		return nil, goerr.Wrap(ErrInvalidConfig, "--slack-bot-token and --slack-alert-channel must be set together")
	}

	svc, err := slack.New(x.botToken)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize slack service")
	}
	return usecase.NewSlackNotifier(svc, x.alertChannel), nil
}
