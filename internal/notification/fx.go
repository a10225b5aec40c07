package notification

import (
	"strings"

	"github.com/railzwaylabs/atelier/internal/config"
	"github.com/railzwaylabs/atelier/internal/notification/email"
	"github.com/railzwaylabs/atelier/internal/notification/slack"
	"github.com/railzwaylabs/atelier/internal/reporting/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notification",
	fx.Provide(NewSender),
)

// NewSender enables email when an SMTP host is set and Slack when a webhook URL is set.
func NewSender(cfg config.Config, log *zap.Logger) domain.Sender {
	var channels []Channel
	if strings.TrimSpace(cfg.SMTP.Host) != "" {
		channels = append(channels, Channel{Name: "email", Sender: email.New(cfg.SMTP)})
	}
	if strings.TrimSpace(cfg.Slack.WebhookURL) != "" {
		channels = append(channels, Channel{Name: "slack", Sender: slack.New(cfg.Slack.WebhookURL)})
	}
	return NewMulti(log, channels...)
}
