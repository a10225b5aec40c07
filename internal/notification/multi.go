// Package notification fans monthly reports out to the configured channels.
package notification

import (
	"context"
	"errors"
	"fmt"

	consultantdomain "github.com/railzwaylabs/atelier/internal/consultant/domain"
	"github.com/railzwaylabs/atelier/internal/reporting/domain"
	"go.uber.org/zap"
)

type Channel struct {
	Name   string
	Sender domain.Sender
}

// Multi tries every channel. The report counts as delivered only when all of them succeed.
type Multi struct {
	channels []Channel
	log      *zap.Logger
}

func NewMulti(log *zap.Logger, channels ...Channel) *Multi {
	return &Multi{channels: channels, log: log.Named("notification")}
}

func (m *Multi) SendReport(ctx context.Context, consultant *consultantdomain.Consultant, summary domain.Summary) error {
	if len(m.channels) == 0 {
		m.log.Info("report not delivered, no channel configured",
			zap.String("consultant_code", consultant.Code),
			zap.String("period", summary.Period.String()),
			zap.String("earnings", summary.TotalEarnings.StringFixed(2)))
		return nil
	}

	var errs []error
	for _, ch := range m.channels {
		if err := ch.Sender.SendReport(ctx, consultant, summary); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name, err))
			continue
		}
		m.log.Debug("report delivered",
			zap.String("channel", ch.Name),
			zap.String("consultant_code", consultant.Code))
	}
	return errors.Join(errs...)
}
