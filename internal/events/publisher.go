package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TypeOrderCreated        = "order.created"
	TypeOrderPaid           = "order.paid"
	TypeOrderStatusChanged  = "order.status_changed"
	TypeCommissionCreated   = "commission.created"
	TypeCommissionStatus    = "commission.status_changed"
	TypeReportBatchFinished = "report.batch_finished"
)

// Event is a domain fact published after the corresponding write committed.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

func NewEvent(eventType, key string, at time.Time, data any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        key,
		OccurredAt: at,
		Data:       data,
	}
}

// Publisher delivers events to downstream consumers. Delivery is best effort:
// callers log failures and never roll back on them.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
