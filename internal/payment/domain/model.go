package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/railzwaylabs/atelier/internal/client/domain"
	orderdomain "github.com/railzwaylabs/atelier/internal/order/domain"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// EventRecord is the ledger of webhook deliveries that passed signature verification.
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:varchar(32);not null;uniqueIndex:ux_payment_events_provider_event"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:varchar(255);not null;uniqueIndex:ux_payment_events_provider_event"`
	EventType       string         `json:"event_type" gorm:"type:varchar(64);not null"`
	Reference       string         `json:"reference" gorm:"type:varchar(255);index"`
	Outcome         string         `json:"outcome" gorm:"type:varchar(16);not null"`
	OrderID         *snowflake.ID  `json:"order_id,omitempty"`
	Payload         datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null;index"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }

const (
	ProviderStripe = "stripe"
	ProviderWhish  = "whish"

	EventTypeCheckoutSessionCompleted = "checkout.session.completed"
)

type SessionStatus string

const (
	SessionStatusOpen     SessionStatus = "open"
	SessionStatusComplete SessionStatus = "complete"
	SessionStatusExpired  SessionStatus = "expired"
)

// CheckoutEvent is a verified, parsed gateway notification that a hosted checkout completed.
type CheckoutEvent struct {
	Provider        string
	EventID         string
	EventType       string
	SessionID       string
	Paid            bool
	AmountTotal     int64
	Currency        string
	Customer        clientdomain.Contact
	Items           []orderdomain.LineItem
	ShippingAddress *orderdomain.Address
	ReferralCode    string
	OccurredAt      time.Time
	RawPayload      []byte
}

// SessionInput describes a hosted checkout session to open at the gateway.
type SessionInput struct {
	Currency        string
	Items           []orderdomain.LineItem
	ShippingFee     decimal.Decimal
	Customer        clientdomain.Contact
	ShippingAddress *orderdomain.Address
	ReferralCode    string
	SuccessURL      string
	CancelURL       string
}

type CheckoutSession struct {
	ID          string        `json:"id"`
	Provider    string        `json:"provider"`
	URL         string        `json:"url,omitempty"`
	Status      SessionStatus `json:"status"`
	Paid        bool          `json:"paid"`
	AmountTotal int64         `json:"amount_total"`
	ExpiresAt   time.Time     `json:"expires_at"`
}

type CollectStatus string

const (
	CollectStatusPending CollectStatus = "pending"
	CollectStatusSuccess CollectStatus = "success"
	CollectStatusFailed  CollectStatus = "failed"
)

// CollectInput asks the mobile wallet to collect a payment for one order.
type CollectInput struct {
	Amount             float64
	Currency           string
	Invoice            string
	ExternalID         int64
	SuccessCallbackURL string
	FailureCallbackURL string
	SuccessRedirectURL string
	FailureRedirectURL string
}

type Collect struct {
	ExternalID int64  `json:"external_id"`
	CollectURL string `json:"collect_url"`
}
