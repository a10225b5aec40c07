package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Channel string

const (
	ChannelDirect                Channel = "direct"
	ChannelMobileWallet          Channel = "mobile_wallet"
	ChannelHostedCheckout        Channel = "hosted_checkout"
	ChannelHostedCheckoutWebhook Channel = "hosted_checkout_webhook"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelDirect, ChannelMobileWallet, ChannelHostedCheckout, ChannelHostedCheckoutWebhook:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusPaid       PaymentStatus = "paid"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusShipped    PaymentStatus = "shipped"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
)

var transitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusPaid, PaymentStatusCancelled},
	PaymentStatusPaid:       {PaymentStatusProcessing, PaymentStatusCancelled},
	PaymentStatusProcessing: {PaymentStatusShipped, PaymentStatusCancelled},
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusProcessing, PaymentStatusShipped, PaymentStatusCancelled:
		return true
	}
	return false
}

func CanTransition(from, to PaymentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SourcesFor lists the statuses an order may be in to move to target.
func SourcesFor(target PaymentStatus) []PaymentStatus {
	var out []PaymentStatus
	for _, from := range []PaymentStatus{PaymentStatusPending, PaymentStatusPaid, PaymentStatusProcessing} {
		if CanTransition(from, target) {
			out = append(out, from)
		}
	}
	return out
}

// Order is a purchase. Attribution fields are written with the rest of the row
// on insert and never updated.
type Order struct {
	ID                       snowflake.ID    `json:"id" gorm:"primaryKey"`
	ClientID                 snowflake.ID    `json:"client_id" gorm:"not null;index"`
	CustomerName             string          `json:"customer_name" gorm:"type:text"`
	CustomerEmail            string          `json:"customer_email" gorm:"type:varchar(320);not null"`
	CustomerPhone            string          `json:"customer_phone,omitempty" gorm:"type:varchar(32)"`
	Channel                  Channel         `json:"channel" gorm:"type:varchar(32);not null"`
	ConsultantID             *snowflake.ID   `json:"consultant_id,omitempty" gorm:"index"`
	ConsultantCode           *string         `json:"consultant_code,omitempty" gorm:"type:varchar(32)"`
	Items                    datatypes.JSON  `json:"items" gorm:"type:jsonb;not null"`
	ShippingAddress          datatypes.JSON  `json:"shipping_address,omitempty" gorm:"type:jsonb"`
	Subtotal                 decimal.Decimal `json:"subtotal" gorm:"type:numeric(12,2);not null"`
	ShippingFee              decimal.Decimal `json:"shipping_fee" gorm:"type:numeric(12,2);not null"`
	Total                    decimal.Decimal `json:"total" gorm:"type:numeric(12,2);not null"`
	Currency                 string          `json:"currency" gorm:"type:varchar(3);not null"`
	PaymentStatus            PaymentStatus   `json:"payment_status" gorm:"type:varchar(16);not null;index"`
	ExternalPaymentReference *string         `json:"external_payment_reference,omitempty" gorm:"type:varchar(255);uniqueIndex"`
	PaidAt                   *time.Time      `json:"paid_at,omitempty"`
	CreatedAt                time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt                time.Time       `json:"updated_at" gorm:"not null"`
}

func (Order) TableName() string { return "orders" }

func (o Order) Attributed() bool { return o.ConsultantID != nil && *o.ConsultantID != 0 }

type LineItem struct {
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}
