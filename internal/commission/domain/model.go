package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusCancelled},
	StatusApproved: {StatusPaid, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Commission is owed to a consultant for one paid order. Rate and amount are
// fixed when the record is created.
type Commission struct {
	ID               snowflake.ID    `json:"id" gorm:"primaryKey"`
	ConsultantID     snowflake.ID    `json:"consultant_id" gorm:"not null;index:idx_commissions_consultant_period"`
	OrderID          snowflake.ID    `json:"order_id" gorm:"not null;uniqueIndex"`
	ClientID         snowflake.ID    `json:"client_id" gorm:"not null;index"`
	OrderAmount      decimal.Decimal `json:"order_amount" gorm:"type:numeric(12,2);not null"`
	CommissionRate   decimal.Decimal `json:"commission_rate" gorm:"type:numeric(5,2);not null"`
	CommissionAmount decimal.Decimal `json:"commission_amount" gorm:"type:numeric(12,2);not null"`
	Status           Status          `json:"status" gorm:"type:varchar(16);not null;index"`
	ReferenceMonth   int             `json:"reference_month" gorm:"not null;index:idx_commissions_consultant_period"`
	ReferenceYear    int             `json:"reference_year" gorm:"not null;index:idx_commissions_consultant_period"`
	OrderDate        time.Time       `json:"order_date" gorm:"not null;index"`
	CreatedAt        time.Time       `json:"created_at" gorm:"not null"`
	ApprovedAt       *time.Time      `json:"approved_at,omitempty"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	CancelledAt      *time.Time      `json:"cancelled_at,omitempty"`
	UpdatedAt        time.Time       `json:"updated_at" gorm:"not null"`
}

func (Commission) TableName() string { return "commissions" }

var hundred = decimal.NewFromInt(100)

// ComputeAmount returns orderAmount x rate / 100 rounded half away from zero to cents.
func ComputeAmount(orderAmount, rate decimal.Decimal) decimal.Decimal {
	return orderAmount.Mul(rate).Div(hundred).Round(2)
}
