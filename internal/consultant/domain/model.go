package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended:
		return true
	}
	return false
}

// Consultant is an independent sales representative. Code is stored in its
// canonical upper-case form so the unique index is effectively case-insensitive.
type Consultant struct {
	ID                   snowflake.ID    `json:"id" gorm:"primaryKey"`
	Name                 string          `json:"name" gorm:"type:text;not null"`
	Email                string          `json:"email" gorm:"type:text"`
	Code                 string          `json:"code" gorm:"type:varchar(32);not null;uniqueIndex"`
	Status               Status          `json:"status" gorm:"type:varchar(16);not null;index"`
	CommissionPercentage decimal.Decimal `json:"commission_percentage" gorm:"type:numeric(5,2);not null"`
	ReportsEnabled       bool            `json:"reports_enabled" gorm:"not null;default:true"`
	CreatedAt            time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt            time.Time       `json:"updated_at" gorm:"not null"`
}

func (Consultant) TableName() string { return "consultants" }

func (c Consultant) IsActive() bool { return c.Status == StatusActive }
