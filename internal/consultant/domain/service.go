package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Directory answers which consultant, if any, a referral code belongs to.
type Directory interface {
	// Resolve returns the active consultant for code, or nil for empty, unknown
	// and non-active codes.
	Resolve(ctx context.Context, code string) (*Consultant, error)
	FindByID(ctx context.Context, id snowflake.ID) (*Consultant, error)
	ListReportable(ctx context.Context) ([]Consultant, error)
	Upsert(ctx context.Context, req UpsertRequest) (*Consultant, error)
}

type UpsertRequest struct {
	Code                 string          `json:"code"`
	Name                 string          `json:"name"`
	Email                string          `json:"email"`
	Status               Status          `json:"status"`
	CommissionPercentage decimal.Decimal `json:"commission_percentage"`
	ReportsEnabled       *bool           `json:"reports_enabled"`
}
