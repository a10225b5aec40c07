package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/railzwaylabs/atelier/internal/order/domain"
	"github.com/shopspring/decimal"
)

// Calculator records commissions from the order intake path.
type Calculator interface {
	// CreateIfAttributed records the commission for a paid, attributed order.
	// It returns nil for unattributed orders and the existing record when one
	// was already written for the order.
	CreateIfAttributed(ctx context.Context, order *orderdomain.Order) (*Commission, error)
	// CancelForOrder cancels the order's commission if it is still pending or approved.
	CancelForOrder(ctx context.Context, orderID snowflake.ID) (*Commission, error)
}

type SummaryRequest struct {
	ConsultantID *snowflake.ID
	Month        int
	Year         int
	Status       Status
}

type SummaryResponse struct {
	Count       int             `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ByStatus    map[Status]int  `json:"by_status"`
	Commissions []Commission    `json:"commissions"`
}

type Service interface {
	Calculator
	FindByID(ctx context.Context, id snowflake.ID) (*Commission, error)
	Approve(ctx context.Context, id snowflake.ID) (*Commission, error)
	Pay(ctx context.Context, id snowflake.ID) (*Commission, error)
	Cancel(ctx context.Context, id snowflake.ID) (*Commission, error)
	Summary(ctx context.Context, req SummaryRequest) (*SummaryResponse, error)
}
