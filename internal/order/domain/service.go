package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/railzwaylabs/atelier/internal/client/domain"
)

type PlaceOrderInput struct {
	Channel         Channel
	Customer        clientdomain.Contact
	Items           []LineItem
	ShippingAddress *Address
	// ReferralCode is the code chosen for this order: an explicit checkout field
	// or the stored attribution token.
	ReferralCode             string
	ExternalPaymentReference string
	// PaymentConfirmed inserts the order as paid and records the commission in the same call.
	PaymentConfirmed bool
}

type PlaceOrderResult struct {
	Order *Order
	// Duplicate is set when an order with the same external reference already existed.
	Duplicate bool
	// Confirmed is set when a duplicate pending order was moved to paid by this call.
	Confirmed bool
}

type Service interface {
	Quote(items []LineItem) (Totals, error)
	Place(ctx context.Context, in PlaceOrderInput) (*PlaceOrderResult, error)
	FindByID(ctx context.Context, id snowflake.ID) (*Order, error)
	FindByExternalReference(ctx context.Context, ref string) (*Order, error)
	ConfirmPayment(ctx context.Context, id snowflake.ID) (*Order, bool, error)
	ConfirmByReference(ctx context.Context, ref string) (*Order, bool, error)
	CancelByReference(ctx context.Context, ref string) (*Order, bool, error)
	TransitionStatus(ctx context.Context, id snowflake.ID, to PaymentStatus) (*Order, error)
}
