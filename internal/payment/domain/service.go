package domain

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	clientdomain "github.com/railzwaylabs/atelier/internal/client/domain"
	orderdomain "github.com/railzwaylabs/atelier/internal/order/domain"
	"gorm.io/gorm"
)

// Gateway is the hosted checkout provider.
type Gateway interface {
	Name() string
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*CheckoutEvent, error)
	CreateCheckoutSession(ctx context.Context, input SessionInput) (*CheckoutSession, error)
	RetrieveCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
}

// Wallet is the mobile wallet collect API.
type Wallet interface {
	Collect(ctx context.Context, input CollectInput) (*Collect, error)
	Status(ctx context.Context, currency string, externalID int64) (CollectStatus, error)
}

type Repository interface {
	InsertEvent(ctx context.Context, db *gorm.DB, record *EventRecord) error
	FindEvent(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*EventRecord, error)
	DeleteEventsReceivedBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error)
}

// CheckoutRequest is a storefront cart handed to a payment channel.
type CheckoutRequest struct {
	Customer        clientdomain.Contact   `json:"customer"`
	Items           []orderdomain.LineItem `json:"items"`
	ShippingAddress *orderdomain.Address   `json:"shipping_address,omitempty"`
	ReferralCode    string                 `json:"referral_code,omitempty"`
}

type HostedCheckout struct {
	SessionID string             `json:"session_id"`
	URL       string             `json:"url"`
	Order     *orderdomain.Order `json:"order"`
}

type WalletPayment struct {
	ExternalID int64              `json:"external_id"`
	CollectURL string             `json:"collect_url"`
	Order      *orderdomain.Order `json:"order"`
}

type CallbackResult struct {
	Order  *orderdomain.Order `json:"order"`
	Status CollectStatus      `json:"status"`
	// Changed is set when this callback moved the order out of pending.
	Changed bool `json:"changed"`
}

type CheckoutService interface {
	CreateHostedCheckout(ctx context.Context, req CheckoutRequest) (*HostedCheckout, error)
	ConfirmRedirect(ctx context.Context, sessionID string) (*orderdomain.Order, error)
}

type WalletService interface {
	Initiate(ctx context.Context, req CheckoutRequest) (*WalletPayment, error)
	HandleCallback(ctx context.Context, externalID int64) (*CallbackResult, error)
}

type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeRejected  Outcome = "rejected"
)

// WebhookService turns verified gateway notifications into orders.
type WebhookService interface {
	Ingest(ctx context.Context, payload []byte, headers http.Header) (Outcome, error)
}

// WalletReference is the external payment reference stored on wallet orders.
func WalletReference(externalID int64) string {
	return ProviderWhish + ":" + strconv.FormatInt(externalID, 10)
}

var (
	ErrInvalidSignature        = errors.New("invalid_signature")
	ErrInvalidPayload          = errors.New("invalid_payload")
	ErrInvalidEvent            = errors.New("invalid_event")
	ErrEventIgnored            = errors.New("event_ignored")
	ErrGatewayNotConfigured    = errors.New("payment_gateway_not_configured")
	ErrGatewayUnavailable      = errors.New("payment_gateway_unavailable")
	ErrCheckoutSessionNotFound = errors.New("checkout_session_not_found")
	ErrCheckoutSessionNotPaid  = errors.New("checkout_session_not_paid")
	ErrInvalidExternalID       = errors.New("invalid_external_id")
	ErrCartTooLarge            = errors.New("cart_too_large")
)
