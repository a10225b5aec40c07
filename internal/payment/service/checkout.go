package service

import (
	"context"
	"errors"
	"strings"

	clientdomain "github.com/railzwaylabs/atelier/internal/client/domain"
	"github.com/railzwaylabs/atelier/internal/config"
	orderdomain "github.com/railzwaylabs/atelier/internal/order/domain"
	"github.com/railzwaylabs/atelier/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const sessionPlaceholder = "{CHECKOUT_SESSION_ID}"

type CheckoutParams struct {
	fx.In

	Log     *zap.Logger
	Cfg     config.Config
	Orders  orderdomain.Service
	Gateway domain.Gateway
}

type checkoutService struct {
	log        *zap.Logger
	orders     orderdomain.Service
	gateway    domain.Gateway
	currency   string
	successURL string
	cancelURL  string
}

func NewCheckout(p CheckoutParams) domain.CheckoutService {
	return &checkoutService{
		log:        p.Log.Named("payment.checkout"),
		orders:     p.Orders,
		gateway:    p.Gateway,
		currency:   p.Cfg.Currency,
		successURL: withSessionPlaceholder(p.Cfg.Stripe.SuccessURL),
		cancelURL:  p.Cfg.Stripe.CancelURL,
	}
}

// CreateHostedCheckout opens a gateway session for the cart and records a pending
// order keyed by the session id. The referral is frozen on the order now and also
// travels in the session metadata for the webhook path.
func (s *checkoutService) CreateHostedCheckout(ctx context.Context, req domain.CheckoutRequest) (*domain.HostedCheckout, error) {
	totals, err := s.orders.Quote(req.Items)
	if err != nil {
		return nil, err
	}
	if err := validateContact(req.Customer); err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, domain.SessionInput{
		Currency:        s.currency,
		Items:           req.Items,
		ShippingFee:     totals.ShippingFee,
		Customer:        req.Customer,
		ShippingAddress: req.ShippingAddress,
		ReferralCode:    req.ReferralCode,
		SuccessURL:      s.successURL,
		CancelURL:       s.cancelURL,
	})
	if err != nil {
		s.log.Error("failed to create checkout session", zap.Error(err))
		return nil, err
	}

	result, err := s.orders.Place(ctx, orderdomain.PlaceOrderInput{
		Channel:                  orderdomain.ChannelHostedCheckout,
		Customer:                 req.Customer,
		Items:                    req.Items,
		ShippingAddress:          req.ShippingAddress,
		ReferralCode:             req.ReferralCode,
		ExternalPaymentReference: session.ID,
	})
	if err != nil {
		s.log.Error("checkout session opened but order not recorded",
			zap.String("session_id", session.ID),
			zap.Error(err))
		return nil, err
	}

	s.log.Info("checkout session created",
		zap.String("session_id", session.ID),
		zap.String("order_id", result.Order.ID.String()))

	return &domain.HostedCheckout{
		SessionID: session.ID,
		URL:       session.URL,
		Order:     result.Order,
	}, nil
}

// ConfirmRedirect confirms the order behind a session when the customer returns
// from the gateway before the webhook arrived. It asks the gateway rather than
// trusting the redirect.
func (s *checkoutService) ConfirmRedirect(ctx context.Context, sessionID string) (*orderdomain.Order, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, domain.ErrCheckoutSessionNotFound
	}

	session, err := s.gateway.RetrieveCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.SessionStatusComplete || !session.Paid {
		return nil, domain.ErrCheckoutSessionNotPaid
	}

	order, confirmed, err := s.orders.ConfirmByReference(ctx, session.ID)
	if err != nil {
		if errors.Is(err, orderdomain.ErrNotFound) {
			return nil, domain.ErrCheckoutSessionNotFound
		}
		return nil, err
	}
	if confirmed {
		s.log.Info("order confirmed from checkout redirect",
			zap.String("session_id", session.ID),
			zap.String("order_id", order.ID.String()))
	}
	return order, nil
}

func validateContact(contact clientdomain.Contact) error {
	email := strings.TrimSpace(contact.Email)
	if email == "" || !strings.Contains(email, "@") {
		return clientdomain.ErrInvalidEmail
	}
	return nil
}

func withSessionPlaceholder(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Contains(raw, sessionPlaceholder) {
		return raw
	}
	sep := "?"
	if strings.Contains(raw, "?") {
		sep = "&"
	}
	return raw + sep + "session_id=" + sessionPlaceholder
}
