package service

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/atelier/internal/config"
	orderdomain "github.com/railzwaylabs/atelier/internal/order/domain"
	"github.com/railzwaylabs/atelier/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type WalletParams struct {
	fx.In

	Log    *zap.Logger
	GenID  *snowflake.Node
	Cfg    config.Config
	Orders orderdomain.Service
	Wallet domain.Wallet
}

type walletService struct {
	log         *zap.Logger
	genID       *snowflake.Node
	orders      orderdomain.Service
	wallet      domain.Wallet
	currency    string
	callbackURL string
	redirectURL string
}

func NewWallet(p WalletParams) domain.WalletService {
	return &walletService{
		log:         p.Log.Named("payment.wallet"),
		genID:       p.GenID,
		orders:      p.Orders,
		wallet:      p.Wallet,
		currency:    p.Cfg.Currency,
		callbackURL: strings.TrimSpace(p.Cfg.Whish.CallbackBaseURL),
		redirectURL: strings.TrimSpace(p.Cfg.Whish.RedirectURL),
	}
}

// Initiate asks the wallet for a collect URL and records a pending order keyed by
// the wallet external id.
func (s *walletService) Initiate(ctx context.Context, req domain.CheckoutRequest) (*domain.WalletPayment, error) {
	totals, err := s.orders.Quote(req.Items)
	if err != nil {
		return nil, err
	}
	if err := validateContact(req.Customer); err != nil {
		return nil, err
	}

	externalID := s.genID.Generate().Int64()
	ref := domain.WalletReference(externalID)
	amount, _ := totals.Total.Float64()

	collect, err := s.wallet.Collect(ctx, domain.CollectInput{
		Amount:             amount,
		Currency:           s.currency,
		Invoice:            "Order " + ref,
		ExternalID:         externalID,
		SuccessCallbackURL: withExternalID(s.callbackURL, externalID, "success"),
		FailureCallbackURL: withExternalID(s.callbackURL, externalID, "failure"),
		SuccessRedirectURL: withExternalID(s.redirectURL, externalID, "success"),
		FailureRedirectURL: withExternalID(s.redirectURL, externalID, "failure"),
	})
	if err != nil {
		s.log.Error("wallet collect failed", zap.Int64("external_id", externalID), zap.Error(err))
		return nil, err
	}

	result, err := s.orders.Place(ctx, orderdomain.PlaceOrderInput{
		Channel:                  orderdomain.ChannelMobileWallet,
		Customer:                 req.Customer,
		Items:                    req.Items,
		ShippingAddress:          req.ShippingAddress,
		ReferralCode:             req.ReferralCode,
		ExternalPaymentReference: ref,
	})
	if err != nil {
		s.log.Error("wallet collect opened but order not recorded",
			zap.Int64("external_id", externalID),
			zap.Error(err))
		return nil, err
	}

	return &domain.WalletPayment{
		ExternalID: externalID,
		CollectURL: collect.CollectURL,
		Order:      result.Order,
	}, nil
}

// HandleCallback settles a wallet order. The callback only names the payment;
// the outcome always comes from the wallet status API.
func (s *walletService) HandleCallback(ctx context.Context, externalID int64) (*domain.CallbackResult, error) {
	if externalID <= 0 {
		return nil, domain.ErrInvalidExternalID
	}
	ref := domain.WalletReference(externalID)

	order, err := s.orders.FindByExternalReference(ctx, ref)
	if err != nil {
		return nil, err
	}

	status, err := s.wallet.Status(ctx, order.Currency, externalID)
	if err != nil {
		return nil, err
	}

	result := &domain.CallbackResult{Order: order, Status: status}
	switch status {
	case domain.CollectStatusSuccess:
		result.Order, result.Changed, err = s.orders.ConfirmPayment(ctx, order.ID)
	case domain.CollectStatusFailed:
		result.Order, result.Changed, err = s.orders.CancelByReference(ctx, ref)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("wallet callback handled",
		zap.Int64("external_id", externalID),
		zap.String("status", string(status)),
		zap.Bool("changed", result.Changed))
	return result, nil
}

func withExternalID(base string, externalID int64, result string) string {
	if base == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("externalId", strconv.FormatInt(externalID, 10))
	q.Set("result", result)
	u.RawQuery = q.Encode()
	return u.String()
}
