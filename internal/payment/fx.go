package payment

import (
	"github.com/railzwaylabs/atelier/internal/clock"
	"github.com/railzwaylabs/atelier/internal/config"
	"github.com/railzwaylabs/atelier/internal/payment/adapters/stripe"
	"github.com/railzwaylabs/atelier/internal/payment/adapters/whish"
	"github.com/railzwaylabs/atelier/internal/payment/domain"
	"github.com/railzwaylabs/atelier/internal/payment/repository"
	"github.com/railzwaylabs/atelier/internal/payment/service"
	"github.com/railzwaylabs/atelier/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(cfg config.Config, clk clock.Clock) domain.Gateway {
		return stripe.New(cfg.Stripe, clk)
	}),
	fx.Provide(func(cfg config.Config) domain.Wallet {
		return whish.New(cfg.Whish)
	}),
	fx.Provide(service.NewCheckout),
	fx.Provide(service.NewWallet),
	fx.Provide(webhook.New),
)
