package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	attributiondomain "github.com/railzwaylabs/atelier/internal/attribution/domain"
	clientdomain "github.com/railzwaylabs/atelier/internal/client/domain"
	"github.com/railzwaylabs/atelier/internal/clock"
	commissiondomain "github.com/railzwaylabs/atelier/internal/commission/domain"
	"github.com/railzwaylabs/atelier/internal/config"
	consultantdomain "github.com/railzwaylabs/atelier/internal/consultant/domain"
	"github.com/railzwaylabs/atelier/internal/events"
	"github.com/railzwaylabs/atelier/internal/observability"
	"github.com/railzwaylabs/atelier/internal/order/domain"
	"github.com/railzwaylabs/atelier/pkg/db"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Cfg         config.Config
	Repo        domain.Repository
	Consultants consultantdomain.Directory
	Clients     clientdomain.Service
	Commissions commissiondomain.Calculator
	Events      events.Publisher       `optional:"true"`
	Metrics     *observability.Metrics `optional:"true"`
}

// Pipeline is the single intake path shared by every order channel.
type Pipeline struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	consultants consultantdomain.Directory
	clients     clientdomain.Service
	commissions commissiondomain.Calculator
	events      events.Publisher
	metrics     *observability.Metrics
	shipping    domain.ShippingRule
	currency    string
}

func New(p Params) domain.Service {
	pub := p.Events
	if pub == nil {
		pub = events.Nop{}
	}
	return &Pipeline{
		db:          p.DB,
		log:         p.Log.Named("order.pipeline"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		consultants: p.Consultants,
		clients:     p.Clients,
		commissions: p.Commissions,
		events:      pub,
		metrics:     p.Metrics,
		shipping: domain.ShippingRule{
			FreeShippingThreshold: p.Cfg.FreeShippingThreshold(),
			FlatFee:               p.Cfg.ShippingFlatFee(),
		},
		currency: p.Cfg.Currency,
	}
}

func (s *Pipeline) Quote(items []domain.LineItem) (domain.Totals, error) {
	return s.shipping.Quote(items)
}

// Place validates, attributes, prices and persists an order in one write. When
// an order with the same external payment reference already exists it is
// returned with Duplicate set and nothing new is written.
func (s *Pipeline) Place(ctx context.Context, in domain.PlaceOrderInput) (*domain.PlaceOrderResult, error) {
	ctx, span := observability.Tracer().Start(ctx, "order.place")
	defer span.End()
	span.SetAttributes(attribute.String("channel", string(in.Channel)))

	if !in.Channel.Valid() {
		return nil, domain.ErrInvalidChannel
	}
	ref := strings.TrimSpace(in.ExternalPaymentReference)
	if in.Channel != domain.ChannelDirect && ref == "" {
		return nil, domain.ErrInvalidReference
	}

	totals, err := s.shipping.Quote(in.Items)
	if err != nil {
		return nil, err
	}

	if ref != "" {
		existing, err := s.repo.FindByExternalReference(ctx, s.db, ref)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return s.duplicate(ctx, existing, in.PaymentConfirmed)
		}
	}

	consultant := s.resolve(ctx, in.ReferralCode)

	items, err := json.Marshal(in.Items)
	if err != nil {
		return nil, fmt.Errorf("encode line items: %w", err)
	}
	var address datatypes.JSON
	if in.ShippingAddress != nil {
		raw, err := json.Marshal(in.ShippingAddress)
		if err != nil {
			return nil, fmt.Errorf("encode shipping address: %w", err)
		}
		address = raw
	}

	now := s.clock.Now(ctx)
	order := &domain.Order{
		ID:              s.genID.Generate(),
		CustomerName:    strings.TrimSpace(in.Customer.Name),
		CustomerEmail:   strings.ToLower(strings.TrimSpace(in.Customer.Email)),
		CustomerPhone:   strings.TrimSpace(in.Customer.Phone),
		Channel:         in.Channel,
		Items:           items,
		ShippingAddress: address,
		Subtotal:        totals.Subtotal,
		ShippingFee:     totals.ShippingFee,
		Total:           totals.Total,
		Currency:        s.currency,
		PaymentStatus:   domain.PaymentStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if consultant != nil {
		id, code := consultant.ID, consultant.Code
		order.ConsultantID = &id
		order.ConsultantCode = &code
	}
	if ref != "" {
		order.ExternalPaymentReference = &ref
	}
	if in.PaymentConfirmed {
		order.PaymentStatus = domain.PaymentStatusPaid
		order.PaidAt = &now
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		client, err := s.clients.Ensure(ctx, tx, in.Customer, order.ConsultantID)
		if err != nil {
			return err
		}
		order.ClientID = client.ID
		return s.repo.Insert(ctx, tx, order)
	})
	if err != nil {
		if ref != "" && db.IsUniqueViolation(err) {
			existing, ferr := s.repo.FindByExternalReference(ctx, s.db, ref)
			if ferr != nil {
				return nil, ferr
			}
			if existing != nil {
				return s.duplicate(ctx, existing, in.PaymentConfirmed)
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert order")
		return nil, err
	}

	s.metrics.OrderPlaced(string(order.Channel), order.Attributed())
	s.log.Info("order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("channel", string(order.Channel)),
		zap.Bool("attributed", order.Attributed()),
		zap.String("total", order.Total.StringFixed(2)),
		zap.String("payment_status", string(order.PaymentStatus)))
	s.publish(ctx, events.TypeOrderCreated, order)

	if in.PaymentConfirmed {
		s.recordCommission(ctx, order)
	}
	return &domain.PlaceOrderResult{Order: order}, nil
}

func (s *Pipeline) duplicate(ctx context.Context, existing *domain.Order, paymentConfirmed bool) (*domain.PlaceOrderResult, error) {
	result := &domain.PlaceOrderResult{Order: existing, Duplicate: true}
	if !paymentConfirmed || existing.PaymentStatus != domain.PaymentStatusPending {
		return result, nil
	}
	order, confirmed, err := s.ConfirmPayment(ctx, existing.ID)
	if err != nil {
		return nil, err
	}
	result.Order = order
	result.Confirmed = confirmed
	return result, nil
}

// resolve never fails the order: storage errors degrade to unattributed.
func (s *Pipeline) resolve(ctx context.Context, code string) *consultantdomain.Consultant {
	canonical := attributiondomain.Canonicalize(code)
	if canonical == "" {
		return nil
	}
	consultant, err := s.consultants.Resolve(ctx, canonical)
	if err != nil {
		s.log.Warn("consultant lookup failed, order left unattributed",
			zap.String("code", canonical),
			zap.Error(err))
		return nil
	}
	if consultant == nil {
		s.log.Info("referral code not eligible", zap.String("code", canonical))
	}
	return consultant
}

func (s *Pipeline) FindByID(ctx context.Context, id snowflake.ID) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

func (s *Pipeline) FindByExternalReference(ctx context.Context, ref string) (*domain.Order, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, domain.ErrInvalidReference
	}
	order, err := s.repo.FindByExternalReference(ctx, s.db, ref)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

// ConfirmPayment moves a pending order to paid. The commission is recorded only
// by the call that performed the transition.
func (s *Pipeline) ConfirmPayment(ctx context.Context, id snowflake.ID) (*domain.Order, bool, error) {
	changed, err := s.repo.TransitionStatus(ctx, s.db, id, []domain.PaymentStatus{domain.PaymentStatusPending}, domain.PaymentStatusPaid, s.clock.Now(ctx))
	if err != nil {
		return nil, false, err
	}
	order, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return order, false, nil
	}

	s.log.Info("order payment confirmed", zap.String("order_id", order.ID.String()))
	s.publish(ctx, events.TypeOrderPaid, order)
	s.recordCommission(ctx, order)
	return order, true, nil
}

func (s *Pipeline) ConfirmByReference(ctx context.Context, ref string) (*domain.Order, bool, error) {
	order, err := s.FindByExternalReference(ctx, ref)
	if err != nil {
		return nil, false, err
	}
	return s.ConfirmPayment(ctx, order.ID)
}

// CancelByReference cancels a pending order whose payment failed or expired.
func (s *Pipeline) CancelByReference(ctx context.Context, ref string) (*domain.Order, bool, error) {
	order, err := s.FindByExternalReference(ctx, ref)
	if err != nil {
		return nil, false, err
	}
	changed, err := s.repo.TransitionStatus(ctx, s.db, order.ID, []domain.PaymentStatus{domain.PaymentStatusPending}, domain.PaymentStatusCancelled, s.clock.Now(ctx))
	if err != nil {
		return nil, false, err
	}
	order, err = s.FindByID(ctx, order.ID)
	if err != nil {
		return nil, false, err
	}
	if changed {
		s.publish(ctx, events.TypeOrderStatusChanged, order)
	}
	return order, changed, nil
}

func (s *Pipeline) TransitionStatus(ctx context.Context, id snowflake.ID, to domain.PaymentStatus) (*domain.Order, error) {
	if !to.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	if to == domain.PaymentStatusPaid {
		order, _, err := s.ConfirmPayment(ctx, id)
		if err != nil {
			return nil, err
		}
		if order.PaymentStatus != domain.PaymentStatusPaid {
			return nil, domain.ErrInvalidTransition
		}
		return order, nil
	}

	changed, err := s.repo.TransitionStatus(ctx, s.db, id, domain.SourcesFor(to), to, s.clock.Now(ctx))
	if err != nil {
		return nil, err
	}
	order, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !changed {
		if order.PaymentStatus == to {
			return order, nil
		}
		return nil, domain.ErrInvalidTransition
	}

	s.log.Info("order status changed",
		zap.String("order_id", order.ID.String()),
		zap.String("payment_status", string(to)))
	s.publish(ctx, events.TypeOrderStatusChanged, order)

	if to == domain.PaymentStatusCancelled {
		if _, err := s.commissions.CancelForOrder(ctx, order.ID); err != nil {
			s.log.Error("failed to cancel commission for cancelled order",
				zap.String("order_id", order.ID.String()),
				zap.Error(err))
		}
	}
	return order, nil
}

// recordCommission never fails the order; the calculator logs and counts failures.
func (s *Pipeline) recordCommission(ctx context.Context, order *domain.Order) {
	if !order.Attributed() {
		return
	}
	_, _ = s.commissions.CreateIfAttributed(ctx, order)
}

func (s *Pipeline) publish(ctx context.Context, eventType string, order *domain.Order) {
	evt := events.NewEvent(eventType, order.ID.String(), s.clock.Now(ctx), order)
	if err := s.events.Publish(ctx, evt); err != nil {
		s.log.Warn("failed to publish order event",
			zap.String("type", eventType),
			zap.String("order_id", order.ID.String()),
			zap.Error(err))
	}
}
