package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/atelier/internal/clock"
	"github.com/railzwaylabs/atelier/internal/commission/domain"
	"github.com/railzwaylabs/atelier/internal/config"
	consultantdomain "github.com/railzwaylabs/atelier/internal/consultant/domain"
	"github.com/railzwaylabs/atelier/internal/events"
	"github.com/railzwaylabs/atelier/internal/observability"
	orderdomain "github.com/railzwaylabs/atelier/internal/order/domain"
	"github.com/railzwaylabs/atelier/pkg/db"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
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
	Events      events.Publisher       `optional:"true"`
	Metrics     *observability.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	consultants consultantdomain.Directory
	events      events.Publisher
	metrics     *observability.Metrics
	defaultRate decimal.Decimal
}

func New(p Params) domain.Service {
	pub := p.Events
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("commission.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		consultants: p.Consultants,
		events:      pub,
		metrics:     p.Metrics,
		defaultRate: p.Cfg.DefaultCommissionRate(),
	}
}

func (s *Service) CreateIfAttributed(ctx context.Context, order *orderdomain.Order) (*domain.Commission, error) {
	if order == nil || !order.Attributed() {
		return nil, nil
	}
	switch order.PaymentStatus {
	case orderdomain.PaymentStatusPending, orderdomain.PaymentStatusCancelled:
		return nil, nil
	}

	ctx, span := observability.Tracer().Start(ctx, "commission.create")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", order.ID.String()))

	existing, err := s.repo.FindByOrderID(ctx, s.db, order.ID)
	if err != nil {
		return nil, s.failed(order, err)
	}
	if existing != nil {
		return existing, nil
	}

	rate, err := s.rateFor(ctx, *order.ConsultantID)
	if err != nil {
		return nil, s.failed(order, err)
	}

	now := s.clock.Now(ctx)
	c := &domain.Commission{
		ID:               s.genID.Generate(),
		ConsultantID:     *order.ConsultantID,
		OrderID:          order.ID,
		ClientID:         order.ClientID,
		OrderAmount:      order.Total,
		CommissionRate:   rate,
		CommissionAmount: domain.ComputeAmount(order.Total, rate),
		Status:           domain.StatusPending,
		ReferenceMonth:   int(now.Month()),
		ReferenceYear:    now.Year(),
		OrderDate:        order.CreatedAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Insert(ctx, s.db, c); err != nil {
		if db.IsUniqueViolation(err) {
			return s.repo.FindByOrderID(ctx, s.db, order.ID)
		}
		return nil, s.failed(order, err)
	}

	s.metrics.CommissionCreated()
	s.log.Info("commission created",
		zap.String("commission_id", c.ID.String()),
		zap.String("order_id", order.ID.String()),
		zap.String("consultant_id", c.ConsultantID.String()),
		zap.String("amount", c.CommissionAmount.StringFixed(2)))
	s.publish(ctx, events.TypeCommissionCreated, c)
	return c, nil
}

// rateFor reads the consultant's current percentage. A suspended or inactive
// consultant keeps earning on orders attributed while active; the configured
// default only applies when the record is gone.
func (s *Service) rateFor(ctx context.Context, consultantID snowflake.ID) (decimal.Decimal, error) {
	consultant, err := s.consultants.FindByID(ctx, consultantID)
	if err != nil {
		return decimal.Zero, err
	}
	if consultant == nil {
		s.log.Warn("consultant missing, using default commission rate",
			zap.String("consultant_id", consultantID.String()),
			zap.String("rate", s.defaultRate.String()))
		return s.defaultRate, nil
	}
	return consultant.CommissionPercentage, nil
}

func (s *Service) failed(order *orderdomain.Order, err error) error {
	s.metrics.CommissionFailed()
	s.log.Error("commission write failed, reconcile manually",
		zap.String("order_id", order.ID.String()),
		zap.Error(err))
	return err
}

func (s *Service) CancelForOrder(ctx context.Context, orderID snowflake.ID) (*domain.Commission, error) {
	c, err := s.repo.FindByOrderID(ctx, s.db, orderID)
	if err != nil || c == nil {
		return nil, err
	}
	if c.Status == domain.StatusPaid || c.Status == domain.StatusCancelled {
		return c, nil
	}
	return s.transition(ctx, c.ID, domain.StatusCancelled)
}

func (s *Service) FindByID(ctx context.Context, id snowflake.ID) (*domain.Commission, error) {
	c, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (s *Service) Approve(ctx context.Context, id snowflake.ID) (*domain.Commission, error) {
	return s.transition(ctx, id, domain.StatusApproved)
}

func (s *Service) Pay(ctx context.Context, id snowflake.ID) (*domain.Commission, error) {
	return s.transition(ctx, id, domain.StatusPaid)
}

func (s *Service) Cancel(ctx context.Context, id snowflake.ID) (*domain.Commission, error) {
	return s.transition(ctx, id, domain.StatusCancelled)
}

func (s *Service) transition(ctx context.Context, id snowflake.ID, to domain.Status) (*domain.Commission, error) {
	var from []domain.Status
	for _, candidate := range []domain.Status{domain.StatusPending, domain.StatusApproved} {
		if domain.CanTransition(candidate, to) {
			from = append(from, candidate)
		}
	}

	changed, err := s.repo.Transition(ctx, s.db, id, from, to, s.clock.Now(ctx))
	if err != nil {
		return nil, err
	}
	c, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !changed {
		if c.Status == to {
			return c, nil
		}
		return nil, domain.ErrInvalidTransition
	}

	s.log.Info("commission status changed",
		zap.String("commission_id", id.String()),
		zap.String("status", string(to)))
	s.publish(ctx, events.TypeCommissionStatus, c)
	return c, nil
}

func (s *Service) Summary(ctx context.Context, req domain.SummaryRequest) (*domain.SummaryResponse, error) {
	if req.Month < 0 || req.Month > 12 || req.Year < 0 {
		return nil, domain.ErrInvalidPeriod
	}
	if req.Status != "" && !req.Status.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		ConsultantID: req.ConsultantID,
		Month:        req.Month,
		Year:         req.Year,
		Status:       req.Status,
	})
	if err != nil {
		return nil, err
	}

	resp := &domain.SummaryResponse{
		Count:       len(items),
		TotalAmount: decimal.Zero,
		ByStatus:    map[domain.Status]int{},
		Commissions: items,
	}
	for _, c := range items {
		resp.ByStatus[c.Status]++
		if c.Status != domain.StatusCancelled {
			resp.TotalAmount = resp.TotalAmount.Add(c.CommissionAmount)
		}
	}
	if resp.Commissions == nil {
		resp.Commissions = []domain.Commission{}
	}
	return resp, nil
}

func (s *Service) publish(ctx context.Context, eventType string, c *domain.Commission) {
	evt := events.NewEvent(eventType, c.OrderID.String(), s.clock.Now(ctx), c)
	if err := s.events.Publish(ctx, evt); err != nil {
		s.log.Warn("failed to publish commission event",
			zap.String("type", eventType),
			zap.String("commission_id", c.ID.String()),
			zap.Error(err))
	}
}

