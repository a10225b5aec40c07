package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	clientdomain "github.com/railzwaylabs/atelier/internal/client/domain"
	"github.com/railzwaylabs/atelier/internal/clock"
	commissiondomain "github.com/railzwaylabs/atelier/internal/commission/domain"
	"github.com/railzwaylabs/atelier/internal/config"
	consultantdomain "github.com/railzwaylabs/atelier/internal/consultant/domain"
	"github.com/railzwaylabs/atelier/internal/events"
	"github.com/railzwaylabs/atelier/internal/observability"
	lockredis "github.com/railzwaylabs/atelier/internal/redis"
	"github.com/railzwaylabs/atelier/internal/reporting/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Cfg         config.Config
	Consultants consultantdomain.Directory
	Commissions commissiondomain.Repository
	Clients     clientdomain.Repository
	Sender      domain.Sender
	Locker      domain.Locker          `optional:"true"`
	Events      events.Publisher       `optional:"true"`
	Metrics     *observability.Metrics `optional:"true"`
	Watcher     *config.Watcher        `optional:"true"`
}

type Aggregator struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	consultants consultantdomain.Directory
	commissions commissiondomain.Repository
	clients     clientdomain.Repository
	sender      domain.Sender
	locker      domain.Locker
	events      events.Publisher
	metrics     *observability.Metrics
	currency    string
	topN        atomic.Int64
	lockTTL     time.Duration
}

func New(p Params) domain.Service {
	pub := p.Events
	if pub == nil {
		pub = events.Nop{}
	}
	ttl := p.Cfg.Reports.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	a := &Aggregator{
		db:          p.DB,
		log:         p.Log.Named("reporting.aggregator"),
		clock:       p.Clock,
		consultants: p.Consultants,
		commissions: p.Commissions,
		clients:     p.Clients,
		sender:      p.Sender,
		locker:      p.Locker,
		events:      pub,
		metrics:     p.Metrics,
		currency:    p.Cfg.Currency,
		lockTTL:     ttl,
	}
	a.topN.Store(int64(p.Cfg.Reports.TopClients))
	if p.Watcher != nil {
		p.Watcher.Subscribe(a.applyConfig)
	}
	return a
}

// applyConfig picks up a new reports.top_clients for summaries built afterwards.
func (a *Aggregator) applyConfig(cfg config.Config) {
	if n := cfg.Reports.TopClients; n > 0 && int64(n) != a.topN.Load() {
		a.topN.Store(int64(n))
		a.log.Info("top clients per report changed", zap.Int("top_clients", n))
	}
}

// Run builds and sends the report of every reportable consultant for period.
// A failing consultant is recorded in the result and the batch moves on.
func (a *Aggregator) Run(ctx context.Context, period domain.Period, progress domain.Progress) (*domain.BatchResult, error) {
	if !period.Valid() {
		return nil, domain.ErrInvalidPeriod
	}

	ctx, span := observability.Tracer().Start(ctx, "reporting.batch")
	defer span.End()

	result := &domain.BatchResult{
		RunID:     ulid.Make().String(),
		Period:    period,
		StartedAt: a.clock.Now(ctx),
		Failures:  []domain.Failure{},
	}
	span.SetAttributes(
		attribute.String("run_id", result.RunID),
		attribute.String("period", period.String()))

	if a.locker != nil {
		release, err := a.locker.Acquire(ctx, "reports:monthly:"+period.String(), result.RunID, a.lockTTL)
		if err != nil {
			if errors.Is(err, lockredis.ErrLockHeld) {
				return nil, domain.ErrBatchRunning
			}
			return nil, fmt.Errorf("acquire report lock: %w", err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				a.log.Warn("failed to release report lock", zap.String("run_id", result.RunID), zap.Error(err))
			}
		}()
	}

	consultants, err := a.consultants.ListReportable(ctx)
	if err != nil {
		return nil, err
	}

	a.log.Info("report batch started",
		zap.String("run_id", result.RunID),
		zap.String("period", period.String()),
		zap.Int("consultants", len(consultants)))

	for i := range consultants {
		consultant := &consultants[i]
		result.Processed++

		if err := a.dispatch(ctx, consultant, period); err != nil {
			a.metrics.ReportDispatched(false)
			a.log.Error("report dispatch failed",
				zap.String("run_id", result.RunID),
				zap.String("consultant_id", consultant.ID.String()),
				zap.Error(err))
			result.Failures = append(result.Failures, domain.Failure{
				ConsultantID:   consultant.ID,
				ConsultantCode: consultant.Code,
				Error:          err.Error(),
			})
		} else {
			a.metrics.ReportDispatched(true)
			result.Sent++
		}

		if progress != nil {
			progress(i+1, len(consultants))
		}
	}

	result.FinishedAt = a.clock.Now(ctx)
	a.metrics.ObserveBatch(result.FinishedAt.Sub(result.StartedAt).Seconds())
	a.log.Info("report batch finished",
		zap.String("run_id", result.RunID),
		zap.Int("processed", result.Processed),
		zap.Int("sent", result.Sent),
		zap.Int("failed", len(result.Failures)))

	evt := events.NewEvent(events.TypeReportBatchFinished, result.RunID, result.FinishedAt, result)
	if err := a.events.Publish(ctx, evt); err != nil {
		a.log.Warn("failed to publish batch event", zap.String("run_id", result.RunID), zap.Error(err))
	}
	return result, nil
}

func (a *Aggregator) dispatch(ctx context.Context, consultant *consultantdomain.Consultant, period domain.Period) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("report dispatch panicked: %v", r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return err
	}

	summary, err := a.Summarize(ctx, consultant, period)
	if err != nil {
		return err
	}
	return a.sender.SendReport(ctx, consultant, *summary)
}

func (a *Aggregator) Summarize(ctx context.Context, consultant *consultantdomain.Consultant, period domain.Period) (*domain.Summary, error) {
	commissions, err := a.commissions.ListByConsultantAndRange(ctx, a.db, consultant.ID, period.Start(), period.Until())
	if err != nil {
		return nil, fmt.Errorf("list commissions: %w", err)
	}
	newClients, err := a.clients.ListFirstAssociatedInRange(ctx, a.db, consultant.ID, period.Start(), period.Until())
	if err != nil {
		return nil, fmt.Errorf("list new clients: %w", err)
	}

	var clients []clientdomain.Client
	if ids := clientIDs(commissions); len(ids) > 0 {
		clients, err = a.clients.FindByIDs(ctx, a.db, ids)
		if err != nil {
			return nil, fmt.Errorf("load clients: %w", err)
		}
	}

	summary := BuildSummary(consultant, period, a.currency, commissions, len(newClients), clients, int(a.topN.Load()))
	return &summary, nil
}
