package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/railzwaylabs/atelier/internal/clock"
	"github.com/railzwaylabs/atelier/internal/config"
	paymentdomain "github.com/railzwaylabs/atelier/internal/payment/domain"
	reportingdomain "github.com/railzwaylabs/atelier/internal/reporting/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultInterval = time.Minute

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Cfg      config.Config
	Clock    clock.Clock
	Reports  reportingdomain.Service
	Payments paymentdomain.Repository
}

// Scheduler runs the periodic jobs: the monthly report batch on the first day
// of each month and the payment event retention sweep once a day.
type Scheduler struct {
	db       *gorm.DB
	log      *zap.Logger
	cfg      config.SchedulerConfig
	clock    clock.Clock
	reports  reportingdomain.Service
	payments paymentdomain.Repository

	mu          sync.Mutex
	lastReport  reportingdomain.Period
	lastCleanup time.Time
}

func New(p Params) *Scheduler {
	return &Scheduler{
		db:       p.DB,
		log:      p.Log.Named("scheduler"),
		cfg:      p.Cfg.Scheduler,
		clock:    p.Clock,
		reports:  p.Reports,
		payments: p.Payments,
	}
}

// RunForever ticks until ctx is cancelled.
func (s *Scheduler) RunForever(ctx context.Context) {
	interval := s.cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	s.log.Info("scheduler started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs every job that is due. Job failures are logged and retried on the next tick.
func (s *Scheduler) Tick(ctx context.Context) {
	if err := s.MonthlyReportsJob(ctx); err != nil {
		s.log.Error("monthly reports job failed", zap.Error(err))
	}
	if err := s.CleanupPaymentEventsJob(ctx); err != nil {
		s.log.Error("payment event cleanup failed", zap.Error(err))
	}
}

// MonthlyReportsJob sends the previous month's reports once, on the first day of the month.
func (s *Scheduler) MonthlyReportsJob(ctx context.Context) error {
	now := s.clock.Now(ctx).UTC()
	if now.Day() != 1 {
		return nil
	}
	period := reportingdomain.PriorMonth(now)

	s.mu.Lock()
	done := s.lastReport == period
	s.mu.Unlock()
	if done {
		return nil
	}

	run := s.startJob("monthly_reports")
	result, err := s.reports.Run(ctx, period, nil)
	if errors.Is(err, reportingdomain.ErrBatchRunning) {
		s.log.Info("report batch already running elsewhere", zap.String("period", period.String()))
		s.markReported(period)
		return nil
	}
	if err != nil {
		return err
	}
	run.AddProcessed(result.Processed)
	s.finishJob(run, zap.String("period", period.String()), zap.Int("sent", result.Sent), zap.Int("failed", len(result.Failures)))
	s.markReported(period)
	return nil
}

func (s *Scheduler) markReported(p reportingdomain.Period) {
	s.mu.Lock()
	s.lastReport = p
	s.mu.Unlock()
}
