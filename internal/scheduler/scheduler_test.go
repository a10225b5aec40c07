package scheduler

import (
	"context"
	"testing"
	"time"

	consultantdomain "github.com/railzwaylabs/atelier/internal/consultant/domain"
	paymentdomain "github.com/railzwaylabs/atelier/internal/payment/domain"
	paymentrepo "github.com/railzwaylabs/atelier/internal/payment/repository"
	reportingdomain "github.com/railzwaylabs/atelier/internal/reporting/domain"
	"github.com/railzwaylabs/atelier/internal/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type reportsStub struct {
	runs []reportingdomain.Period
	err  error
}

func (r *reportsStub) Run(_ context.Context, period reportingdomain.Period, _ reportingdomain.Progress) (*reportingdomain.BatchResult, error) {
	r.runs = append(r.runs, period)
	if r.err != nil {
		return nil, r.err
	}
	return &reportingdomain.BatchResult{Period: period, Processed: 2, Sent: 2}, nil
}

func (r *reportsStub) Summarize(context.Context, *consultantdomain.Consultant, reportingdomain.Period) (*reportingdomain.Summary, error) {
	return &reportingdomain.Summary{}, nil
}

func newScheduler(t *testing.T, reports reportingdomain.Service) (*Scheduler, *testkit.Stack) {
	t.Helper()
	stack := testkit.New(t)
	stack.Cfg.Scheduler.WebhookRetentionDays = 30
	return New(Params{
		DB:       stack.DB,
		Log:      stack.Log,
		Cfg:      stack.Cfg,
		Clock:    stack.Clock,
		Reports:  reports,
		Payments: paymentrepo.Provide(),
	}), stack
}

func TestMonthlyReportsRunOnceOnTheFirst(t *testing.T) {
	reports := &reportsStub{}
	s, stack := newScheduler(t, reports)
	ctx := context.Background()

	stack.Clock.Set(time.Date(2024, 1, 31, 23, 59, 0, 0, time.UTC))
	require.NoError(t, s.MonthlyReportsJob(ctx))
	assert.Empty(t, reports.runs)

	stack.Clock.Set(time.Date(2024, 2, 1, 0, 1, 0, 0, time.UTC))
	require.NoError(t, s.MonthlyReportsJob(ctx))
	stack.Clock.Set(time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, s.MonthlyReportsJob(ctx))

	require.Len(t, reports.runs, 1)
	assert.Equal(t, "2024-01", reports.runs[0].String())

	stack.Clock.Set(time.Date(2024, 3, 1, 0, 1, 0, 0, time.UTC))
	require.NoError(t, s.MonthlyReportsJob(ctx))
	require.Len(t, reports.runs, 2)
	assert.Equal(t, "2024-02", reports.runs[1].String())
}

func TestMonthlyReportsYieldToRunningBatch(t *testing.T) {
	reports := &reportsStub{err: reportingdomain.ErrBatchRunning}
	s, stack := newScheduler(t, reports)
	stack.Clock.Set(time.Date(2024, 2, 1, 0, 1, 0, 0, time.UTC))

	require.NoError(t, s.MonthlyReportsJob(context.Background()))
	require.NoError(t, s.MonthlyReportsJob(context.Background()))
	assert.Len(t, reports.runs, 1)
}

func TestCleanupPaymentEvents(t *testing.T) {
	s, stack := newScheduler(t, &reportsStub{})
	ctx := context.Background()
	repo := paymentrepo.Provide()
	now := stack.Clock.Now(ctx)

	for i, age := range []int{45, 31, 29, 1} {
		require.NoError(t, repo.InsertEvent(ctx, stack.DB, &paymentdomain.EventRecord{
			ID:              stack.Node.Generate(),
			Provider:        paymentdomain.ProviderStripe,
			ProviderEventID: "evt_" + string(rune('a'+i)),
			EventType:       paymentdomain.EventTypeCheckoutSessionCompleted,
			Outcome:         "created",
			Payload:         datatypes.JSON(`{}`),
			ReceivedAt:      now.AddDate(0, 0, -age),
		}))
	}

	require.NoError(t, s.CleanupPaymentEventsJob(ctx))
	assert.Equal(t, int64(2), stack.Count(t, &paymentdomain.EventRecord{}))

	// Already ran today.
	require.NoError(t, repo.InsertEvent(ctx, stack.DB, &paymentdomain.EventRecord{
		ID:              stack.Node.Generate(),
		Provider:        paymentdomain.ProviderStripe,
		ProviderEventID: "evt_old",
		EventType:       paymentdomain.EventTypeCheckoutSessionCompleted,
		Outcome:         "created",
		Payload:         datatypes.JSON(`{}`),
		ReceivedAt:      now.AddDate(0, 0, -90),
	}))
	require.NoError(t, s.CleanupPaymentEventsJob(ctx))
	assert.Equal(t, int64(3), stack.Count(t, &paymentdomain.EventRecord{}))

	// The 29 day old row crosses the window a day later.
	stack.Clock.Set(now.Add(25 * time.Hour))
	require.NoError(t, s.CleanupPaymentEventsJob(ctx))
	assert.Equal(t, int64(1), stack.Count(t, &paymentdomain.EventRecord{}))
}

func TestTickContinuesAfterFailure(t *testing.T) {
	reports := &reportsStub{err: assert.AnError}
	s, stack := newScheduler(t, reports)
	stack.Clock.Set(time.Date(2024, 2, 1, 0, 1, 0, 0, time.UTC))

	s.Tick(context.Background())
	s.Tick(context.Background())

	// A failed batch is retried on the next tick.
	assert.Len(t, reports.runs, 2)
}
