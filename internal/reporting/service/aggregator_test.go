package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang/mock/gomock"
	"github.com/railzwaylabs/atelier/internal/config"
	consultantdomain "github.com/railzwaylabs/atelier/internal/consultant/domain"
	"github.com/railzwaylabs/atelier/internal/events"
	orderdomain "github.com/railzwaylabs/atelier/internal/order/domain"
	lockredis "github.com/railzwaylabs/atelier/internal/redis"
	"github.com/railzwaylabs/atelier/internal/reporting/domain"
	"github.com/railzwaylabs/atelier/internal/reporting/mocks"
	"github.com/railzwaylabs/atelier/internal/testkit"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var january = domain.Period{Year: 2024, Month: time.January}

type harness struct {
	stack   *testkit.Stack
	sender  *mocks.MockSender
	watcher *config.Watcher
	svc     domain.Service
}

func newHarness(t *testing.T, locker domain.Locker) *harness {
	t.Helper()
	stack := testkit.New(t)
	sender := mocks.NewMockSender(gomock.NewController(t))
	watcher := config.NewWatcher()
	svc := New(Params{
		DB:          stack.DB,
		Log:         stack.Log,
		Clock:       stack.Clock,
		Cfg:         stack.Cfg,
		Consultants: stack.Consultants,
		Commissions: stack.CommissionRepo,
		Clients:     stack.ClientRepo,
		Sender:      sender,
		Locker:      locker,
		Events:      stack.Events,
		Metrics:     stack.Metrics,
		Watcher:     watcher,
	})
	return &harness{stack: stack, sender: sender, watcher: watcher, svc: svc}
}

// sale places a paid order attributed to code at the given instant.
func (h *harness) sale(t *testing.T, at time.Time, code, email, price string) *orderdomain.Order {
	t.Helper()
	h.stack.Clock.Set(at)
	res, err := h.stack.Orders.Place(context.Background(), orderdomain.PlaceOrderInput{
		Channel:          orderdomain.ChannelDirect,
		Customer:         testkit.Contact(email),
		Items:            testkit.Items(price),
		ReferralCode:     code,
		PaymentConfirmed: true,
	})
	require.NoError(t, err)
	return res.Order
}

type codeMatcher string

func hasCode(code string) gomock.Matcher { return codeMatcher(code) }

func (m codeMatcher) Matches(x any) bool {
	c, ok := x.(*consultantdomain.Consultant)
	return ok && c.Code == string(m)
}

func (m codeMatcher) String() string { return "consultant " + string(m) }

func day(d int, month time.Month) time.Time {
	return time.Date(2024, month, d, 12, 0, 0, 0, time.UTC)
}

func TestSummarizeJanuary(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	anna := h.stack.Consultant(t, "ANNA10", consultantdomain.StatusActive, "10")

	h.sale(t, day(3, time.January), "ANNA10", "c1@example.com", "100.00")
	h.sale(t, day(5, time.January), "ANNA10", "c2@example.com", "150.00")
	h.sale(t, day(6, time.January), "ANNA10", "c3@example.com", "150.00")
	h.sale(t, day(8, time.January), "ANNA10", "c1@example.com", "60.00")
	h.sale(t, day(9, time.January), "ANNA10", "c4@example.com", "10.00")
	cancelled := h.sale(t, day(10, time.January), "ANNA10", "c4@example.com", "40.00")
	_, err := h.stack.Orders.TransitionStatus(ctx, cancelled.ID, orderdomain.PaymentStatusCancelled)
	require.NoError(t, err)

	// The first instant of February belongs to the next report.
	h.sale(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), "ANNA10", "c5@example.com", "500.00")

	summary, err := h.svc.Summarize(ctx, anna, january)
	require.NoError(t, err)

	assert.Equal(t, "ANNA10", summary.ConsultantCode)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), summary.PeriodStart)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), summary.PeriodEnd)
	assert.Equal(t, "USD", summary.Currency)
	assert.Equal(t, 6, summary.TotalCommissions)
	// 10.00 + 15.00 + 15.00 + 6.00 + 1.60; the cancelled commission earns nothing.
	assert.Equal(t, "47.6", summary.TotalEarnings.String())
	assert.Equal(t, 4, summary.NewClients)

	require.Len(t, summary.TopClients, 3)
	assert.Equal(t, "c1@example.com", summary.TopClients[0].Email)
	assert.True(t, decimal.RequireFromString("160").Equal(summary.TopClients[0].Total))
	assert.Equal(t, 2, summary.TopClients[0].Orders)
	assert.Equal(t, "c2@example.com", summary.TopClients[1].Email)
	assert.Equal(t, "c3@example.com", summary.TopClients[2].Email)
	assert.Equal(t, "Ana Client", summary.TopClients[2].Name)

	feb, err := h.svc.Summarize(ctx, anna, domain.Period{Year: 2024, Month: time.February})
	require.NoError(t, err)
	assert.Equal(t, 1, feb.TotalCommissions)
	assert.Equal(t, 1, feb.NewClients)
}

func TestTopClientsFollowsConfigReload(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	anna := h.stack.Consultant(t, "ANNA10", consultantdomain.StatusActive, "10")
	for i, email := range []string{"c1@example.com", "c2@example.com", "c3@example.com", "c4@example.com", "c5@example.com"} {
		h.sale(t, day(i+2, time.January), "ANNA10", email, "100.00")
	}

	summary, err := h.svc.Summarize(ctx, anna, january)
	require.NoError(t, err)
	assert.Len(t, summary.TopClients, 3)

	cfg := h.stack.Cfg
	cfg.Reports.TopClients = 5
	h.watcher.Apply(cfg)

	summary, err = h.svc.Summarize(ctx, anna, january)
	require.NoError(t, err)
	assert.Len(t, summary.TopClients, 5)

	cfg.Reports.TopClients = 0
	h.watcher.Apply(cfg)

	summary, err = h.svc.Summarize(ctx, anna, january)
	require.NoError(t, err)
	assert.Len(t, summary.TopClients, 5)
}

func TestSummarizeEmptyMonth(t *testing.T) {
	h := newHarness(t, nil)
	anna := h.stack.Consultant(t, "ANNA10", consultantdomain.StatusActive, "10")

	summary, err := h.svc.Summarize(context.Background(), anna, january)
	require.NoError(t, err)
	assert.Zero(t, summary.TotalCommissions)
	assert.True(t, summary.TotalEarnings.IsZero())
	assert.Zero(t, summary.NewClients)
	assert.Empty(t, summary.TopClients)
}

func TestRunSendsEveryReportableConsultant(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	anna := h.stack.Consultant(t, "ANNA10", consultantdomain.StatusActive, "10")
	bea := h.stack.Consultant(t, "BEA15", consultantdomain.StatusActive, "15")
	h.stack.Consultant(t, "OLD05", consultantdomain.StatusInactive, "5")
	disabled := false
	_, err := h.stack.Consultants.Upsert(ctx, consultantdomain.UpsertRequest{
		Code:                 "QUIET",
		Name:                 "Quiet",
		Email:                "quiet@atelier.test",
		Status:               consultantdomain.StatusActive,
		CommissionPercentage: decimal.NewFromInt(10),
		ReportsEnabled:       &disabled,
	})
	require.NoError(t, err)

	h.sale(t, day(4, time.January), "ANNA10", "c1@example.com", "100.00")
	h.stack.Clock.Set(time.Date(2024, 2, 1, 0, 5, 0, 0, time.UTC))

	var got []domain.Summary
	h.sender.EXPECT().
		SendReport(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, c *consultantdomain.Consultant, s domain.Summary) error {
			got = append(got, s)
			return nil
		}).
		Times(2)

	var ticks [][2]int
	result, err := h.svc.Run(ctx, january, func(done, total int) {
		ticks = append(ticks, [2]int{done, total})
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 2, result.Sent)
	assert.Empty(t, result.Failures)
	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, ticks)

	require.Len(t, got, 2)
	assert.Equal(t, anna.ID, got[0].ConsultantID)
	assert.Equal(t, "10", got[0].TotalEarnings.String())
	assert.Equal(t, bea.ID, got[1].ConsultantID)
	assert.Zero(t, got[1].TotalCommissions)

	assert.Contains(t, h.stack.Events.Types(), events.TypeReportBatchFinished)
}

func TestRunContinuesPastFailures(t *testing.T) {
	h := newHarness(t, nil)
	anna := h.stack.Consultant(t, "ANNA10", consultantdomain.StatusActive, "10")
	bea := h.stack.Consultant(t, "BEA15", consultantdomain.StatusActive, "15")
	cleo := h.stack.Consultant(t, "CLEO20", consultantdomain.StatusActive, "20")

	gomock.InOrder(
		h.sender.EXPECT().SendReport(gomock.Any(), hasCode(anna.Code), gomock.Any()).Return(errors.New("smtp: 550 mailbox unavailable")),
		h.sender.EXPECT().SendReport(gomock.Any(), hasCode(bea.Code), gomock.Any()).DoAndReturn(
			func(context.Context, *consultantdomain.Consultant, domain.Summary) error {
				panic("renderer exploded")
			}),
		h.sender.EXPECT().SendReport(gomock.Any(), hasCode(cleo.Code), gomock.Any()).Return(nil),
	)

	result, err := h.svc.Run(context.Background(), january, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 1, result.Sent)
	require.Len(t, result.Failures, 2)
	assert.Equal(t, "ANNA10", result.Failures[0].ConsultantCode)
	assert.Contains(t, result.Failures[0].Error, "mailbox unavailable")
	assert.Equal(t, "BEA15", result.Failures[1].ConsultantCode)
	assert.Contains(t, result.Failures[1].Error, "panicked")
}

func TestRunRejectsConcurrentBatch(t *testing.T) {
	mr := miniredis.RunT(t)
	lock := lockredis.NewLock(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	h := newHarness(t, lock)
	h.stack.Consultant(t, "ANNA10", consultantdomain.StatusActive, "10")

	require.NoError(t, mr.Set("reports:monthly:2024-01", "other-run"))

	_, err := h.svc.Run(context.Background(), january, nil)
	assert.ErrorIs(t, err, domain.ErrBatchRunning)

	mr.Del("reports:monthly:2024-01")
	h.sender.EXPECT().SendReport(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	result, err := h.svc.Run(context.Background(), january, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.False(t, mr.Exists("reports:monthly:2024-01"))
}

func TestRunRejectsInvalidPeriod(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.svc.Run(context.Background(), domain.Period{Year: 2024, Month: 13}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)
}
