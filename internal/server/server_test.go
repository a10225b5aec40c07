package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	attributionsvc "github.com/railzwaylabs/atelier/internal/attribution/service"
	commissiondomain "github.com/railzwaylabs/atelier/internal/commission/domain"
	consultantdomain "github.com/railzwaylabs/atelier/internal/consultant/domain"
	orderdomain "github.com/railzwaylabs/atelier/internal/order/domain"
	paymentdomain "github.com/railzwaylabs/atelier/internal/payment/domain"
	reportingdomain "github.com/railzwaylabs/atelier/internal/reporting/domain"
	"github.com/railzwaylabs/atelier/internal/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type checkoutMock struct{ mock.Mock }

func (m *checkoutMock) CreateHostedCheckout(ctx context.Context, req paymentdomain.CheckoutRequest) (*paymentdomain.HostedCheckout, error) {
	args := m.Called(req)
	out, _ := args.Get(0).(*paymentdomain.HostedCheckout)
	return out, args.Error(1)
}

func (m *checkoutMock) ConfirmRedirect(ctx context.Context, sessionID string) (*orderdomain.Order, error) {
	args := m.Called(sessionID)
	out, _ := args.Get(0).(*orderdomain.Order)
	return out, args.Error(1)
}

type walletMock struct{ mock.Mock }

func (m *walletMock) Initiate(ctx context.Context, req paymentdomain.CheckoutRequest) (*paymentdomain.WalletPayment, error) {
	args := m.Called(req)
	out, _ := args.Get(0).(*paymentdomain.WalletPayment)
	return out, args.Error(1)
}

func (m *walletMock) HandleCallback(ctx context.Context, externalID int64) (*paymentdomain.CallbackResult, error) {
	args := m.Called(externalID)
	out, _ := args.Get(0).(*paymentdomain.CallbackResult)
	return out, args.Error(1)
}

type webhookMock struct{ mock.Mock }

func (m *webhookMock) Ingest(ctx context.Context, payload []byte, headers http.Header) (paymentdomain.Outcome, error) {
	args := m.Called(string(payload))
	return args.Get(0).(paymentdomain.Outcome), args.Error(1)
}

type reportsMock struct{ mock.Mock }

func (m *reportsMock) Run(ctx context.Context, period reportingdomain.Period, progress reportingdomain.Progress) (*reportingdomain.BatchResult, error) {
	args := m.Called(period)
	out, _ := args.Get(0).(*reportingdomain.BatchResult)
	return out, args.Error(1)
}

func (m *reportsMock) Summarize(ctx context.Context, c *consultantdomain.Consultant, period reportingdomain.Period) (*reportingdomain.Summary, error) {
	args := m.Called(c.Code, period)
	out, _ := args.Get(0).(*reportingdomain.Summary)
	return out, args.Error(1)
}

type fixture struct {
	stack    *testkit.Stack
	server   *Server
	checkout *checkoutMock
	wallet   *walletMock
	webhooks *webhookMock
	reports  *reportsMock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	stack := testkit.New(t)
	f := &fixture{
		stack:    stack,
		checkout: &checkoutMock{},
		wallet:   &walletMock{},
		webhooks: &webhookMock{},
		reports:  &reportsMock{},
	}
	f.server = New(Params{
		Cfg:         stack.Cfg,
		Log:         stack.Log,
		DB:          stack.DB,
		Clock:       stack.Clock,
		Metrics:     stack.Metrics,
		Attribution: attributionsvc.New(attributionsvc.Params{Cfg: stack.Cfg, Log: stack.Log, Clock: stack.Clock}),
		Orders:      stack.Orders,
		Commissions: stack.Commissions,
		Checkout:    f.checkout,
		Wallet:      f.wallet,
		Webhooks:    f.webhooks,
		Reports:     f.reports,
	})
	t.Cleanup(func() {
		f.checkout.AssertExpectations(t)
		f.wallet.AssertExpectations(t)
		f.webhooks.AssertExpectations(t)
		f.reports.AssertExpectations(t)
	})
	return f
}

type call struct {
	method  string
	path    string
	body    any
	token   string
	cookies []*http.Cookie
}

func (f *fixture) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	switch b := c.body.(type) {
	case nil:
	case string:
		body.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&body).Encode(b))
	}
	req := httptest.NewRequest(c.method, c.path, &body)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Data
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Error.Message
}

func orderBody(referral string) map[string]any {
	body := map[string]any{
		"customer": map[string]any{"name": "Ana Client", "email": "ana@example.com"},
		"items": []map[string]any{
			{"sku": "RING-1", "name": "Solitaire", "unit_price": "80.00", "quantity": 1},
		},
	}
	if referral != "" {
		body["referral_code"] = referral
	}
	return body
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, call{method: http.MethodGet, path: "/health"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestAdminRoutesRequireToken(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, call{method: http.MethodGet, path: "/admin/commissions/summary"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, call{method: http.MethodGet, path: "/admin/commissions/summary", token: "cron-secret"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, call{method: http.MethodGet, path: "/admin/commissions/summary", token: "admin-token"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLandingLinkCapturesReferral(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, call{method: http.MethodGet, path: "/api/attribution?ref=anna10"})
	require.Equal(t, http.StatusOK, rec.Code)

	token := decode[*attributionResponse](t, rec)
	require.NotNil(t, token)
	assert.Equal(t, "ANNA10", token.Code)
	assert.WithinDuration(t, f.stack.Clock.Now(context.Background()).Add(30*24*time.Hour), token.ExpiresAt, time.Second)

	var found bool
	for _, ck := range rec.Result().Cookies() {
		found = found || ck.Name == "atelier_ref"
	}
	assert.True(t, found)
}

func TestPutAttributionRejectsBadCode(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, call{method: http.MethodPut, path: "/api/attribution", body: map[string]string{"code": "no spaces!"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_referral_code", errorMessage(t, rec))
}

func TestDirectOrderFollowsStoredReferral(t *testing.T) {
	f := newFixture(t)
	anna := f.stack.Consultant(t, "ANNA10", consultantdomain.StatusActive, "10")

	rec := f.do(t, call{method: http.MethodPut, path: "/api/attribution", body: map[string]string{"code": "anna10"}})
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()

	rec = f.do(t, call{method: http.MethodPost, path: "/api/orders", body: orderBody(""), cookies: cookies})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decode[orderdomain.Order](t, rec)
	require.NotNil(t, order.ConsultantID)
	assert.Equal(t, anna.ID, *order.ConsultantID)
	assert.Equal(t, orderdomain.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, "80.00", order.Total.StringFixed(2))
	assert.Zero(t, f.stack.Count(t, &commissiondomain.Commission{}))

	rec = f.do(t, call{
		method: http.MethodPost,
		path:   "/admin/orders/" + order.ID.String() + "/status",
		body:   map[string]string{"status": "paid"},
		token:  "admin-token",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(1), f.stack.Count(t, &commissiondomain.Commission{}))

	rec = f.do(t, call{
		method: http.MethodGet,
		path:   "/admin/commissions/summary?consultant_id=" + anna.ID.String() + "&month=1&year=2024",
		token:  "admin-token",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[commissiondomain.SummaryResponse](t, rec)
	assert.Equal(t, 1, summary.Count)
	assert.Equal(t, "8.00", summary.TotalAmount.StringFixed(2))
}

func TestExplicitReferralBeatsStoredToken(t *testing.T) {
	f := newFixture(t)
	f.stack.Consultant(t, "ANNA10", consultantdomain.StatusActive, "10")
	bea := f.stack.Consultant(t, "BEA15", consultantdomain.StatusActive, "15")

	rec := f.do(t, call{method: http.MethodPut, path: "/api/attribution", body: map[string]string{"code": "ANNA10"}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, call{method: http.MethodPost, path: "/api/orders", body: orderBody("bea15"), cookies: rec.Result().Cookies()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decode[orderdomain.Order](t, rec)
	require.NotNil(t, order.ConsultantID)
	assert.Equal(t, bea.ID, *order.ConsultantID)
}

func TestMalformedReferralPlacesUnattributedOrder(t *testing.T) {
	f := newFixture(t)
	f.stack.Consultant(t, "ANNA10", consultantdomain.StatusActive, "10")

	rec := f.do(t, call{method: http.MethodPost, path: "/api/orders", body: orderBody("anna 10")})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decode[orderdomain.Order](t, rec)
	assert.Nil(t, order.ConsultantID)
	assert.Nil(t, order.ConsultantCode)
	assert.Equal(t, int64(1), f.stack.Count(t, &orderdomain.Order{}))
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t)

	body := orderBody("")
	body["customer"] = map[string]any{"name": "Ana", "email": "not-an-email"}
	rec := f.do(t, call{method: http.MethodPost, path: "/api/orders", body: body})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body = orderBody("")
	body["items"] = []map[string]any{}
	rec = f.do(t, call{method: http.MethodPost, path: "/api/orders", body: body})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "empty_order", errorMessage(t, rec))
}

func TestCommissionTransitions(t *testing.T) {
	f := newFixture(t)
	f.stack.Consultant(t, "ANNA10", consultantdomain.StatusActive, "10")
	res, err := f.stack.Orders.Place(context.Background(), orderdomain.PlaceOrderInput{
		Channel:          orderdomain.ChannelDirect,
		Customer:         testkit.Contact("ana@example.com"),
		Items:            testkit.Items("100.00"),
		ReferralCode:     "ANNA10",
		PaymentConfirmed: true,
	})
	require.NoError(t, err)

	var commission commissiondomain.Commission
	require.NoError(t, f.stack.DB.Where("order_id = ?", res.Order.ID).First(&commission).Error)
	base := "/admin/commissions/" + commission.ID.String()

	rec := f.do(t, call{method: http.MethodPost, path: base + "/pay", token: "admin-token"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, call{method: http.MethodPost, path: base + "/approve", token: "admin-token"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, commissiondomain.StatusApproved, decode[commissiondomain.Commission](t, rec).Status)

	rec = f.do(t, call{method: http.MethodPost, path: base + "/pay", token: "admin-token"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, commissiondomain.StatusPaid, decode[commissiondomain.Commission](t, rec).Status)

	rec = f.do(t, call{method: http.MethodPost, path: "/admin/commissions/123/approve", token: "admin-token"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckoutSessionRoutes(t *testing.T) {
	f := newFixture(t)

	f.checkout.On("CreateHostedCheckout", mock.MatchedBy(func(req paymentdomain.CheckoutRequest) bool {
		return req.ReferralCode == "ANNA10" && req.Customer.Email == "ana@example.com" && len(req.Items) == 1
	})).Return(&paymentdomain.HostedCheckout{SessionID: "cs_test_1", URL: "https://pay.test/cs_test_1"}, nil).Once()

	rec := f.do(t, call{method: http.MethodPost, path: "/api/checkout/sessions", body: orderBody("ANNA10")})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "cs_test_1", decode[paymentdomain.HostedCheckout](t, rec).SessionID)

	f.checkout.On("ConfirmRedirect", "cs_test_2").Return(nil, paymentdomain.ErrCheckoutSessionNotPaid).Once()
	rec = f.do(t, call{method: http.MethodGet, path: "/api/checkout/sessions/cs_test_2/verify"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestWalletCallback(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, call{method: http.MethodGet, path: "/api/payments/wallet/callback?externalId=abc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.wallet.On("HandleCallback", int64(42)).
		Return(&paymentdomain.CallbackResult{Status: paymentdomain.CollectStatus("success"), Changed: true}, nil).Once()
	rec = f.do(t, call{method: http.MethodGet, path: "/api/payments/wallet/callback?externalId=42"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[paymentdomain.CallbackResult](t, rec).Changed)
}

func TestStripeWebhook(t *testing.T) {
	f := newFixture(t)

	f.webhooks.On("Ingest", "forged").Return(paymentdomain.OutcomeRejected, paymentdomain.ErrInvalidSignature).Once()
	rec := f.do(t, call{method: http.MethodPost, path: "/webhooks/stripe", body: "forged"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.webhooks.On("Ingest", `{"id":"evt_1"}`).Return(paymentdomain.OutcomeIgnored, nil).Once()
	rec = f.do(t, call{method: http.MethodPost, path: "/webhooks/stripe", body: `{"id":"evt_1"}`})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true,"outcome":"ignored"}`, rec.Body.String())
}

func TestRunMonthlyReports(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, call{method: http.MethodPost, path: "/internal/reports/monthly", token: "admin-token"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	december := reportingdomain.Period{Year: 2023, Month: time.December}
	f.reports.On("Run", december).Return(&reportingdomain.BatchResult{RunID: "run-1", Period: december, Sent: 2}, nil).Once()
	rec = f.do(t, call{method: http.MethodPost, path: "/internal/reports/monthly", token: "cron-secret"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[reportingdomain.BatchResult](t, rec).Sent)

	march := reportingdomain.Period{Year: 2024, Month: time.March}
	f.reports.On("Run", march).Return(nil, reportingdomain.ErrBatchRunning).Once()
	rec = f.do(t, call{method: http.MethodPost, path: "/internal/reports/monthly?period=2024-03", token: "cron-secret"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, call{method: http.MethodPost, path: "/internal/reports/monthly?period=" + strings.Repeat("x", 3), token: "cron-secret"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
