package stripe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	clientdomain "github.com/railzwaylabs/atelier/internal/client/domain"
	"github.com/railzwaylabs/atelier/internal/clock"
	"github.com/railzwaylabs/atelier/internal/config"
	orderdomain "github.com/railzwaylabs/atelier/internal/order/domain"
	paymentdomain "github.com/railzwaylabs/atelier/internal/payment/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newAdapter(baseURL string) *Adapter {
	return New(config.StripeConfig{
		APIKey:           "sk_test",
		WebhookSecret:    testSecret,
		WebhookTolerance: 5 * time.Minute,
		BaseURL:          baseURL,
	}, clock.Fixed{At: now})
}

func signedHeaders(secret string, at time.Time, payload []byte) http.Header {
	ts := strconv.FormatInt(at.Unix(), 10)
	h := http.Header{}
	h.Set("Stripe-Signature", fmt.Sprintf("t=%s,v1=%s", ts, Sign(secret, ts, payload)))
	return h
}

func TestVerify(t *testing.T) {
	a := newAdapter("")
	payload := []byte(`{"id":"evt_1"}`)

	tests := []struct {
		name    string
		headers http.Header
		wantErr error
	}{
		{name: "valid", headers: signedHeaders(testSecret, now, payload)},
		{name: "missing header", headers: http.Header{}, wantErr: paymentdomain.ErrInvalidSignature},
		{name: "wrong secret", headers: signedHeaders("other", now, payload), wantErr: paymentdomain.ErrInvalidSignature},
		{name: "stale timestamp", headers: signedHeaders(testSecret, now.Add(-10*time.Minute), payload), wantErr: paymentdomain.ErrInvalidSignature},
		{name: "malformed header", headers: http.Header{"Stripe-Signature": []string{"garbage"}}, wantErr: paymentdomain.ErrInvalidSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.Verify(context.Background(), payload, tt.headers)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	a := newAdapter("")
	headers := signedHeaders(testSecret, now, []byte(`{"id":"evt_1"}`))
	assert.ErrorIs(t, a.Verify(context.Background(), []byte(`{"id":"evt_2"}`), headers), paymentdomain.ErrInvalidSignature)
}

func TestVerifyWithoutSecret(t *testing.T) {
	a := New(config.StripeConfig{}, clock.Fixed{At: now})
	assert.ErrorIs(t, a.Verify(context.Background(), []byte(`{}`), http.Header{}), paymentdomain.ErrGatewayNotConfigured)
}

func TestParseCheckoutSessionCompleted(t *testing.T) {
	payload := []byte(`{
		"id": "evt_123",
		"type": "checkout.session.completed",
		"created": 1709294400,
		"data": {"object": {
			"id": "sess_123",
			"payment_status": "paid",
			"status": "complete",
			"amount_total": 5099,
			"currency": "usd",
			"customer_details": {"email": "ana@example.com", "name": "Ana"},
			"metadata": {
				"referral_code": "maria10",
				"cart_0": "R1:1:4500:Ring",
				"shipping_address": "{\"line1\":\"1 Main St\",\"city\":\"Lisbon\",\"postal_code\":\"1000\",\"country\":\"PT\"}"
			}
		}}
	}`)

	event, err := newAdapter("").Parse(context.Background(), payload)
	require.NoError(t, err)

	assert.Equal(t, "evt_123", event.EventID)
	assert.Equal(t, "sess_123", event.SessionID)
	assert.True(t, event.Paid)
	assert.Equal(t, int64(5099), event.AmountTotal)
	assert.Equal(t, "USD", event.Currency)
	assert.Equal(t, "ana@example.com", event.Customer.Email)
	assert.Equal(t, "Ana", event.Customer.Name)
	assert.Equal(t, "maria10", event.ReferralCode)
	require.Len(t, event.Items, 1)
	assert.Equal(t, "Ring", event.Items[0].Name)
	assert.True(t, event.Items[0].UnitPrice.Equal(decimal.RequireFromString("45.00")))
	require.NotNil(t, event.ShippingAddress)
	assert.Equal(t, "Lisbon", event.ShippingAddress.City)
}

func TestParseIgnoresOtherEvents(t *testing.T) {
	_, err := newAdapter("").Parse(context.Background(), []byte(`{"id":"evt_1","type":"charge.refunded","data":{"object":{}}}`))
	assert.ErrorIs(t, err, paymentdomain.ErrEventIgnored)
}

func TestParseRejectsBadCart(t *testing.T) {
	tests := []struct {
		name     string
		metadata string
	}{
		{name: "legacy json", metadata: `{"cart":"not json"}`},
		{name: "missing fields", metadata: `{"cart_0":"R1:1"}`},
		{name: "bad quantity", metadata: `{"cart_0":"R1:one:4500:Ring"}`},
		{name: "bad amount", metadata: `{"cart_0":"R1:1:45.00:Ring"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"sess_1","metadata":` + tt.metadata + `}}}`)
			_, err := newAdapter("").Parse(context.Background(), payload)
			assert.ErrorIs(t, err, paymentdomain.ErrInvalidEvent)
		})
	}
}

func TestParseReadsLegacyJSONCart(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","created":1709294400,"data":{"object":{"id":"sess_1","metadata":{"cart":"[{\"sku\":\"R1\",\"name\":\"Ring\",\"unit_price\":\"45.00\",\"quantity\":2}]"}}}}`)
	event, err := newAdapter("").Parse(context.Background(), payload)
	require.NoError(t, err)
	require.Len(t, event.Items, 1)
	assert.Equal(t, 2, event.Items[0].Quantity)
}

func TestParseWithoutTimestampUsesClock(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"sess_1","metadata":{"cart_0":"R1:1:4500:Ring"}}}}`)
	event, err := newAdapter("").Parse(context.Background(), payload)
	require.NoError(t, err)
	assert.True(t, event.OccurredAt.Equal(now))
}

func tenItemCart() []orderdomain.LineItem {
	items := make([]orderdomain.LineItem, 0, 10)
	for i := 0; i < 10; i++ {
		items = append(items, orderdomain.LineItem{
			SKU:       fmt.Sprintf("NECKLACE-%02d", i),
			Name:      fmt.Sprintf("Freshwater pearl necklace, 18k gold clasp, no. %d", i),
			UnitPrice: decimal.RequireFromString("129.90"),
			Quantity:  i%3 + 1,
		})
	}
	return items
}

func TestCartMetadataFitsStripeLimits(t *testing.T) {
	items := tenItemCart()

	metadata, err := CartMetadata(items)
	require.NoError(t, err)
	require.Greater(t, len(metadata), 1)
	for key, value := range metadata {
		assert.LessOrEqual(t, len(value), 500, key)
		assert.LessOrEqual(t, len(key), 40, key)
	}

	decoded, err := cartFromMetadata(metadata)
	require.NoError(t, err)
	require.Len(t, decoded, len(items))
	for i := range items {
		assert.Equal(t, items[i].SKU, decoded[i].SKU)
		assert.Equal(t, items[i].Name, decoded[i].Name)
		assert.Equal(t, items[i].Quantity, decoded[i].Quantity)
		assert.True(t, items[i].UnitPrice.Equal(decoded[i].UnitPrice))
	}
}

func TestCartMetadataRejectsOversizedCart(t *testing.T) {
	items := make([]orderdomain.LineItem, 0, 200)
	for i := 0; i < 200; i++ {
		items = append(items, orderdomain.LineItem{
			SKU:       fmt.Sprintf("SKU-%03d", i),
			Name:      strings.Repeat("x", 100),
			UnitPrice: decimal.RequireFromString("10.00"),
			Quantity:  1,
		})
	}
	_, err := CartMetadata(items)
	assert.ErrorIs(t, err, paymentdomain.ErrCartTooLarge)
}

func TestCreateCheckoutSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "payment", r.PostForm.Get("mode"))
		assert.Equal(t, "usd", r.PostForm.Get("line_items[0][price_data][currency]"))
		assert.Equal(t, "4500", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		assert.Equal(t, "599", r.PostForm.Get("line_items[1][price_data][unit_amount]"))
		assert.Equal(t, "Shipping", r.PostForm.Get("line_items[1][price_data][product_data][name]"))
		assert.Equal(t, "MARIA10", r.PostForm.Get("metadata[referral_code]"))
		assert.Equal(t, "ana@example.com", r.PostForm.Get("customer_email"))
		assert.Equal(t, "R1:1:4500:Ring", r.PostForm.Get("metadata[cart_0]"))
		assert.Empty(t, r.PostForm.Get("metadata[cart_1]"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","url":"https://checkout.stripe.test/cs_test_1","status":"open","payment_status":"unpaid","amount_total":5099,"expires_at":1709380800}`))
	}))
	defer srv.Close()

	session, err := newAdapter(srv.URL).CreateCheckoutSession(context.Background(), paymentdomain.SessionInput{
		Currency:     "USD",
		Items:        []orderdomain.LineItem{{SKU: "R1", Name: "Ring", UnitPrice: decimal.RequireFromString("45.00"), Quantity: 1}},
		ShippingFee:  decimal.RequireFromString("5.99"),
		Customer:     clientdomain.Contact{Name: "Ana", Email: "ana@example.com"},
		ReferralCode: "MARIA10",
		SuccessURL:   "https://shop.test/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:    "https://shop.test/cart",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", session.ID)
	assert.Equal(t, "https://checkout.stripe.test/cs_test_1", session.URL)
	assert.Equal(t, paymentdomain.SessionStatusOpen, session.Status)
	assert.False(t, session.Paid)
}

func TestCreateCheckoutSessionSplitsLargeCart(t *testing.T) {
	items := tenItemCart()
	var metadata map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		metadata = map[string]string{}
		for key, values := range r.PostForm {
			if strings.HasPrefix(key, "metadata[") {
				metadata[strings.TrimSuffix(strings.TrimPrefix(key, "metadata["), "]")] = values[0]
				assert.LessOrEqual(t, len(values[0]), 500, key)
			}
		}
		assert.Equal(t, strconv.Itoa(items[9].Quantity), r.PostForm.Get("line_items[9][quantity]"))
		_, _ = w.Write([]byte(`{"id":"cs_big","status":"open","payment_status":"unpaid"}`))
	}))
	defer srv.Close()

	_, err := newAdapter(srv.URL).CreateCheckoutSession(context.Background(), paymentdomain.SessionInput{
		Currency:   "USD",
		Items:      items,
		Customer:   clientdomain.Contact{Name: "Ana", Email: "ana@example.com"},
		SuccessURL: "https://shop.test/success",
		CancelURL:  "https://shop.test/cart",
	})
	require.NoError(t, err)

	decoded, err := cartFromMetadata(metadata)
	require.NoError(t, err)
	assert.Len(t, decoded, 10)
}

func TestRetrieveCheckoutSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/checkout/sessions/cs_paid":
			_, _ = w.Write([]byte(`{"id":"cs_paid","status":"complete","payment_status":"paid","amount_total":5099}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	a := newAdapter(srv.URL)

	session, err := a.RetrieveCheckoutSession(context.Background(), "cs_paid")
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.SessionStatusComplete, session.Status)
	assert.True(t, session.Paid)

	_, err = a.RetrieveCheckoutSession(context.Background(), "cs_missing")
	assert.ErrorIs(t, err, paymentdomain.ErrCheckoutSessionNotFound)
}

func TestGatewayErrorsAreWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newAdapter(srv.URL).RetrieveCheckoutSession(context.Background(), "cs_1")
	assert.ErrorIs(t, err, paymentdomain.ErrGatewayUnavailable)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(5099), MinorUnits(decimal.RequireFromString("50.99")))
	assert.Equal(t, int64(100), MinorUnits(decimal.RequireFromString("1")))
	assert.Equal(t, int64(0), MinorUnits(decimal.Zero))
}
