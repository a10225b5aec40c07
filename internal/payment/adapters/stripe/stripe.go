package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	clientdomain "github.com/railzwaylabs/atelier/internal/client/domain"
	"github.com/railzwaylabs/atelier/internal/clock"
	"github.com/railzwaylabs/atelier/internal/config"
	orderdomain "github.com/railzwaylabs/atelier/internal/order/domain"
	paymentdomain "github.com/railzwaylabs/atelier/internal/payment/domain"
	"github.com/shopspring/decimal"
)

const (
	metadataReferralCode    = "referral_code"
	metadataCustomerName    = "customer_name"
	metadataCustomerPhone   = "customer_phone"
	metadataCart            = "cart"
	metadataShippingAddress = "shipping_address"
)

type Adapter struct {
	apiKey        string
	webhookSecret string
	baseURL       string
	tolerance     time.Duration
	clock         clock.Clock
	client        *http.Client
}

func New(cfg config.StripeConfig, clk clock.Clock) *Adapter {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}
	return &Adapter{
		apiKey:        strings.TrimSpace(cfg.APIKey),
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		baseURL:       baseURL,
		tolerance:     cfg.WebhookTolerance,
		clock:         clk,
		client:        &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *Adapter) Name() string {
	return paymentdomain.ProviderStripe
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	if a.webhookSecret == "" {
		return paymentdomain.ErrGatewayNotConfigured
	}
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return paymentdomain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseStripeSignature(sigHeader)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}

	if a.tolerance > 0 {
		unix, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return paymentdomain.ErrInvalidSignature
		}
		age := a.clock.Now(ctx).Sub(time.Unix(unix, 0))
		if age > a.tolerance || age < -a.tolerance {
			return paymentdomain.ErrInvalidSignature
		}
	}

	expected := Sign(a.webhookSecret, timestamp, payload)
	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return paymentdomain.ErrInvalidSignature
}

// Sign returns the v1 signature for a payload delivered at timestamp.
func Sign(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(timestamp + "." + string(payload)))
	return hex.EncodeToString(mac.Sum(nil))
}

func parseStripeSignature(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

type stripeEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type stripeCheckoutSession struct {
	ID              string            `json:"id"`
	URL             string            `json:"url"`
	Status          string            `json:"status"`
	PaymentStatus   string            `json:"payment_status"`
	AmountTotal     int64             `json:"amount_total"`
	Currency        string            `json:"currency"`
	CustomerEmail   string            `json:"customer_email"`
	Created         int64             `json:"created"`
	ExpiresAt       int64             `json:"expires_at"`
	Metadata        map[string]string `json:"metadata"`
	CustomerDetails *struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		Phone string `json:"phone"`
	} `json:"customer_details"`
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.CheckoutEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	switch strings.TrimSpace(event.Type) {
	case paymentdomain.EventTypeCheckoutSessionCompleted:
		return a.parseCheckoutSessionCompleted(ctx, event, payload)
	default:
		return nil, paymentdomain.ErrEventIgnored
	}
}

func (a *Adapter) parseCheckoutSessionCompleted(ctx context.Context, event stripeEvent, payload []byte) (*paymentdomain.CheckoutEvent, error) {
	var session stripeCheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(session.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	contact := clientdomain.Contact{
		Email: session.CustomerEmail,
		Name:  session.Metadata[metadataCustomerName],
		Phone: session.Metadata[metadataCustomerPhone],
	}
	if d := session.CustomerDetails; d != nil {
		if d.Email != "" {
			contact.Email = d.Email
		}
		if contact.Name == "" {
			contact.Name = d.Name
		}
		if contact.Phone == "" {
			contact.Phone = d.Phone
		}
	}

	items, err := cartFromMetadata(session.Metadata)
	if err != nil {
		return nil, err
	}

	var address *orderdomain.Address
	if raw := session.Metadata[metadataShippingAddress]; raw != "" {
		address = &orderdomain.Address{}
		if err := json.Unmarshal([]byte(raw), address); err != nil {
			return nil, paymentdomain.ErrInvalidEvent
		}
	}

	return &paymentdomain.CheckoutEvent{
		Provider:        paymentdomain.ProviderStripe,
		EventID:         event.ID,
		EventType:       event.Type,
		SessionID:       session.ID,
		Paid:            session.PaymentStatus == "paid" || session.PaymentStatus == "no_payment_required",
		AmountTotal:     session.AmountTotal,
		Currency:        strings.ToUpper(strings.TrimSpace(session.Currency)),
		Customer:        contact,
		Items:           items,
		ShippingAddress: address,
		ReferralCode:    session.Metadata[metadataReferralCode],
		OccurredAt:      a.timestamp(ctx, session.Created, event.Created),
		RawPayload:      payload,
	}, nil
}

func (a *Adapter) timestamp(ctx context.Context, primary int64, fallback int64) time.Time {
	value := primary
	if value == 0 {
		value = fallback
	}
	if value == 0 {
		return a.clock.Now(ctx).UTC()
	}
	return time.Unix(value, 0).UTC()
}

func (a *Adapter) CreateCheckoutSession(ctx context.Context, input paymentdomain.SessionInput) (*paymentdomain.CheckoutSession, error) {
	if a.apiKey == "" {
		return nil, paymentdomain.ErrGatewayNotConfigured
	}

	endpoint := a.baseURL + "/v1/checkout/sessions"
	currency := strings.ToLower(input.Currency)

	data := url.Values{}
	data.Set("mode", "payment")
	data.Set("success_url", input.SuccessURL)
	data.Set("cancel_url", input.CancelURL)
	for i, item := range input.Items {
		prefix := fmt.Sprintf("line_items[%d]", i)
		data.Set(prefix+"[price_data][currency]", currency)
		data.Set(prefix+"[price_data][product_data][name]", item.Name)
		data.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(MinorUnits(item.UnitPrice), 10))
		data.Set(prefix+"[quantity]", strconv.Itoa(item.Quantity))
	}
	if input.ShippingFee.IsPositive() {
		prefix := fmt.Sprintf("line_items[%d]", len(input.Items))
		data.Set(prefix+"[price_data][currency]", currency)
		data.Set(prefix+"[price_data][product_data][name]", "Shipping")
		data.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(MinorUnits(input.ShippingFee), 10))
		data.Set(prefix+"[quantity]", "1")
	}
	if input.Customer.Email != "" {
		data.Set("customer_email", input.Customer.Email)
	}

	metadata, err := CartMetadata(input.Items)
	if err != nil {
		return nil, err
	}
	metadata[metadataCustomerName] = input.Customer.Name
	metadata[metadataCustomerPhone] = input.Customer.Phone
	metadata[metadataReferralCode] = input.ReferralCode
	if input.ShippingAddress != nil {
		address, err := json.Marshal(input.ShippingAddress)
		if err != nil {
			return nil, err
		}
		metadata[metadataShippingAddress] = string(address)
	}
	for k, v := range metadata {
		if v != "" {
			data.Set("metadata["+k+"]", v)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var session stripeCheckoutSession
	if err := a.do(req, &session); err != nil {
		return nil, err
	}
	return toSession(session), nil
}

func (a *Adapter) RetrieveCheckoutSession(ctx context.Context, sessionID string) (*paymentdomain.CheckoutSession, error) {
	if a.apiKey == "" {
		return nil, paymentdomain.ErrGatewayNotConfigured
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, paymentdomain.ErrCheckoutSessionNotFound
	}

	endpoint := a.baseURL + "/v1/checkout/sessions/" + url.PathEscape(sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	var session stripeCheckoutSession
	if err := a.do(req, &session); err != nil {
		return nil, err
	}
	return toSession(session), nil
}

func (a *Adapter) do(req *http.Request, out any) error {
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", paymentdomain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return paymentdomain.ErrCheckoutSessionNotFound
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: stripe status %d body: %s", paymentdomain.ErrGatewayUnavailable, resp.StatusCode, string(bodyBytes))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode stripe response: %v", paymentdomain.ErrGatewayUnavailable, err)
	}
	return nil
}

func toSession(session stripeCheckoutSession) *paymentdomain.CheckoutSession {
	status := paymentdomain.SessionStatusOpen
	switch session.Status {
	case "complete":
		status = paymentdomain.SessionStatusComplete
	case "expired":
		status = paymentdomain.SessionStatusExpired
	}
	out := &paymentdomain.CheckoutSession{
		ID:          session.ID,
		Provider:    paymentdomain.ProviderStripe,
		URL:         session.URL,
		Status:      status,
		Paid:        session.PaymentStatus == "paid" || session.PaymentStatus == "no_payment_required",
		AmountTotal: session.AmountTotal,
	}
	if session.ExpiresAt > 0 {
		out.ExpiresAt = time.Unix(session.ExpiresAt, 0).UTC()
	}
	return out
}

// MinorUnits converts a two-decimal amount to cents.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
