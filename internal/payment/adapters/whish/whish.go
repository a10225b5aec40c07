package whish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/railzwaylabs/atelier/internal/config"
	paymentdomain "github.com/railzwaylabs/atelier/internal/payment/domain"
)

// Client talks to the Whish collect API. Credentials travel as the channel, secret and
// websiteurl headers on every request.
type Client struct {
	baseURL    string
	channel    string
	secret     string
	websiteURL string
	client     *http.Client
}

func New(cfg config.WhishConfig) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{
		baseURL:    baseURL,
		channel:    strings.TrimSpace(cfg.Channel),
		secret:     strings.TrimSpace(cfg.Secret),
		websiteURL: strings.TrimSpace(cfg.WebsiteURL),
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

type request struct {
	Amount             *float64 `json:"amount,omitempty"`
	Currency           string   `json:"currency,omitempty"`
	Invoice            string   `json:"invoice,omitempty"`
	ExternalID         *int64   `json:"externalId,omitempty"`
	SuccessCallbackURL string   `json:"successCallbackUrl,omitempty"`
	FailureCallbackURL string   `json:"failureCallbackUrl,omitempty"`
	SuccessRedirectURL string   `json:"successRedirectUrl,omitempty"`
	FailureRedirectURL string   `json:"failureRedirectUrl,omitempty"`
}

type response struct {
	Status bool            `json:"status"`
	Code   any             `json:"code"`
	Dialog any             `json:"dialog"`
	Data   json.RawMessage `json:"data"`
}

func (c *Client) Collect(ctx context.Context, input paymentdomain.CollectInput) (*paymentdomain.Collect, error) {
	amount := input.Amount
	externalID := input.ExternalID
	payload := request{
		Amount:             &amount,
		Currency:           input.Currency,
		Invoice:            input.Invoice,
		ExternalID:         &externalID,
		SuccessCallbackURL: input.SuccessCallbackURL,
		FailureCallbackURL: input.FailureCallbackURL,
		SuccessRedirectURL: input.SuccessRedirectURL,
		FailureRedirectURL: input.FailureRedirectURL,
	}

	var data struct {
		CollectURL string `json:"collectUrl"`
	}
	if err := c.call(ctx, "payment/whish", payload, &data); err != nil {
		return nil, err
	}
	if data.CollectURL == "" {
		return nil, fmt.Errorf("%w: whish returned no collect url", paymentdomain.ErrGatewayUnavailable)
	}
	return &paymentdomain.Collect{ExternalID: externalID, CollectURL: data.CollectURL}, nil
}

func (c *Client) Status(ctx context.Context, currency string, externalID int64) (paymentdomain.CollectStatus, error) {
	payload := request{Currency: currency, ExternalID: &externalID}

	var data struct {
		CollectStatus    string `json:"collectStatus"`
		PayerPhoneNumber string `json:"payerPhoneNumber"`
	}
	if err := c.call(ctx, "payment/collect/status", payload, &data); err != nil {
		return "", err
	}

	switch strings.ToLower(strings.TrimSpace(data.CollectStatus)) {
	case "success":
		return paymentdomain.CollectStatusSuccess, nil
	case "failed":
		return paymentdomain.CollectStatusFailed, nil
	default:
		return paymentdomain.CollectStatusPending, nil
	}
}

func (c *Client) call(ctx context.Context, endpoint string, payload any, out any) error {
	if c.baseURL == "" || c.channel == "" || c.secret == "" || c.websiteURL == "" {
		return paymentdomain.ErrGatewayNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal whish request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("channel", c.channel)
	req.Header.Set("secret", c.secret)
	req.Header.Set("websiteurl", c.websiteURL)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", paymentdomain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read whish response: %v", paymentdomain.ErrGatewayUnavailable, err)
	}

	var envelope response
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("%w: whish status %d: %v", paymentdomain.ErrGatewayUnavailable, resp.StatusCode, err)
	}
	if !envelope.Status {
		return fmt.Errorf("%w: whish error %s", paymentdomain.ErrGatewayUnavailable, describe(envelope))
	}
	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("%w: decode whish data: %v", paymentdomain.ErrGatewayUnavailable, err)
	}
	return nil
}

func describe(r response) string {
	code := "unknown"
	if r.Code != nil {
		code = fmt.Sprintf("%v", r.Code)
	}
	if dialog, ok := r.Dialog.(map[string]any); ok {
		if msg, ok := dialog["message"].(string); ok && msg != "" {
			return code + " - " + msg
		}
	}
	return code
}
