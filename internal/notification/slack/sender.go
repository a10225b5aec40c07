// Package slack posts report digests to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	consultantdomain "github.com/railzwaylabs/atelier/internal/consultant/domain"
	"github.com/railzwaylabs/atelier/internal/reporting/domain"
)

var ErrMissingWebhookURL = errors.New("missing_webhook_url")

type Sender struct {
	client     *http.Client
	webhookURL string
}

func New(webhookURL string) *Sender {
	return &Sender{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		webhookURL: webhookURL,
	}
}

func (s *Sender) SendReport(ctx context.Context, consultant *consultantdomain.Consultant, summary domain.Summary) error {
	if strings.TrimSpace(s.webhookURL) == "" {
		return ErrMissingWebhookURL
	}

	body, err := json.Marshal(map[string]any{"text": Text(consultant, summary)})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("slack_api_error: status=%d", resp.StatusCode)
	}
	return nil
}

func Text(consultant *consultantdomain.Consultant, summary domain.Summary) string {
	return fmt.Sprintf("*Monthly report %s: %s (%s)*\nCommissions: %d\nEarnings: %s %s\nNew clients: %d",
		summary.Period.String(),
		consultant.Name,
		consultant.Code,
		summary.TotalCommissions,
		summary.TotalEarnings.StringFixed(2),
		summary.Currency,
		summary.NewClients,
	)
}
