package email

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	consultantdomain "github.com/railzwaylabs/atelier/internal/consultant/domain"
	"github.com/railzwaylabs/atelier/internal/reporting/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

func january() domain.Summary {
	period := domain.Period{Year: 2024, Month: time.January}
	return domain.Summary{
		ConsultantCode:   "ANNA10",
		ConsultantName:   "Anna",
		Period:           period,
		PeriodStart:      period.Start(),
		PeriodEnd:        period.End(),
		Currency:         "USD",
		TotalCommissions: 1,
		TotalEarnings:    decimal.RequireFromString("8"),
		TopClients: []domain.TopClient{
			{Name: "Ana Client", Email: "ana@example.com", Total: decimal.RequireFromString("80")},
		},
	}
}

func TestSendReport(t *testing.T) {
	d := &fakeDialer{}
	s := NewWithDialer(d, "reports@atelier.test")
	consultant := &consultantdomain.Consultant{Code: "ANNA10", Name: "Anna", Email: "anna@atelier.test"}

	require.NoError(t, s.SendReport(context.Background(), consultant, january()))
	require.Len(t, d.sent, 1)

	m := d.sent[0]
	assert.Equal(t, []string{"reports@atelier.test"}, m.GetHeader("From"))
	assert.Equal(t, []string{`"Anna" <anna@atelier.test>`}, m.GetHeader("To"))
	assert.Equal(t, []string{"Your commission report for January 2024"}, m.GetHeader("Subject"))

	var raw bytes.Buffer
	_, err := m.WriteTo(&raw)
	require.NoError(t, err)
	assert.Contains(t, raw.String(), "anna10-2024-01.pdf")
}

func TestSendReportNeedsRecipient(t *testing.T) {
	d := &fakeDialer{}
	err := NewWithDialer(d, "reports@atelier.test").SendReport(context.Background(), &consultantdomain.Consultant{Code: "X"}, january())
	assert.ErrorIs(t, err, ErrMissingRecipient)
	assert.Empty(t, d.sent)
}

func TestSendReportWrapsDialError(t *testing.T) {
	d := &fakeDialer{err: errors.New("connection refused")}
	consultant := &consultantdomain.Consultant{Email: "anna@atelier.test"}
	err := NewWithDialer(d, "reports@atelier.test").SendReport(context.Background(), consultant, january())
	assert.ErrorContains(t, err, "connection refused")
}

func TestBody(t *testing.T) {
	body := Body(january())
	assert.Contains(t, body, "2024-01-01 to 2024-01-31")
	assert.Contains(t, body, "Earnings: 8.00 USD")
	assert.Contains(t, body, "1. Ana Client <ana@example.com> 80.00 USD")
}
