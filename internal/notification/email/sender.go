// Package email delivers monthly reports over SMTP.
package email

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/railzwaylabs/atelier/internal/config"
	consultantdomain "github.com/railzwaylabs/atelier/internal/consultant/domain"
	"github.com/railzwaylabs/atelier/internal/notification/pdf"
	"github.com/railzwaylabs/atelier/internal/reporting/domain"
	"gopkg.in/gomail.v2"
)

var ErrMissingRecipient = errors.New("consultant_email_missing")

// Dialer is satisfied by *gomail.Dialer.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type Sender struct {
	dialer Dialer
	from   string
}

func New(cfg config.SMTPConfig) *Sender {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return NewWithDialer(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), from)
}

func NewWithDialer(d Dialer, from string) *Sender {
	return &Sender{dialer: d, from: from}
}

func (s *Sender) SendReport(ctx context.Context, consultant *consultantdomain.Consultant, summary domain.Summary) error {
	if strings.TrimSpace(consultant.Email) == "" {
		return ErrMissingRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	attachment, err := pdf.RenderSummary(summary)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetAddressHeader("To", consultant.Email, consultant.Name)
	m.SetHeader("Subject", Subject(summary))
	m.SetBody("text/plain", Body(summary))
	m.Attach(pdf.FileName(summary), gomail.SetCopyFunc(func(w io.Writer) error {
		_, err := w.Write(attachment)
		return err
	}))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send report email: %w", err)
	}
	return nil
}

func Subject(summary domain.Summary) string {
	return fmt.Sprintf("Your commission report for %s", summary.PeriodStart.Format("January 2006"))
}

// Body is the plain-text version of the report.
func Body(summary domain.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", summary.ConsultantName)
	fmt.Fprintf(&b, "Here is your summary for %s to %s.\n\n",
		summary.PeriodStart.Format("2006-01-02"), summary.PeriodEnd.Format("2006-01-02"))
	fmt.Fprintf(&b, "Commissions: %d\n", summary.TotalCommissions)
	fmt.Fprintf(&b, "Earnings: %s %s\n", summary.TotalEarnings.StringFixed(2), summary.Currency)
	fmt.Fprintf(&b, "New clients: %d\n", summary.NewClients)
	if len(summary.TopClients) > 0 {
		b.WriteString("\nTop clients:\n")
		for i, c := range summary.TopClients {
			fmt.Fprintf(&b, "%d. %s <%s> %s %s\n", i+1, c.Name, c.Email, c.Total.StringFixed(2), summary.Currency)
		}
	}
	b.WriteString("\nThe full report is attached.\n")
	return b.String()
}
