package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	consultantdomain "github.com/railzwaylabs/atelier/internal/consultant/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPeriod = errors.New("invalid_report_period")
	ErrBatchRunning  = errors.New("report_batch_running")
)

// Period is one calendar month in UTC.
type Period struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// PriorMonth is the month before the one containing now.
func PriorMonth(now time.Time) Period {
	first := time.Date(now.UTC().Year(), now.UTC().Month(), 1, 0, 0, 0, 0, time.UTC)
	prev := first.AddDate(0, -1, 0)
	return Period{Year: prev.Year(), Month: prev.Month()}
}

// ParsePeriod accepts YYYY-MM.
func ParsePeriod(raw string) (Period, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(raw))
	if err != nil {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

func (p Period) Valid() bool {
	return p.Year >= 2000 && p.Year <= 9999 && p.Month >= time.January && p.Month <= time.December
}

// Start is the first day of the month.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the last day of the month. The period covers every instant of that day.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, -1)
}

// Until is the exclusive upper bound used in queries: the first instant of the next month.
func (p Period) Until() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

func (p Period) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(p.Start()) && t.Before(p.Until())
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

type TopClient struct {
	ClientID snowflake.ID    `json:"client_id"`
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Total    decimal.Decimal `json:"total"`
	Orders   int             `json:"orders"`
}

// Summary is computed per consultant and period; it is never stored.
type Summary struct {
	ConsultantID     snowflake.ID    `json:"consultant_id"`
	ConsultantCode   string          `json:"consultant_code"`
	ConsultantName   string          `json:"consultant_name"`
	Period           Period          `json:"period"`
	PeriodStart      time.Time       `json:"period_start"`
	PeriodEnd        time.Time       `json:"period_end"`
	Currency         string          `json:"currency"`
	TotalCommissions int             `json:"total_commissions"`
	TotalEarnings    decimal.Decimal `json:"total_earnings"`
	NewClients       int             `json:"new_clients"`
	TopClients       []TopClient     `json:"top_clients"`
}

type Failure struct {
	ConsultantID   snowflake.ID `json:"consultant_id"`
	ConsultantCode string       `json:"consultant_code"`
	Error          string       `json:"error"`
}

type BatchResult struct {
	RunID      string    `json:"run_id"`
	Period     Period    `json:"period"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Processed  int       `json:"processed"`
	Sent       int       `json:"sent"`
	Failures   []Failure `json:"failures"`
}

//go:generate mockgen -destination=../mocks/sender.go -package=mocks . Sender

// Sender delivers one consultant's monthly summary.
type Sender interface {
	SendReport(ctx context.Context, consultant *consultantdomain.Consultant, summary Summary) error
}

// Locker keeps two batches for the same period from running at once.
type Locker interface {
	Acquire(ctx context.Context, key, token string, ttl time.Duration) (func(context.Context) error, error)
}

// Progress is told after each consultant is handled.
type Progress func(done, total int)

type Service interface {
	Run(ctx context.Context, period Period, progress Progress) (*BatchResult, error)
	Summarize(ctx context.Context, consultant *consultantdomain.Consultant, period Period) (*Summary, error)
}
