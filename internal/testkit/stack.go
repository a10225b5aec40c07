// Package testkit wires the order, client, consultant and commission services over an
// in-memory sqlite database for tests of the packages built on top of them.
package testkit

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	clientdomain "github.com/railzwaylabs/atelier/internal/client/domain"
	clientrepo "github.com/railzwaylabs/atelier/internal/client/repository"
	clientsvc "github.com/railzwaylabs/atelier/internal/client/service"
	commissiondomain "github.com/railzwaylabs/atelier/internal/commission/domain"
	commissionrepo "github.com/railzwaylabs/atelier/internal/commission/repository"
	commissionsvc "github.com/railzwaylabs/atelier/internal/commission/service"
	"github.com/railzwaylabs/atelier/internal/config"
	consultantdomain "github.com/railzwaylabs/atelier/internal/consultant/domain"
	consultantrepo "github.com/railzwaylabs/atelier/internal/consultant/repository"
	consultantsvc "github.com/railzwaylabs/atelier/internal/consultant/service"
	"github.com/railzwaylabs/atelier/internal/events"
	"github.com/railzwaylabs/atelier/internal/observability"
	orderdomain "github.com/railzwaylabs/atelier/internal/order/domain"
	orderrepo "github.com/railzwaylabs/atelier/internal/order/repository"
	ordersvc "github.com/railzwaylabs/atelier/internal/order/service"
	paymentdomain "github.com/railzwaylabs/atelier/internal/payment/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Clock is a settable clock safe for concurrent readers.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(at time.Time) *Clock {
	return &Clock{now: at.UTC()}
}

func (c *Clock) Now(context.Context) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(at time.Time) {
	c.mu.Lock()
	c.now = at.UTC()
	c.mu.Unlock()
}

type Stack struct {
	DB      *gorm.DB
	Node    *snowflake.Node
	Clock   *Clock
	Cfg     config.Config
	Log     *zap.Logger
	Events  *events.Recorder
	Metrics *observability.Metrics

	Consultants    consultantdomain.Directory
	ClientRepo     clientdomain.Repository
	Clients        clientdomain.Service
	CommissionRepo commissiondomain.Repository
	Commissions    commissiondomain.Service
	Orders         orderdomain.Service
}

func Config() config.Config {
	return config.Config{
		AppName:    "atelier",
		Currency:   "USD",
		Shipping:   config.ShippingConfig{FreeShippingThreshold: "50.00", FlatFee: "5.99"},
		Commission: config.CommissionConfig{DefaultRate: "10"},
		Reports:    config.ReportsConfig{TopClients: 3, CronSecret: "cron-secret", LockTTL: time.Minute},
		Admin:      config.AdminConfig{Token: "admin-token"},
		Attribution: config.AttributionConfig{
			CookieName:    "atelier_ref",
			VisitorHeader: "X-Visitor-Id",
		},
	}
}

// OpenDB returns a fresh in-memory database named after the test with every table migrated.
func OpenDB(t testing.TB) *gorm.DB {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	return open(t, "file:"+name+"?mode=memory&cache=shared")
}

// OpenFileDB returns a migrated database file under t.TempDir for tests that
// write from many goroutines. Writers queue on a single pooled connection.
func OpenFileDB(t testing.TB) *gorm.DB {
	path := filepath.Join(t.TempDir(), "atelier.db")
	db := open(t, "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return db
}

func open(t testing.TB, dsn string) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&consultantdomain.Consultant{},
		&clientdomain.Client{},
		&orderdomain.Order{},
		&commissiondomain.Commission{},
		&paymentdomain.EventRecord{},
	))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func New(t testing.TB) *Stack {
	return NewWithConfig(t, Config())
}

// NewConcurrent is New over OpenFileDB.
func NewConcurrent(t testing.TB) *Stack {
	return build(t, Config(), OpenFileDB(t))
}

func NewWithConfig(t testing.TB, cfg config.Config) *Stack {
	return build(t, cfg, OpenDB(t))
}

func build(t testing.TB, cfg config.Config, db *gorm.DB) *Stack {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	s := &Stack{
		DB:             db,
		Node:           node,
		Clock:          NewClock(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)),
		Cfg:            cfg,
		Log:            zap.NewNop(),
		Events:         &events.Recorder{},
		Metrics:        observability.NewMetrics(),
		ClientRepo:     clientrepo.Provide(),
		CommissionRepo: commissionrepo.Provide(),
	}

	s.Consultants = consultantsvc.New(consultantsvc.Params{
		DB: db, Log: s.Log, GenID: node, Clock: s.Clock, Repo: consultantrepo.Provide(),
	})
	s.Clients = clientsvc.New(clientsvc.Params{
		Log: s.Log, GenID: node, Clock: s.Clock, Repo: s.ClientRepo,
	})
	s.Commissions = commissionsvc.New(commissionsvc.Params{
		DB: db, Log: s.Log, GenID: node, Clock: s.Clock, Cfg: cfg,
		Repo: s.CommissionRepo, Consultants: s.Consultants,
		Events: s.Events, Metrics: s.Metrics,
	})
	s.Orders = ordersvc.New(ordersvc.Params{
		DB: db, Log: s.Log, GenID: node, Clock: s.Clock, Cfg: cfg,
		Repo:        orderrepo.Provide(),
		Consultants: s.Consultants,
		Clients:     s.Clients,
		Commissions: s.Commissions,
		Events:      s.Events,
		Metrics:     s.Metrics,
	})
	return s
}

func (s *Stack) Consultant(t testing.TB, code string, status consultantdomain.Status, pct string) *consultantdomain.Consultant {
	enabled := true
	c, err := s.Consultants.Upsert(context.Background(), consultantdomain.UpsertRequest{
		Code:                 code,
		Name:                 "Consultant " + code,
		Email:                strings.ToLower(code) + "@atelier.test",
		Status:               status,
		CommissionPercentage: decimal.RequireFromString(pct),
		ReportsEnabled:       &enabled,
	})
	require.NoError(t, err)
	return c
}

func (s *Stack) Count(t testing.TB, model any) int64 {
	var n int64
	require.NoError(t, s.DB.Model(model).Count(&n).Error)
	return n
}

// Items builds one line item per price, quantity one.
func Items(prices ...string) []orderdomain.LineItem {
	out := make([]orderdomain.LineItem, 0, len(prices))
	for i, price := range prices {
		out = append(out, orderdomain.LineItem{
			SKU:       "SKU-" + string(rune('A'+i)),
			Name:      "Ring " + string(rune('A'+i)),
			UnitPrice: decimal.RequireFromString(price),
			Quantity:  1,
		})
	}
	return out
}

func Contact(email string) clientdomain.Contact {
	return clientdomain.Contact{Name: "Ana Client", Email: email}
}
