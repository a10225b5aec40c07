package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	attributiondomain "github.com/railzwaylabs/atelier/internal/attribution/domain"
	"github.com/railzwaylabs/atelier/internal/clock"
	commissiondomain "github.com/railzwaylabs/atelier/internal/commission/domain"
	"github.com/railzwaylabs/atelier/internal/config"
	"github.com/railzwaylabs/atelier/internal/observability"
	orderdomain "github.com/railzwaylabs/atelier/internal/order/domain"
	paymentdomain "github.com/railzwaylabs/atelier/internal/payment/domain"
	reportingdomain "github.com/railzwaylabs/atelier/internal/reporting/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Cfg         config.Config
	Log         *zap.Logger
	DB          *gorm.DB
	Clock       clock.Clock
	Metrics     *observability.Metrics `optional:"true"`
	Attribution attributiondomain.Service
	Orders      orderdomain.Service
	Commissions commissiondomain.Service
	Checkout    paymentdomain.CheckoutService
	Wallet      paymentdomain.WalletService
	Webhooks    paymentdomain.WebhookService
	Reports     reportingdomain.Service
}

type Server struct {
	cfg         config.Config
	log         *zap.Logger
	db          *gorm.DB
	clock       clock.Clock
	metrics     *observability.Metrics
	attribution attributiondomain.Service
	orders      orderdomain.Service
	commissions commissiondomain.Service
	checkout    paymentdomain.CheckoutService
	wallet      paymentdomain.WalletService
	webhooks    paymentdomain.WebhookService
	reports     reportingdomain.Service

	engine *gin.Engine
}

func New(p Params) *Server {
	s := &Server{
		cfg:         p.Cfg,
		log:         p.Log.Named("server"),
		db:          p.DB,
		clock:       p.Clock,
		metrics:     p.Metrics,
		attribution: p.Attribution,
		orders:      p.Orders,
		commissions: p.Commissions,
		checkout:    p.Checkout,
		wallet:      p.Wallet,
		webhooks:    p.Webhooks,
		reports:     p.Reports,
	}

	if p.Cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	setupValidators()

	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), RequestID(), observability.GinLogger(p.Log))
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes() {
	r := s.engine

	r.GET("/health", s.Health)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := r.Group("/api", s.CaptureReferral())
	{
		api.GET("/attribution", s.GetAttribution)
		api.PUT("/attribution", s.PutAttribution)
		api.DELETE("/attribution", s.DeleteAttribution)

		api.POST("/orders", s.CreateOrder)

		api.POST("/checkout/sessions", s.CreateCheckoutSession)
		api.GET("/checkout/sessions/:session_id/verify", s.VerifyCheckoutSession)

		api.POST("/payments/wallet", s.CreateWalletPayment)
		api.GET("/payments/wallet/callback", s.WalletCallback)
		api.POST("/payments/wallet/callback", s.WalletCallback)
	}

	r.POST("/webhooks/stripe", s.StripeWebhook)

	admin := r.Group("/admin", BearerRequired(s.cfg.Admin.Token))
	{
		admin.GET("/orders/:id", s.GetOrder)
		admin.POST("/orders/:id/status", s.UpdateOrderStatus)

		admin.GET("/commissions/summary", s.CommissionSummary)
		admin.POST("/commissions/:id/approve", s.ApproveCommission)
		admin.POST("/commissions/:id/pay", s.PayCommission)
		admin.POST("/commissions/:id/cancel", s.CancelCommission)
	}

	internal := r.Group("/internal", BearerRequired(s.cfg.Reports.CronSecret))
	{
		internal.POST("/reports/monthly", s.RunMonthlyReports)
	}
}

// Health pings the database.
func (s *Server) Health(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
