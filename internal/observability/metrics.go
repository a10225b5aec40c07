package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "atelier"

// Metrics holds the domain counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ordersPlaced       *prometheus.CounterVec
	commissionsCreated prometheus.Counter
	commissionsFailed  prometheus.Counter
	webhookEvents      *prometheus.CounterVec
	reportDispatches   *prometheus.CounterVec
	batchDuration      prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ordersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Orders persisted, by intake channel and attribution.",
		}, []string{"channel", "attributed"}),
		commissionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commissions_created_total",
			Help:      "Commission records created.",
		}),
		commissionsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commissions_failed_total",
			Help:      "Commission writes that failed and need manual reconciliation.",
		}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Payment webhook deliveries by outcome.",
		}, []string{"outcome"}),
		reportDispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_dispatches_total",
			Help:      "Monthly report dispatches by result.",
		}, []string{"result"}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_batch_duration_seconds",
			Help:      "Duration of monthly report batches.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ordersPlaced,
		m.commissionsCreated,
		m.commissionsFailed,
		m.webhookEvents,
		m.reportDispatches,
		m.batchDuration,
	)
	return m
}

func (m *Metrics) OrderPlaced(channel string, attributed bool) {
	if m == nil {
		return
	}
	m.ordersPlaced.WithLabelValues(channel, strconv.FormatBool(attributed)).Inc()
}

func (m *Metrics) CommissionCreated() {
	if m == nil {
		return
	}
	m.commissionsCreated.Inc()
}

func (m *Metrics) CommissionFailed() {
	if m == nil {
		return
	}
	m.commissionsFailed.Inc()
}

func (m *Metrics) WebhookOutcome(outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ReportDispatched(ok bool) {
	if m == nil {
		return
	}
	result := "sent"
	if !ok {
		result = "failed"
	}
	m.reportDispatches.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveBatch(seconds float64) {
	if m == nil {
		return
	}
	m.batchDuration.Observe(seconds)
}

// Handler serves the domain registry together with the default one used by the gorm plugin.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.Gatherers{m.registry, prometheus.DefaultGatherer}, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
