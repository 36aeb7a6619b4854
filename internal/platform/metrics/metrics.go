package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the storefront API.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	httpDuration     *prometheus.HistogramVec
	logins           *prometheus.CounterVec
	authFailures     *prometheus.CounterVec
	accountsCreated  prometheus.Counter
	ordersCreated    prometheus.Counter
	orderTransitions *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	auditDropped     prometheus.Counter
	revocationCheck  prometheus.Histogram
}

// New creates the collectors and registers them on a fresh registry together with
// the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := NewWithRegisterer(reg)
	m.registry = reg
	return m
}

// NewWithRegisterer registers the collectors on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "luwei_http_request_duration_seconds",
			Help:    "Latency of HTTP requests by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "luwei_logins_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "luwei_auth_failures_total",
			Help: "Rejected credentials by reason",
		}, []string{"reason"}),
		accountsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "luwei_accounts_created_total",
			Help: "Total number of accounts created on first login",
		}),
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "luwei_orders_created_total",
			Help: "Total number of orders placed",
		}),
		orderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "luwei_order_transitions_total",
			Help: "Order status transitions by source and target status",
		}, []string{"from", "to"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "luwei_notifications_total",
			Help: "Customer notifications by kind and outcome",
		}, []string{"kind", "outcome"}),
		auditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "luwei_audit_events_dropped_total",
			Help: "Audit events that could not be published",
		}),
		revocationCheck: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "luwei_session_revocation_check_duration_seconds",
			Help:    "Latency of session revocation lookups",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025},
		}),
	}

	reg.MustRegister(
		m.httpDuration,
		m.logins,
		m.authFailures,
		m.accountsCreated,
		m.ordersCreated,
		m.orderTransitions,
		m.notifications,
		m.auditDropped,
		m.revocationCheck,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

func (m *Metrics) IncrementLogins(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementAuthFailures(reason string) {
	if m == nil {
		return
	}
	m.authFailures.WithLabelValues(reason).Inc()
}

// IncrementAccountsCreated increments the accounts created counter by 1
func (m *Metrics) IncrementAccountsCreated() {
	if m == nil {
		return
	}
	m.accountsCreated.Inc()
}

func (m *Metrics) IncrementOrdersCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

func (m *Metrics) IncrementOrderTransitions(from, to string) {
	if m == nil {
		return
	}
	m.orderTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) IncrementNotifications(kind, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) IncrementAuditDropped() {
	if m == nil {
		return
	}
	m.auditDropped.Inc()
}

// ObserveRevocationCheck records how long a revocation lookup took.
func (m *Metrics) ObserveRevocationCheck(d time.Duration) {
	if m == nil {
		return
	}
	m.revocationCheck.Observe(d.Seconds())
}
