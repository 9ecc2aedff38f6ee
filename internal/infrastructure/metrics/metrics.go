package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/iho/entryledger/internal/domain"
	"github.com/iho/entryledger/internal/usecase"
)

var _ usecase.MetricsRecorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Coordinator metrics
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	OperationAmount   *prometheus.HistogramVec
	LeaseTimeouts     *prometheus.CounterVec

	// Account metrics
	AccountsCreated *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge

	// Rate limiting metrics
	RateLimitHits prometheus.Counter

	// Outbox relay metrics
	EventsPublished *prometheus.CounterVec
	EventErrors     *prometheus.CounterVec
}

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		// Coordinator metrics
		Operations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entryledger_operations_total",
				Help: "Coordinator operations by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		OperationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "entryledger_operation_duration_seconds",
				Help:    "Duration of coordinator operations, lease waits included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		OperationAmount: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "entryledger_operation_amount",
				Help:    "Amounts of completed operations",
				Buckets: []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
			},
			[]string{"kind"},
		),
		LeaseTimeouts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entryledger_lease_timeouts_total",
				Help: "Operations aborted waiting for an account lease",
			},
			[]string{"kind"},
		),

		// Account metrics
		AccountsCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entryledger_accounts_created_total",
				Help: "Total number of accounts created",
			},
			[]string{"currency"},
		),

		// API metrics
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entryledger_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "entryledger_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "entryledger_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		}),

		// Rate limiting metrics
		RateLimitHits: f.NewCounter(prometheus.CounterOpts{
			Name: "entryledger_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		}),

		// Outbox relay metrics
		EventsPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entryledger_events_published_total",
				Help: "Outbox events handed to the publisher",
			},
			[]string{"event_type"},
		),
		EventErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entryledger_event_errors_total",
				Help: "Outbox events that failed to publish",
			},
			[]string{"event_type"},
		),
	}
}

// ObserveOperation records one finished coordinator operation.
func (m *Metrics) ObserveOperation(kind domain.TransactionKind, outcome string, amount decimal.Decimal, duration time.Duration) {
	k := string(kind)

	m.Operations.WithLabelValues(k, outcome).Inc()
	m.OperationDuration.WithLabelValues(k).Observe(duration.Seconds())

	switch outcome {
	case usecase.OutcomeLeaseTimeout:
		m.LeaseTimeouts.WithLabelValues(k).Inc()
	case usecase.OutcomeCompleted:
		m.OperationAmount.WithLabelValues(k).Observe(amount.InexactFloat64())
	}
}

// AccountCreated counts a newly opened account.
func (m *Metrics) AccountCreated(currency string) {
	m.AccountsCreated.WithLabelValues(currency).Inc()
}

// EventPublished counts an outbox event handed off by the relay.
func (m *Metrics) EventPublished(eventType string, err error) {
	if err != nil {
		m.EventErrors.WithLabelValues(eventType).Inc()
		return
	}
	m.EventsPublished.WithLabelValues(eventType).Inc()
}
