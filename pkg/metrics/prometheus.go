package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	tickDuration prometheus.Histogram
	decisions    *prometheus.CounterVec
	fills        *prometheus.CounterVec
	rejected     *prometheus.CounterVec
	equity       *prometheus.GaugeVec
	throttleWait prometheus.Histogram
	errorsTotal  *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		tickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "btctrader_tick_duration_seconds",
			Help:    "Duration of one strategy scheduler tick",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "btctrader_decisions_total",
				Help: "Signal decisions by action and regime",
			},
			[]string{"action", "regime"},
		),
		fills: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "btctrader_fills_total",
				Help: "Paper fills by side",
			},
			[]string{"side"},
		),
		rejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "btctrader_rejected_total",
				Help: "Orders rejected by the risk gate",
			},
			[]string{"reason"},
		),
		equity: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "btctrader_equity",
				Help: "Paper account equity in quote currency",
			},
			[]string{"user_id"},
		),
		throttleWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "btctrader_throttle_wait_seconds",
			Help:    "Time spent waiting for an exchange request slot",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "btctrader_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "btctrader_last_price",
				Help: "Last recorded price for a market",
			},
			[]string{"market"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "btctrader_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordTick(seconds float64) {
	r.tickDuration.Observe(seconds)
}

func (r *Recorder) RecordDecision(action, regime string) {
	r.decisions.WithLabelValues(action, regime).Inc()
}

func (r *Recorder) RecordFill(side string) {
	r.fills.WithLabelValues(side).Inc()
}

func (r *Recorder) RecordRejected(reason string) {
	r.rejected.WithLabelValues(reason).Inc()
}

// RecordEquity sets the equity gauge for a user.
func (r *Recorder) RecordEquity(userID string, equity float64) {
	r.equity.WithLabelValues(userID).Set(equity)
}

func (r *Recorder) RecordThrottleWait(seconds float64) {
	r.throttleWait.Observe(seconds)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a market.
func (r *Recorder) RecordLastPrice(market string, price float64) {
	r.lastPrice.WithLabelValues(market).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
