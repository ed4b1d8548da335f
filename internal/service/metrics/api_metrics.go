package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "btctrader",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of trading API endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "btctrader",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by trading API endpoint",
		},
		[]string{"endpoint"},
	)

	StreamSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "btctrader",
			Subsystem: "api",
			Name:      "summary_stream_subscribers",
			Help:      "Open summary event streams",
		},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(APILatency, APIErrors, StreamSubscribers)
	})
}
