// Package metrics exposes Prometheus instrumentation for the trading
// backend.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus collectors. Each Registry owns its own
// prometheus registry, so independent instances never collide.
type Registry struct {
	registry *prometheus.Registry

	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	Backtests        *prometheus.CounterVec
	BacktestDuration prometheus.Histogram
	PaperOrders      *prometheus.CounterVec
	ProviderErrors   *prometheus.CounterVec
}

// NewRegistry creates a registry with all collectors registered.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeforge_http_requests_total",
				Help: "Total HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "status"},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradeforge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds by route",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"route"},
		),

		Backtests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeforge_backtests_total",
				Help: "Total backtests run by strategy and outcome",
			},
			[]string{"strategy", "status"},
		),

		BacktestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tradeforge_backtest_duration_seconds",
				Help:    "Backtest run duration in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
		),

		PaperOrders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeforge_paper_orders_total",
				Help: "Total paper orders executed by side",
			},
			[]string{"side"},
		),

		ProviderErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeforge_provider_errors_total",
				Help: "Total market data provider failures by operation",
			},
			[]string{"operation"},
		),
	}

	r.registry.MustRegister(
		r.HTTPRequests,
		r.HTTPDuration,
		r.Backtests,
		r.BacktestDuration,
		r.PaperOrders,
		r.ProviderErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// Handler returns the scrape handler for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one served HTTP request.
func (r *Registry) ObserveRequest(route, method string, status int, duration time.Duration) {
	r.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.HTTPDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// ObserveBacktest records one backtest run.
func (r *Registry) ObserveBacktest(strategy string, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.Backtests.WithLabelValues(strategy, status).Inc()
	r.BacktestDuration.Observe(duration.Seconds())
}

// RegisterClientsGauge exports the number of connected WebSocket clients.
func (r *Registry) RegisterClientsGauge(count func() int) {
	r.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "tradeforge_ws_clients",
			Help: "Number of connected WebSocket clients",
		},
		func() float64 { return float64(count()) },
	))
}

// RegisterSeriesGauge exports the history store's series count.
func (r *Registry) RegisterSeriesGauge(count func() int) {
	r.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "tradeforge_history_series",
			Help: "Number of history series known to the store",
		},
		func() float64 { return float64(count()) },
	))
}

// RegisterQueueGauge exports the worker pool's queue depth.
func (r *Registry) RegisterQueueGauge(depth func() int64) {
	r.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "tradeforge_pool_queue_depth",
			Help: "Tasks waiting in the worker pool queue",
		},
		func() float64 { return float64(depth()) },
	))
}
