package middleware

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jsxtech/exchange"
)

// Metrics holds the collectors updated by its Filter.
type Metrics struct {
	// requests counts finished exchanges by declaration and outcome.
	requests *prometheus.CounterVec

	// inflight gauges the exchanges currently in flight.
	inflight prometheus.Gauge

	// duration observes exchange latency in seconds.
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_requests_total",
			Help: "Total number of finished exchanges",
		}, []string{"declaration", "code"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "exchange_requests_inflight",
			Help: "The number of exchanges currently in flight",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "exchange_request_duration_seconds",
			Help:    "Time to complete an exchange (in seconds)",
			Buckets: prometheus.DefBuckets,
		}, []string{"declaration"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.requests, m.inflight, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Filter returns a filter that records every exchange.
// The code label is the HTTP status, or the error code when no response was
// received.
func (m *Metrics) Filter() exchange.Filter {
	return func(req *exchange.Request, next exchange.ExchangeFunc) (*exchange.Response, error) {
		m.inflight.Inc()
		defer m.inflight.Dec()

		start := time.Now()
		resp, err := next(req)
		m.duration.WithLabelValues(req.Name()).Observe(time.Since(start).Seconds())

		code := ""
		switch {
		case err != nil:
			code = string(exchange.AsError(err).Code)
		case resp != nil:
			code = strconv.Itoa(resp.StatusCode)
		}
		m.requests.WithLabelValues(req.Name(), code).Inc()
		return resp, err
	}
}
