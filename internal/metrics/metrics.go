// Package metrics holds the prometheus collectors for the ledger service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	httpRequestDuration *prometheus.HistogramVec
	ledgerOperations    *prometheus.CounterVec
	compensations       *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hwledger_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		ledgerOperations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hwledger_ledger_operations_total",
				Help: "Checkout and checkin calls by outcome",
			},
			[]string{"op", "outcome"},
		),
		compensations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hwledger_compensations_total",
				Help: "Compensating steps by step and result",
			},
			[]string{"step", "result"},
		),
	}
}

func (m *Metrics) ObserveOperation(op, outcome string) {
	m.ledgerOperations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) ObserveCompensation(step, result string) {
	m.compensations.WithLabelValues(step, result).Inc()
}

// Middleware records request duration labelled by the matched chi route
// pattern, so unknown paths collapse into one series.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
