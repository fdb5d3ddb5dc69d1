package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "onboard",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by service, method and status.",
	}, []string{"service", "method", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "onboard",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by service and method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service", "method"})
)

func metricsMiddleware(service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			httpRequests.WithLabelValues(service, r.Method, strconv.Itoa(ww.Status())).Inc()
			httpDuration.WithLabelValues(service, r.Method).Observe(time.Since(start).Seconds())
		})
	}
}

func metricsHandler() http.Handler {
	return promhttp.Handler()
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		})
	}
}
