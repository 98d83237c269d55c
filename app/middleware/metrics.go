package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "anchor"

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Requests served by the Anchor API, by surface, route template and status",
		},
		[]string{"surface", "method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Anchor API latency. Provider callbacks must stay well under the provider timeout.",
			// Callback acks are expected in milliseconds, checkout calls wait on the provider
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2, 5, 10, 20},
		},
		[]string{"surface", "method", "route"},
	)

	httpInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Requests currently being served, by surface",
		},
		[]string{"surface"},
	)
)

// Surfaces group routes for dashboards
const (
	SurfaceCallback = "callback"
	SurfacePoll     = "poll"
	SurfaceAuth     = "auth"
	SurfacePayments = "payments"
	SurfaceAdmin    = "admin"
	SurfaceOther    = "other"
)

// SurfaceOf maps a request path to its API surface
func SurfaceOf(path string) string {
	p := strings.TrimPrefix(path, "/api/v1")
	switch {
	case strings.HasPrefix(p, "/payments/callback"):
		return SurfaceCallback
	case strings.HasPrefix(p, "/accounts/") && strings.HasSuffix(p, "/activation-status"):
		return SurfacePoll
	case strings.HasPrefix(p, "/auth/"), strings.HasPrefix(p, "/session/"):
		return SurfaceAuth
	case strings.HasPrefix(p, "/payments/"):
		return SurfacePayments
	case strings.HasPrefix(p, "/admin/"):
		return SurfaceAdmin
	default:
		return SurfaceOther
	}
}

// Metrics records request counts and latency per surface. Routes are labelled with their
// template so account and attempt ids never become label values.
func Metrics() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		surface := SurfaceOf(c.Path())
		inflight := httpInFlight.WithLabelValues(surface)
		inflight.Inc()
		defer inflight.Dec()

		err := c.Next()

		route := "unmatched"
		if r := c.Route(); r != nil && r.Path != "" && r.Path != "/" {
			route = r.Path
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(surface, method, route, strconv.Itoa(c.Response().StatusCode())).Inc()
		httpRequestDuration.WithLabelValues(surface, method, route).Observe(time.Since(start).Seconds())

		return err
	}
}
