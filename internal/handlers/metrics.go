package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the shop's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "jewelry",
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jewelry",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "jewelry",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
	}, []string{"method", "route"})

	ordersCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jewelry",
		Subsystem: "orders",
		Name:      "created_total",
		Help:      "Orders accepted, by jewelry type.",
	}, []string{"jewelry_type"})

	ordersDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "jewelry",
		Subsystem: "orders",
		Name:      "deleted_total",
		Help:      "Orders deleted by an admin.",
	})

	loginAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jewelry",
		Subsystem: "auth",
		Name:      "login_attempts_total",
		Help:      "Admin login attempts by outcome.",
	}, []string{"outcome"})
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		ordersCreated,
		ordersDeleted,
		loginAttempts,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// MetricsHandler exposes Registry in the Prometheus text format.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func observeRequest(method, route string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// apiRoutes are the fixed API paths that get their own label.
var apiRoutes = map[string]bool{
	"/api/orders":       true,
	"/api/orders/stats": true,
	"/api/login":        true,
	"/api/logout":       true,
	"/api/user":         true,
	"/api/csrf":         true,
}

// routeLabel collapses ids and file names so label cardinality stays bounded.
// Any path outside the known routes shares a catch-all label.
func routeLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/uploads/"):
		return "/uploads/{file}"
	case apiRoutes[path], path == "/healthz", path == "/metrics":
		return path
	case strings.HasPrefix(path, "/api/orders/") && !strings.Contains(path[len("/api/orders/"):], "/"):
		return "/api/orders/{id}"
	case path == "/api" || strings.HasPrefix(path, "/api/"):
		return "/api/other"
	default:
		return "/static"
	}
}
