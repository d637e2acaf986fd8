// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headcanon_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "headcanon_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headcanon_generations_total",
			Help: "Headcanon generation requests by mode and resolved tone",
		},
		[]string{"mode", "tone"},
	)

	RateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "headcanon_ratelimit_rejections_total",
			Help: "Requests rejected by the per-IP rate limiter",
		},
	)

	VisitorsTracked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headcanon_visitors_tracked_total",
			Help: "Visitor tracking outcomes",
		},
		[]string{"result"}, // new, returning, error
	)

	PageViewsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "headcanon_page_views_total",
			Help: "Page views recorded",
		},
	)

	GeoLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headcanon_geo_lookups_total",
			Help: "IP geolocation lookups by result",
		},
		[]string{"result"}, // ok, skipped, failed, breaker_open
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "headcanon_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	LiveClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "headcanon_live_clients",
			Help: "Connected live feed websocket clients",
		},
	)
)

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func RecordGeneration(mode, tone string) {
	GenerationsTotal.WithLabelValues(mode, tone).Inc()
}

func RecordGeoLookup(result string) {
	GeoLookups.WithLabelValues(result).Inc()
}

func RecordVisitor(result string) {
	VisitorsTracked.WithLabelValues(result).Inc()
}

// Middleware labels requests by matched route so path parameters do not
// explode cardinality.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
