package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	HttpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HttpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	HttpResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "endpoint"},
	)

	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_connections",
			Help: "Number of active connections",
		},
	)

	AuthenticationAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authentication_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"status"}, // success or failure
	)

	// Album metrics
	PacketsBought = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "album_packets_bought_total",
			Help: "Total number of card packets bought",
		},
	)

	CardsDrawn = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "album_cards_drawn_total",
			Help: "Total number of cards drawn from packets",
		},
	)

	CreditsBought = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "album_credits_bought_total",
			Help: "Total number of credits bought",
		},
	)

	CardsSold = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "album_cards_sold_total",
			Help: "Total number of cards sold",
		},
	)

	// Trade metrics
	TradeEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trade_events_total",
			Help: "Trade lifecycle events",
		},
		[]string{"event"}, // proposed, offered, accepted, deleted, withdrawn
	)

	CatalogFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_request_failures_total",
			Help: "Failed requests to the character catalog",
		},
		[]string{"operation"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors",
		},
		[]string{"type", "endpoint"},
	)
)

var registerOnce sync.Once

// InitMetrics registers every collector once.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HttpRequestsTotal,
			HttpRequestDuration,
			HttpResponseSize,
			ActiveConnections,
			AuthenticationAttempts,
			PacketsBought,
			CardsDrawn,
			CreditsBought,
			CardsSold,
			TradeEvents,
			CatalogFailures,
			ErrorsTotal,
		)
	})
}

// PrometheusMiddleware collects metrics for each request
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		ActiveConnections.Inc()
		defer ActiveConnections.Dec()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		status := c.Writer.Status()

		HttpRequestsTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(status)).Inc()
		HttpRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
		HttpResponseSize.WithLabelValues(c.Request.Method, endpoint).Observe(float64(c.Writer.Size()))

		if status >= 400 {
			ErrorsTotal.WithLabelValues("http_error", endpoint).Inc()
		}
	}
}

// PrometheusHandler returns Prometheus metrics handler
func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
