package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_sync_http_requests_total",
			Help: "Total number of HTTP requests handled by the admin surface.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_sync_http_request_duration_seconds",
			Help:    "Admin surface request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	restRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_sync_rest_requests_total",
			Help: "Total number of REST calls issued to the chat backend.",
		},
		[]string{"op", "status"},
	)
	restRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_sync_rest_request_duration_seconds",
			Help:    "REST call latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
	socketConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_sync_socket_connected",
			Help: "Whether the push channel is currently connected (0 or 1).",
		},
	)
	socketEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_sync_socket_events_total",
			Help: "Total number of push-channel events, by event name.",
		},
		[]string{"event"},
	)
	socketReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_sync_socket_reconnects_total",
			Help: "Total number of push-channel reconnect attempts.",
		},
	)
	syncUpsertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_sync_message_upserts_total",
			Help: "Total number of message upserts, by outcome.",
		},
		[]string{"outcome"},
	)
	syncBulkLoadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_sync_bulk_loads_total",
			Help: "Total number of history bulk loads applied to the store.",
		},
	)
	readReceiptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_sync_read_receipts_total",
			Help: "Total number of read-receipt flushes, by result.",
		},
		[]string{"result"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_sync_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		restRequestsTotal,
		restRequestDuration,
		socketConnected,
		socketEventsTotal,
		socketReconnectsTotal,
		syncUpsertsTotal,
		syncBulkLoadsTotal,
		readReceiptsTotal,
		amqpPublishErrorsTotal,
	)
}

// HTTPMetricsMiddleware records request counts and latencies for the admin
// surface.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func ObserveRESTRequest(op string, status int, elapsed time.Duration) {
	restRequestsTotal.WithLabelValues(op, strconv.Itoa(status)).Inc()
	restRequestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func SetSocketConnected(connected bool) {
	if connected {
		socketConnected.Set(1)
		return
	}
	socketConnected.Set(0)
}

func IncSocketEvent(event string) {
	socketEventsTotal.WithLabelValues(event).Inc()
}

func IncSocketReconnect() {
	socketReconnectsTotal.Inc()
}

func IncUpsert(outcome string) {
	syncUpsertsTotal.WithLabelValues(outcome).Inc()
}

func IncBulkLoad() {
	syncBulkLoadsTotal.Inc()
}

func IncReadReceipt(result string) {
	readReceiptsTotal.WithLabelValues(result).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
