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
			Name: "jam_http_requests_total",
			Help: "Total number of HTTP requests processed by the session service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jam_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "jam_active_sessions",
			Help: "Number of live group sessions owned by this process.",
		},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "jam_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jam_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"event"},
	)
	votesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jam_votes_total",
			Help: "Total number of accepted track votes.",
		},
		[]string{"direction"},
	)
	tracksAddedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jam_tracks_added_total",
			Help: "Total number of tracks added to group queues.",
		},
	)
	queueAdvancesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jam_queue_advances_total",
			Help: "Total number of natural end-of-track queue advances.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jam_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		activeSessions,
		wsActiveConnections,
		wsEventsTotal,
		votesTotal,
		tracksAddedTotal,
		queueAdvancesTotal,
		amqpPublishErrorsTotal,
	)
}

// HTTPMetricsMiddleware records request totals and latencies per route.
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

func IncActiveSessions() {
	activeSessions.Inc()
}

func DecActiveSessions() {
	activeSessions.Dec()
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

// IncVote counts an accepted vote by direction.
func IncVote(weight int) {
	direction := "up"
	if weight < 0 {
		direction = "down"
	}
	votesTotal.WithLabelValues(direction).Inc()
}

func IncTracksAdded() {
	tracksAddedTotal.Inc()
}

func IncQueueAdvance() {
	queueAdvancesTotal.Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
