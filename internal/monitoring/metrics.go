package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 评论指标
	CommentsCreated  prometheus.Counter
	CommentsRejected *prometheus.CounterVec
	AttachmentsSaved prometheus.Counter

	// 缓存指标
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// 事件指标
	EventsPublished     prometheus.Counter
	EventPublishFailed  prometheus.Counter
	EventsConsumed      *prometheus.CounterVec
	EventConsumeFailed  *prometheus.CounterVec

	// WebSocket 指标
	WebSocketClients prometheus.Gauge
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commentbox_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "commentbox_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		CommentsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "commentbox_comments_created_total",
				Help: "Total number of comments created",
			},
		),

		CommentsRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commentbox_comments_rejected_total",
				Help: "Total number of rejected comment submissions",
			},
			[]string{"reason"},
		),

		AttachmentsSaved: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "commentbox_attachments_saved_total",
				Help: "Total number of attachments saved",
			},
		),

		CacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "commentbox_listing_cache_hits_total",
				Help: "Total number of listing cache hits",
			},
		),

		CacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "commentbox_listing_cache_misses_total",
				Help: "Total number of listing cache misses",
			},
		),

		EventsPublished: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "commentbox_events_published_total",
				Help: "Total number of comment events published",
			},
		),

		EventPublishFailed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "commentbox_event_publish_failures_total",
				Help: "Total number of failed event publishes",
			},
		),

		EventsConsumed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commentbox_events_consumed_total",
				Help: "Total number of comment events consumed",
			},
			[]string{"consumer"},
		),

		EventConsumeFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commentbox_event_consume_failures_total",
				Help: "Total number of failed event deliveries",
			},
			[]string{"consumer"},
		),

		WebSocketClients: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "commentbox_websocket_clients",
				Help: "Number of connected WebSocket clients",
			},
		),
	}
}

// RecordHTTPRequest 记录一次 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// GinMiddleware 返回记录 HTTP 指标的 gin 中间件
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, endpoint, c.Writer.Status(), time.Since(start))
	}
}

// HTTPHandler 返回 Prometheus 指标导出端点
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
