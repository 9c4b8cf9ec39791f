package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ims", Name: "http_requests_total", Help: "Handled HTTP requests",
	}, []string{"method", "route", "status"})
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ims", Name: "http_request_duration_seconds", Help: "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	AttendanceCaptures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ims", Name: "attendance_captures_total", Help: "Attendance captures by outcome",
	}, []string{"result"})
	Reconciles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ims", Name: "reconcile_total", Help: "Daily log reconciliations by outcome",
	}, []string{"result"})
	CallClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ims", Name: "callrelay_clients", Help: "Connected call relay clients",
	})
	CallDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ims", Name: "callrelay_dropped_total", Help: "Call relay events dropped on full queues",
	})
	DBPing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ims", Name: "db_ping_seconds", Help: "DB ping latency",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(HTTPRequests, HTTPDuration, AttendanceCaptures, Reconciles, CallClients, CallDropped, DBPing)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveDBPing(d time.Duration) { DBPing.Observe(d.Seconds()) }

// Middleware: ルートテンプレート単位で集計（パスパラメータでラベルが爆発しないように）
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
