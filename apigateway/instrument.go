package gateway

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var (
	instrumentOnce sync.Once
	requestCount   *prometheus.CounterVec
	responseTime   *prometheus.HistogramVec
	responseSize   prometheus.Histogram
)

// register returns the collector already registered under the same name, if
// any, so building the middleware twice does not panic.
func register[T prometheus.Collector](c T) T {
	if err := prometheus.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
		logrus.Warnf("prometheus register failed: %v", err)
	}
	return c
}

func initInstrumentation() {
	instrumentOnce.Do(func() {
		requestCount = register(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adminutils",
			Subsystem: "request",
			Name:      "requests_count",
			Help:      "Number of requests per route",
		}, []string{"code", "method", "route"}))

		responseTime = register(prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "adminutils",
			Subsystem: "response",
			Name:      "duration_seconds",
			Help:      "Response duration per route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}))

		responseSize = register(prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "adminutils",
			Subsystem: "response",
			Name:      "size_bytes",
			Help:      "Response size",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		}))
	})
}

// Instrumentation counts requests and observes latency per matched route.
// metricsPath itself is not measured.
func Instrumentation(metricsPath string) gin.HandlerFunc {
	initInstrumentation()
	return func(c *gin.Context) {
		if c.Request.URL.Path == metricsPath {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := getRoute(c)
		status := strconv.Itoa(c.Writer.Status())
		requestCount.WithLabelValues(status, c.Request.Method, route).Inc()
		responseTime.WithLabelValues(route).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size > 0 {
			responseSize.Observe(float64(size))
		}
	}
}

// getRoute uses the route template so /admin/library/book/7/change/ and
// /admin/library/book/8/change/ share a label.
func getRoute(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return "unmatched"
}
