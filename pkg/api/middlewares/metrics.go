package middlewares

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce    sync.Once
	requestTotal   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
)

func initMetrics() {
	metricsOnce.Do(func() {
		requestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shipd",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"})

		requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shipd",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   []float64{0.01, 0.05, 0.25, 1, 5, 30, 120, 300},
		}, []string{"method", "route", "status"})

		for _, collector := range []prometheus.Collector{requestTotal, requestLatency} {
			if err := prometheus.Register(collector); err != nil {
				if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
					switch v := are.ExistingCollector.(type) {
					case *prometheus.CounterVec:
						requestTotal = v
					case *prometheus.HistogramVec:
						requestLatency = v
					}
				}
			}
		}
	})
}

// Metrics records request counts and latency per route. Orchestration
// requests block for the duration of their subprocess work, hence the wide
// histogram buckets.
func Metrics() gin.HandlerFunc {
	initMetrics()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		labels := prometheus.Labels{
			"method": c.Request.Method,
			"route":  route,
			"status": strconv.Itoa(c.Writer.Status()),
		}
		requestTotal.With(labels).Inc()
		requestLatency.With(labels).Observe(time.Since(start).Seconds())
	}
}
