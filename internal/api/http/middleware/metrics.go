package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/exteriorai/exteriorai-backend/internal/metrics"
)

// Metrics observes request latency by route template, so ids in paths do not
// create new series. Unmatched routes share one label.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
