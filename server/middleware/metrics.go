package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/meetscribe/observability"
)

// Metrics records in-flight requests and request duration per route.
// Unmatched routes are recorded as "unmatched" to bound cardinality.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil || isProbeEndpoint(c.Request.URL.Path) {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		start := time.Now()
		m.RecordRequestStart(ctx)
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordRequestEnd(ctx, c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
