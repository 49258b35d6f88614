package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agrisense/agrisense-backend/internal/observability"
)

// Metrics records request latency by route template. Scrapes of /metrics
// are not counted.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if c.FullPath() == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		m.HTTPInflight(1)
		defer m.HTTPInflight(-1)

		c.Next()

		m.ObserveHTTP(c.FullPath(), c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}
