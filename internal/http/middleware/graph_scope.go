package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/agrisense/agrisense-backend/internal/graphcache"
)

// GraphScope gives every request its own graph-state scope, so each request
// builds a farm's graph at most once.
func GraphScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(graphcache.WithScope(c.Request.Context()))
		c.Next()
	}
}
