package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/heptiolabs/healthcheck"
	goredis "github.com/redis/go-redis/v9"
)

type HealthHandler struct {
	checks healthcheck.Handler
}

// NewHealthHandler registers liveness on goroutine count and readiness on
// the database, plus Redis when rdb is set. extra adds further readiness
// checks (the MQTT connection).
func NewHealthHandler(sqlDB *sql.DB, rdb *goredis.Client, extra map[string]healthcheck.Check) *HealthHandler {
	h := healthcheck.NewHandler()
	h.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(10000))
	if sqlDB != nil {
		h.AddReadinessCheck("database", healthcheck.DatabasePingCheck(sqlDB, time.Second))
	}
	if rdb != nil {
		h.AddReadinessCheck("redis", healthcheck.Timeout(func() error {
			return rdb.Ping(context.Background()).Err()
		}, time.Second))
	}
	for name, check := range extra {
		h.AddReadinessCheck(name, check)
	}
	return &HealthHandler{checks: h}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (h *HealthHandler) Live(c *gin.Context) {
	h.checks.LiveEndpoint(c.Writer, c.Request)
}

func (h *HealthHandler) Ready(c *gin.Context) {
	h.checks.ReadyEndpoint(c.Writer, c.Request)
}
