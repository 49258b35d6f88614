package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/agrisense/agrisense-backend/internal/http/response"
	"github.com/agrisense/agrisense-backend/internal/observability"
	"github.com/agrisense/agrisense-backend/internal/pkg/dbctx"
	apperr "github.com/agrisense/agrisense-backend/internal/pkg/errors"
	"github.com/agrisense/agrisense-backend/internal/platform/logger"
	"github.com/agrisense/agrisense-backend/internal/realtime"
	"github.com/agrisense/agrisense-backend/internal/realtime/bus"
	"github.com/agrisense/agrisense-backend/internal/services"
)

const (
	sseHeartbeat = 15 * time.Second
	wsWriteWait  = 5 * time.Second
)

type LiveHandler struct {
	log      *logger.Logger
	topology services.TopologyService
	bus      bus.LiveBus
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

// NewLiveHandler serves the per-farm live feed. A nil bus makes every feed
// request fail as unavailable.
func NewLiveHandler(baseLog *logger.Logger, topology services.TopologyService, live bus.LiveBus, metrics *observability.Metrics) *LiveHandler {
	return &LiveHandler{
		log:      baseLog.With("handler", "LiveHandler"),
		topology: topology,
		bus:      live,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// GET /ws/:farmId/live
func (h *LiveHandler) WebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	farmID, err := uuid.Parse(c.Param("farmId"))
	if err != nil {
		h.reject(conn, "invalid_farm_id", websocket.ClosePolicyViolation)
		return
	}
	if code, reason := h.checkFarm(c.Request.Context(), farmID); reason != "" {
		h.reject(conn, reason, code)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	// The read side only exists to notice the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.metrics.LiveSubscribers(1)
	defer h.metrics.LiveSubscribers(-1)

	err = realtime.Tail(ctx, h.log, h.bus, bus.FarmChannel(farmID.String()), func(f realtime.Frame) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if f.IsJSON {
			return conn.WriteJSON(f.JSON)
		}
		return conn.WriteMessage(websocket.TextMessage, []byte(f.Text))
	})
	if err != nil {
		h.log.Info("live websocket closed", "farm_id", farmID, "error", err)
	}
}

// checkFarm returns a close code and reason when the feed cannot be served.
func (h *LiveHandler) checkFarm(ctx context.Context, farmID uuid.UUID) (int, string) {
	if _, err := h.topology.GetFarm(dbctx.Context{Ctx: ctx}, farmID); err != nil {
		if apperr.IsNotFound(err) {
			return websocket.ClosePolicyViolation, "farm_not_found"
		}
		h.log.Error("live farm lookup failed", "farm_id", farmID, "error", err)
		return websocket.CloseInternalServerErr, "internal"
	}
	if h.bus == nil {
		return websocket.CloseInternalServerErr, "redis_unavailable"
	}
	return 0, ""
}

func (h *LiveHandler) reject(conn *websocket.Conn, reason string, code int) {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	_ = conn.WriteJSON(gin.H{"error": reason})
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
}

// GET /api/v1/farms/:farmId/live
func (h *LiveHandler) SSE(c *gin.Context) {
	farmID, ok := uuidParam(c, "farmId")
	if !ok {
		return
	}
	if code, reason := h.checkFarm(c.Request.Context(), farmID); reason != "" {
		status := http.StatusServiceUnavailable
		switch {
		case code == websocket.ClosePolicyViolation:
			status = http.StatusNotFound
		case reason == "internal":
			status = http.StatusInternalServerError
		}
		response.RespondError(c, status, reason, fmt.Errorf("live feed unavailable: %s", reason))
		return
	}

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	var mu sync.Mutex
	write := func(s string) error {
		mu.Lock()
		defer mu.Unlock()
		if _, err := w.WriteString(s); err != nil {
			return err
		}
		w.Flush()
		return nil
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go func() {
		t := time.NewTicker(sseHeartbeat)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := write(": ping\n\n"); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	h.metrics.LiveSubscribers(1)
	defer h.metrics.LiveSubscribers(-1)

	err := realtime.Tail(ctx, h.log, h.bus, bus.FarmChannel(farmID.String()), func(f realtime.Frame) error {
		data := f.Text
		if f.IsJSON {
			b, err := gojson.Marshal(f.JSON)
			if err != nil {
				return err
			}
			data = string(b)
		}
		return write(sseData(data))
	})
	if err != nil {
		h.log.Info("live sse closed", "farm_id", farmID, "error", err)
	}
}

// sseData frames data as one event, splitting embedded newlines into
// continuation lines.
func sseData(data string) string {
	out := make([]byte, 0, len(data)+8)
	out = append(out, "data: "...)
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' {
			out = append(out, "\ndata: "...)
			continue
		}
		out = append(out, data[i])
	}
	return string(append(out, "\n\n"...))
}
