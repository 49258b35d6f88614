package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/agrisense/agrisense-backend/internal/domain/farm"
	"github.com/agrisense/agrisense-backend/internal/http/response"
	"github.com/agrisense/agrisense-backend/internal/ingest"
)

type IngestHandler struct {
	ingest *ingest.Service
}

func NewIngestHandler(svc *ingest.Service) *IngestHandler {
	return &IngestHandler{ingest: svc}
}

// ingestRequest accepts the per-layer list under the key the layer's
// clients already send.
type ingestRequest struct {
	FarmID   uuid.UUID       `json:"farm_id" binding:"required"`
	Readings json.RawMessage `json:"readings"`
	Events   json.RawMessage `json:"events"`
	Samples  json.RawMessage `json:"samples"`
	Records  json.RawMessage `json:"records"`
}

func (r ingestRequest) payload() json.RawMessage {
	for _, raw := range []json.RawMessage{r.Readings, r.Events, r.Samples, r.Records} {
		if len(raw) > 0 && string(raw) != "null" {
			return raw
		}
	}
	return nil
}

// Ingest returns the handler for POST /api/v1/ingest/<layer>.
func (h *IngestHandler) Ingest(layer farm.Layer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ingestRequest
		if !bindJSON(c, &req) {
			return
		}
		raw := req.payload()
		if raw == nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("records must not be empty"))
			return
		}
		recs, err := ingest.DecodeRecords(layer, raw)
		if err != nil {
			response.RespondServiceError(c, err, "ingest failure")
			return
		}
		receipt, err := h.ingest.Ingest(c.Request.Context(), req.FarmID, layer, recs)
		if err != nil {
			response.RespondServiceError(c, err, "ingest failure")
			return
		}
		response.RespondOK(c, receipt)
	}
}

type bulkRequest struct {
	FarmID uuid.UUID `json:"farm_id" binding:"required"`
	ingest.BulkRequest
}

// POST /api/v1/ingest/bulk
func (h *IngestHandler) IngestBulk(c *gin.Context) {
	var req bulkRequest
	if !bindJSON(c, &req) {
		return
	}
	receipt, err := h.ingest.IngestBulk(c.Request.Context(), req.FarmID, req.BulkRequest)
	if err != nil {
		response.RespondServiceError(c, err, "ingest failure")
		return
	}
	response.RespondOK(c, receipt)
}

type closeIrrigationRequest struct {
	FarmID       uuid.UUID `json:"farm_id" binding:"required"`
	TimestampEnd time.Time `json:"timestamp_end" binding:"required"`
	VolumeLiters *float64  `json:"volume_liters"`
}

// POST /api/v1/ingest/irrigation/:eventId/close
func (h *IngestHandler) CloseIrrigationEvent(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("eventId"), 10, 64)
	if err != nil || eventID <= 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_eventId", fmt.Errorf("eventId must be a positive integer"))
		return
	}
	var req closeIrrigationRequest
	if !bindJSON(c, &req) {
		return
	}
	receipt, err := h.ingest.CloseIrrigationEvent(c.Request.Context(), req.FarmID, eventID, req.TimestampEnd, req.VolumeLiters)
	if err != nil {
		response.RespondServiceError(c, err, "ingest failure")
		return
	}
	response.RespondOK(c, receipt)
}
