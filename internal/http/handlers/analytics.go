package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/agrisense/agrisense-backend/internal/http/response"
	"github.com/agrisense/agrisense-backend/internal/services"
)

type AnalyticsHandler struct {
	analytics services.AnalyticsService
}

func NewAnalyticsHandler(analytics services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// GET /api/v1/analytics/:farmId/status
func (h *AnalyticsHandler) FarmStatus(c *gin.Context) {
	farmID, ok := uuidParam(c, "farmId")
	if !ok {
		return
	}
	out, err := h.analytics.FarmStatus(c.Request.Context(), farmID)
	if err != nil {
		response.RespondServiceError(c, err, "analytics failure")
		return
	}
	response.RespondOK(c, out)
}

// GET /api/v1/analytics/:farmId/zones/:zoneId?vertex_id=
func (h *AnalyticsHandler) ZoneDetail(c *gin.Context) {
	farmID, ok := uuidParam(c, "farmId")
	if !ok {
		return
	}
	zoneID, ok := uuidParam(c, "zoneId")
	if !ok {
		return
	}
	var vertexID *uuid.UUID
	if raw := c.Query("vertex_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_vertex_id", fmt.Errorf("vertex_id must be a uuid"))
			return
		}
		vertexID = &id
	}
	h.zoneDetail(c, farmID, &zoneID, vertexID)
}

// GET /api/v1/analytics/:farmId/vertices/:vertexId
func (h *AnalyticsHandler) VertexDetail(c *gin.Context) {
	farmID, ok := uuidParam(c, "farmId")
	if !ok {
		return
	}
	vertexID, ok := uuidParam(c, "vertexId")
	if !ok {
		return
	}
	h.zoneDetail(c, farmID, nil, &vertexID)
}

func (h *AnalyticsHandler) zoneDetail(c *gin.Context, farmID uuid.UUID, zoneID, vertexID *uuid.UUID) {
	out, err := h.analytics.ZoneDetail(c.Request.Context(), farmID, zoneID, vertexID)
	if err != nil {
		response.RespondServiceError(c, err, "analytics failure")
		return
	}
	response.RespondOK(c, out)
}

// GET /api/v1/analytics/:farmId/irrigation/schedule?horizon_days=
func (h *AnalyticsHandler) IrrigationSchedule(c *gin.Context) {
	farmID, ok := uuidParam(c, "farmId")
	if !ok {
		return
	}
	horizon := services.DefaultHorizonDays
	if raw := c.Query("horizon_days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("horizon_days must be an integer"))
			return
		}
		horizon = n
	}
	out, err := h.analytics.IrrigationSchedule(c.Request.Context(), farmID, horizon)
	if err != nil {
		response.RespondServiceError(c, err, "analytics failure")
		return
	}
	response.RespondOK(c, out)
}

// GET /api/v1/analytics/:farmId/nutrients/report
func (h *AnalyticsHandler) NutrientReport(c *gin.Context) {
	farmID, ok := uuidParam(c, "farmId")
	if !ok {
		return
	}
	out, err := h.analytics.NutrientReport(c.Request.Context(), farmID)
	if err != nil {
		response.RespondServiceError(c, err, "analytics failure")
		return
	}
	response.RespondOK(c, out)
}

// GET /api/v1/analytics/:farmId/yield/forecast
func (h *AnalyticsHandler) YieldForecast(c *gin.Context) {
	farmID, ok := uuidParam(c, "farmId")
	if !ok {
		return
	}
	out, err := h.analytics.YieldForecast(c.Request.Context(), farmID)
	if err != nil {
		response.RespondServiceError(c, err, "analytics failure")
		return
	}
	response.RespondOK(c, out)
}

type trainRequest struct {
	Outcomes map[string]float64 `json:"outcomes" binding:"required"`
}

// POST /api/v1/analytics/:farmId/yield/train
func (h *AnalyticsHandler) TrainYieldResidual(c *gin.Context) {
	farmID, ok := uuidParam(c, "farmId")
	if !ok {
		return
	}
	var req trainRequest
	if !bindJSON(c, &req) {
		return
	}
	out, err := h.analytics.TrainYieldResidual(c.Request.Context(), farmID, req.Outcomes)
	if err != nil {
		response.RespondServiceError(c, err, "analytics failure")
		return
	}
	response.RespondOK(c, out)
}

// GET /api/v1/analytics/:farmId/alerts
func (h *AnalyticsHandler) Alerts(c *gin.Context) {
	farmID, ok := uuidParam(c, "farmId")
	if !ok {
		return
	}
	out, err := h.analytics.Alerts(c.Request.Context(), farmID)
	if err != nil {
		response.RespondServiceError(c, err, "analytics failure")
		return
	}
	response.RespondOK(c, out)
}

type syntheticRequest struct {
	FarmType string `json:"farm_type" binding:"required"`
	Days     int    `json:"days"`
	Seed     int64  `json:"seed"`
}

// POST /api/v1/synthetic
func (h *AnalyticsHandler) GenerateSynthetic(c *gin.Context) {
	req := syntheticRequest{Days: 30}
	if !bindJSON(c, &req) {
		return
	}
	out, err := h.analytics.GenerateSynthetic(c.Request.Context(), req.FarmType, req.Days, req.Seed)
	if err != nil {
		response.RespondServiceError(c, err, "synthetic generation failed")
		return
	}
	response.RespondOK(c, out)
}
