package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agrisense/agrisense-backend/internal/engine"
	"github.com/agrisense/agrisense-backend/internal/graphcache"
	"github.com/agrisense/agrisense-backend/internal/http/response"
	"github.com/agrisense/agrisense-backend/internal/pkg/dbctx"
	"github.com/agrisense/agrisense-backend/internal/services"
)

type FarmHandler struct {
	topology services.TopologyService
}

func NewFarmHandler(topology services.TopologyService) *FarmHandler {
	return &FarmHandler{topology: topology}
}

// POST /api/v1/farms
func (h *FarmHandler) CreateFarm(c *gin.Context) {
	var in services.FarmInput
	if !bindJSON(c, &in) {
		return
	}
	f, err := h.topology.CreateFarm(dbctx.Context{Ctx: c.Request.Context()}, in)
	if err != nil {
		response.RespondServiceError(c, err, "create farm failed")
		return
	}
	response.RespondCreated(c, f)
}

// GET /api/v1/farms
func (h *FarmHandler) ListFarms(c *gin.Context) {
	farms, err := h.topology.ListFarms(dbctx.Context{Ctx: c.Request.Context()})
	if err != nil {
		response.RespondServiceError(c, err, "list farms failed")
		return
	}
	response.RespondOK(c, gin.H{"items": farms, "total": len(farms)})
}

// GET /api/v1/farms/:farmId
func (h *FarmHandler) GetFarm(c *gin.Context) {
	farmID, ok := uuidParam(c, "farmId")
	if !ok {
		return
	}
	d, err := h.topology.FarmDetail(dbctx.Context{Ctx: c.Request.Context()}, farmID)
	if err != nil {
		response.RespondServiceError(c, err, "load farm failed")
		return
	}
	response.RespondOK(c, d)
}

// DELETE /api/v1/farms/:farmId
func (h *FarmHandler) DeleteFarm(c *gin.Context) {
	farmID, ok := uuidParam(c, "farmId")
	if !ok {
		return
	}
	if err := h.topology.DeleteFarm(dbctx.Context{Ctx: c.Request.Context()}, farmID); err != nil {
		response.RespondServiceError(c, err, "delete farm failed")
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/v1/farms/:farmId/zones
func (h *FarmHandler) CreateZone(c *gin.Context) {
	farmID, ok := uuidParam(c, "farmId")
	if !ok {
		return
	}
	var in services.ZoneInput
	if !bindJSON(c, &in) {
		return
	}
	z, err := h.topology.CreateZone(dbctx.Context{Ctx: c.Request.Context()}, farmID, in)
	if err != nil {
		response.RespondServiceError(c, err, "create zone failed")
		return
	}
	response.RespondCreated(c, z)
}

// DELETE /api/v1/farms/:farmId/zones/:zoneId
func (h *FarmHandler) DeleteZone(c *gin.Context) {
	farmID, ok := uuidParam(c, "farmId")
	if !ok {
		return
	}
	zoneID, ok := uuidParam(c, "zoneId")
	if !ok {
		return
	}
	if err := h.topology.DeleteZone(dbctx.Context{Ctx: c.Request.Context()}, farmID, zoneID); err != nil {
		response.RespondServiceError(c, err, "delete zone failed")
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/v1/farms/:farmId/sensors
func (h *FarmHandler) CreateVertex(c *gin.Context) {
	farmID, ok := uuidParam(c, "farmId")
	if !ok {
		return
	}
	var in services.VertexInput
	if !bindJSON(c, &in) {
		return
	}
	v, err := h.topology.CreateVertex(dbctx.Context{Ctx: c.Request.Context()}, farmID, in)
	if err != nil {
		response.RespondServiceError(c, err, "create vertex failed")
		return
	}
	response.RespondCreated(c, v)
}

// POST /api/v1/farms/:farmId/hyperedges
func (h *FarmHandler) CreateHyperEdge(c *gin.Context) {
	farmID, ok := uuidParam(c, "farmId")
	if !ok {
		return
	}
	var in services.HyperEdgeInput
	if !bindJSON(c, &in) {
		return
	}
	e, err := h.topology.CreateHyperEdge(dbctx.Context{Ctx: c.Request.Context()}, farmID, in)
	if err != nil {
		response.RespondServiceError(c, err, "create hyperedge failed")
		return
	}
	response.RespondCreated(c, e)
}

// GET /api/v1/farms/:farmId/graph
func (h *FarmHandler) GetGraph(c *gin.Context) {
	farmID, ok := uuidParam(c, "farmId")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	state, err := graphcache.FromContext(ctx).Get(ctx, farmID.String(), func(lc context.Context) (engine.GraphState, error) {
		return h.topology.GetGraph(dbctx.Context{Ctx: lc}, farmID)
	})
	if err != nil {
		response.RespondServiceError(c, err, "build graph failed")
		return
	}
	sum, err := state.Summary()
	if err != nil {
		response.RespondServiceError(c, err, "summarize graph failed")
		return
	}
	response.RespondOK(c, sum)
}
