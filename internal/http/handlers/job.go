package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/agrisense/agrisense-backend/internal/http/response"
	"github.com/agrisense/agrisense-backend/internal/services"
)

type JobHandler struct {
	jobs services.RecomputeService
}

func NewJobHandler(jobs services.RecomputeService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// POST /api/v1/jobs/:farmId/recompute
func (h *JobHandler) CreateRecompute(c *gin.Context) {
	farmID, ok := uuidParam(c, "farmId")
	if !ok {
		return
	}
	job, err := h.jobs.CreateJob(c.Request.Context(), farmID)
	if err != nil {
		response.RespondServiceError(c, err, "job enqueue failed")
		return
	}
	response.RespondAccepted(c, job)
}

// GET /api/v1/jobs/:jobId/status
func (h *JobHandler) GetStatus(c *gin.Context) {
	jobID, ok := uuidParam(c, "jobId")
	if !ok {
		return
	}
	job, err := h.jobs.GetJobStatus(c.Request.Context(), jobID)
	if err != nil {
		response.RespondServiceError(c, err, "job status failed")
		return
	}
	response.RespondOK(c, job)
}
