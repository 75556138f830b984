package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/revulabs/revu/backend/internal/services"
	"github.com/revulabs/revu/backend/pkg/response"
)

type AnalysisHandler struct {
	feedbackService *services.FeedbackService
	orchestrator    *services.OrchestratorService
	retryService    *services.RetryService
}

func NewAnalysisHandler(feedbackService *services.FeedbackService, orchestrator *services.OrchestratorService, retryService *services.RetryService) *AnalysisHandler {
	return &AnalysisHandler{
		feedbackService: feedbackService,
		orchestrator:    orchestrator,
		retryService:    retryService,
	}
}

// Trigger queues a fresh analysis version for a feedback item.
// POST /api/feedback/:uuid/analyze
func (h *AnalysisHandler) Trigger(c *gin.Context) {
	item, err := h.feedbackService.GetByUUID(c.Param("uuid"))
	if err != nil {
		response.NotFound(c, "feedback item not found")
		return
	}

	result, err := h.orchestrator.SubmitAnalysis(item.ID)
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			response.BadRequest(c, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Accepted(c, result)
}

type batchAnalyzeRequest struct {
	UUIDs []string `json:"uuids" binding:"required,min=1,max=500"`
}

// Batch analyzes a set of feedback items concurrently.
// POST /api/analysis/batch
func (h *AnalysisHandler) Batch(c *gin.Context) {
	var req batchAnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ids := make([]uint, 0, len(req.UUIDs))
	for _, uuid := range req.UUIDs {
		item, err := h.feedbackService.GetByUUID(uuid)
		if err != nil {
			response.BadRequest(c, "unknown feedback item: "+uuid)
			return
		}
		ids = append(ids, item.ID)
	}

	outcome, err := h.orchestrator.AnalyzeBatch(c.Request.Context(), ids)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, outcome)
}

// Current returns the latest analysis version for a feedback item.
// GET /api/feedback/:uuid/analysis
func (h *AnalysisHandler) Current(c *gin.Context) {
	item, err := h.feedbackService.GetByUUID(c.Param("uuid"))
	if err != nil {
		response.NotFound(c, "feedback item not found")
		return
	}

	result, err := h.orchestrator.CurrentResult(item.ID)
	if err != nil {
		response.NotFound(c, "no analysis for this item yet")
		return
	}

	response.Success(c, result)
}

// History returns all analysis versions for a feedback item, newest first.
// GET /api/feedback/:uuid/analysis/history
func (h *AnalysisHandler) History(c *gin.Context) {
	item, err := h.feedbackService.GetByUUID(c.Param("uuid"))
	if err != nil {
		response.NotFound(c, "feedback item not found")
		return
	}

	results, err := h.orchestrator.ResultHistory(item.ID)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, results)
}

// Retry re-runs a stalled or failed analysis immediately.
// POST /api/analysis/:id/retry
func (h *AnalysisHandler) Retry(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	if err := h.retryService.ManualRetry(id); err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Accepted(c, gin.H{"message": "analysis retry queued"})
}
