package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/revulabs/revu/backend/internal/services"
	"github.com/revulabs/revu/backend/pkg/response"
)

type FeedbackHandler struct {
	feedbackService *services.FeedbackService
	orchestrator    *services.OrchestratorService
}

func NewFeedbackHandler(feedbackService *services.FeedbackService, orchestrator *services.OrchestratorService) *FeedbackHandler {
	return &FeedbackHandler{
		feedbackService: feedbackService,
		orchestrator:    orchestrator,
	}
}

// Create ingests one feedback item and queues its analysis.
// POST /api/feedback
func (h *FeedbackHandler) Create(c *gin.Context) {
	var req services.CreateFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	item, err := h.feedbackService.Create(&req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			response.BadRequest(c, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	result, err := h.orchestrator.SubmitAnalysis(item.ID)
	if err != nil {
		// The item is stored; analysis can be retried later.
		response.Created(c, gin.H{"item": item, "analysis_error": err.Error()})
		return
	}

	response.Created(c, gin.H{"item": item, "analysis": result})
}

// List returns paginated feedback items.
// GET /api/feedback
func (h *FeedbackHandler) List(c *gin.Context) {
	var req services.FeedbackListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.feedbackService.List(&req)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, resp)
}

// Get returns one feedback item by UUID.
// GET /api/feedback/:uuid
func (h *FeedbackHandler) Get(c *gin.Context) {
	item, err := h.feedbackService.GetByUUID(c.Param("uuid"))
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			response.NotFound(c, "feedback item not found")
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, item)
}
