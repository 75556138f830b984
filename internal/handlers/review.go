package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/revulabs/revu/backend/internal/middleware"
	"github.com/revulabs/revu/backend/internal/services"
	"github.com/revulabs/revu/backend/pkg/response"
)

type ReviewHandler struct {
	router *services.ReviewRouterService
}

func NewReviewHandler(router *services.ReviewRouterService) *ReviewHandler {
	return &ReviewHandler{router: router}
}

// Queue lists analyses waiting for human review.
// GET /api/reviews/pending
func (h *ReviewHandler) Queue(c *gin.Context) {
	var req services.PendingReviewRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.router.PendingQueue(&req)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, resp)
}

// Claim assigns a pending analysis to the calling reviewer. Exactly one
// reviewer wins a concurrent claim; losers get 409.
// POST /api/reviews/:id/claim
func (h *ReviewHandler) Claim(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	result, err := h.router.Claim(id, middleware.GetUserID(c))
	if err != nil {
		if services.IsClaimConflict(err) {
			response.Conflict(c, err.Error())
			return
		}
		if errors.Is(err, services.ErrNotPendingReview) {
			response.BadRequest(c, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, result)
}

// Release returns a claimed analysis to the pending pool.
// POST /api/reviews/:id/release
func (h *ReviewHandler) Release(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	if err := h.router.ReleaseClaim(id, middleware.GetUserID(c)); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	response.Success(c, gin.H{"message": "claim released"})
}

type resolveRequest struct {
	Decision string               `json:"decision" binding:"required"`
	Edit     *services.ReviewEdit `json:"edit"`
	Notes    string               `json:"notes"`
}

// Resolve records the reviewer's decision and finalizes the analysis.
// POST /api/reviews/:id/resolve
func (h *ReviewHandler) Resolve(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	decision, err := h.router.Resolve(id, middleware.GetUserID(c), req.Decision, req.Edit, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidInput):
			response.BadRequest(c, err.Error())
		case errors.Is(err, services.ErrReviewStateTerminal):
			response.Conflict(c, err.Error())
		case errors.Is(err, services.ErrNotPendingReview):
			response.BadRequest(c, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	response.Success(c, decision)
}

// Decisions lists the audit trail of review decisions for an analysis.
// GET /api/reviews/:id/decisions
func (h *ReviewHandler) Decisions(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	decisions, err := h.router.Decisions(id)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, decisions)
}
