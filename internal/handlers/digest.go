package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/revulabs/revu/backend/internal/services"
	"github.com/revulabs/revu/backend/pkg/response"
)

type DigestHandler struct {
	digestService *services.DigestService
}

func NewDigestHandler(digestService *services.DigestService) *DigestHandler {
	return &DigestHandler{digestService: digestService}
}

// List returns past daily digests, newest first.
// GET /api/digests
func (h *DigestHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	digests, total, err := h.digestService.List(page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"items":     digests,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// Get returns one digest.
// GET /api/digests/:id
func (h *DigestHandler) Get(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	digest, err := h.digestService.GetByID(id)
	if err != nil {
		response.NotFound(c, "digest not found")
		return
	}

	response.Success(c, digest)
}

type generateDigestRequest struct {
	Date string `json:"date"` // YYYY-MM-DD, defaults to today
}

// Generate builds (or rebuilds) the digest for a day and sends it.
// POST /api/digests/generate
func (h *DigestHandler) Generate(c *gin.Context) {
	var req generateDigestRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.BadRequest(c, err.Error())
		return
	}

	day := time.Now()
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			response.BadRequest(c, "invalid date, expected YYYY-MM-DD")
			return
		}
		day = parsed
	}

	if err := h.digestService.GenerateAndSend(day); err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"message": "digest generated"})
}

// Resend pushes an existing digest to the notification channels again.
// POST /api/digests/:id/resend
func (h *DigestHandler) Resend(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	if err := h.digestService.Resend(id); err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"message": "digest resent"})
}
