package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/revulabs/revu/backend/internal/services"
	"github.com/revulabs/revu/backend/pkg/response"
)

type ThemeHandler struct {
	clustering *services.ClusteringService
}

func NewThemeHandler(clustering *services.ClusteringService) *ThemeHandler {
	return &ThemeHandler{clustering: clustering}
}

type runClusteringRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Trigger runs theme clustering over a date window. With no dates the
// configured default window ending now is used.
// POST /api/themes/run
func (h *ThemeHandler) Trigger(c *gin.Context) {
	var req runClusteringRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.BadRequest(c, err.Error())
		return
	}

	if req.StartDate == "" && req.EndDate == "" {
		run, err := h.clustering.RunScheduled()
		if err != nil {
			response.ServerError(c, err.Error())
			return
		}
		response.Success(c, run)
		return
	}

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		response.BadRequest(c, "invalid start_date")
		return
	}
	end := time.Now()
	if req.EndDate != "" {
		end, err = time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			response.BadRequest(c, "invalid end_date")
			return
		}
		end = end.AddDate(0, 0, 1)
	}

	run, err := h.clustering.Run(start, end)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, run)
}

// History lists past clustering runs, newest first.
// GET /api/themes/runs
func (h *ThemeHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	runs, err := h.clustering.History(limit)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, runs)
}

// Themes lists the clusters of one run.
// GET /api/themes/runs/:id
func (h *ThemeHandler) Themes(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	themes, err := h.clustering.Themes(id)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, themes)
}
