package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/revulabs/revu/backend/internal/models"
	"github.com/revulabs/revu/backend/internal/services"
)

// HealthHandler provides health check endpoints.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// CheckHealth returns the health status of all subsystems.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"

	dbStatus := "ok"
	sqlDB, err := models.GetDB().DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	} else if err := sqlDB.Ping(); err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	}

	taskQueue := services.GetTaskQueue()
	queueMode := "sync"
	if taskQueue != nil && taskQueue.IsAsync() {
		queueMode = "async (Redis)"
	}

	var pendingAnalyses int64
	models.GetDB().Model(&models.AnalysisResult{}).
		Where("analysis_status = ?", models.AnalysisStatusPending).
		Count(&pendingAnalyses)

	var pendingReview int64
	models.GetDB().Model(&models.AnalysisResult{}).
		Where("review_status = ?", models.ReviewStatusPendingReview).
		Count(&pendingReview)

	c.JSON(200, gin.H{
		"status":  overall,
		"service": "revu",
		"components": gin.H{
			"database":         dbStatus,
			"queue_mode":       queueMode,
			"pending_analyses": pendingAnalyses,
			"pending_review":   pendingReview,
		},
	})
}
