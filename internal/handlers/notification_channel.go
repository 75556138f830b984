package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/revulabs/revu/backend/internal/models"
	"github.com/revulabs/revu/backend/internal/services"
	"github.com/revulabs/revu/backend/pkg/response"
	"gorm.io/gorm"
)

type NotificationChannelHandler struct {
	db                  *gorm.DB
	notificationService *services.NotificationService
}

func NewNotificationChannelHandler(db *gorm.DB, notificationService *services.NotificationService) *NotificationChannelHandler {
	return &NotificationChannelHandler{
		db:                  db,
		notificationService: notificationService,
	}
}

func (h *NotificationChannelHandler) List(c *gin.Context) {
	var channels []models.NotificationChannel
	if err := h.db.Order("id ASC").Find(&channels).Error; err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, channels)
}

type channelRequest struct {
	Name          string `json:"name" binding:"required"`
	Type          string `json:"type" binding:"required"`
	Webhook       string `json:"webhook" binding:"required"`
	Secret        string `json:"secret"`
	IsActive      *bool  `json:"is_active"`
	Events        string `json:"events"`
	DigestEnabled *bool  `json:"digest_enabled"`
}

func (h *NotificationChannelHandler) Create(c *gin.Context) {
	var req channelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	channel := models.NotificationChannel{
		Name:     req.Name,
		Type:     req.Type,
		Webhook:  req.Webhook,
		Secret:   req.Secret,
		IsActive: true,
		Events:   req.Events,
	}
	if req.IsActive != nil {
		channel.IsActive = *req.IsActive
	}
	if req.DigestEnabled != nil {
		channel.DigestEnabled = *req.DigestEnabled
	}

	if err := h.db.Create(&channel).Error; err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Created(c, channel)
}

func (h *NotificationChannelHandler) Update(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	var channel models.NotificationChannel
	if err := h.db.First(&channel, id).Error; err != nil {
		response.NotFound(c, "channel not found")
		return
	}

	var req channelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	updates := map[string]interface{}{
		"name":    req.Name,
		"type":    req.Type,
		"webhook": req.Webhook,
		"events":  req.Events,
	}
	if req.Secret != "" {
		updates["secret"] = req.Secret
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.DigestEnabled != nil {
		updates["digest_enabled"] = *req.DigestEnabled
	}

	if err := h.db.Model(&channel).Updates(updates).Error; err != nil {
		response.ServerError(c, err.Error())
		return
	}

	h.db.First(&channel, id)
	response.Success(c, channel)
}

func (h *NotificationChannelHandler) Delete(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	result := h.db.Delete(&models.NotificationChannel{}, id)
	if result.Error != nil {
		response.ServerError(c, result.Error.Error())
		return
	}
	if result.RowsAffected == 0 {
		response.NotFound(c, "channel not found")
		return
	}

	response.Success(c, gin.H{"message": "channel deleted"})
}

// Test sends a test message through the channel.
// POST /api/notification-channels/:id/test
func (h *NotificationChannelHandler) Test(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	if err := h.notificationService.SendTest(id); err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"message": "test notification sent"})
}
