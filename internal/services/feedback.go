package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/revulabs/revu/backend/internal/models"
	"gorm.io/gorm"
)

// FeedbackService ingests and serves raw feedback items. Items are
// immutable once stored; analysis results are versioned separately.
type FeedbackService struct {
	db       *gorm.DB
	maxChars int
}

func NewFeedbackService(db *gorm.DB, maxChars int) *FeedbackService {
	if maxChars <= 0 {
		maxChars = 10000
	}
	return &FeedbackService{db: db, maxChars: maxChars}
}

type CreateFeedbackRequest struct {
	Source       string     `json:"source"`
	Content      string     `json:"content" binding:"required"`
	AuthorName   string     `json:"author_name"`
	AuthorEmail  string     `json:"author_email"`
	Rating       *float64   `json:"rating"`
	FeedbackDate *time.Time `json:"feedback_date"`
}

// Create validates and stores one feedback item.
func (s *FeedbackService) Create(req *CreateFeedbackRequest) (*models.FeedbackItem, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: feedback content is empty", ErrInvalidInput)
	}
	if len(content) > s.maxChars {
		return nil, fmt.Errorf("%w: feedback content exceeds %d characters", ErrInvalidInput, s.maxChars)
	}
	if req.Rating != nil && (*req.Rating < 0 || *req.Rating > 5) {
		return nil, fmt.Errorf("%w: rating must be between 0 and 5", ErrInvalidInput)
	}

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = "manual"
	}

	item := models.FeedbackItem{
		Source:       source,
		Content:      content,
		AuthorName:   strings.TrimSpace(req.AuthorName),
		AuthorEmail:  strings.TrimSpace(req.AuthorEmail),
		Rating:       req.Rating,
		FeedbackDate: req.FeedbackDate,
	}

	if err := s.db.Create(&item).Error; err != nil {
		return nil, err
	}

	return &item, nil
}

type FeedbackListRequest struct {
	Page      int    `form:"page" binding:"min=1"`
	PageSize  int    `form:"page_size" binding:"min=1,max=100"`
	Source    string `form:"source"`
	Search    string `form:"search"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
}

type FeedbackListResponse struct {
	Total    int64                 `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
	Items    []models.FeedbackItem `json:"items"`
}

// List returns paginated feedback items, newest first.
func (s *FeedbackService) List(req *FeedbackListRequest) (*FeedbackListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	var items []models.FeedbackItem
	var total int64

	query := s.db.Model(&models.FeedbackItem{})

	if req.Source != "" {
		query = query.Where("source = ?", req.Source)
	}
	if req.Search != "" {
		like := "%" + req.Search + "%"
		query = query.Where("content LIKE ? OR author_name LIKE ?", like, like)
	}
	if req.StartDate != "" {
		if t, err := time.Parse("2006-01-02", req.StartDate); err == nil {
			query = query.Where("ingested_at >= ?", t)
		}
	}
	if req.EndDate != "" {
		if t, err := time.Parse("2006-01-02", req.EndDate); err == nil {
			query = query.Where("ingested_at < ?", t.AddDate(0, 0, 1))
		}
	}

	query.Count(&total)

	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("ingested_at DESC").Find(&items).Error; err != nil {
		return nil, err
	}

	return &FeedbackListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    items,
	}, nil
}

// GetByUUID loads one item by its external identifier.
func (s *FeedbackService) GetByUUID(uuid string) (*models.FeedbackItem, error) {
	var item models.FeedbackItem
	if err := s.db.Where("uuid = ?", uuid).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: feedback item %s not found", ErrInvalidInput, uuid)
		}
		return nil, err
	}
	return &item, nil
}

// GetByID loads one item by primary key.
func (s *FeedbackService) GetByID(id uint) (*models.FeedbackItem, error) {
	var item models.FeedbackItem
	if err := s.db.First(&item, id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}
