package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FeedbackItem is one piece of raw customer feedback. Immutable after
// ingestion; analyses reference it and never modify it.
type FeedbackItem struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	UUID         string         `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	Source       string         `gorm:"size:100;not null;index" json:"source"` // manual, csv, g2, capterra, ...
	Content      string         `gorm:"type:text;not null" json:"content"`
	AuthorName   string         `gorm:"size:255" json:"author_name"`
	AuthorEmail  string         `gorm:"size:255" json:"author_email"`
	Rating       *float64       `json:"rating"` // 0.0 - 5.0 when the source provides one
	FeedbackDate *time.Time     `gorm:"index" json:"feedback_date"`
	IngestedAt   time.Time      `json:"ingested_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (FeedbackItem) TableName() string { return "feedback_items" }

// BeforeCreate assigns the external identifier and ingestion timestamp.
func (f *FeedbackItem) BeforeCreate(tx *gorm.DB) error {
	if f.UUID == "" {
		f.UUID = uuid.NewString()
	}
	if f.IngestedAt.IsZero() {
		f.IngestedAt = time.Now()
	}
	return nil
}
