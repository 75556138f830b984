package models

import "time"

// DailyDigest is the stored snapshot of one day's feedback activity.
// Regenerating the digest for a day updates the same row.
type DailyDigest struct {
	ID     uint      `gorm:"primaryKey" json:"id"`
	Date   time.Time `gorm:"uniqueIndex;not null" json:"date"`

	TotalItems     int     `json:"total_items"`
	AnalyzedCount  int     `json:"analyzed_count"`
	PendingCount   int     `json:"pending_count"`
	PendingReview  int     `json:"pending_review"`
	CriticalCount  int     `json:"critical_count"`
	HighCount      int     `json:"high_count"`
	ChurnCount     int     `json:"churn_count"`
	CompetitorHits int     `json:"competitor_hits"`
	AvgPriority    float64 `json:"avg_priority"`
	AvgSentiment   float64 `json:"avg_sentiment"`

	TopThemes string `gorm:"type:text" json:"-"` // []ThemeCount as JSON
	TopDemand string `gorm:"type:text" json:"-"` // []DemandCount as JSON
	Summary   string `gorm:"type:text" json:"summary"`

	NotifiedAt  *time.Time `json:"notified_at"`
	NotifyError string     `gorm:"type:text" json:"notify_error"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (DailyDigest) TableName() string { return "daily_digests" }
