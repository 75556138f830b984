package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Review routing states for an analysis version.
const (
	ReviewStatusDraft         = "draft"
	ReviewStatusAutoAccepted  = "auto_accepted"
	ReviewStatusPendingReview = "pending_review"
	ReviewStatusReviewed      = "reviewed"
)

// Pipeline states. "pending" covers both not-yet-run and requeued items so
// nothing ever silently disappears.
const (
	AnalysisStatusPending   = "pending"
	AnalysisStatusCompleted = "completed"
	AnalysisStatusFailed    = "failed"
)

// Sentiment labels.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
	SentimentMixed    = "mixed"
)

// Urgency tiers.
const (
	UrgencyLow      = "low"
	UrgencyMedium   = "medium"
	UrgencyHigh     = "high"
	UrgencyCritical = "critical"
)

// AnalysisResult is one version of the analysis of a feedback item.
// Versions are append-only; the current result is the latest by CreatedAt.
type AnalysisResult struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	FeedbackItemID uint          `gorm:"index;not null" json:"feedback_item_id"`
	FeedbackItem   *FeedbackItem `gorm:"foreignKey:FeedbackItemID" json:"feedback_item,omitempty"`
	Version        int           `gorm:"not null;default:1" json:"version"`

	Sentiment      string   `gorm:"size:20;index" json:"sentiment"`
	SentimentScore float64  `json:"sentiment_score"` // -1.0 .. 1.0
	Categories     string   `gorm:"type:text" json:"-"`
	Themes         string   `gorm:"type:text" json:"-"`
	PriorityScore  float64  `gorm:"index" json:"priority_score"` // 0 .. 100
	Urgency        string   `gorm:"size:20;index" json:"urgency"`
	Confidence     float64  `json:"confidence"` // 0.0 .. 1.0
	InsightSummary string   `gorm:"type:text" json:"insight_summary"`
	Entities       string   `gorm:"type:text" json:"-"` // extracted (text, type) pairs as JSON
	PriorityHint   *float64 `json:"priority_hint"`      // advisory model suggestion, never authoritative

	RequiresReview bool       `gorm:"index" json:"requires_review"`
	ParseFailed    bool       `json:"parse_failed"`
	ReviewStatus   string     `gorm:"size:30;index;default:draft" json:"review_status"`
	ClaimedBy      *uint      `gorm:"index" json:"claimed_by"`
	ClaimedAt      *time.Time `json:"claimed_at"`

	AnalysisStatus string `gorm:"size:20;index;default:pending" json:"analysis_status"`
	ErrorMessage   string `gorm:"type:text" json:"error_message"`
	RetryCount     int    `gorm:"default:0" json:"retry_count"`

	ModelVersion string         `gorm:"size:100" json:"model_version"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (AnalysisResult) TableName() string { return "analysis_results" }

// CategoryList decodes the JSON-encoded category column.
func (a *AnalysisResult) CategoryList() []string { return decodeStrings(a.Categories) }

// SetCategories encodes categories into the JSON column.
func (a *AnalysisResult) SetCategories(cats []string) { a.Categories = encodeStrings(cats) }

// ThemeList decodes the JSON-encoded theme column.
func (a *AnalysisResult) ThemeList() []string { return decodeStrings(a.Themes) }

// SetThemes encodes themes into the JSON column.
func (a *AnalysisResult) SetThemes(themes []string) { a.Themes = encodeStrings(themes) }

// IsTerminal reports whether the routing state machine is finished.
func (a *AnalysisResult) IsTerminal() bool {
	return a.ReviewStatus == ReviewStatusAutoAccepted || a.ReviewStatus == ReviewStatusReviewed
}

func encodeStrings(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeStrings(s string) []string {
	if s == "" {
		return nil
	}
	var v []string
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil
	}
	return v
}
