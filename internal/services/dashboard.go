package services

import (
	"time"

	"github.com/revulabs/revu/backend/internal/models"
	"gorm.io/gorm"
)

type DashboardService struct {
	db        *gorm.DB
	extractor *ExtractorService
}

func NewDashboardService(db *gorm.DB, extractor *ExtractorService) *DashboardService {
	return &DashboardService{db: db, extractor: extractor}
}

type DashboardStatsRequest struct {
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
}

type DashboardStats struct {
	TotalItems    int64   `json:"total_items"`
	AnalyzedItems int64   `json:"analyzed_items"`
	PendingReview int64   `json:"pending_review"`
	ChurnSignals  int64   `json:"churn_signals"`
	AvgPriority   float64 `json:"avg_priority"`
	AvgSentiment  float64 `json:"avg_sentiment"`
}

type BucketCount struct {
	Bucket string `json:"bucket" gorm:"column:bucket"`
	Count  int64  `json:"count" gorm:"column:count"`
}

type SourceStats struct {
	Source       string  `json:"source"`
	ItemCount    int64   `json:"item_count"`
	AvgPriority  float64 `json:"avg_priority"`
	AvgSentiment float64 `json:"avg_sentiment"`
}

type DemandStats struct {
	RequestKey string `json:"request_key"`
	Count      int64  `json:"count"`
}

type DashboardResponse struct {
	Stats              DashboardStats `json:"stats"`
	SentimentBreakdown []BucketCount  `json:"sentiment_breakdown"`
	UrgencyBreakdown   []BucketCount  `json:"urgency_breakdown"`
	SourceStats        []SourceStats  `json:"source_stats"`
	TopFeatureDemand   []DemandStats  `json:"top_feature_demand"`
	RecentChurnSignals int64          `json:"recent_churn_signals"`
	CompetitorMentions int64          `json:"competitor_mentions"`
}

// GetStats aggregates the analysis pipeline's output over a date window,
// defaulting to the last 7 days.
func (s *DashboardService) GetStats(req *DashboardStatsRequest) (*DashboardResponse, error) {
	var startDate, endDate time.Time
	var err error

	if req.StartDate != "" {
		startDate, err = time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			startDate = time.Now().AddDate(0, 0, -7)
		}
	} else {
		startDate = time.Now().AddDate(0, 0, -7)
	}

	if req.EndDate != "" {
		endDate, err = time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			endDate = time.Now()
		}
		endDate = endDate.Add(24*time.Hour - time.Second)
	} else {
		endDate = time.Now()
	}

	var stats DashboardStats

	s.db.Model(&models.FeedbackItem{}).
		Where("ingested_at BETWEEN ? AND ?", startDate, endDate).
		Count(&stats.TotalItems)

	s.db.Model(&models.AnalysisResult{}).
		Where("created_at BETWEEN ? AND ? AND analysis_status = ?", startDate, endDate, models.AnalysisStatusCompleted).
		Count(&stats.AnalyzedItems)

	s.db.Model(&models.AnalysisResult{}).
		Where("review_status = ?", models.ReviewStatusPendingReview).
		Count(&stats.PendingReview)

	s.db.Model(&models.ChurnSignal{}).
		Where("created_at BETWEEN ? AND ?", startDate, endDate).
		Count(&stats.ChurnSignals)

	s.db.Model(&models.AnalysisResult{}).
		Where("created_at BETWEEN ? AND ? AND analysis_status = ?", startDate, endDate, models.AnalysisStatusCompleted).
		Select("COALESCE(AVG(priority_score), 0)").
		Scan(&stats.AvgPriority)

	s.db.Model(&models.AnalysisResult{}).
		Where("created_at BETWEEN ? AND ? AND analysis_status = ?", startDate, endDate, models.AnalysisStatusCompleted).
		Select("COALESCE(AVG(sentiment_score), 0)").
		Scan(&stats.AvgSentiment)

	var sentimentBreakdown []BucketCount
	s.db.Model(&models.AnalysisResult{}).
		Select("sentiment as bucket, COUNT(*) as count").
		Where("created_at BETWEEN ? AND ? AND analysis_status = ?", startDate, endDate, models.AnalysisStatusCompleted).
		Group("sentiment").
		Order("count DESC").
		Scan(&sentimentBreakdown)

	var urgencyBreakdown []BucketCount
	s.db.Model(&models.AnalysisResult{}).
		Select("urgency as bucket, COUNT(*) as count").
		Where("created_at BETWEEN ? AND ? AND analysis_status = ?", startDate, endDate, models.AnalysisStatusCompleted).
		Group("urgency").
		Order("count DESC").
		Scan(&urgencyBreakdown)

	var sourceStats []SourceStats
	s.db.Model(&models.AnalysisResult{}).
		Select("feedback_items.source as source, COUNT(*) as item_count, COALESCE(AVG(analysis_results.priority_score), 0) as avg_priority, COALESCE(AVG(analysis_results.sentiment_score), 0) as avg_sentiment").
		Joins("JOIN feedback_items ON feedback_items.id = analysis_results.feedback_item_id").
		Where("analysis_results.created_at BETWEEN ? AND ? AND analysis_results.analysis_status = ?", startDate, endDate, models.AnalysisStatusCompleted).
		Group("feedback_items.source").
		Order("item_count DESC").
		Limit(10).
		Scan(&sourceStats)

	topDemand := make([]DemandStats, 0)
	if s.extractor != nil {
		for _, d := range s.extractor.TopDemand(10) {
			topDemand = append(topDemand, DemandStats{RequestKey: d.RequestKey, Count: int64(d.Count)})
		}
	}

	var churnRecent, competitorHits int64
	s.db.Model(&models.ChurnSignal{}).
		Where("created_at BETWEEN ? AND ?", startDate, endDate).
		Count(&churnRecent)
	s.db.Model(&models.CompetitorMention{}).
		Where("created_at BETWEEN ? AND ?", startDate, endDate).
		Count(&competitorHits)

	return &DashboardResponse{
		Stats:              stats,
		SentimentBreakdown: sentimentBreakdown,
		UrgencyBreakdown:   urgencyBreakdown,
		SourceStats:        sourceStats,
		TopFeatureDemand:   topDemand,
		RecentChurnSignals: churnRecent,
		CompetitorMentions: competitorHits,
	}, nil
}
