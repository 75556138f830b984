package services

import (
	"context"
	"time"

	"github.com/revulabs/revu/backend/internal/models"
	"github.com/revulabs/revu/backend/pkg/logger"
	"gorm.io/gorm"
)

const (
	// RetrySweepInterval is how often the sweep looks for stuck analyses.
	RetrySweepInterval = 5 * time.Minute
	// RetryStaleAfter is how long a pending analysis may sit before the
	// sweep picks it up. Covers items whose requeue was lost.
	RetryStaleAfter = 10 * time.Minute
	RetryBatchSize  = 10
)

// RetryService re-runs analyses that stalled in the pending state, so no
// feedback item is ever silently lost.
type RetryService struct {
	db           *gorm.DB
	orchestrator *OrchestratorService
}

func NewRetryService(db *gorm.DB, orchestrator *OrchestratorService) *RetryService {
	return &RetryService{
		db:           db,
		orchestrator: orchestrator,
	}
}

// StartRetryScheduler launches the periodic sweep.
func StartRetryScheduler(db *gorm.DB, orchestrator *OrchestratorService) {
	service := NewRetryService(db, orchestrator)
	ticker := time.NewTicker(RetrySweepInterval)

	go func() {
		for range ticker.C {
			service.ProcessStalledAnalyses()
		}
	}()

	logger.Infof("[Retry] Scheduler started, interval: %v, stale after: %v", RetrySweepInterval, RetryStaleAfter)
}

// ProcessStalledAnalyses picks up pending analyses that have not moved
// recently and runs them again.
func (s *RetryService) ProcessStalledAnalyses() {
	cutoff := time.Now().Add(-RetryStaleAfter)

	var stalled []models.AnalysisResult
	err := s.db.Where("analysis_status = ? AND updated_at < ?", models.AnalysisStatusPending, cutoff).
		Order("updated_at ASC").
		Limit(RetryBatchSize).
		Find(&stalled).Error
	if err != nil {
		logger.Errorf("[Retry] Failed to fetch stalled analyses: %v", err)
		return
	}

	if len(stalled) == 0 {
		return
	}

	logger.Infof("[Retry] Processing %d stalled analyses", len(stalled))

	for i := range stalled {
		s.retryAnalysis(&stalled[i])
	}
}

func (s *RetryService) retryAnalysis(result *models.AnalysisResult) {
	logger.Infof("[Retry] Retrying analysis %d (attempt %d)", result.ID, result.RetryCount+1)

	err := s.orchestrator.Process(context.Background(), &AnalysisTask{
		FeedbackID: result.FeedbackItemID,
		AnalysisID: result.ID,
		Requeue:    true,
	})
	if err != nil {
		logger.Infof("[Retry] Analysis %d still unavailable: %v", result.ID, err)
		LogWarning("analysis", "retry_failed", err.Error(), nil, "", "", map[string]interface{}{
			"analysis_id": result.ID,
			"attempt":     result.RetryCount + 1,
		})
		return
	}

	logger.Infof("[Retry] Analysis %d succeeded on retry", result.ID)
}

// ManualRetry resets the retry budget of a failed analysis and runs it
// once immediately.
func (s *RetryService) ManualRetry(analysisID uint) error {
	var result models.AnalysisResult
	if err := s.db.First(&result, analysisID).Error; err != nil {
		return err
	}

	if result.AnalysisStatus == models.AnalysisStatusCompleted {
		return nil
	}

	if err := s.db.Model(&result).Updates(map[string]interface{}{
		"analysis_status": models.AnalysisStatusPending,
		"retry_count":     0,
	}).Error; err != nil {
		return err
	}
	result.AnalysisStatus = models.AnalysisStatusPending
	result.RetryCount = 0

	s.retryAnalysis(&result)
	return nil
}
