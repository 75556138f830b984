package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/revulabs/revu/backend/internal/config"
	"github.com/revulabs/revu/backend/internal/models"
	"github.com/revulabs/revu/backend/pkg/logger"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// maxRequeueAttempts bounds immediate requeues after provider outages.
// Items past the bound stay pending and are picked up by the retry sweep.
const maxRequeueAttempts = 5

// Notifier delivers pipeline events. Delivery is best-effort; the
// pipeline never blocks on it.
type Notifier interface {
	Notify(eventKind string, payload map[string]interface{})
}

// OrchestratorService composes the per-item pipeline: preprocess, analyze,
// score, extract, route. It owns retry and timeout policy; every submitted
// item ends in auto_accepted, pending_review, reviewed, or stays queryable
// as pending. Nothing is dropped.
type OrchestratorService struct {
	db           *gorm.DB
	cfg          *config.AnalysisConfig
	preprocessor *PreprocessorService
	analyzer     *AnalyzerService
	extractors   *ExtractorService
	router       *ReviewRouterService
	notifier     Notifier
	queue        TaskQueue

	// now is the clock, swappable in tests.
	now func() time.Time
}

func NewOrchestratorService(
	db *gorm.DB,
	cfg *config.AnalysisConfig,
	preprocessor *PreprocessorService,
	analyzer *AnalyzerService,
	extractors *ExtractorService,
	router *ReviewRouterService,
	notifier Notifier,
	queue TaskQueue,
) *OrchestratorService {
	return &OrchestratorService{
		db:           db,
		cfg:          cfg,
		preprocessor: preprocessor,
		analyzer:     analyzer,
		extractors:   extractors,
		router:       router,
		notifier:     notifier,
		queue:        queue,
		now:          time.Now,
	}
}

// SubmitAnalysis creates the next pending analysis version for a feedback
// item and enqueues it. Versions are append-only; a re-analysis starts a
// fresh version at draft and never touches prior ones.
func (s *OrchestratorService) SubmitAnalysis(feedbackID uint) (*models.AnalysisResult, error) {
	result, err := s.createPendingVersion(feedbackID)
	if err != nil {
		return nil, err
	}

	if s.queue != nil {
		if err := s.queue.Enqueue(&AnalysisTask{FeedbackID: result.FeedbackItemID, AnalysisID: result.ID}); err != nil {
			logger.Errorf("[Orchestrator] Failed to enqueue analysis %d: %v", result.ID, err)
		}
	}

	return result, nil
}

func (s *OrchestratorService) createPendingVersion(feedbackID uint) (*models.AnalysisResult, error) {
	var feedback models.FeedbackItem
	if err := s.db.First(&feedback, feedbackID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: feedback item %d not found", ErrInvalidInput, feedbackID)
		}
		return nil, err
	}

	var lastVersion int
	s.db.Model(&models.AnalysisResult{}).
		Where("feedback_item_id = ?", feedback.ID).
		Select("COALESCE(MAX(version), 0)").
		Scan(&lastVersion)

	result := &models.AnalysisResult{
		FeedbackItemID: feedback.ID,
		Version:        lastVersion + 1,
		ReviewStatus:   models.ReviewStatusDraft,
		AnalysisStatus: models.AnalysisStatusPending,
	}
	if err := s.db.Create(result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

// Process is the worker entry point for one analysis task. It applies the
// per-item timeout, and on provider unavailability requeues rather than
// failing the item.
func (s *OrchestratorService) Process(ctx context.Context, task *AnalysisTask) error {
	if s.cfg.ItemTimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ItemTimeout())
		defer cancel()
	}

	var result models.AnalysisResult
	if err := s.db.First(&result, task.AnalysisID).Error; err != nil {
		return fmt.Errorf("analysis %d not found: %w", task.AnalysisID, err)
	}
	if result.AnalysisStatus == models.AnalysisStatusCompleted {
		// Requeued duplicate of an already finished item.
		return nil
	}

	var feedback models.FeedbackItem
	if err := s.db.First(&feedback, result.FeedbackItemID).Error; err != nil {
		return fmt.Errorf("feedback %d not found: %w", result.FeedbackItemID, err)
	}

	err := s.runPipeline(ctx, &feedback, &result)
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrInvalidInput) {
		// Malformed input is not retried.
		s.db.Model(&result).Updates(map[string]interface{}{
			"analysis_status": models.AnalysisStatusFailed,
			"error_message":   err.Error(),
		})
		return err
	}

	// Provider outage or timeout: keep the item pending and requeue.
	retryCount := result.RetryCount + 1
	s.db.Model(&result).Updates(map[string]interface{}{
		"analysis_status": models.AnalysisStatusPending,
		"error_message":   err.Error(),
		"retry_count":     retryCount,
	})

	if s.queue != nil && retryCount <= maxRequeueAttempts {
		task.Requeue = true
		if qerr := s.queue.Enqueue(task); qerr != nil {
			logger.Errorf("[Orchestrator] Requeue of analysis %d failed: %v", result.ID, qerr)
		}
	} else {
		logger.Warnf("[Orchestrator] Analysis %d exhausted immediate requeues, left for retry sweep", result.ID)
	}

	return err
}

// runPipeline executes preprocess, analyze, score, extract, route for one
// item and persists the outcome.
func (s *OrchestratorService) runPipeline(ctx context.Context, feedback *models.FeedbackItem, result *models.AnalysisResult) error {
	pre, err := s.preprocessor.Preprocess(feedback.Content)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			return err
		}
		// Degraded: proceed with empty signals instead of aborting.
		logger.Warnf("[Orchestrator] Preprocessor degraded for feedback %d: %v", feedback.ID, err)
		pre = &PreprocessResult{}
	}

	draft, err := s.analyzer.Analyze(ctx, &AnalysisRequest{
		Text:       feedback.Content,
		Source:     feedback.Source,
		AuthorName: feedback.AuthorName,
		Rating:     feedback.Rating,
		Entities:   pre.Entities,
	})
	if err != nil {
		return err
	}

	score := s.score(feedback, pre, draft)

	result.Sentiment = draft.Sentiment
	result.SentimentScore = draft.SentimentScore
	result.SetCategories(draft.Categories)
	result.SetThemes(draft.Themes)
	result.PriorityScore = score
	result.Urgency = TierFor(score)
	result.Confidence = draft.Confidence
	result.InsightSummary = draft.InsightSummary
	result.PriorityHint = draft.PriorityHint
	result.ParseFailed = draft.ParseFailed
	result.ModelVersion = draft.ModelVersion
	result.AnalysisStatus = models.AnalysisStatusCompleted
	result.ErrorMessage = ""
	if encoded, merr := encodeEntities(pre.Entities); merr == nil {
		result.Entities = encoded
	}

	if err := s.db.Save(result).Error; err != nil {
		return fmt.Errorf("failed to persist analysis %d: %w", result.ID, err)
	}

	annotations := s.extractors.Annotate(result, pre, draft)

	if err := s.router.Route(result, annotations.Churn != nil); err != nil {
		return fmt.Errorf("failed to route analysis %d: %w", result.ID, err)
	}

	s.emitEvents(feedback, result, annotations)

	logger.Infof("[Orchestrator] Feedback %d analyzed: v%d score=%.1f tier=%s review=%v",
		feedback.ID, result.Version, result.PriorityScore, result.Urgency, result.RequiresReview)
	return nil
}

// score derives the four normalized signals and applies the weighted
// formula. The model's priority_hint is stored but never used here.
func (s *OrchestratorService) score(feedback *models.FeedbackItem, pre *PreprocessResult, draft *AnalysisDraft) float64 {
	feedbackAt := feedback.IngestedAt
	if feedback.FeedbackDate != nil {
		feedbackAt = *feedback.FeedbackDate
	}

	halfLife := time.Duration(s.cfg.RecencyHalfLife) * 24 * time.Hour

	return PriorityScore(PrioritySignals{
		SentimentNegativity: SentimentNegativity(draft.SentimentScore),
		UrgencyStrength:     UrgencyStrength(len(pre.UrgencyMatches)),
		EntitySignal:        EntitySignal(len(pre.CompetitorMatches), len(pre.ProductTermMatches)),
		Recency:             RecencySignal(feedbackAt, s.now(), halfLife),
	})
}

func (s *OrchestratorService) emitEvents(feedback *models.FeedbackItem, result *models.AnalysisResult, annotations *InsightAnnotations) {
	if s.notifier == nil {
		return
	}

	base := map[string]interface{}{
		"feedback_uuid":  feedback.UUID,
		"source":         feedback.Source,
		"sentiment":      result.Sentiment,
		"priority_score": result.PriorityScore,
		"urgency":        result.Urgency,
		"summary":        result.InsightSummary,
	}

	if result.Urgency == models.UrgencyHigh || result.Urgency == models.UrgencyCritical {
		s.notifier.Notify(models.EventHighPriority, base)
	}
	if annotations.Churn != nil {
		payload := clonePayload(base)
		payload["churn_strength"] = annotations.Churn.Strength
		payload["churn_indicators"] = annotations.Churn.Indicators
		s.notifier.Notify(models.EventChurnRisk, payload)
	}
	if len(annotations.Competitors) > 0 {
		payload := clonePayload(base)
		payload["competitors"] = annotations.Competitors
		s.notifier.Notify(models.EventCompetitor, payload)
	}
}

// AnalyzeBatch runs the pipeline over many items with bounded parallelism.
// Failures are per-item; one bad item never stops the batch.
func (s *OrchestratorService) AnalyzeBatch(ctx context.Context, feedbackIDs []uint) (*BatchOutcome, error) {
	concurrency := s.cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	outcome := &BatchOutcome{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	results := make([]error, len(feedbackIDs))
	for i, id := range feedbackIDs {
		i, id := i, id
		g.Go(func() error {
			result, err := s.createPendingVersion(id)
			if err != nil {
				results[i] = err
				return nil
			}
			results[i] = s.Process(gctx, &AnalysisTask{FeedbackID: id, AnalysisID: result.ID})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, err := range results {
		if err == nil {
			outcome.Succeeded++
			continue
		}
		if errors.Is(err, ErrAnalysisUnavailable) {
			outcome.Requeued++
		} else {
			outcome.Failed++
		}
		outcome.Errors = append(outcome.Errors, BatchItemError{FeedbackID: feedbackIDs[i], Error: err.Error()})
	}
	return outcome, nil
}

type BatchOutcome struct {
	Succeeded int              `json:"succeeded"`
	Requeued  int              `json:"requeued"`
	Failed    int              `json:"failed"`
	Errors    []BatchItemError `json:"errors,omitempty"`
}

type BatchItemError struct {
	FeedbackID uint   `json:"feedback_id"`
	Error      string `json:"error"`
}

// CurrentResult returns the latest analysis version for a feedback item.
func (s *OrchestratorService) CurrentResult(feedbackID uint) (*models.AnalysisResult, error) {
	var result models.AnalysisResult
	err := s.db.Where("feedback_item_id = ?", feedbackID).
		Order("version DESC").
		First(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ResultHistory returns all analysis versions for a feedback item, newest
// first.
func (s *OrchestratorService) ResultHistory(feedbackID uint) ([]models.AnalysisResult, error) {
	var results []models.AnalysisResult
	err := s.db.Where("feedback_item_id = ?", feedbackID).
		Order("version DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func clonePayload(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m)+2)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func encodeEntities(entities []Entity) (string, error) {
	if len(entities) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(entities)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
