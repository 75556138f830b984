package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/revulabs/revu/backend/internal/models"
	"github.com/revulabs/revu/backend/pkg/logger"
	"gorm.io/gorm"
)

// Review routing thresholds.
const (
	reviewConfidenceFloor = 0.7
	reviewPriorityCeiling = 80.0
)

// NeedsHumanReview is the routing disjunction. An analysis goes to a human
// when any of: confidence below 0.7, churn risk present, priority above 80,
// mixed sentiment, or the reply could not be parsed.
func NeedsHumanReview(confidence float64, churnRisk bool, priorityScore float64, sentiment string, parseFailed bool) bool {
	if confidence < reviewConfidenceFloor {
		return true
	}
	if churnRisk {
		return true
	}
	if priorityScore > reviewPriorityCeiling {
		return true
	}
	if sentiment == models.SentimentMixed {
		return true
	}
	if parseFailed {
		return true
	}
	return false
}

// ReviewRouterService drives the per-version review state machine:
// draft -> {auto_accepted | pending_review} -> reviewed.
type ReviewRouterService struct {
	db *gorm.DB
}

func NewReviewRouterService(db *gorm.DB) *ReviewRouterService {
	return &ReviewRouterService{db: db}
}

// Route finalizes a draft: it computes requires_review and moves the
// version to pending_review or auto_accepted, persisting the change.
func (s *ReviewRouterService) Route(result *models.AnalysisResult, churnRisk bool) error {
	if result.ReviewStatus != models.ReviewStatusDraft {
		return fmt.Errorf("cannot route analysis %d from state %q", result.ID, result.ReviewStatus)
	}

	result.RequiresReview = NeedsHumanReview(result.Confidence, churnRisk, result.PriorityScore, result.Sentiment, result.ParseFailed)
	if result.RequiresReview {
		result.ReviewStatus = models.ReviewStatusPendingReview
	} else {
		result.ReviewStatus = models.ReviewStatusAutoAccepted
	}

	return s.db.Model(result).Updates(map[string]interface{}{
		"requires_review": result.RequiresReview,
		"review_status":   result.ReviewStatus,
	}).Error
}

// Claim takes the exclusive review lock on a pending analysis. The update
// is compare-and-set: of two racing reviewers exactly one sees a row
// affected, the other gets ErrReviewClaimConflict.
func (s *ReviewRouterService) Claim(analysisID, reviewerID uint) (*models.AnalysisResult, error) {
	now := time.Now()
	res := s.db.Model(&models.AnalysisResult{}).
		Where("id = ? AND review_status = ? AND claimed_by IS NULL", analysisID, models.ReviewStatusPendingReview).
		Updates(map[string]interface{}{
			"claimed_by": reviewerID,
			"claimed_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected == 0 {
		var current models.AnalysisResult
		if err := s.db.First(&current, analysisID).Error; err != nil {
			return nil, err
		}
		if current.ReviewStatus != models.ReviewStatusPendingReview {
			return nil, fmt.Errorf("%w: analysis %d is %s", ErrNotPendingReview, analysisID, current.ReviewStatus)
		}
		// The claim may already be gone again by the time of the re-read.
		if current.ClaimedBy == nil {
			return nil, fmt.Errorf("%w: analysis %d claim lost to a concurrent reviewer", ErrReviewClaimConflict, analysisID)
		}
		return nil, fmt.Errorf("%w: analysis %d already claimed by reviewer %d", ErrReviewClaimConflict, analysisID, *current.ClaimedBy)
	}

	var claimed models.AnalysisResult
	if err := s.db.First(&claimed, analysisID).Error; err != nil {
		return nil, err
	}
	return &claimed, nil
}

// ReleaseClaim drops a reviewer's claim without resolving, returning the
// item to the open pending queue.
func (s *ReviewRouterService) ReleaseClaim(analysisID, reviewerID uint) error {
	res := s.db.Model(&models.AnalysisResult{}).
		Where("id = ? AND review_status = ? AND claimed_by = ?", analysisID, models.ReviewStatusPendingReview, reviewerID).
		Updates(map[string]interface{}{
			"claimed_by": nil,
			"claimed_at": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no claim held by reviewer %d on analysis %d", reviewerID, analysisID)
	}
	return nil
}

// ReviewEdit carries the reviewer-supplied replacement values for an
// "edit" decision. Nil fields are left unchanged.
type ReviewEdit struct {
	Sentiment      *string  `json:"sentiment"`
	SentimentScore *float64 `json:"sentiment_score"`
	Categories     []string `json:"categories"`
	Themes         []string `json:"themes"`
	PriorityScore  *float64 `json:"priority_score"`
	InsightSummary *string  `json:"insight_summary"`
}

// Resolve moves a claimed analysis to the terminal reviewed state with an
// approve, reject, or edit decision. Edits replace the scored fields and
// record both the original and edited values.
func (s *ReviewRouterService) Resolve(analysisID, reviewerID uint, decision string, edit *ReviewEdit, notes string) (*models.ReviewDecision, error) {
	switch decision {
	case models.DecisionApprove, models.DecisionReject, models.DecisionEdit:
	default:
		return nil, fmt.Errorf("%w: unknown decision %q", ErrInvalidInput, decision)
	}
	if decision == models.DecisionEdit && edit == nil {
		return nil, fmt.Errorf("%w: edit decision requires edited values", ErrInvalidInput)
	}

	var result models.AnalysisResult
	if err := s.db.First(&result, analysisID).Error; err != nil {
		return nil, err
	}
	if result.IsTerminal() {
		return nil, fmt.Errorf("%w: analysis %d is %s", ErrReviewStateTerminal, analysisID, result.ReviewStatus)
	}
	if result.ReviewStatus != models.ReviewStatusPendingReview {
		return nil, fmt.Errorf("%w: analysis %d is %s", ErrNotPendingReview, analysisID, result.ReviewStatus)
	}
	if result.ClaimedBy == nil || *result.ClaimedBy != reviewerID {
		return nil, fmt.Errorf("%w: analysis %d not claimed by reviewer %d", ErrReviewClaimConflict, analysisID, reviewerID)
	}

	reviewDecision := &models.ReviewDecision{
		AnalysisResultID: result.ID,
		ReviewerID:       reviewerID,
		Decision:         decision,
		Notes:            notes,
		DecidedAt:        time.Now(),
	}

	updates := map[string]interface{}{
		"review_status": models.ReviewStatusReviewed,
	}

	if decision == models.DecisionEdit {
		original := map[string]interface{}{
			"sentiment":       result.Sentiment,
			"sentiment_score": result.SentimentScore,
			"categories":      result.CategoryList(),
			"themes":          result.ThemeList(),
			"priority_score":  result.PriorityScore,
			"urgency":         result.Urgency,
			"insight_summary": result.InsightSummary,
		}
		if b, err := json.Marshal(original); err == nil {
			reviewDecision.OriginalValues = string(b)
		}
		if b, err := json.Marshal(edit); err == nil {
			reviewDecision.EditedValues = string(b)
		}

		if edit.Sentiment != nil {
			updates["sentiment"] = *edit.Sentiment
		}
		if edit.SentimentScore != nil {
			updates["sentiment_score"] = *edit.SentimentScore
		}
		if edit.Categories != nil {
			updates["categories"] = encodeStringsJSON(edit.Categories)
		}
		if edit.Themes != nil {
			updates["themes"] = encodeStringsJSON(edit.Themes)
		}
		if edit.PriorityScore != nil {
			// Tier stays consistent with the edited score.
			updates["priority_score"] = *edit.PriorityScore
			updates["urgency"] = TierFor(*edit.PriorityScore)
		}
		if edit.InsightSummary != nil {
			updates["insight_summary"] = *edit.InsightSummary
		}
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.AnalysisResult{}).Where("id = ?", result.ID).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Create(reviewDecision).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Infof("[Review] Analysis %d resolved as %s by reviewer %d", analysisID, decision, reviewerID)
	return reviewDecision, nil
}

// PendingReviewRequest filters the open review queue.
type PendingReviewRequest struct {
	Page      int    `form:"page" binding:"min=1"`
	PageSize  int    `form:"page_size" binding:"min=1,max=100"`
	Urgency   string `form:"urgency"`
	Sentiment string `form:"sentiment"`
	Unclaimed bool   `form:"unclaimed"`
}

type PendingReviewResponse struct {
	Total    int64                   `json:"total"`
	Page     int                     `json:"page"`
	PageSize int                     `json:"page_size"`
	Items    []models.AnalysisResult `json:"items"`
}

// PendingQueue lists analyses waiting for a reviewer, highest priority
// first.
func (s *ReviewRouterService) PendingQueue(req *PendingReviewRequest) (*PendingReviewResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	query := s.db.Model(&models.AnalysisResult{}).
		Where("review_status = ?", models.ReviewStatusPendingReview)

	if req.Urgency != "" {
		query = query.Where("urgency = ?", req.Urgency)
	}
	if req.Sentiment != "" {
		query = query.Where("sentiment = ?", req.Sentiment)
	}
	if req.Unclaimed {
		query = query.Where("claimed_by IS NULL")
	}

	var total int64
	query.Count(&total)

	var items []models.AnalysisResult
	offset := (req.Page - 1) * req.PageSize
	if err := query.Preload("FeedbackItem").
		Order("priority_score DESC, created_at ASC").
		Offset(offset).Limit(req.PageSize).
		Find(&items).Error; err != nil {
		return nil, err
	}

	return &PendingReviewResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    items,
	}, nil
}

// Decisions returns the audit trail for one analysis version.
func (s *ReviewRouterService) Decisions(analysisID uint) ([]models.ReviewDecision, error) {
	var decisions []models.ReviewDecision
	if err := s.db.Where("analysis_result_id = ?", analysisID).
		Order("decided_at DESC").
		Find(&decisions).Error; err != nil {
		return nil, err
	}
	return decisions, nil
}

// IsClaimConflict reports whether err is the already-claimed condition,
// which callers surface as a 409 rather than a failure.
func IsClaimConflict(err error) bool {
	return errors.Is(err, ErrReviewClaimConflict)
}

func encodeStringsJSON(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}
