package services

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/revulabs/revu/backend/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newClaimTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "review.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// A single connection serializes sqlite writes, so racing claims
	// contend at the compare-and-set instead of on the file lock.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.AnalysisResult{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newPendingAnalysis(t *testing.T, db *gorm.DB) *models.AnalysisResult {
	t.Helper()

	result := &models.AnalysisResult{
		FeedbackItemID: 1,
		Version:        1,
		Sentiment:      models.SentimentNegative,
		PriorityScore:  90,
		Urgency:        models.UrgencyCritical,
		Confidence:     0.4,
		RequiresReview: true,
		ReviewStatus:   models.ReviewStatusPendingReview,
		AnalysisStatus: models.AnalysisStatusCompleted,
	}
	if err := db.Create(result).Error; err != nil {
		t.Fatalf("create analysis: %v", err)
	}
	return result
}

func TestClaim_ConcurrentClaimsExactlyOneWinner(t *testing.T) {
	db := newClaimTestDB(t)
	svc := NewReviewRouterService(db)
	result := newPendingAnalysis(t, db)

	const reviewers = 5
	errs := make([]error, reviewers)

	var wg sync.WaitGroup
	for i := 0; i < reviewers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Claim(result.ID, uint(i+1))
		}(i)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case IsClaimConflict(err):
			conflicts++
		default:
			t.Fatalf("unexpected claim error: %v", err)
		}
	}

	if wins != 1 {
		t.Errorf("wins = %d, expected exactly 1", wins)
	}
	if conflicts != reviewers-1 {
		t.Errorf("conflicts = %d, expected %d", conflicts, reviewers-1)
	}
}

func TestClaim_SecondClaimConflicts(t *testing.T) {
	db := newClaimTestDB(t)
	svc := NewReviewRouterService(db)
	result := newPendingAnalysis(t, db)

	claimed, err := svc.Claim(result.ID, 1)
	if err != nil {
		t.Fatalf("first claim failed: %v", err)
	}
	if claimed.ClaimedBy == nil || *claimed.ClaimedBy != 1 {
		t.Errorf("ClaimedBy = %v, expected reviewer 1", claimed.ClaimedBy)
	}

	if _, err := svc.Claim(result.ID, 2); !IsClaimConflict(err) {
		t.Errorf("second claim error = %v, expected claim conflict", err)
	}
}

func TestClaim_ReleasedClaimCanBeReclaimed(t *testing.T) {
	db := newClaimTestDB(t)
	svc := NewReviewRouterService(db)
	result := newPendingAnalysis(t, db)

	if _, err := svc.Claim(result.ID, 1); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if err := svc.ReleaseClaim(result.ID, 1); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	claimed, err := svc.Claim(result.ID, 2)
	if err != nil {
		t.Fatalf("reclaim failed: %v", err)
	}
	if claimed.ClaimedBy == nil || *claimed.ClaimedBy != 2 {
		t.Errorf("ClaimedBy = %v, expected reviewer 2", claimed.ClaimedBy)
	}
}

func TestClaim_NotPendingReview(t *testing.T) {
	db := newClaimTestDB(t)
	svc := NewReviewRouterService(db)
	result := newPendingAnalysis(t, db)

	if err := db.Model(result).Update("review_status", models.ReviewStatusAutoAccepted).Error; err != nil {
		t.Fatalf("update status: %v", err)
	}

	if _, err := svc.Claim(result.ID, 1); !errors.Is(err, ErrNotPendingReview) {
		t.Errorf("error = %v, expected ErrNotPendingReview", err)
	}
}

// Two reviewers churning claim and release on the same item. A conflicted
// claim can re-read the row after the holder has already released, so the
// conflict path must tolerate a cleared claimed_by.
func TestClaim_ClaimReleaseChurn(t *testing.T) {
	db := newClaimTestDB(t)
	svc := NewReviewRouterService(db)
	result := newPendingAnalysis(t, db)

	const iterations = 100

	var wg sync.WaitGroup
	var mu sync.Mutex
	var unexpected []error

	for _, reviewerID := range []uint{1, 2} {
		wg.Add(1)
		go func(reviewerID uint) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				_, err := svc.Claim(result.ID, reviewerID)
				if err == nil {
					if rerr := svc.ReleaseClaim(result.ID, reviewerID); rerr != nil {
						mu.Lock()
						unexpected = append(unexpected, rerr)
						mu.Unlock()
					}
					continue
				}
				if !IsClaimConflict(err) {
					mu.Lock()
					unexpected = append(unexpected, err)
					mu.Unlock()
				}
			}
		}(reviewerID)
	}
	wg.Wait()

	for _, err := range unexpected {
		t.Errorf("unexpected error during claim churn: %v", err)
	}
}
