package services

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/revulabs/revu/backend/internal/models"
	"github.com/revulabs/revu/backend/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// ClusterItem is one analyzed feedback item as seen by the clustering
// engine: its identifier, its folded term set, and its timestamp for the
// deterministic ordering.
type ClusterItem struct {
	FeedbackUUID string
	Terms        []string
	Timestamp    time.Time
}

// Cluster is one group of items sharing a theme.
type Cluster struct {
	Label    string
	Members  []string // feedback uuids, in join order
	Terms    []string // union of member terms, sorted
	Earliest time.Time
}

// JaccardSimilarity of two term sets. Empty-vs-empty is 0, not 1, so
// items without themes never glue unrelated feedback together.
func JaccardSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(a))
	for _, t := range a {
		setA[t] = true
	}
	intersection := 0
	setB := make(map[string]bool, len(b))
	for _, t := range b {
		if setB[t] {
			continue
		}
		setB[t] = true
		if setA[t] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// ClusterByJaccard groups items whose term sets meet the similarity
// threshold. Deterministic: items are processed in ascending timestamp
// order (uuid as tie-break), and each item joins the first existing
// cluster it matches, so cluster order is by earliest member.
func ClusterByJaccard(items []ClusterItem, threshold float64) []Cluster {
	sorted := make([]ClusterItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].FeedbackUUID < sorted[j].FeedbackUUID
	})

	type building struct {
		members   []string
		terms     map[string]bool
		termFreq  map[string]int
		earliest  time.Time
	}

	var clusters []*building
	for _, item := range sorted {
		terms := foldTerms(item.Terms)

		var joined *building
		for _, c := range clusters {
			if JaccardSimilarity(terms, mapKeys(c.terms)) >= threshold {
				joined = c
				break
			}
		}
		if joined == nil {
			joined = &building{
				terms:    make(map[string]bool),
				termFreq: make(map[string]int),
				earliest: item.Timestamp,
			}
			clusters = append(clusters, joined)
		}

		joined.members = append(joined.members, item.FeedbackUUID)
		for _, t := range terms {
			joined.terms[t] = true
			joined.termFreq[t]++
		}
	}

	out := make([]Cluster, 0, len(clusters))
	for _, c := range clusters {
		terms := mapKeys(c.terms)
		sort.Strings(terms)
		out = append(out, Cluster{
			Label:    representativeLabel(c.termFreq),
			Members:  c.members,
			Terms:    terms,
			Earliest: c.earliest,
		})
	}
	return out
}

// representativeLabel picks the most frequent shared term, breaking ties
// lexicographically so runs stay reproducible.
func representativeLabel(termFreq map[string]int) string {
	label := ""
	best := 0
	for term, freq := range termFreq {
		if freq > best || (freq == best && (label == "" || term < label)) {
			label = term
			best = freq
		}
	}
	if label == "" {
		return "untitled"
	}
	return label
}

func foldTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	var out []string
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func mapKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// ClusteringService runs the batch theme clustering job over a frozen
// window of finalized analyses and persists each run as a snapshot.
type ClusteringService struct {
	db            *gorm.DB
	configService *SystemConfigService
	cronScheduler *cron.Cron
}

func NewClusteringService(db *gorm.DB) *ClusteringService {
	return &ClusteringService{
		db:            db,
		configService: NewSystemConfigService(db),
	}
}

// StartScheduler runs the clustering job on the configured daily schedule.
func (s *ClusteringService) StartScheduler() {
	runAt := s.configService.GetWithDefault("clustering_run_time", "02:00")
	parts := strings.SplitN(runAt, ":", 2)
	spec := "0 2 * * *"
	if len(parts) == 2 {
		spec = fmt.Sprintf("%s %s * * *", parts[1], parts[0])
	}

	s.cronScheduler = cron.New()
	if _, err := s.cronScheduler.AddFunc(spec, func() {
		if _, err := s.RunScheduled(); err != nil {
			logger.Errorf("[Clustering] Scheduled run failed: %v", err)
		}
	}); err != nil {
		logger.Errorf("[Clustering] Invalid schedule %q: %v", spec, err)
		return
	}
	s.cronScheduler.Start()
	logger.Infof("[Clustering] Scheduler started (daily at %s)", runAt)
}

// StopScheduler stops the clustering cron job.
func (s *ClusteringService) StopScheduler() {
	if s.cronScheduler != nil {
		s.cronScheduler.Stop()
	}
}

// Run clusters the current analyses of feedback ingested inside the window
// and stores a ThemeRun with its Themes. Only finalized results
// (auto_accepted or reviewed) participate.
func (s *ClusteringService) Run(windowStart, windowEnd time.Time) (*models.ThemeRun, error) {
	threshold := s.configService.GetFloat("clustering_similarity", 0.5)

	items, err := s.loadWindow(windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to load clustering window: %w", err)
	}

	clusters := ClusterByJaccard(items, threshold)

	run := &models.ThemeRun{
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
		Similarity:   threshold,
		ItemCount:    len(items),
		ClusterCount: len(clusters),
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return err
		}
		for _, c := range clusters {
			theme := &models.Theme{
				ThemeRunID:       run.ID,
				Label:            c.Label,
				MemberCount:      len(c.Members),
				EarliestMemberAt: c.Earliest,
			}
			theme.SetMembers(c.Members)
			theme.SetTerms(c.Terms)
			if err := tx.Create(theme).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Infof("[Clustering] Run %d: %d items into %d themes (threshold %.2f)", run.ID, len(items), len(clusters), threshold)
	return run, nil
}

// RunScheduled takes the cross-process lock before clustering the
// configured trailing window, so overlapping schedulers produce one run.
func (s *ClusteringService) RunScheduled() (*models.ThemeRun, error) {
	windowDays := s.configService.GetInt("clustering_window_days", 30)
	windowEnd := time.Now()
	windowStart := windowEnd.AddDate(0, 0, -windowDays)

	lockKey := windowEnd.Format("2006-01-02")
	if !s.acquireRunLock(lockKey, 30*time.Minute) {
		logger.Infof("[Clustering] Run for %s already in progress elsewhere, skipping", lockKey)
		return nil, nil
	}

	return s.Run(windowStart, windowEnd)
}

func (s *ClusteringService) loadWindow(windowStart, windowEnd time.Time) ([]ClusterItem, error) {
	var results []models.AnalysisResult
	err := s.db.Preload("FeedbackItem").
		Where("review_status IN ? AND created_at >= ? AND created_at < ?",
			[]string{models.ReviewStatusAutoAccepted, models.ReviewStatusReviewed},
			windowStart, windowEnd).
		Order("created_at ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}

	// Keep only the latest version per feedback item.
	latest := make(map[uint]models.AnalysisResult, len(results))
	for _, r := range results {
		prev, ok := latest[r.FeedbackItemID]
		if !ok || r.CreatedAt.After(prev.CreatedAt) {
			latest[r.FeedbackItemID] = r
		}
	}

	items := make([]ClusterItem, 0, len(latest))
	for _, r := range latest {
		if r.FeedbackItem == nil {
			continue
		}
		items = append(items, ClusterItem{
			FeedbackUUID: r.FeedbackItem.UUID,
			Terms:        r.ThemeList(),
			Timestamp:    r.CreatedAt,
		})
	}
	return items, nil
}

// acquireRunLock inserts a scheduler_locks row for this run. The unique
// index on (name, key) makes the insert the compare-and-set; stale locks
// past their expiry are reclaimed first.
func (s *ClusteringService) acquireRunLock(lockKey string, ttl time.Duration) bool {
	now := time.Now()
	s.db.Where("lock_name = ? AND expires_at < ?", "theme_clustering", now).
		Delete(&models.SchedulerLock{})

	hostname, _ := os.Hostname()
	lock := &models.SchedulerLock{
		LockName:  "theme_clustering",
		LockKey:   lockKey,
		LockedBy:  hostname,
		LockedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	return s.db.Create(lock).Error == nil
}

// History lists prior runs, newest first.
func (s *ClusteringService) History(limit int) ([]models.ThemeRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []models.ThemeRun
	if err := s.db.Order("created_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// Themes returns the clusters of one run, largest first.
func (s *ClusteringService) Themes(runID uint) ([]models.Theme, error) {
	var themes []models.Theme
	if err := s.db.Where("theme_run_id = ?", runID).
		Order("member_count DESC, earliest_member_at ASC").
		Find(&themes).Error; err != nil {
		return nil, err
	}
	return themes, nil
}
