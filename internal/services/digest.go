package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/revulabs/revu/backend/internal/models"
	"github.com/revulabs/revu/backend/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// DigestService builds and delivers the daily feedback digest. Delivery is
// gated to business days of the configured country so weekend feedback
// rolls into Monday's digest.
type DigestService struct {
	db                  *gorm.DB
	configService       *SystemConfigService
	notificationService *NotificationService
	calendarService     *BusinessCalendarService
	extractorService    *ExtractorService
	country             string

	cronScheduler  *cron.Cron
	currentEntryID cron.EntryID
}

func NewDigestService(db *gorm.DB, notificationService *NotificationService, calendarService *BusinessCalendarService, extractorService *ExtractorService, country string) *DigestService {
	if country == "" {
		country = "US"
	}
	return &DigestService{
		db:                  db,
		configService:       NewSystemConfigService(db),
		notificationService: notificationService,
		calendarService:     calendarService,
		extractorService:    extractorService,
		country:             country,
	}
}

// ThemeCount is one theme with its member count, for the digest top list.
type ThemeCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

func (s *DigestService) StartScheduler() {
	s.cronScheduler = cron.New()
	s.updateSchedule()
	s.cronScheduler.Start()
	logger.Infof("[Digest] Scheduler started")
}

func (s *DigestService) StopScheduler() {
	if s.cronScheduler != nil {
		s.cronScheduler.Stop()
	}
}

func (s *DigestService) updateSchedule() {
	if s.currentEntryID != 0 {
		s.cronScheduler.Remove(s.currentEntryID)
	}

	digestTime := s.configService.GetWithDefault("daily_digest_time", "18:00")
	parts := strings.Split(digestTime, ":")
	hour := "18"
	minute := "0"
	if len(parts) == 2 {
		hour = parts[0]
		minute = parts[1]
	}

	cronExpr := fmt.Sprintf("%s %s * * *", minute, hour)

	entryID, err := s.cronScheduler.AddFunc(cronExpr, func() {
		s.RunScheduled()
	})
	if err != nil {
		logger.Errorf("[Digest] Failed to add cron job: %v", err)
		return
	}

	s.currentEntryID = entryID
	logger.Infof("[Digest] Scheduled at %s (cron: %s)", digestTime, cronExpr)
}

func (s *DigestService) isEnabled() bool {
	return s.configService.GetWithDefault("daily_digest_enabled", "true") == "true"
}

// RunScheduled generates and sends today's digest if today is a business
// day in the configured country.
func (s *DigestService) RunScheduled() {
	if !s.isEnabled() {
		return
	}

	now := time.Now()
	if !s.calendarService.IsWorkday(now, s.country) {
		logger.Infof("[Digest] %s is not a business day in %s, skipping", now.Format("2006-01-02"), s.country)
		return
	}

	if err := s.GenerateAndSend(now); err != nil {
		logger.Errorf("[Digest] Failed: %v", err)
		LogError("digest", "scheduled_run_failed", err.Error(), nil, "", "", nil)
	}
}

// GenerateAndSend builds the digest for the given day, persists it, and
// fans it out to the digest-enabled channels.
func (s *DigestService) GenerateAndSend(day time.Time) error {
	digest, err := s.Generate(day)
	if err != nil {
		return err
	}

	if err := s.sendNotifications(digest); err != nil {
		digest.NotifyError = err.Error()
		s.db.Save(digest)
		return err
	}

	now := time.Now()
	digest.NotifiedAt = &now
	digest.NotifyError = ""
	s.db.Save(digest)

	logger.Infof("[Digest] Digest for %s generated and sent (ID: %d)", day.Format("2006-01-02"), digest.ID)
	return nil
}

// Generate computes the digest for the given day. Re-running for the same
// day refreshes the existing row.
func (s *DigestService) Generate(day time.Time) (*models.DailyDigest, error) {
	startOfDay := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	digest := s.collect(startOfDay, endOfDay)
	digest.Summary = s.buildSummary(digest)

	var existing models.DailyDigest
	if err := s.db.Where("date = ?", startOfDay).First(&existing).Error; err == nil {
		digest.ID = existing.ID
		digest.CreatedAt = existing.CreatedAt
		digest.NotifiedAt = existing.NotifiedAt
		if err := s.db.Save(digest).Error; err != nil {
			return nil, err
		}
	} else {
		if err := s.db.Create(digest).Error; err != nil {
			return nil, err
		}
	}

	return digest, nil
}

func (s *DigestService) collect(startTime, endTime time.Time) *models.DailyDigest {
	digest := &models.DailyDigest{Date: startTime}

	var totalItems int64
	s.db.Model(&models.FeedbackItem{}).
		Where("ingested_at BETWEEN ? AND ?", startTime, endTime).
		Count(&totalItems)
	digest.TotalItems = int(totalItems)

	var analyzed int64
	s.db.Model(&models.AnalysisResult{}).
		Where("created_at BETWEEN ? AND ? AND analysis_status = ?", startTime, endTime, models.AnalysisStatusCompleted).
		Count(&analyzed)
	digest.AnalyzedCount = int(analyzed)

	var pending int64
	s.db.Model(&models.AnalysisResult{}).
		Where("created_at BETWEEN ? AND ? AND analysis_status = ?", startTime, endTime, models.AnalysisStatusPending).
		Count(&pending)
	digest.PendingCount = int(pending)

	var pendingReview int64
	s.db.Model(&models.AnalysisResult{}).
		Where("created_at BETWEEN ? AND ? AND review_status = ?", startTime, endTime, models.ReviewStatusPendingReview).
		Count(&pendingReview)
	digest.PendingReview = int(pendingReview)

	var critical int64
	s.db.Model(&models.AnalysisResult{}).
		Where("created_at BETWEEN ? AND ? AND urgency = ?", startTime, endTime, models.UrgencyCritical).
		Count(&critical)
	digest.CriticalCount = int(critical)

	var high int64
	s.db.Model(&models.AnalysisResult{}).
		Where("created_at BETWEEN ? AND ? AND urgency = ?", startTime, endTime, models.UrgencyHigh).
		Count(&high)
	digest.HighCount = int(high)

	var churn int64
	s.db.Model(&models.ChurnSignal{}).
		Where("created_at BETWEEN ? AND ?", startTime, endTime).
		Count(&churn)
	digest.ChurnCount = int(churn)

	var competitors int64
	s.db.Model(&models.CompetitorMention{}).
		Where("created_at BETWEEN ? AND ?", startTime, endTime).
		Count(&competitors)
	digest.CompetitorHits = int(competitors)

	s.db.Model(&models.AnalysisResult{}).
		Where("created_at BETWEEN ? AND ? AND analysis_status = ?", startTime, endTime, models.AnalysisStatusCompleted).
		Select("COALESCE(AVG(priority_score), 0)").
		Scan(&digest.AvgPriority)

	s.db.Model(&models.AnalysisResult{}).
		Where("created_at BETWEEN ? AND ? AND analysis_status = ?", startTime, endTime, models.AnalysisStatusCompleted).
		Select("COALESCE(AVG(sentiment_score), 0)").
		Scan(&digest.AvgSentiment)

	if themes := s.topThemes(5); len(themes) > 0 {
		if b, err := json.Marshal(themes); err == nil {
			digest.TopThemes = string(b)
		}
	}
	if demand := s.extractorService.TopDemand(5); len(demand) > 0 {
		if b, err := json.Marshal(demand); err == nil {
			digest.TopDemand = string(b)
		}
	}

	return digest
}

// topThemes reads the latest clustering run.
func (s *DigestService) topThemes(limit int) []ThemeCount {
	var run models.ThemeRun
	if err := s.db.Order("created_at DESC").First(&run).Error; err != nil {
		return nil
	}

	var themes []models.Theme
	if err := s.db.Where("theme_run_id = ?", run.ID).
		Order("member_count DESC, earliest_member_at ASC").
		Limit(limit).
		Find(&themes).Error; err != nil {
		return nil
	}

	out := make([]ThemeCount, 0, len(themes))
	for _, t := range themes {
		out = append(out, ThemeCount{Label: t.Label, Count: t.MemberCount})
	}
	return out
}

func (s *DigestService) buildSummary(d *models.DailyDigest) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "## Feedback Digest - %s\n\n", d.Date.Format("2006-01-02"))

	sb.WriteString("### Today\n")
	fmt.Fprintf(&sb, "- Items ingested: %d (analyzed %d, pending %d)\n", d.TotalItems, d.AnalyzedCount, d.PendingCount)
	fmt.Fprintf(&sb, "- Average priority: %.1f | average sentiment: %.2f\n", d.AvgPriority, d.AvgSentiment)
	fmt.Fprintf(&sb, "- Critical: %d | High: %d | Awaiting review: %d\n", d.CriticalCount, d.HighCount, d.PendingReview)
	if d.ChurnCount > 0 {
		fmt.Fprintf(&sb, "- Churn signals: %d\n", d.ChurnCount)
	}
	if d.CompetitorHits > 0 {
		fmt.Fprintf(&sb, "- Competitor mentions: %d\n", d.CompetitorHits)
	}
	sb.WriteString("\n")

	var themes []ThemeCount
	if d.TopThemes != "" {
		json.Unmarshal([]byte(d.TopThemes), &themes)
	}
	if len(themes) > 0 {
		sb.WriteString("### Top Themes\n")
		for i, t := range themes {
			fmt.Fprintf(&sb, "%d. %s (%d items)\n", i+1, t.Label, t.Count)
		}
		sb.WriteString("\n")
	}

	var demand []DemandCount
	if d.TopDemand != "" {
		json.Unmarshal([]byte(d.TopDemand), &demand)
	}
	if len(demand) > 0 {
		sb.WriteString("### Most Requested Features\n")
		for i, dc := range demand {
			fmt.Fprintf(&sb, "%d. %s (%d requests)\n", i+1, dc.RequestKey, dc.Count)
		}
	}

	return sb.String()
}

func (s *DigestService) sendNotifications(digest *models.DailyDigest) error {
	var channels []models.NotificationChannel
	if err := s.db.Where("is_active = ? AND digest_enabled = ?", true, true).Find(&channels).Error; err != nil {
		return err
	}

	if len(channels) == 0 {
		logger.Infof("[Digest] No channels enabled for the daily digest")
		return nil
	}

	payload := map[string]interface{}{
		"date":    digest.Date.Format("2006-01-02"),
		"summary": digest.Summary,
	}

	var lastErr error
	successCount := 0
	for i := range channels {
		if err := s.notificationService.sendToChannel(&channels[i], models.EventDailyDigest, payload); err != nil {
			logger.Errorf("[Digest] Failed to send to channel %s: %v", channels[i].Name, err)
			lastErr = err
		} else {
			successCount++
		}
	}

	if successCount == 0 && lastErr != nil {
		return lastErr
	}
	return nil
}

// List pages through past digests, newest first.
func (s *DigestService) List(page, pageSize int) ([]models.DailyDigest, int64, error) {
	var digests []models.DailyDigest
	var total int64

	s.db.Model(&models.DailyDigest{}).Count(&total)

	offset := (page - 1) * pageSize
	if err := s.db.Order("date DESC").Offset(offset).Limit(pageSize).Find(&digests).Error; err != nil {
		return nil, 0, err
	}

	return digests, total, nil
}

func (s *DigestService) GetByID(id uint) (*models.DailyDigest, error) {
	var digest models.DailyDigest
	if err := s.db.First(&digest, id).Error; err != nil {
		return nil, err
	}
	return &digest, nil
}

// Resend re-delivers a stored digest.
func (s *DigestService) Resend(id uint) error {
	digest, err := s.GetByID(id)
	if err != nil {
		return err
	}

	if err := s.sendNotifications(digest); err != nil {
		digest.NotifyError = err.Error()
		s.db.Save(digest)
		return err
	}

	now := time.Now()
	digest.NotifiedAt = &now
	digest.NotifyError = ""
	s.db.Save(digest)

	return nil
}
