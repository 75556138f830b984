package services

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/revulabs/revu/backend/internal/models"
	"github.com/revulabs/revu/backend/pkg/logger"
	"gorm.io/gorm"
)

// churnMatchSaturation is the indicator count at which lexicon evidence
// alone is maximal.
const churnMatchSaturation = 3

// ChurnAssessment is the churn extractor output.
type ChurnAssessment struct {
	AtRisk     bool
	Strength   float64
	Indicators []string
}

// AssessChurn combines lexicon matches with sentiment negativity. Lexicon
// evidence only counts when negativity clears the threshold; a model-flagged
// churn risk is trusted on its own.
func AssessChurn(pre *PreprocessResult, draft *AnalysisDraft, negativityThreshold float64) ChurnAssessment {
	var indicators []string
	if pre != nil {
		indicators = append(indicators, pre.ChurnMatches...)
	}
	if draft != nil {
		indicators = append(indicators, draft.ChurnIndicators...)
	}
	indicators = dedupeFold(indicators)

	negativity := 0.0
	modelFlagged := false
	if draft != nil {
		negativity = SentimentNegativity(draft.SentimentScore)
		modelFlagged = draft.ChurnRisk
	}

	lexiconTriggered := len(indicators) > 0 && negativity >= negativityThreshold
	if !lexiconTriggered && !modelFlagged {
		return ChurnAssessment{}
	}

	matchSignal := clamp01(float64(len(indicators)) / churnMatchSaturation)
	strength := clamp01(0.5*matchSignal + 0.5*negativity)
	if modelFlagged && strength < 0.5 {
		strength = 0.5
	}

	return ChurnAssessment{
		AtRisk:     true,
		Strength:   strength,
		Indicators: indicators,
	}
}

// CompetitorMentions intersects ORGANIZATION entities and preprocessor
// matches with the known-competitor list. The result preserves the
// configured casing of the list.
func CompetitorMentions(pre *PreprocessResult, draft *AnalysisDraft, known []string) []string {
	if len(known) == 0 {
		return nil
	}

	knownFold := make(map[string]string, len(known))
	for _, k := range known {
		knownFold[strings.ToLower(strings.TrimSpace(k))] = k
	}

	seen := make(map[string]bool)
	var mentions []string
	add := func(candidate string) {
		canonical, ok := knownFold[strings.ToLower(strings.TrimSpace(candidate))]
		if !ok || seen[canonical] {
			return
		}
		seen[canonical] = true
		mentions = append(mentions, canonical)
	}

	if pre != nil {
		for _, e := range pre.Entities {
			if e.Type == EntityOrganization {
				add(e.Text)
			}
		}
		for _, m := range pre.CompetitorMatches {
			add(m)
		}
	}
	if draft != nil {
		for _, m := range draft.CompetitorMentions {
			add(m)
		}
	}

	sort.Strings(mentions)
	return mentions
}

// NormalizeRequestKey folds a free-form feature request into a stable
// aggregation key: lowercased, punctuation-light, space-collapsed.
func NormalizeRequestKey(request string) string {
	tokens := tokenRegex.FindAllString(strings.ToLower(request), -1)
	var kept []string
	for _, t := range tokens {
		if stopwords[t] {
			continue
		}
		kept = append(kept, t)
	}
	if len(kept) == 0 {
		kept = tokens
	}
	return strings.Join(kept, "_")
}

// FeatureDemandAggregator counts normalized feature requests inside a
// rolling time window. It is the one piece of shared mutable state in the
// pipeline, so all access is serialized behind a mutex.
type FeatureDemandAggregator struct {
	mu          sync.Mutex
	window      time.Duration
	windowStart time.Time
	counts      map[string]int
}

func NewFeatureDemandAggregator(window time.Duration) *FeatureDemandAggregator {
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	return &FeatureDemandAggregator{
		window:      window,
		windowStart: time.Now().Truncate(time.Hour),
		counts:      make(map[string]int),
	}
}

// Increment bumps the counter for key and returns the new count together
// with the window the count belongs to.
func (a *FeatureDemandAggregator) Increment(key string) (int, time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.rollWindowLocked(time.Now())
	a.counts[key]++
	return a.counts[key], a.windowStart
}

// Count returns the current window count for key.
func (a *FeatureDemandAggregator) Count(key string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.rollWindowLocked(time.Now())
	return a.counts[key]
}

// Snapshot copies the current window counts.
func (a *FeatureDemandAggregator) Snapshot() map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.rollWindowLocked(time.Now())
	out := make(map[string]int, len(a.counts))
	for k, v := range a.counts {
		out[k] = v
	}
	return out
}

// WindowStart returns the start of the current counting window.
func (a *FeatureDemandAggregator) WindowStart() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.windowStart
}

func (a *FeatureDemandAggregator) rollWindowLocked(now time.Time) {
	if now.Sub(a.windowStart) >= a.window {
		a.windowStart = now.Truncate(time.Hour)
		a.counts = make(map[string]int)
	}
}

// InsightAnnotations summarizes what the extractors attached to one
// analysis version.
type InsightAnnotations struct {
	Churn       *ChurnAssessment
	Competitors []string
	Demand      map[string]int
}

// ExtractorService runs the insight extractors over a finished draft and
// persists their annotations.
type ExtractorService struct {
	db            *gorm.DB
	configService *SystemConfigService
	demand        *FeatureDemandAggregator
}

func NewExtractorService(db *gorm.DB, demand *FeatureDemandAggregator) *ExtractorService {
	return &ExtractorService{
		db:            db,
		configService: NewSystemConfigService(db),
		demand:        demand,
	}
}

// Annotate applies all extractors to one analysis and stores the derived
// rows. Extractor output never blocks the pipeline; persistence errors are
// logged and the annotations still returned.
func (s *ExtractorService) Annotate(result *models.AnalysisResult, pre *PreprocessResult, draft *AnalysisDraft) *InsightAnnotations {
	annotations := &InsightAnnotations{}

	threshold := s.configService.GetFloat("churn_negativity_threshold", 0.3)
	churn := AssessChurn(pre, draft, threshold)
	if churn.AtRisk {
		annotations.Churn = &churn
		signal := &models.ChurnSignal{
			AnalysisResultID: result.ID,
			Strength:         churn.Strength,
		}
		signal.SetIndicators(churn.Indicators)
		if err := s.db.Create(signal).Error; err != nil {
			logger.Errorf("[Extractors] Failed to store churn signal for analysis %d: %v", result.ID, err)
		}
	}

	competitors := CompetitorMentions(pre, draft, splitList(s.configService.GetWithDefault("competitor_list", "")))
	for _, name := range competitors {
		mention := &models.CompetitorMention{
			AnalysisResultID: result.ID,
			Competitor:       name,
		}
		if err := s.db.Create(mention).Error; err != nil {
			logger.Errorf("[Extractors] Failed to store competitor mention for analysis %d: %v", result.ID, err)
		}
	}
	annotations.Competitors = competitors

	if draft != nil && containsFold(draft.Categories, "feature_request") {
		annotations.Demand = make(map[string]int)
		requests := draft.FeatureRequests
		if len(requests) == 0 {
			// Fall back to theme labels when the model listed none.
			requests = draft.Themes
		}
		for _, request := range dedupeFold(requests) {
			key := NormalizeRequestKey(request)
			if key == "" {
				continue
			}
			count, windowStart := s.demand.Increment(key)
			annotations.Demand[key] = count

			entry := &models.FeatureDemandEntry{
				AnalysisResultID: result.ID,
				RequestKey:       key,
				WindowStart:      windowStart,
			}
			if err := s.db.Create(entry).Error; err != nil {
				logger.Errorf("[Extractors] Failed to store demand entry for analysis %d: %v", result.ID, err)
			}
		}
	}

	return annotations
}

// TopDemand reports the most requested features in the current window.
func (s *ExtractorService) TopDemand(limit int) []DemandCount {
	counts := s.demand.Snapshot()
	out := make([]DemandCount, 0, len(counts))
	for k, v := range counts {
		out = append(out, DemandCount{RequestKey: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].RequestKey < out[j].RequestKey
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

type DemandCount struct {
	RequestKey string `json:"request_key"`
	Count      int    `json:"count"`
}

func dedupeFold(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		fold := strings.ToLower(v)
		if seen[fold] {
			continue
		}
		seen[fold] = true
		out = append(out, v)
	}
	return out
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}
