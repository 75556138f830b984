package services

import (
	"math"
	"testing"
	"time"

	"github.com/revulabs/revu/backend/internal/config"
	"github.com/revulabs/revu/backend/internal/models"
)

type recordingNotifier struct {
	events []string
}

func (n *recordingNotifier) Notify(eventKind string, payload map[string]interface{}) {
	n.events = append(n.events, eventKind)
}

func scoringOrchestrator(now time.Time) *OrchestratorService {
	return &OrchestratorService{
		cfg: &config.AnalysisConfig{RecencyHalfLife: 14},
		now: func() time.Time { return now },
	}
}

func TestScore_FreshUrgentNegativeWithCompetitor(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := scoringOrchestrator(now)

	feedback := &models.FeedbackItem{IngestedAt: now}
	pre := &PreprocessResult{
		UrgencyMatches:    []string{"urgent", "blocking", "asap"},
		CompetitorMatches: []string{"rivalsoft"},
	}
	draft := &AnalysisDraft{SentimentScore: -1}

	got := s.score(feedback, pre, draft)
	if got != 100 {
		t.Errorf("score = %v, expected 100 for maximal signals", got)
	}
}

func TestScore_CalmPositiveOldFeedback(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := scoringOrchestrator(now)

	old := now.AddDate(-1, 0, 0)
	feedback := &models.FeedbackItem{IngestedAt: old}
	pre := &PreprocessResult{}
	draft := &AnalysisDraft{SentimentScore: 1}

	got := s.score(feedback, pre, draft)
	if got > 1 {
		t.Errorf("score = %v, expected near 0 for positive year-old feedback", got)
	}
	if TierFor(got) != models.UrgencyLow {
		t.Errorf("tier = %q, expected low", TierFor(got))
	}
}

func TestScore_FeedbackDateOverridesIngestionTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := scoringOrchestrator(now)

	old := now.AddDate(0, 0, -14) // one half-life ago
	feedback := &models.FeedbackItem{IngestedAt: now, FeedbackDate: &old}
	pre := &PreprocessResult{}
	draft := &AnalysisDraft{SentimentScore: 0}

	// negativity 0.5*0.3 + recency 0.5*0.2 = 0.25
	got := s.score(feedback, pre, draft)
	if math.Abs(got-25) > 1e-9 {
		t.Errorf("score = %v, expected 25", got)
	}
}

func TestScore_IgnoresPriorityHint(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := scoringOrchestrator(now)

	hint := 99.0
	feedback := &models.FeedbackItem{IngestedAt: now.AddDate(-1, 0, 0)}
	draft := &AnalysisDraft{SentimentScore: 1, PriorityHint: &hint}

	got := s.score(feedback, &PreprocessResult{}, draft)
	if got > 1 {
		t.Errorf("score = %v, the model hint must not feed the formula", got)
	}
}

func TestEmitEvents(t *testing.T) {
	tests := []struct {
		name        string
		result      *models.AnalysisResult
		annotations *InsightAnnotations
		expected    []string
	}{
		{
			name:        "low priority without insights is silent",
			result:      &models.AnalysisResult{Urgency: models.UrgencyLow},
			annotations: &InsightAnnotations{},
			expected:    nil,
		},
		{
			name:        "critical urgency fires high-priority",
			result:      &models.AnalysisResult{Urgency: models.UrgencyCritical},
			annotations: &InsightAnnotations{},
			expected:    []string{models.EventHighPriority},
		},
		{
			name:   "churn and competitor each fire",
			result: &models.AnalysisResult{Urgency: models.UrgencyMedium},
			annotations: &InsightAnnotations{
				Churn:       &ChurnAssessment{AtRisk: true, Strength: 0.8},
				Competitors: []string{"RivalSoft"},
			},
			expected: []string{models.EventChurnRisk, models.EventCompetitor},
		},
		{
			name:   "high urgency with churn fires both",
			result: &models.AnalysisResult{Urgency: models.UrgencyHigh},
			annotations: &InsightAnnotations{
				Churn: &ChurnAssessment{AtRisk: true},
			},
			expected: []string{models.EventHighPriority, models.EventChurnRisk},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &recordingNotifier{}
			s := &OrchestratorService{notifier: notifier}

			s.emitEvents(&models.FeedbackItem{UUID: "f-1"}, tt.result, tt.annotations)

			if len(notifier.events) != len(tt.expected) {
				t.Fatalf("events = %v, expected %v", notifier.events, tt.expected)
			}
			for i, kind := range tt.expected {
				if notifier.events[i] != kind {
					t.Errorf("event %d = %q, expected %q", i, notifier.events[i], kind)
				}
			}
		})
	}
}

func TestEmitEvents_NilNotifier(t *testing.T) {
	s := &OrchestratorService{}
	// Must not panic.
	s.emitEvents(&models.FeedbackItem{}, &models.AnalysisResult{Urgency: models.UrgencyCritical}, &InsightAnnotations{})
}

func TestEncodeEntities(t *testing.T) {
	if got, err := encodeEntities(nil); err != nil || got != "[]" {
		t.Errorf("encodeEntities(nil) = %q, %v", got, err)
	}

	got, err := encodeEntities([]Entity{{Text: "Acme Corp", Type: EntityOrganization}})
	if err != nil {
		t.Fatalf("encodeEntities failed: %v", err)
	}
	if got != `[{"text":"Acme Corp","type":"ORGANIZATION"}]` {
		t.Errorf("encodeEntities = %s", got)
	}
}

func TestClonePayload(t *testing.T) {
	base := map[string]interface{}{"a": 1}
	clone := clonePayload(base)
	clone["b"] = 2

	if _, ok := base["b"]; ok {
		t.Error("mutating the clone must not touch the original")
	}
}
