package services

import (
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestAssessChurn(t *testing.T) {
	tests := []struct {
		name      string
		pre       *PreprocessResult
		draft     *AnalysisDraft
		threshold float64
		atRisk    bool
	}{
		{
			name:      "no evidence",
			pre:       &PreprocessResult{},
			draft:     &AnalysisDraft{SentimentScore: -0.8},
			threshold: 0.3,
			atRisk:    false,
		},
		{
			name:      "lexicon match with negative sentiment",
			pre:       &PreprocessResult{ChurnMatches: []string{"cancel"}},
			draft:     &AnalysisDraft{SentimentScore: -0.6},
			threshold: 0.3,
			atRisk:    true,
		},
		{
			name:      "lexicon match but sentiment too positive",
			pre:       &PreprocessResult{ChurnMatches: []string{"cancel"}},
			draft:     &AnalysisDraft{SentimentScore: 0.9},
			threshold: 0.3,
			atRisk:    false,
		},
		{
			name:      "model flag alone is trusted",
			pre:       &PreprocessResult{},
			draft:     &AnalysisDraft{SentimentScore: 0.5, ChurnRisk: true},
			threshold: 0.3,
			atRisk:    true,
		},
		{
			name:      "nil inputs stay calm",
			pre:       nil,
			draft:     nil,
			threshold: 0.3,
			atRisk:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AssessChurn(tt.pre, tt.draft, tt.threshold)
			if got.AtRisk != tt.atRisk {
				t.Errorf("AtRisk = %v, expected %v", got.AtRisk, tt.atRisk)
			}
			if got.AtRisk && (got.Strength <= 0 || got.Strength > 1) {
				t.Errorf("Strength = %v, expected in (0,1]", got.Strength)
			}
		})
	}
}

func TestAssessChurn_ModelFlagFloor(t *testing.T) {
	// Positive sentiment and no lexicon matches: the only evidence is the
	// model flag, so strength must still reach the 0.5 floor.
	got := AssessChurn(&PreprocessResult{}, &AnalysisDraft{SentimentScore: 0.9, ChurnRisk: true}, 0.3)
	if !got.AtRisk {
		t.Fatal("model-flagged churn should be at risk")
	}
	if got.Strength < 0.5 {
		t.Errorf("Strength = %v, expected at least 0.5", got.Strength)
	}
}

func TestAssessChurn_MergesAndDedupesIndicators(t *testing.T) {
	pre := &PreprocessResult{ChurnMatches: []string{"cancel", "switch"}}
	draft := &AnalysisDraft{
		SentimentScore:  -0.7,
		ChurnIndicators: []string{"Cancel", "refund"},
	}
	got := AssessChurn(pre, draft, 0.3)
	if !got.AtRisk {
		t.Fatal("expected churn risk")
	}
	if len(got.Indicators) != 3 {
		t.Errorf("Indicators = %v, expected 3 after case-insensitive dedupe", got.Indicators)
	}
}

func TestCompetitorMentions(t *testing.T) {
	known := []string{"RivalSoft", "CompeteX"}

	tests := []struct {
		name     string
		pre      *PreprocessResult
		draft    *AnalysisDraft
		expected []string
	}{
		{
			name: "lexicon match uses configured casing",
			pre:  &PreprocessResult{CompetitorMatches: []string{"rivalsoft"}},
			expected: []string{
				"RivalSoft",
			},
		},
		{
			name: "organization entity intersected with known list",
			pre: &PreprocessResult{
				Entities: []Entity{
					{Text: "CompeteX", Type: EntityOrganization},
					{Text: "Acme Corp", Type: EntityOrganization},
				},
			},
			expected: []string{"CompeteX"},
		},
		{
			name:  "model mention deduped against lexicon match",
			pre:   &PreprocessResult{CompetitorMatches: []string{"rivalsoft"}},
			draft: &AnalysisDraft{CompetitorMentions: []string{"RIVALSOFT", "competex"}},
			expected: []string{
				"CompeteX", "RivalSoft",
			},
		},
		{
			name:     "no matches",
			pre:      &PreprocessResult{},
			draft:    &AnalysisDraft{},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CompetitorMentions(tt.pre, tt.draft, known)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("CompetitorMentions = %v, expected %v", got, tt.expected)
			}
		})
	}

	if got := CompetitorMentions(&PreprocessResult{CompetitorMatches: []string{"rivalsoft"}}, nil, nil); got != nil {
		t.Errorf("empty known list should yield nil, got %v", got)
	}
}

func TestNormalizeRequestKey(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Dark Mode", "dark_mode"},
		{"add a dark mode to the dashboard", "add_dark_mode_dashboard"},
		{"  Export   to CSV!  ", "export_csv"},
		{"API rate limits", "api_rate_limits"},
		{"the and of", "the_and_of"}, // all stopwords: keep raw tokens
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeRequestKey(tt.input); got != tt.expected {
			t.Errorf("NormalizeRequestKey(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestFeatureDemandAggregator_ConcurrentIncrements(t *testing.T) {
	agg := NewFeatureDemandAggregator(24 * time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			agg.Increment("dark_mode")
		}()
	}
	wg.Wait()

	if got := agg.Count("dark_mode"); got != 5 {
		t.Errorf("Count = %d, expected 5 after 5 concurrent increments", got)
	}
}

func TestFeatureDemandAggregator_WindowRoll(t *testing.T) {
	agg := NewFeatureDemandAggregator(time.Hour)
	agg.Increment("sso")
	if got := agg.Count("sso"); got != 1 {
		t.Fatalf("Count = %d, expected 1", got)
	}

	// Force the window to be expired and verify the counter resets.
	agg.mu.Lock()
	agg.windowStart = time.Now().Add(-2 * time.Hour)
	agg.mu.Unlock()

	if got := agg.Count("sso"); got != 0 {
		t.Errorf("Count = %d, expected 0 after window roll", got)
	}
}

func TestFeatureDemandAggregator_Snapshot(t *testing.T) {
	agg := NewFeatureDemandAggregator(24 * time.Hour)
	agg.Increment("dark_mode")
	agg.Increment("dark_mode")
	agg.Increment("sso")

	snap := agg.Snapshot()
	if snap["dark_mode"] != 2 || snap["sso"] != 1 {
		t.Errorf("Snapshot = %v, expected dark_mode=2 sso=1", snap)
	}

	// The snapshot is a copy, not the live map.
	snap["dark_mode"] = 99
	if got := agg.Count("dark_mode"); got != 2 {
		t.Errorf("Count = %d, expected 2 after mutating snapshot copy", got)
	}
}

func TestDedupeFold(t *testing.T) {
	got := dedupeFold([]string{"Cancel", "cancel", " CANCEL ", "refund", ""})
	expected := []string{"Cancel", "refund"}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("dedupeFold = %v, expected %v", got, expected)
	}
}

func TestContainsFold(t *testing.T) {
	if !containsFold([]string{"Bug", "Feature_Request"}, "feature_request") {
		t.Error("containsFold should match case-insensitively")
	}
	if containsFold([]string{"bug"}, "praise") {
		t.Error("containsFold should not match absent value")
	}
}
