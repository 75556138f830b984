package services

import "testing"

func TestNeedsHumanReview(t *testing.T) {
	tests := []struct {
		name        string
		confidence  float64
		churnRisk   bool
		priority    float64
		sentiment   string
		parseFailed bool
		expected    bool
	}{
		{
			name:       "low confidence routes to review",
			confidence: 0.5,
			priority:   10,
			sentiment:  "positive",
			expected:   true,
		},
		{
			name:       "confidence exactly at floor does not route",
			confidence: 0.7,
			priority:   10,
			sentiment:  "positive",
			expected:   false,
		},
		{
			name:       "churn risk routes regardless of confidence",
			confidence: 0.99,
			churnRisk:  true,
			priority:   10,
			sentiment:  "negative",
			expected:   true,
		},
		{
			name:       "priority above ceiling routes",
			confidence: 0.9,
			priority:   80.1,
			sentiment:  "negative",
			expected:   true,
		},
		{
			name:       "priority exactly at ceiling does not route",
			confidence: 0.9,
			priority:   80,
			sentiment:  "negative",
			expected:   false,
		},
		{
			name:       "mixed sentiment routes",
			confidence: 0.9,
			priority:   10,
			sentiment:  "mixed",
			expected:   true,
		},
		{
			name:        "parse failure routes",
			confidence:  0.9,
			priority:    10,
			sentiment:   "neutral",
			parseFailed: true,
			expected:    true,
		},
		{
			name:       "confident low-priority praise skips review",
			confidence: 0.95,
			priority:   12,
			sentiment:  "positive",
			expected:   false,
		},
		{
			name:        "degraded draft routes on both confidence and parse failure",
			confidence:  0,
			priority:    0,
			sentiment:   "neutral",
			parseFailed: true,
			expected:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NeedsHumanReview(tt.confidence, tt.churnRisk, tt.priority, tt.sentiment, tt.parseFailed)
			if got != tt.expected {
				t.Errorf("NeedsHumanReview = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestIsClaimConflict(t *testing.T) {
	if !IsClaimConflict(ErrReviewClaimConflict) {
		t.Error("ErrReviewClaimConflict should be a claim conflict")
	}
	if IsClaimConflict(ErrInvalidInput) {
		t.Error("ErrInvalidInput should not be a claim conflict")
	}
	if IsClaimConflict(nil) {
		t.Error("nil should not be a claim conflict")
	}
}
