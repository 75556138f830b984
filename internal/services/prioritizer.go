package services

import (
	"math"
	"time"

	"github.com/revulabs/revu/backend/internal/models"
)

// Weights of the four priority signals. They sum to 1 so the score maps
// cleanly onto [0,100].
const (
	weightNegativity = 0.3
	weightUrgency    = 0.3
	weightEntity     = 0.2
	weightRecency    = 0.2
)

// urgencySaturation is the match count at which the urgency signal is
// considered maximal.
const urgencySaturation = 3

// PrioritySignals are the normalized inputs to the priority formula.
// Every field is in [0,1].
type PrioritySignals struct {
	SentimentNegativity float64
	UrgencyStrength     float64
	EntitySignal        float64
	Recency             float64
}

// SentimentNegativity maps a sentiment score in [-1,1] to a negativity
// signal in [0,1], where -1 yields 1.0 and +1 yields 0.0.
func SentimentNegativity(sentimentScore float64) float64 {
	return clamp01((1 - sentimentScore) / 2)
}

// UrgencyStrength converts an urgency keyword match count to a [0,1]
// signal, saturating at urgencySaturation matches.
func UrgencyStrength(matchCount int) float64 {
	if matchCount <= 0 {
		return 0
	}
	return clamp01(float64(matchCount) / urgencySaturation)
}

// EntitySignal weights the presence of high-value entities. A flagged
// competitor dominates; a core product term alone counts half.
func EntitySignal(competitorMatches, productTermMatches int) float64 {
	if competitorMatches > 0 {
		return 1.0
	}
	if productTermMatches > 0 {
		return 0.5
	}
	return 0
}

// RecencySignal decays exponentially with the age of the feedback,
// halving every halfLife. A zero or unknown timestamp scores 0.
func RecencySignal(feedbackAt time.Time, now time.Time, halfLife time.Duration) float64 {
	if feedbackAt.IsZero() || halfLife <= 0 {
		return 0
	}
	age := now.Sub(feedbackAt)
	if age <= 0 {
		return 1.0
	}
	return clamp01(math.Pow(0.5, age.Hours()/halfLife.Hours()))
}

// PriorityScore computes the weighted priority in [0,100]. It is a pure
// function: identical signals always yield an identical score.
func PriorityScore(sig PrioritySignals) float64 {
	raw := 100 * (weightNegativity*clamp01(sig.SentimentNegativity) +
		weightUrgency*clamp01(sig.UrgencyStrength) +
		weightEntity*clamp01(sig.EntitySignal) +
		weightRecency*clamp01(sig.Recency))
	if raw < 0 {
		return 0
	}
	if raw > 100 {
		return 100
	}
	return raw
}

// TierFor maps a priority score onto its urgency tier. The partition is
// fixed and non-overlapping: [0,25) low, [25,60) medium, [60,85) high,
// [85,100] critical.
func TierFor(score float64) string {
	switch {
	case score >= 85:
		return models.UrgencyCritical
	case score >= 60:
		return models.UrgencyHigh
	case score >= 25:
		return models.UrgencyMedium
	default:
		return models.UrgencyLow
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
