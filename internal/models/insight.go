package models

import "time"

// ChurnSignal marks an analysis whose text suggests the author may stop
// using the product.
type ChurnSignal struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	AnalysisResultID uint      `gorm:"index;not null" json:"analysis_result_id"`
	Strength         float64   `json:"strength"`                   // 0.0 .. 1.0
	Indicators       string    `gorm:"type:text" json:"-"`         // matched phrases, JSON array
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
}

func (ChurnSignal) TableName() string { return "churn_signals" }

// IndicatorList decodes the matched churn phrases.
func (c *ChurnSignal) IndicatorList() []string { return decodeStrings(c.Indicators) }

// SetIndicators encodes the matched churn phrases.
func (c *ChurnSignal) SetIndicators(v []string) { c.Indicators = encodeStrings(v) }

// CompetitorMention records a known competitor named in the feedback.
type CompetitorMention struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	AnalysisResultID uint      `gorm:"index;not null" json:"analysis_result_id"`
	Competitor       string    `gorm:"size:200;index;not null" json:"competitor"`
	CreatedAt        time.Time `json:"created_at"`
}

func (CompetitorMention) TableName() string { return "competitor_mentions" }

// FeatureDemandEntry is one occurrence of a normalized feature request,
// attributed to the analysis that produced it. Aggregated counts come from
// the in-memory window counter; these rows are the durable trail.
type FeatureDemandEntry struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	AnalysisResultID uint      `gorm:"index;not null" json:"analysis_result_id"`
	RequestKey       string    `gorm:"size:200;index;not null" json:"request_key"`
	WindowStart      time.Time `gorm:"index" json:"window_start"`
	CreatedAt        time.Time `json:"created_at"`
}

func (FeatureDemandEntry) TableName() string { return "feature_demand_entries" }
