package models

import "time"

// Review decision kinds.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
	DecisionEdit    = "edit"
)

// ReviewDecision records the human resolution of a pending analysis version.
// For "edit" decisions both the original and the edited values are kept for
// audit.
type ReviewDecision struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	AnalysisResultID uint            `gorm:"index;not null" json:"analysis_result_id"`
	AnalysisResult   *AnalysisResult `gorm:"foreignKey:AnalysisResultID" json:"analysis_result,omitempty"`
	ReviewerID       uint            `gorm:"index;not null" json:"reviewer_id"`
	Reviewer         *User           `gorm:"foreignKey:ReviewerID" json:"reviewer,omitempty"`
	Decision         string          `gorm:"size:20;not null" json:"decision"` // approve, reject, edit
	OriginalValues   string          `gorm:"type:text" json:"original_values"` // JSON snapshot before edit
	EditedValues     string          `gorm:"type:text" json:"edited_values"`   // JSON of reviewer-supplied fields
	Notes            string          `gorm:"type:text" json:"notes"`
	DecidedAt        time.Time       `gorm:"index" json:"decided_at"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (ReviewDecision) TableName() string { return "review_decisions" }
