package models

import "time"

// ThemeRun is one execution of the theme clustering batch job. Prior runs
// are historical snapshots and are never mutated.
type ThemeRun struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	WindowStart   time.Time `gorm:"index" json:"window_start"`
	WindowEnd     time.Time `gorm:"index" json:"window_end"`
	Similarity    float64   `json:"similarity"` // threshold used for this run
	ItemCount     int       `json:"item_count"`
	ClusterCount  int       `json:"cluster_count"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

func (ThemeRun) TableName() string { return "theme_runs" }

// Theme is one labeled cluster produced by a run.
type Theme struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ThemeRunID       uint      `gorm:"index;not null" json:"theme_run_id"`
	Label            string    `gorm:"size:200;not null" json:"label"`
	MemberUUIDs      string    `gorm:"type:text" json:"-"` // feedback item uuids, JSON array
	Terms            string    `gorm:"type:text" json:"-"` // representative terms, JSON array
	MemberCount      int       `json:"member_count"`
	EarliestMemberAt time.Time `gorm:"index" json:"earliest_member_at"`
	CreatedAt        time.Time `json:"created_at"`
}

func (Theme) TableName() string { return "themes" }

// MemberList decodes member feedback identifiers.
func (t *Theme) MemberList() []string { return decodeStrings(t.MemberUUIDs) }

// SetMembers encodes member feedback identifiers.
func (t *Theme) SetMembers(v []string) { t.MemberUUIDs = encodeStrings(v) }

// TermList decodes representative terms.
func (t *Theme) TermList() []string { return decodeStrings(t.Terms) }

// SetTerms encodes representative terms.
func (t *Theme) SetTerms(v []string) { t.Terms = encodeStrings(v) }
