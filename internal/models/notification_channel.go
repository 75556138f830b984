package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Event kinds emitted by the analysis pipeline.
const (
	EventHighPriority = "analysis.high_priority"
	EventChurnRisk    = "analysis.churn_risk"
	EventCompetitor   = "analysis.competitor"
	EventDailyDigest  = "digest.daily"
)

// NotificationChannel is a webhook target for pipeline events. Delivery is
// best-effort; the pipeline never blocks on it.
type NotificationChannel struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Name          string         `gorm:"size:100;not null" json:"name"`
	Type          string         `gorm:"size:50;not null" json:"type"` // wechat_work, dingtalk, feishu, slack, generic
	Webhook       string         `gorm:"size:500;not null" json:"webhook"`
	Secret        string         `gorm:"size:255" json:"-"`
	IsActive      bool           `gorm:"default:true" json:"is_active"`
	Events        string         `gorm:"size:500" json:"events"` // subscribed event kinds, comma separated; empty = all
	DigestEnabled bool           `gorm:"default:false" json:"digest_enabled"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (NotificationChannel) TableName() string { return "notification_channels" }

// Subscribed reports whether the channel wants the given event kind.
func (n *NotificationChannel) Subscribed(eventKind string) bool {
	if n.Events == "" {
		return true
	}
	for _, e := range strings.Split(n.Events, ",") {
		if strings.TrimSpace(e) == eventKind {
			return true
		}
	}
	return false
}
