package services

import (
	"strings"
	"testing"

	"github.com/revulabs/revu/backend/internal/models"
)

func TestEventTitle(t *testing.T) {
	tests := []struct {
		eventKind string
		expected  string
	}{
		{models.EventHighPriority, "High-Priority Feedback"},
		{models.EventChurnRisk, "Churn Risk Detected"},
		{models.EventCompetitor, "Competitor Mentioned"},
		{models.EventDailyDigest, "Daily Feedback Digest"},
		{"custom_event", "custom_event"},
	}

	for _, tt := range tests {
		if got := eventTitle(tt.eventKind); got != tt.expected {
			t.Errorf("eventTitle(%q) = %q, expected %q", tt.eventKind, got, tt.expected)
		}
	}
}

func TestBuildMessage(t *testing.T) {
	s := &NotificationService{}

	msg := s.buildMessage(models.EventChurnRisk, map[string]interface{}{
		"priority_score": 87.5,
		"source":         "email",
		"indicators":     []string{"cancel", "refund"},
	})

	shouldContain := []string{
		"Churn Risk Detected",
		"**priority_score**: 87.5",
		"**source**: email",
		"**indicators**: cancel, refund",
	}
	for _, want := range shouldContain {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}

	// Keys render in sorted order, so repeated builds are identical.
	if msg != s.buildMessage(models.EventChurnRisk, map[string]interface{}{
		"source":         "email",
		"indicators":     []string{"cancel", "refund"},
		"priority_score": 87.5,
	}) {
		t.Error("buildMessage should be deterministic regardless of map order")
	}
}

func TestDingTalkSign_Deterministic(t *testing.T) {
	s := &NotificationService{}

	sign1 := s.dingTalkSign(1700000000000, "secret")
	sign2 := s.dingTalkSign(1700000000000, "secret")
	if sign1 != sign2 {
		t.Error("same inputs should produce the same signature")
	}
	if sign1 == s.dingTalkSign(1700000000001, "secret") {
		t.Error("different timestamps should produce different signatures")
	}
	if sign1 == s.dingTalkSign(1700000000000, "other") {
		t.Error("different secrets should produce different signatures")
	}
}

func TestFeishuSign_Deterministic(t *testing.T) {
	s := &NotificationService{}

	sign1 := s.feishuSign(1700000000, "secret")
	if sign1 != s.feishuSign(1700000000, "secret") {
		t.Error("same inputs should produce the same signature")
	}
	if sign1 == s.feishuSign(1700000000, "other") {
		t.Error("different secrets should produce different signatures")
	}
	// Feishu keys the HMAC on the string-to-sign, unlike DingTalk.
	if sign1 == s.dingTalkSign(1700000000, "secret") {
		t.Error("feishu and dingtalk schemes should differ")
	}
}
