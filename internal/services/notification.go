package services

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/revulabs/revu/backend/internal/models"
	"github.com/revulabs/revu/backend/pkg/logger"
	"gorm.io/gorm"
)

// NotificationService fans pipeline events out to the subscribed webhook
// channels. It implements the Notifier interface the orchestrator uses.
type NotificationService struct {
	db *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db}
}

// Notify delivers one event to every active subscribed channel. Delivery
// runs in the caller's goroutine but failures are logged, never returned:
// the pipeline does not depend on webhook health.
func (s *NotificationService) Notify(eventKind string, payload map[string]interface{}) {
	var channels []models.NotificationChannel
	if err := s.db.Where("is_active = ?", true).Find(&channels).Error; err != nil {
		logger.Errorf("[Notification] Failed to load channels: %v", err)
		return
	}

	for i := range channels {
		channel := &channels[i]
		if !channel.Subscribed(eventKind) {
			continue
		}
		if err := s.sendToChannel(channel, eventKind, payload); err != nil {
			logger.Errorf("[Notification] Delivery to %s failed: %v", channel.Name, err)
		}
	}
}

// SendTest pushes a test message to one channel so admins can verify
// the webhook configuration.
func (s *NotificationService) SendTest(channelID uint) error {
	var channel models.NotificationChannel
	if err := s.db.First(&channel, channelID).Error; err != nil {
		return err
	}
	return s.sendToChannel(&channel, models.EventHighPriority, map[string]interface{}{
		"test":    true,
		"message": "This is a test notification from RevU.",
	})
}

func (s *NotificationService) sendToChannel(channel *models.NotificationChannel, eventKind string, payload map[string]interface{}) error {
	logger.Infof("[Notification] Sending %s to channel %s (type: %s)", eventKind, channel.Name, channel.Type)

	switch channel.Type {
	case "wechat_work":
		return s.sendWeCom(channel, eventKind, payload)
	case "dingtalk":
		return s.sendDingTalk(channel, eventKind, payload)
	case "feishu":
		return s.sendFeishu(channel, eventKind, payload)
	case "slack":
		return s.sendSlack(channel, eventKind, payload)
	default:
		return s.sendGenericWebhook(channel, eventKind, payload)
	}
}

func eventTitle(eventKind string) string {
	switch eventKind {
	case models.EventHighPriority:
		return "High-Priority Feedback"
	case models.EventChurnRisk:
		return "Churn Risk Detected"
	case models.EventCompetitor:
		return "Competitor Mentioned"
	case models.EventDailyDigest:
		return "Daily Feedback Digest"
	default:
		return eventKind
	}
}

// buildMessage renders a markdown body from the event payload with stable
// key ordering.
func (s *NotificationService) buildMessage(eventKind string, payload map[string]interface{}) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n\n", eventTitle(eventKind))

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := payload[k]
		switch val := v.(type) {
		case float64:
			fmt.Fprintf(&b, "**%s**: %.1f\n", k, val)
		case []string:
			fmt.Fprintf(&b, "**%s**: %s\n", k, strings.Join(val, ", "))
		default:
			fmt.Fprintf(&b, "**%s**: %v\n", k, val)
		}
	}
	return b.String()
}

func (s *NotificationService) sendWeCom(channel *models.NotificationChannel, eventKind string, p map[string]interface{}) error {
	payload := map[string]interface{}{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"content": s.buildMessage(eventKind, p),
		},
	}
	return s.postJSON(channel.Webhook, payload)
}

func (s *NotificationService) sendDingTalk(channel *models.NotificationChannel, eventKind string, p map[string]interface{}) error {
	webhookURL := channel.Webhook
	if channel.Secret != "" {
		timestamp := time.Now().UnixMilli()
		sign := s.dingTalkSign(timestamp, channel.Secret)
		webhookURL = fmt.Sprintf("%s&timestamp=%d&sign=%s", channel.Webhook, timestamp, url.QueryEscape(sign))
	}

	payload := map[string]interface{}{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"title": eventTitle(eventKind),
			"text":  s.buildMessage(eventKind, p),
		},
	}
	return s.postJSON(webhookURL, payload)
}

func (s *NotificationService) dingTalkSign(timestamp int64, secret string) string {
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, secret)
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func (s *NotificationService) sendFeishu(channel *models.NotificationChannel, eventKind string, p map[string]interface{}) error {
	content := s.buildMessage(eventKind, p)

	if channel.Secret != "" {
		timestamp := time.Now().Unix()
		sign := s.feishuSign(timestamp, channel.Secret)
		payload := map[string]interface{}{
			"timestamp": fmt.Sprintf("%d", timestamp),
			"sign":      sign,
			"msg_type":  "text",
			"content": map[string]string{
				"text": content,
			},
		}
		return s.postJSON(channel.Webhook, payload)
	}

	payload := map[string]interface{}{
		"msg_type": "text",
		"content": map[string]string{
			"text": content,
		},
	}
	return s.postJSON(channel.Webhook, payload)
}

func (s *NotificationService) feishuSign(timestamp int64, secret string) string {
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, secret)
	h := hmac.New(sha256.New, []byte(stringToSign))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func (s *NotificationService) sendSlack(channel *models.NotificationChannel, eventKind string, p map[string]interface{}) error {
	header := fmt.Sprintf("*%s*", eventTitle(eventKind))
	body := s.buildMessage(eventKind, p)

	payload := map[string]interface{}{
		"text": header,
		"blocks": []map[string]interface{}{
			{
				"type": "section",
				"text": map[string]string{
					"type": "mrkdwn",
					"text": body,
				},
			},
		},
	}
	return s.postJSON(channel.Webhook, payload)
}

func (s *NotificationService) sendGenericWebhook(channel *models.NotificationChannel, eventKind string, p map[string]interface{}) error {
	payload := map[string]interface{}{
		"event":   eventKind,
		"payload": p,
		"sent_at": time.Now().UTC().Format(time.RFC3339),
	}
	return s.postJSON(channel.Webhook, payload)
}

func (s *NotificationService) postJSON(webhookURL string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resp, err := http.Post(webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}
