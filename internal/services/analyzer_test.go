package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/revulabs/revu/backend/internal/config"
	"github.com/revulabs/revu/backend/internal/models"
	"golang.org/x/time/rate"
)

const validReplyJSON = `{
	"sentiment": "negative",
	"sentiment_score": -0.8,
	"categories": ["bug", "complaint"],
	"themes": ["login", "crash"],
	"insights": {
		"summary": "App crashes on login",
		"key_points": ["Crash after update"],
		"action_items": ["Investigate login flow"],
		"churn_risk": true,
		"churn_indicators": ["switching to"],
		"competitor_mentions": ["RivalSoft"],
		"feature_requests": []
	},
	"confidence": 0.9
}`

func TestParseReply_Valid(t *testing.T) {
	draft, err := parseReply(validReplyJSON)
	if err != nil {
		t.Fatalf("parseReply failed: %v", err)
	}
	if draft.Sentiment != "negative" {
		t.Errorf("Sentiment = %q, expected negative", draft.Sentiment)
	}
	if draft.SentimentScore != -0.8 {
		t.Errorf("SentimentScore = %v, expected -0.8", draft.SentimentScore)
	}
	if draft.Confidence != 0.9 {
		t.Errorf("Confidence = %v, expected 0.9", draft.Confidence)
	}
	if !draft.ChurnRisk {
		t.Error("ChurnRisk should carry through from insights")
	}
	if draft.ParseFailed {
		t.Error("ParseFailed should be false for a valid reply")
	}
}

func TestParseReply_StripsCodeFences(t *testing.T) {
	fenced := "```json\n" + validReplyJSON + "\n```"
	draft, err := parseReply(fenced)
	if err != nil {
		t.Fatalf("parseReply failed on fenced JSON: %v", err)
	}
	if draft.Sentiment != "negative" {
		t.Errorf("Sentiment = %q, expected negative", draft.Sentiment)
	}
}

func TestParseReply_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not JSON", raw: "I could not analyze this."},
		{name: "missing confidence", raw: `{"sentiment":"neutral","sentiment_score":0,"categories":[],"themes":[]}`},
		{name: "missing sentiment_score", raw: `{"sentiment":"neutral","categories":[],"themes":[],"confidence":0.8}`},
		{name: "sentiment out of enum", raw: `{"sentiment":"angry","sentiment_score":0,"categories":[],"themes":[],"confidence":0.8}`},
		{name: "sentiment_score out of range", raw: `{"sentiment":"neutral","sentiment_score":2,"categories":[],"themes":[],"confidence":0.8}`},
		{name: "confidence out of range", raw: `{"sentiment":"neutral","sentiment_score":0,"categories":[],"themes":[],"confidence":1.5}`},
		{name: "unknown category", raw: `{"sentiment":"neutral","sentiment_score":0,"categories":["rant"],"themes":[],"confidence":0.8}`},
		{name: "missing categories", raw: `{"sentiment":"neutral","sentiment_score":0,"themes":[],"confidence":0.8}`},
		{name: "missing themes", raw: `{"sentiment":"neutral","sentiment_score":0,"categories":[],"confidence":0.8}`},
		{name: "priority hint out of range", raw: `{"sentiment":"neutral","sentiment_score":0,"categories":[],"themes":[],"priority_hint":150,"confidence":0.8}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseReply(tt.raw)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrSchemaValidation) {
				t.Errorf("error %v should wrap ErrSchemaValidation", err)
			}
		})
	}
}

func TestDegradedDraft(t *testing.T) {
	draft := degradedDraft("test-model")

	if !draft.ParseFailed {
		t.Error("degraded draft must be marked ParseFailed")
	}
	if draft.Confidence != 0 {
		t.Errorf("Confidence = %v, expected 0", draft.Confidence)
	}
	if draft.Sentiment != models.SentimentNeutral {
		t.Errorf("Sentiment = %q, expected neutral", draft.Sentiment)
	}
	if !strings.Contains(draft.InsightSummary, "Analysis pending") {
		t.Errorf("InsightSummary = %q, expected pending placeholder", draft.InsightSummary)
	}
	if draft.ModelVersion != "test-model" {
		t.Errorf("ModelVersion = %q, expected test-model", draft.ModelVersion)
	}
}

// testAnalyzer builds a service wired to a stubbed provider call, bypassing
// the database config lookup via the file-level fallback.
func testAnalyzer(callFn func(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (string, error)) *AnalyzerService {
	return &AnalyzerService{
		config:  &config.AnthropicConfig{APIKey: "test", Model: "test-model"},
		limiter: rate.NewLimiter(rate.Limit(1000), 1),
		callFn:  callFn,
	}
}

func TestAnalyze_ValidFirstAttempt(t *testing.T) {
	analyzer := testAnalyzer(func(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (string, error) {
		return validReplyJSON, nil
	})

	draft, err := analyzer.Analyze(context.Background(), &AnalysisRequest{Text: "app crashes"})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if draft.Sentiment != "negative" || draft.ParseFailed {
		t.Errorf("unexpected draft: %+v", draft)
	}
	if draft.ModelVersion != "test-model" {
		t.Errorf("ModelVersion = %q, expected fallback model", draft.ModelVersion)
	}
}

func TestAnalyze_InvalidReplyRetriesWithAnnotatedPrompt(t *testing.T) {
	var prompts []string
	analyzer := testAnalyzer(func(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (string, error) {
		prompts = append(prompts, prompt)
		if len(prompts) == 1 {
			return `{"sentiment":"neutral","sentiment_score":0,"categories":[],"themes":[]}`, nil
		}
		return validReplyJSON, nil
	})

	draft, err := analyzer.Analyze(context.Background(), &AnalysisRequest{Text: "hmm"})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if draft.ParseFailed {
		t.Error("second attempt was valid, draft should not be degraded")
	}
	if len(prompts) != 2 {
		t.Fatalf("got %d calls, expected 2", len(prompts))
	}
	if !strings.Contains(prompts[1], "rejected by schema validation") {
		t.Error("retry prompt should carry the validation error")
	}
	if !strings.Contains(prompts[1], "confidence") {
		t.Error("retry prompt should name the missing field")
	}
}

func TestAnalyze_DoublyInvalidReplyDegrades(t *testing.T) {
	calls := 0
	analyzer := testAnalyzer(func(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (string, error) {
		calls++
		// Valid JSON but always missing confidence.
		return `{"sentiment":"neutral","sentiment_score":0,"categories":[],"themes":[]}`, nil
	})

	draft, err := analyzer.Analyze(context.Background(), &AnalysisRequest{Text: "vague"})
	if err != nil {
		t.Fatalf("degraded path must not error: %v", err)
	}
	if calls != 2 {
		t.Errorf("got %d calls, expected 2", calls)
	}
	if !draft.ParseFailed {
		t.Error("draft should be marked ParseFailed")
	}
	if draft.Confidence != 0 {
		t.Errorf("Confidence = %v, expected 0", draft.Confidence)
	}
}

func TestAnalyze_TransportFailureSurfacesUnavailable(t *testing.T) {
	oldBase := backoffBase
	backoffBase = time.Millisecond
	defer func() { backoffBase = oldBase }()

	calls := 0
	analyzer := testAnalyzer(func(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (string, error) {
		calls++
		return "", fmt.Errorf("connection refused")
	})

	_, err := analyzer.Analyze(context.Background(), &AnalysisRequest{Text: "anything"})
	if err == nil {
		t.Fatal("expected error when every attempt fails")
	}
	if !errors.Is(err, ErrAnalysisUnavailable) {
		t.Errorf("error %v should wrap ErrAnalysisUnavailable", err)
	}
	if calls != maxCompletionAttempts {
		t.Errorf("got %d calls, expected %d", calls, maxCompletionAttempts)
	}
}

func TestAnalyze_ContextCancellationStopsRetries(t *testing.T) {
	oldBase := backoffBase
	backoffBase = time.Hour
	defer func() { backoffBase = oldBase }()

	ctx, cancel := context.WithCancel(context.Background())
	analyzer := testAnalyzer(func(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (string, error) {
		cancel()
		return "", fmt.Errorf("connection refused")
	})

	start := time.Now()
	_, err := analyzer.Analyze(ctx, &AnalysisRequest{Text: "anything"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrAnalysisUnavailable) {
		t.Errorf("error %v should wrap ErrAnalysisUnavailable", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation should short-circuit the backoff wait")
	}
}

func TestBuildAnalysisPrompt(t *testing.T) {
	rating := 2.0
	req := &AnalysisRequest{
		Text:       "Crashes constantly",
		Source:     "app_store",
		AuthorName: "Sam",
		Rating:     &rating,
		Entities:   []Entity{{Text: "RivalSoft", Type: EntityOrganization}},
	}

	prompt := buildAnalysisPrompt(req, "")
	for _, want := range []string{"Crashes constantly", "app_store", "Sam", "2.0/5.0", "RivalSoft", "JSON Schema"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "rejected by schema validation") {
		t.Error("first-attempt prompt should not carry a validation error")
	}

	strict := buildAnalysisPrompt(req, "missing field \"confidence\"")
	if !strings.Contains(strict, "rejected by schema validation") {
		t.Error("retry prompt should mention the rejection")
	}
}

func TestOrderedLLMConfigs_FileFallback(t *testing.T) {
	analyzer := testAnalyzer(nil)

	configs := analyzer.orderedLLMConfigs()
	if len(configs) != 1 {
		t.Fatalf("got %d configs, expected 1", len(configs))
	}
	if configs[0].Provider != "anthropic" || configs[0].Model != "test-model" {
		t.Errorf("fallback config = %+v", configs[0])
	}
}
