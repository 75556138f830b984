package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/invopop/jsonschema"
	"github.com/ollama/ollama/api"
	"github.com/revulabs/revu/backend/internal/config"
	"github.com/revulabs/revu/backend/internal/models"
	"github.com/revulabs/revu/backend/pkg/logger"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
	"gorm.io/gorm"
)

const (
	// maxCompletionAttempts bounds retries on transient provider failures.
	maxCompletionAttempts = 3

	defaultAnthropicModel = "claude-3-5-sonnet-20241022"
)

// backoffBase is the first retry delay; doubled per attempt. A package var
// so tests can shorten it.
var backoffBase = time.Second

// Categories the completion service may emit.
var validCategories = map[string]bool{
	"bug": true, "feature_request": true, "complaint": true, "praise": true,
	"question": true, "integration_issue": true, "usability": true, "performance": true,
}

var validSentiments = map[string]bool{
	models.SentimentPositive: true,
	models.SentimentNegative: true,
	models.SentimentNeutral:  true,
	models.SentimentMixed:    true,
}

// AnalysisRequest is the analyzer input for one feedback item.
type AnalysisRequest struct {
	Text       string
	Source     string
	AuthorName string
	Rating     *float64
	Entities   []Entity
}

// AnalysisDraft is the validated structured analysis before scoring and
// routing. ParseFailed marks the degraded path where both parse attempts
// produced an invalid reply.
type AnalysisDraft struct {
	Sentiment      string
	SentimentScore float64
	Categories     []string
	Themes         []string
	Confidence     float64
	InsightSummary string
	KeyPoints      []string
	ActionItems    []string
	PriorityHint   *float64

	ChurnRisk          bool
	ChurnIndicators    []string
	CompetitorMentions []string
	FeatureRequests    []string

	ParseFailed  bool
	ModelVersion string
}

// analyzerReply mirrors the JSON object the completion service is asked to
// return. Scalar fields are pointers so a missing field is distinguishable
// from a zero value during validation.
type analyzerReply struct {
	Sentiment      string        `json:"sentiment" jsonschema:"enum=positive,enum=negative,enum=neutral,enum=mixed"`
	SentimentScore *float64      `json:"sentiment_score" jsonschema:"minimum=-1,maximum=1"`
	Categories     []string      `json:"categories"`
	Themes         []string      `json:"themes"`
	PriorityHint   *float64      `json:"priority_hint,omitempty" jsonschema:"minimum=0,maximum=100"`
	Insights       replyInsights `json:"insights"`
	Confidence     *float64      `json:"confidence" jsonschema:"minimum=0,maximum=1"`
}

type replyInsights struct {
	Summary            string   `json:"summary"`
	KeyPoints          []string `json:"key_points"`
	ActionItems        []string `json:"action_items"`
	ChurnRisk          bool     `json:"churn_risk"`
	ChurnIndicators    []string `json:"churn_indicators"`
	CompetitorMentions []string `json:"competitor_mentions"`
	FeatureRequests    []string `json:"feature_requests"`
}

// replySchemaJSON is the reply schema rendered once at startup and embedded
// in every prompt.
var replySchemaJSON = func() string {
	r := jsonschema.Reflector{DoNotReference: true}
	schema := r.Reflect(&analyzerReply{})
	b, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}()

// AnalyzerService turns feedback text into a structured AnalysisDraft via
// an external completion service. Provider dispatch and config fallback
// follow the LLMConfig table; the file-level anthropic config is the last
// resort.
type AnalyzerService struct {
	db      *gorm.DB
	config  *config.AnthropicConfig
	limiter *rate.Limiter

	// callFn is the provider call, swappable in tests.
	callFn func(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (string, error)
}

func NewAnalyzerService(db *gorm.DB, cfg *config.AnthropicConfig, rps float64) *AnalyzerService {
	if rps <= 0 {
		rps = 1
	}
	s := &AnalyzerService{
		db:      db,
		config:  cfg,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
	s.callFn = s.callProvider
	return s
}

// Analyze runs the full attempt ladder: transport retries with backoff,
// one stricter re-prompt on an invalid reply, then the degraded draft.
// Only transport exhaustion is an error; a doubly-invalid reply is not.
func (s *AnalyzerService) Analyze(ctx context.Context, req *AnalysisRequest) (*AnalysisDraft, error) {
	prompt := buildAnalysisPrompt(req, "")

	raw, modelVersion, err := s.completeWithBackoff(ctx, prompt)
	if err != nil {
		return nil, err
	}

	draft, verr := parseReply(raw)
	if verr == nil {
		draft.ModelVersion = modelVersion
		return draft, nil
	}
	logger.Infof("[Analyzer] Invalid reply, retrying with annotated prompt: %v", verr)

	retryPrompt := buildAnalysisPrompt(req, verr.Error())
	raw, modelVersion, err = s.completeWithBackoff(ctx, retryPrompt)
	if err != nil {
		return nil, err
	}

	draft, verr = parseReply(raw)
	if verr == nil {
		draft.ModelVersion = modelVersion
		return draft, nil
	}
	logger.Warnf("[Analyzer] Reply still invalid after retry, degrading: %v", verr)

	return degradedDraft(modelVersion), nil
}

// completeWithBackoff calls the completion service with exponential backoff
// on transient failure. Exhausting the attempt ceiling surfaces
// ErrAnalysisUnavailable so the caller can requeue the item.
func (s *AnalyzerService) completeWithBackoff(ctx context.Context, prompt string) (string, string, error) {
	var lastErr error

	for attempt := 0; attempt < maxCompletionAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return "", "", fmt.Errorf("%w: %v", ErrAnalysisUnavailable, ctx.Err())
			case <-time.After(delay):
			}
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
		}

		content, modelVersion, err := s.callOrdered(ctx, prompt)
		if err == nil {
			return content, modelVersion, nil
		}
		lastErr = err
		logger.Infof("[Analyzer] Attempt %d/%d failed: %v", attempt+1, maxCompletionAttempts, err)
	}

	return "", "", fmt.Errorf("%w: %v", ErrAnalysisUnavailable, lastErr)
}

// callOrdered tries each configured provider in order: the default config,
// then remaining active configs, then the file-level fallback.
func (s *AnalyzerService) callOrdered(ctx context.Context, prompt string) (string, string, error) {
	configs := s.orderedLLMConfigs()

	var lastErr error
	for i := range configs {
		llmConfig := &configs[i]
		content, err := s.callFn(ctx, llmConfig, prompt)
		if err == nil {
			return content, llmConfig.Model, nil
		}
		lastErr = err
		logger.Infof("[Analyzer] Provider %s failed: %v", llmConfig.Name, err)
	}

	return "", "", lastErr
}

func (s *AnalyzerService) orderedLLMConfigs() []models.LLMConfig {
	var configs []models.LLMConfig

	if s.db != nil {
		var defaultConfig models.LLMConfig
		if err := s.db.Where("is_default = ? AND is_active = ?", true, true).First(&defaultConfig).Error; err == nil {
			configs = append(configs, defaultConfig)
		}

		var backupConfigs []models.LLMConfig
		existingIDs := make(map[uint]bool)
		for _, c := range configs {
			existingIDs[c.ID] = true
		}
		s.db.Where("is_active = ?", true).Order("id ASC").Find(&backupConfigs)
		for _, c := range backupConfigs {
			if !existingIDs[c.ID] {
				configs = append(configs, c)
			}
		}
	}

	if len(configs) == 0 && s.config != nil {
		model := s.config.Model
		if model == "" {
			model = defaultAnthropicModel
		}
		configs = append(configs, models.LLMConfig{
			Name:     "fallback",
			Provider: "anthropic",
			BaseURL:  s.config.BaseURL,
			APIKey:   s.config.APIKey,
			Model:    model,
		})
	}

	return configs
}

// callProvider dispatches to the provider-specific call by the Provider
// field. Unknown providers are treated as OpenAI-compatible.
func (s *AnalyzerService) callProvider(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (string, error) {
	switch llmConfig.Provider {
	case "anthropic":
		return s.callAnthropic(ctx, llmConfig, prompt)
	case "ollama":
		return s.callOllama(ctx, llmConfig, prompt)
	case "gemini":
		return s.callGemini(ctx, llmConfig, prompt)
	case "azure":
		return s.callAzure(ctx, llmConfig, prompt)
	default:
		return s.callOpenAI(ctx, llmConfig, prompt)
	}
}

func (s *AnalyzerService) callAnthropic(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (string, error) {
	opts := []option.RequestOption{option.WithAPIKey(llmConfig.APIKey)}
	if llmConfig.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(llmConfig.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	maxTokens := int64(llmConfig.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 2048
	}

	model := llmConfig.Model
	if model == "" {
		model = defaultAnthropicModel
	}

	resp, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	return content, nil
}

func (s *AnalyzerService) callOpenAI(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (string, error) {
	clientConfig := openai.DefaultConfig(llmConfig.APIKey)
	if llmConfig.BaseURL != "" {
		clientConfig.BaseURL = llmConfig.BaseURL
	}
	client := openai.NewClientWithConfig(clientConfig)

	temperature := float32(0.3)
	if llmConfig.Temperature > 0 {
		temperature = float32(llmConfig.Temperature)
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: llmConfig.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}

func (s *AnalyzerService) callAzure(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (string, error) {
	// Model is the deployment name on Azure.
	clientConfig := openai.DefaultAzureConfig(llmConfig.APIKey, llmConfig.BaseURL)
	client := openai.NewClientWithConfig(clientConfig)

	temperature := float32(0.3)
	if llmConfig.Temperature > 0 {
		temperature = float32(llmConfig.Temperature)
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: llmConfig.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("Azure OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from Azure OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}

func (s *AnalyzerService) callOllama(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (string, error) {
	baseURL := llmConfig.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid Ollama base URL: %w", err)
	}
	client := api.NewClient(u, http.DefaultClient)

	model := llmConfig.Model
	if model == "" {
		model = "llama3"
	}

	var content strings.Builder
	err = client.Chat(ctx, &api.ChatRequest{
		Model: model,
		Messages: []api.Message{
			{Role: "user", Content: prompt},
		},
		Options: map[string]interface{}{
			"temperature": llmConfig.Temperature,
		},
	}, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("Ollama API error: %w", err)
	}
	return content.String(), nil
}

func (s *AnalyzerService) callGemini(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: llmConfig.APIKey,
	})
	if err != nil {
		return "", fmt.Errorf("Gemini client error: %w", err)
	}

	model := llmConfig.Model
	if model == "" {
		model = "gemini-3.0-flash"
	}

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}
	return resp.Text(), nil
}

// buildAnalysisPrompt renders the fixed instruction template. A non-empty
// validationError produces the stricter second-attempt prompt.
func buildAnalysisPrompt(req *AnalysisRequest, validationError string) string {
	var b strings.Builder

	b.WriteString("You are an expert product feedback analyzer for a B2B SaaS platform. ")
	b.WriteString("Analyze the following customer feedback and provide detailed, actionable insights.\n\n")
	b.WriteString("Feedback: ")
	b.WriteString(req.Text)
	b.WriteString("\n\nAdditional Context:\n")
	b.WriteString("- Author: " + orUnknown(req.AuthorName) + "\n")
	b.WriteString("- Source: " + orUnknown(req.Source) + "\n")
	if req.Rating != nil {
		fmt.Fprintf(&b, "- Rating: %.1f/5.0\n", *req.Rating)
	} else {
		b.WriteString("- Rating: Not provided\n")
	}

	if len(req.Entities) > 0 {
		if data, err := json.Marshal(req.Entities); err == nil {
			b.WriteString("- Detected Entities: " + string(data) + "\n")
		}
	}

	b.WriteString("\nReturn ONLY a JSON object conforming to this JSON Schema, no markdown, no extra text:\n")
	b.WriteString(replySchemaJSON)
	b.WriteString("\n\nAnalysis Guidelines:\n")
	b.WriteString("1. Be precise and specific in your analysis\n")
	b.WriteString("2. Focus on actionable insights that product teams can use\n")
	b.WriteString("3. Identify urgency based on language patterns (words like \"critical\", \"urgent\", \"blocking\")\n")
	b.WriteString("4. Detect churn risk from phrases like \"cancel\", \"switch to\", \"disappointed\", \"competitor\"\n")
	b.WriteString("5. Extract specific feature requests clearly\n")
	b.WriteString("6. Provide high confidence (>0.8) only when the feedback is clear and unambiguous\n")
	b.WriteString("7. Use lower confidence (<0.7) for vague, contradictory, or unclear feedback\n")
	b.WriteString("8. Consider the rating in your sentiment analysis if provided\n")

	if validationError != "" {
		b.WriteString("\nIMPORTANT: Your previous reply was rejected by schema validation: ")
		b.WriteString(validationError)
		b.WriteString("\nReturn the complete JSON object with every required field present and in range.\n")
	}

	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// parseReply decodes and validates a raw completion reply. Validation
// failures are wrapped in ErrSchemaValidation.
func parseReply(raw string) (*AnalysisDraft, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var reply analyzerReply
	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		return nil, fmt.Errorf("%w: not valid JSON: %v", ErrSchemaValidation, err)
	}

	if err := validateReply(&reply); err != nil {
		return nil, err
	}

	return &AnalysisDraft{
		Sentiment:          reply.Sentiment,
		SentimentScore:     *reply.SentimentScore,
		Categories:         reply.Categories,
		Themes:             reply.Themes,
		Confidence:         *reply.Confidence,
		InsightSummary:     reply.Insights.Summary,
		KeyPoints:          reply.Insights.KeyPoints,
		ActionItems:        reply.Insights.ActionItems,
		PriorityHint:       reply.PriorityHint,
		ChurnRisk:          reply.Insights.ChurnRisk,
		ChurnIndicators:    reply.Insights.ChurnIndicators,
		CompetitorMentions: reply.Insights.CompetitorMentions,
		FeatureRequests:    reply.Insights.FeatureRequests,
	}, nil
}

func validateReply(reply *analyzerReply) error {
	if reply.Sentiment == "" {
		return fmt.Errorf("%w: missing field \"sentiment\"", ErrSchemaValidation)
	}
	if !validSentiments[reply.Sentiment] {
		return fmt.Errorf("%w: sentiment %q not in {positive, negative, neutral, mixed}", ErrSchemaValidation, reply.Sentiment)
	}
	if reply.SentimentScore == nil {
		return fmt.Errorf("%w: missing field \"sentiment_score\"", ErrSchemaValidation)
	}
	if *reply.SentimentScore < -1 || *reply.SentimentScore > 1 {
		return fmt.Errorf("%w: sentiment_score %.2f out of [-1,1]", ErrSchemaValidation, *reply.SentimentScore)
	}
	if reply.Confidence == nil {
		return fmt.Errorf("%w: missing field \"confidence\"", ErrSchemaValidation)
	}
	if *reply.Confidence < 0 || *reply.Confidence > 1 {
		return fmt.Errorf("%w: confidence %.2f out of [0,1]", ErrSchemaValidation, *reply.Confidence)
	}
	if reply.Categories == nil {
		return fmt.Errorf("%w: missing field \"categories\"", ErrSchemaValidation)
	}
	for _, c := range reply.Categories {
		if !validCategories[c] {
			return fmt.Errorf("%w: unknown category %q", ErrSchemaValidation, c)
		}
	}
	if reply.Themes == nil {
		return fmt.Errorf("%w: missing field \"themes\"", ErrSchemaValidation)
	}
	if reply.PriorityHint != nil && (*reply.PriorityHint < 0 || *reply.PriorityHint > 100) {
		return fmt.Errorf("%w: priority_hint %.2f out of [0,100]", ErrSchemaValidation, *reply.PriorityHint)
	}
	return nil
}

// degradedDraft is the low-confidence fallback returned when both parse
// attempts failed. Routed to human review via ParseFailed.
func degradedDraft(modelVersion string) *AnalysisDraft {
	return &AnalysisDraft{
		Sentiment:      models.SentimentNeutral,
		SentimentScore: 0,
		Categories:     []string{},
		Themes:         []string{},
		Confidence:     0,
		InsightSummary: "Analysis pending - automatic analysis could not be parsed",
		KeyPoints:      []string{"Automatic analysis failed", "Manual review recommended"},
		ActionItems:    []string{"Review feedback manually"},
		ParseFailed:    true,
		ModelVersion:   modelVersion,
	}
}
