package services

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gorm.io/gorm"
)

// Entity types recognized by the preprocessor.
const (
	EntityOrganization = "ORGANIZATION"
	EntityProduct      = "PRODUCT"
	EntityPerson       = "PERSON"
)

// Pre-compiled patterns for entity and span detection
var (
	orgSuffixRegex = regexp.MustCompile(`\b([A-Z][A-Za-z0-9&.-]*(?:\s+[A-Z][A-Za-z0-9&.-]*)*)\s+(?:Inc|Corp|Corporation|Ltd|LLC|GmbH|Labs|Software|Systems)\b\.?`)
	personRegex    = regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Dr)\.?\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)|\bmy name is\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`)
	tokenRegex     = regexp.MustCompile(`[A-Za-z0-9'-]+`)
)

// stopwords bound keyword spans, mimicking noun-chunk boundaries.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"if": true, "so": true, "to": true, "of": true, "in": true, "on": true,
	"at": true, "by": true, "for": true, "with": true, "about": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"am": true, "i": true, "im": true, "i'm": true, "we": true, "you": true,
	"it": true, "its": true, "it's": true, "this": true, "that": true,
	"my": true, "our": true, "your": true, "me": true, "us": true, "they": true,
	"have": true, "has": true, "had": true, "do": true, "does": true, "did": true,
	"will": true, "would": true, "can": true, "could": true, "should": true,
	"not": true, "no": true, "very": true, "really": true, "just": true,
	"as": true, "from": true, "into": true, "than": true, "then": true,
	"there": true, "here": true, "when": true, "what": true, "how": true,
	"all": true, "also": true, "get": true, "got": true, "out": true, "up": true,
}

// Entity is one extracted (text, type) pair.
type Entity struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// PreprocessResult carries the deterministic signals extracted from raw text
// before any model call.
type PreprocessResult struct {
	Entities           []Entity `json:"entities"`
	Keywords           []string `json:"keywords"`
	UrgencyMatches     []string `json:"urgency_matches"`
	ChurnMatches       []string `json:"churn_matches"`
	CompetitorMatches  []string `json:"competitor_matches"`
	ProductTermMatches []string `json:"product_term_matches"`
}

// HasUrgencySignals reports whether any urgency keyword matched.
func (r *PreprocessResult) HasUrgencySignals() bool { return len(r.UrgencyMatches) > 0 }

// HasChurnSignals reports whether any churn keyword or competitor matched.
func (r *PreprocessResult) HasChurnSignals() bool {
	return len(r.ChurnMatches) > 0 || len(r.CompetitorMatches) > 0
}

// PreprocessorService extracts entities and keywords from feedback text.
// Extraction itself is pure; lexicons are loaded from system config so they
// can be tuned without a deploy.
type PreprocessorService struct {
	configService *SystemConfigService
	maxChars      int
}

func NewPreprocessorService(db *gorm.DB, maxChars int) *PreprocessorService {
	return &PreprocessorService{
		configService: NewSystemConfigService(db),
		maxChars:      maxChars,
	}
}

// Lexicon bundles the configurable term lists used during preprocessing.
type Lexicon struct {
	Urgency      []string
	Churn        []string
	Competitors  []string
	ProductTerms []string
	KeywordCap   int
}

func (s *PreprocessorService) lexicon() Lexicon {
	return Lexicon{
		Urgency:      splitList(s.configService.GetWithDefault("urgency_lexicon", "")),
		Churn:        splitList(s.configService.GetWithDefault("churn_lexicon", "")),
		Competitors:  splitList(s.configService.GetWithDefault("competitor_list", "")),
		ProductTerms: splitList(s.configService.GetWithDefault("product_terms", "")),
		KeywordCap:   s.configService.GetInt("keyword_cap", 10),
	}
}

// Preprocess validates and analyzes raw feedback text. Returns
// ErrInvalidInput for empty or oversized input; any other failure mode is
// degraded by the caller, not fatal.
func (s *PreprocessorService) Preprocess(text string) (*PreprocessResult, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty feedback text", ErrInvalidInput)
	}
	if s.maxChars > 0 && len(trimmed) > s.maxChars {
		return nil, fmt.Errorf("%w: feedback text exceeds %d chars", ErrInvalidInput, s.maxChars)
	}

	return Extract(trimmed, s.lexicon()), nil
}

// Extract is the pure extraction core: deterministic, no I/O.
func Extract(text string, lex Lexicon) *PreprocessResult {
	lower := strings.ToLower(text)

	result := &PreprocessResult{
		UrgencyMatches:     matchLexicon(lower, lex.Urgency),
		ChurnMatches:       matchLexicon(lower, lex.Churn),
		CompetitorMatches:  matchLexicon(lower, lex.Competitors),
		ProductTermMatches: matchLexicon(lower, lex.ProductTerms),
	}

	result.Entities = extractEntities(text, result.CompetitorMatches, result.ProductTermMatches)

	limit := lex.KeywordCap
	if limit <= 0 {
		limit = 10
	}
	result.Keywords = extractKeywords(lower, limit)

	return result
}

func matchLexicon(lowerText string, terms []string) []string {
	var found []string
	for _, term := range terms {
		if term != "" && strings.Contains(lowerText, term) {
			found = append(found, term)
		}
	}
	return found
}

// extractEntities collects (text, type) pairs in document order, one entry
// per distinct surface form.
func extractEntities(text string, competitors, productTerms []string) []Entity {
	var entities []Entity
	seen := make(map[string]bool)

	add := func(txt, typ string) {
		key := strings.ToLower(txt) + "|" + typ
		if txt == "" || seen[key] {
			return
		}
		seen[key] = true
		entities = append(entities, Entity{Text: txt, Type: typ})
	}

	// Known competitor names are organizations by definition.
	for _, c := range competitors {
		add(c, EntityOrganization)
	}

	for _, m := range orgSuffixRegex.FindAllString(text, -1) {
		add(strings.TrimRight(m, "."), EntityOrganization)
	}

	for _, p := range productTerms {
		add(p, EntityProduct)
	}

	for _, groups := range personRegex.FindAllStringSubmatch(text, -1) {
		name := groups[1]
		if name == "" {
			name = groups[2]
		}
		add(name, EntityPerson)
	}

	return entities
}

// extractKeywords splits the text into stopword-bounded spans (a cheap stand
// in for noun chunks), ranks them by frequency, and caps the list.
func extractKeywords(lowerText string, limit int) []string {
	tokens := tokenRegex.FindAllString(lowerText, -1)

	counts := make(map[string]int)
	order := make(map[string]int)

	var span []string
	flush := func() {
		if len(span) == 0 {
			return
		}
		phrase := strings.Join(span, " ")
		span = span[:0]
		if len(phrase) <= 3 {
			return
		}
		if _, ok := order[phrase]; !ok {
			order[phrase] = len(order)
		}
		counts[phrase]++
	}

	for _, tok := range tokens {
		if stopwords[tok] {
			flush()
			continue
		}
		span = append(span, tok)
		if len(span) == 3 {
			flush()
		}
	}
	flush()

	keywords := make([]string, 0, len(counts))
	for phrase := range counts {
		keywords = append(keywords, phrase)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if counts[keywords[i]] != counts[keywords[j]] {
			return counts[keywords[i]] > counts[keywords[j]]
		}
		return order[keywords[i]] < order[keywords[j]]
	})

	if len(keywords) > limit {
		keywords = keywords[:limit]
	}
	return keywords
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ToLower(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
