package services

import (
	"reflect"
	"testing"
)

func testLexicon() Lexicon {
	return Lexicon{
		Urgency:      []string{"urgent", "asap", "critical", "blocking"},
		Churn:        []string{"cancel", "switching to", "refund"},
		Competitors:  []string{"rivalsoft", "competex"},
		ProductTerms: []string{"dashboard", "api"},
		KeywordCap:   10,
	}
}

func TestExtract_LexiconMatches(t *testing.T) {
	text := "This is URGENT: the dashboard is blocking our team. We are switching to RivalSoft."
	result := Extract(text, testLexicon())

	if !reflect.DeepEqual(result.UrgencyMatches, []string{"urgent", "blocking"}) {
		t.Errorf("UrgencyMatches = %v", result.UrgencyMatches)
	}
	if !reflect.DeepEqual(result.ChurnMatches, []string{"switching to"}) {
		t.Errorf("ChurnMatches = %v", result.ChurnMatches)
	}
	if !reflect.DeepEqual(result.CompetitorMatches, []string{"rivalsoft"}) {
		t.Errorf("CompetitorMatches = %v", result.CompetitorMatches)
	}
	if !reflect.DeepEqual(result.ProductTermMatches, []string{"dashboard"}) {
		t.Errorf("ProductTermMatches = %v", result.ProductTermMatches)
	}

	if !result.HasUrgencySignals() {
		t.Error("HasUrgencySignals should be true")
	}
	if !result.HasChurnSignals() {
		t.Error("HasChurnSignals should be true")
	}
}

func TestExtract_NoSignals(t *testing.T) {
	result := Extract("Everything works great, thanks!", testLexicon())

	if result.HasUrgencySignals() {
		t.Error("HasUrgencySignals should be false")
	}
	if result.HasChurnSignals() {
		t.Error("HasChurnSignals should be false")
	}
}

func TestExtract_Entities(t *testing.T) {
	text := "We evaluated Acme Corp and RivalSoft. Dr. Jones liked the dashboard."
	result := Extract(text, testLexicon())

	byType := make(map[string][]string)
	for _, e := range result.Entities {
		byType[e.Type] = append(byType[e.Type], e.Text)
	}

	if !reflect.DeepEqual(byType[EntityOrganization], []string{"rivalsoft", "Acme Corp"}) {
		t.Errorf("organizations = %v", byType[EntityOrganization])
	}
	if !reflect.DeepEqual(byType[EntityProduct], []string{"dashboard"}) {
		t.Errorf("products = %v", byType[EntityProduct])
	}
	if !reflect.DeepEqual(byType[EntityPerson], []string{"Jones"}) {
		t.Errorf("persons = %v", byType[EntityPerson])
	}
}

func TestExtract_EntityDedupe(t *testing.T) {
	text := "RivalSoft again, rivalsoft everywhere."
	result := Extract(text, testLexicon())

	count := 0
	for _, e := range result.Entities {
		if e.Type == EntityOrganization {
			count++
		}
	}
	if count != 1 {
		t.Errorf("got %d organization entities, expected 1 after dedupe", count)
	}
}

func TestExtractKeywords(t *testing.T) {
	// "mobile app" appears twice and should rank first.
	text := "the mobile app is crashing and the mobile app is slow"
	result := Extract(text, testLexicon())

	if len(result.Keywords) == 0 {
		t.Fatal("expected keywords")
	}
	if result.Keywords[0] != "mobile app" {
		t.Errorf("Keywords[0] = %q, expected repeated span first: %v", result.Keywords[0], result.Keywords)
	}
}

func TestExtractKeywords_Cap(t *testing.T) {
	lex := testLexicon()
	lex.KeywordCap = 2

	text := "export tooling broken. billing page slow. search results empty. settings menu hidden."
	result := Extract(text, lex)

	if len(result.Keywords) > 2 {
		t.Errorf("got %d keywords, expected at most 2", len(result.Keywords))
	}
}

func TestPreprocess_InputValidation(t *testing.T) {
	svc := &PreprocessorService{
		configService: NewSystemConfigService(nil),
		maxChars:      20,
	}

	if _, err := svc.Preprocess("   "); err == nil {
		t.Error("blank input should be rejected")
	}
	if _, err := svc.Preprocess("this feedback is definitely longer than twenty characters"); err == nil {
		t.Error("oversized input should be rejected")
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"", nil},
		{"a, B , c", []string{"a", "b", "c"}},
		{" , ,", []string{}},
		{"single", []string{"single"}},
	}

	for _, tt := range tests {
		got := splitList(tt.input)
		if len(got) == 0 && len(tt.expected) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.expected) {
			t.Errorf("splitList(%q) = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}
