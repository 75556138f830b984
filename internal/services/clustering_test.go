package services

import (
	"math"
	"reflect"
	"testing"
	"time"
)

func TestJaccardSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []string
		b        []string
		expected float64
	}{
		{name: "identical sets", a: []string{"login", "crash"}, b: []string{"crash", "login"}, expected: 1},
		{name: "disjoint sets", a: []string{"login"}, b: []string{"billing"}, expected: 0},
		{name: "half overlap", a: []string{"login", "crash"}, b: []string{"login", "billing"}, expected: 1.0 / 3.0},
		{name: "empty vs empty is zero", a: nil, b: nil, expected: 0},
		{name: "empty vs populated is zero", a: nil, b: []string{"login"}, expected: 0},
		{name: "duplicates do not inflate", a: []string{"login", "login"}, b: []string{"login"}, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := JaccardSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("JaccardSimilarity = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func clusteringFixture() []ClusterItem {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	return []ClusterItem{
		{FeedbackUUID: "aaa", Terms: []string{"login", "crash"}, Timestamp: base},
		{FeedbackUUID: "bbb", Terms: []string{"login", "crash", "mobile"}, Timestamp: base.Add(time.Hour)},
		{FeedbackUUID: "ccc", Terms: []string{"billing", "invoice"}, Timestamp: base.Add(2 * time.Hour)},
		{FeedbackUUID: "ddd", Terms: []string{"billing", "invoice", "tax"}, Timestamp: base.Add(3 * time.Hour)},
		{FeedbackUUID: "eee", Terms: nil, Timestamp: base.Add(4 * time.Hour)},
	}
}

func TestClusterByJaccard(t *testing.T) {
	clusters := ClusterByJaccard(clusteringFixture(), 0.5)

	if len(clusters) != 3 {
		t.Fatalf("got %d clusters, expected 3: %+v", len(clusters), clusters)
	}

	if !reflect.DeepEqual(clusters[0].Members, []string{"aaa", "bbb"}) {
		t.Errorf("cluster 0 members = %v, expected [aaa bbb]", clusters[0].Members)
	}
	if !reflect.DeepEqual(clusters[1].Members, []string{"ccc", "ddd"}) {
		t.Errorf("cluster 1 members = %v, expected [ccc ddd]", clusters[1].Members)
	}
	// The themeless item forms its own cluster instead of joining one.
	if !reflect.DeepEqual(clusters[2].Members, []string{"eee"}) {
		t.Errorf("cluster 2 members = %v, expected [eee]", clusters[2].Members)
	}

	if !reflect.DeepEqual(clusters[0].Terms, []string{"crash", "login", "mobile"}) {
		t.Errorf("cluster 0 terms = %v, expected sorted union", clusters[0].Terms)
	}
	if !clusters[0].Earliest.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("cluster 0 earliest = %v, expected first member timestamp", clusters[0].Earliest)
	}
}

func TestClusterByJaccard_DeterministicAcrossInputOrder(t *testing.T) {
	items := clusteringFixture()

	reference := ClusterByJaccard(items, 0.5)

	// Reverse and interleave the input; the output must not change.
	permutations := [][]ClusterItem{
		{items[4], items[3], items[2], items[1], items[0]},
		{items[2], items[0], items[4], items[1], items[3]},
	}
	for i, perm := range permutations {
		got := ClusterByJaccard(perm, 0.5)
		if !reflect.DeepEqual(got, reference) {
			t.Errorf("permutation %d changed output:\ngot      %+v\nexpected %+v", i, got, reference)
		}
	}
}

func TestClusterByJaccard_TimestampTieBreaksByUUID(t *testing.T) {
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	items := []ClusterItem{
		{FeedbackUUID: "zzz", Terms: []string{"export"}, Timestamp: at},
		{FeedbackUUID: "aaa", Terms: []string{"export"}, Timestamp: at},
	}

	clusters := ClusterByJaccard(items, 0.5)
	if len(clusters) != 1 {
		t.Fatalf("got %d clusters, expected 1", len(clusters))
	}
	if !reflect.DeepEqual(clusters[0].Members, []string{"aaa", "zzz"}) {
		t.Errorf("members = %v, expected uuid order on equal timestamps", clusters[0].Members)
	}
}

func TestRepresentativeLabel(t *testing.T) {
	tests := []struct {
		name     string
		freq     map[string]int
		expected string
	}{
		{name: "most frequent wins", freq: map[string]int{"login": 3, "crash": 2}, expected: "login"},
		{name: "tie broken lexicographically", freq: map[string]int{"crash": 2, "login": 2}, expected: "crash"},
		{name: "empty map", freq: map[string]int{}, expected: "untitled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := representativeLabel(tt.freq); got != tt.expected {
				t.Errorf("representativeLabel = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestFoldTerms(t *testing.T) {
	got := foldTerms([]string{" Login ", "login", "CRASH", "", "crash"})
	expected := []string{"login", "crash"}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("foldTerms = %v, expected %v", got, expected)
	}
}
