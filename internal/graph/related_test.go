package graph

import (
	"math"
	"testing"

	"memorypal/keeper/internal/db"
)

func TestRelatedPages_Embedding(t *testing.T) {
	active := &db.Page{ID: "a", URL: "https://a", Embedding: []float32{1, 0}}
	pages := []db.Page{
		*active,
		{ID: "same", URL: "https://same", Embedding: []float32{1, 0}},
		{ID: "orth", URL: "https://orth", Embedding: []float32{0, 1}},
		{ID: "opp", URL: "https://opp", Embedding: []float32{-1, 0}},
		{ID: "none", URL: "https://none"},
	}

	res := RelatedPages(active, pages, 0.5, 0)
	if res.Method != MethodEmbedding || res.Scored != 3 {
		t.Fatalf("method=%s scored=%d", res.Method, res.Scored)
	}
	if len(res.Pages) != 2 || res.Pages[0].ID != "same" || res.Pages[1].ID != "orth" {
		t.Fatalf("pages = %+v", res.Pages)
	}
	if math.Abs(res.Pages[0].Similarity-1) > 1e-9 || math.Abs(res.Pages[1].Similarity-0.5) > 1e-9 {
		t.Errorf("similarities = %v, %v", res.Pages[0].Similarity, res.Pages[1].Similarity)
	}
	if res.Pages[1].Title != "https://orth" {
		t.Errorf("title should fall back to url, got %q", res.Pages[1].Title)
	}

	limited := RelatedPages(active, pages, 0, 1)
	if len(limited.Pages) != 1 {
		t.Errorf("limit ignored: %d pages", len(limited.Pages))
	}
}

func TestRelatedPages_KeywordsFallback(t *testing.T) {
	active := &db.Page{ID: "a", URL: "https://a", Title: "Graph theory", Summary: "Notes on graph coloring"}
	pages := []db.Page{
		*active,
		{ID: "b", URL: "https://b", Title: "Graph coloring", Summary: "theory of graph coloring"},
		{ID: "c", URL: "https://c", Title: "Cooking", Summary: "pasta recipes"},
		{ID: "d", Title: "No url"},
	}
	res := RelatedPages(active, pages, 0.1, 0)
	if res.Method != MethodKeywords || res.Scored != 2 {
		t.Fatalf("method=%s scored=%d", res.Method, res.Scored)
	}
	// active {graph, theory, notes, coloring}; b {graph, coloring, theory}
	if len(res.Pages) != 1 || res.Pages[0].ID != "b" || math.Abs(res.Pages[0].Similarity-0.75) > 1e-9 {
		t.Errorf("pages = %+v", res.Pages)
	}
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "anything here", 0},
		{"alpha beta", "alpha beta", 1},
		{"alpha beta", "gamma delta", 0},
		{"alpha beta on", "beta gamma to", 1.0 / 3},
	}
	for _, tt := range tests {
		if got := jaccard(keywordSet(tt.a), keywordSet(tt.b)); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("jaccard(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
