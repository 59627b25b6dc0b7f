package db

import (
	"context"
	"testing"
)

func TestBuildFTSQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"stopword removal", "Add the flag to a function for parsing", `"Add" OR "flag" OR "function" OR "parsing"`},
		{"short words", "go do run fast", `"run" OR "fast"`},
		{"punctuation trimming", "parse_url() function, (index.html)", `"parse_url" OR "function" OR "index.html"`},
		{"all stopwords", "the a an in on at", ""},
		{"mixed case", "The AND From THIS function", `"function"`},
		{"empty", "", ""},
		{"embedded quote", `say"hello`, `"say""hello"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildFTSQuery(tt.query); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSearchPages(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	mustUpsertPage(t, d, PagePatch{
		ID:      "p1",
		URL:     Ptr("https://a.example"),
		Title:   Ptr("Reinforcement learning notes"),
		Content: Ptr("Policies, rewards and value functions."),
	})
	mustUpsertPage(t, d, PagePatch{
		ID:      "p2",
		URL:     Ptr("https://b.example"),
		Title:   Ptr("Sourdough baking"),
		Content: Ptr("Flour, water, salt."),
	})

	got, err := d.SearchPages(ctx, "rewards for the policy", 10)
	if err != nil {
		t.Fatalf("SearchPages: %v", err)
	}
	if len(got) != 1 || got[0].ID != "p1" {
		t.Fatalf("expected p1, got %+v", got)
	}

	// Updated content is reindexed by the FTS trigger.
	mustUpsertPage(t, d, PagePatch{ID: "p2", Content: Ptr("rewards of patience")})
	got, err = d.SearchPages(ctx, "rewards", 10)
	if err != nil {
		t.Fatalf("SearchPages: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 results after update, got %d", len(got))
	}

	got, err = d.SearchPages(ctx, "the a an", 10)
	if err != nil {
		t.Fatalf("SearchPages: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no results for stopword-only query, got %d", len(got))
	}
}
