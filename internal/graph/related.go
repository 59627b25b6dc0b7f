package graph

import (
	"sort"

	"memorypal/keeper/internal/db"
	"memorypal/keeper/internal/embedding"
)

// Methods used to rank related pages.
const (
	MethodEmbedding = "embedding"
	MethodKeywords  = "keywords"
)

// RelatedPage is one ranked candidate for an active page.
type RelatedPage struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Summary    string  `json:"summary"`
	Timestamp  int64   `json:"timestamp"`
	Similarity float64 `json:"similarity"` // in [0, 1]
	Notes      int     `json:"notes"`
}

// RelatedResult holds the pages at or above the threshold and how many
// candidates were scored in total.
type RelatedResult struct {
	Method string        `json:"method"`
	Scored int           `json:"scored"`
	Pages  []RelatedPage `json:"pages"`
}

// RelatedPages ranks pages against active. When active has an embedding,
// pages with embeddings are scored by (cos+1)/2; otherwise every page with a
// url is scored by Jaccard overlap of title and summary keywords.
func RelatedPages(active *db.Page, pages []db.Page, threshold float64, limit int) RelatedResult {
	var res RelatedResult
	var scored []RelatedPage

	if len(active.Embedding) > 0 {
		res.Method = MethodEmbedding
		for _, p := range pages {
			if p.ID == active.ID || len(p.Embedding) == 0 {
				continue
			}
			sim := (embedding.CosineSimilarity(active.Embedding, p.Embedding) + 1) / 2
			scored = append(scored, relatedFrom(p, clamp(sim, 0, 1)))
		}
	} else {
		res.Method = MethodKeywords
		activeTokens := keywordSet(active.Title + " " + active.Summary)
		for _, p := range pages {
			if p.URL == "" || p.URL == active.URL {
				continue
			}
			sim := jaccard(activeTokens, keywordSet(p.Title+" "+p.Summary))
			scored = append(scored, relatedFrom(p, sim))
		}
	}

	res.Scored = len(scored)
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	for _, r := range scored {
		if r.Similarity < threshold {
			break
		}
		res.Pages = append(res.Pages, r)
		if limit > 0 && len(res.Pages) == limit {
			break
		}
	}
	return res
}

func relatedFrom(p db.Page, sim float64) RelatedPage {
	title := p.Title
	if title == "" {
		title = p.URL
	}
	return RelatedPage{
		ID:         p.ID,
		Title:      title,
		URL:        p.URL,
		Summary:    p.Summary,
		Timestamp:  p.Timestamp,
		Similarity: sim,
		Notes:      len(p.Notes),
	}
}

// keywordSet is the set of tokens longer than two characters.
func keywordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range embedding.Tokenize(text) {
		if len(tok) > 2 {
			set[tok] = true
		}
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if b[tok] {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}
