package graph

import (
	"sort"

	"memorypal/keeper/internal/db"
	"memorypal/keeper/internal/embedding"
)

// SimilarPage is a page with its similarity score to a target embedding.
type SimilarPage struct {
	ID         string
	Similarity float64
}

// FindSimilar finds the top-N most similar pages to a target embedding.
// Excludes the page with excludeID. Only returns pages with similarity >= minSimilarity.
// Results are sorted by descending similarity; ties keep candidate order.
func FindSimilar(target []float32, candidates []db.PageEmbedding, excludeID string, topN int, minSimilarity float64) []SimilarPage {
	var results []SimilarPage
	for _, c := range candidates {
		if c.ID == excludeID {
			continue
		}
		sim := embedding.CosineSimilarity(target, c.Embedding)
		if sim >= minSimilarity {
			results = append(results, SimilarPage{
				ID:         c.ID,
				Similarity: sim,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}
	return results
}
