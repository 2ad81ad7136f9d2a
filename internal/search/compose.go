package search

import "sort"

// Compose orders scored candidates for display. Sales count is the primary
// key with similarity as the tie-break; when similarity is unavailable for
// the batch, sales alone decides. The sort is stable, so candidates with no
// usable signal keep their incoming order. Advisory ordering only — nothing
// is filtered here.
func Compose(results []ScoredProduct) []ScoredProduct {
	hasSimilarity := false
	for _, r := range results {
		if r.SimilarityScore != nil {
			hasSimilarity = true
			break
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Sold != results[j].Sold {
			return results[i].Sold > results[j].Sold
		}
		if !hasSimilarity {
			return false
		}
		return similarityOf(results[i]) > similarityOf(results[j])
	})

	return results
}

func similarityOf(r ScoredProduct) float64 {
	if r.SimilarityScore == nil {
		return 0
	}
	return *r.SimilarityScore
}
