package retrieval

import (
	"math"
	"sort"
)

// SimilarityMatch pairs a chunk id with its cosine similarity to a query.
type SimilarityMatch struct {
	Score   float64
	ChunkID string
}

// CosineSimilarity calculates cosine similarity between two vectors.
// Zero or mismatched-length vectors score 0; callers that need NaN
// semantics for zero vectors must pre-filter them.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	normA = math.Sqrt(normA)
	normB = math.Sqrt(normB)
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (normA * normB)
}

// TopK ranks the candidates by descending cosine similarity to the query
// and returns the best k. Candidates are iterated in the order of ids;
// ids absent from embeddings are skipped. The sort is stable, so
// equal-score candidates keep the caller's id order, which makes the
// ranking deterministic.
func TopK(query []float32, ids []string, embeddings map[string][]float32, k int) []SimilarityMatch {
	if k <= 0 || len(ids) == 0 || len(embeddings) == 0 {
		return nil
	}

	matches := make([]SimilarityMatch, 0, len(ids))
	for _, id := range ids {
		embedding, ok := embeddings[id]
		if !ok {
			continue
		}
		matches = append(matches, SimilarityMatch{
			Score:   CosineSimilarity(query, embedding),
			ChunkID: id,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if k < len(matches) {
		matches = matches[:k]
	}
	return matches
}
