package vectorstore

import (
	"math"
	"sort"

	"apiagent/internal/domain"
)

// Cosine returns the cosine similarity of a and b, or 0 when the lengths
// differ or either vector is zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Rank orders results by descending score, then ascending chunk index, and
// truncates to topK. A non-positive topK keeps everything.
func Rank(results []domain.SearchResult, topK int) []domain.SearchResult {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.Index < results[j].Chunk.Index
	})
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results
}

// Score computes the similarity of every chunk against vector and ranks them.
func Score(chunks []domain.Chunk, vector []float32, topK int) []domain.SearchResult {
	results := make([]domain.SearchResult, 0, len(chunks))
	for _, ch := range chunks {
		results = append(results, domain.SearchResult{Chunk: ch, Score: Cosine(vector, ch.Embedding)})
	}
	return Rank(results, topK)
}
