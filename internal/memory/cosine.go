package memory

import (
	"math"
	"sort"

	"github.com/easeaico/mirror-clarity/internal/types"
)

// CosineSimilarity returns dot(a,b)/(|a||b|), or 0 for empty, mismatched or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Rank scores userID's records against query and returns at most topN, most
// similar first. Equal similarity prefers the newer record, then the smaller id.
// Records owned by other users are ignored.
func Rank(records []types.MemoryRecord, userID string, query []float32, topN int) []types.ScoredMemory {
	scored := make([]types.ScoredMemory, 0, len(records))
	for _, rec := range records {
		if rec.UserID != userID {
			continue
		}
		scored = append(scored, types.ScoredMemory{
			MemoryRecord: rec,
			Similarity:   CosineSimilarity(rec.Embedding, query),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	if topN >= 0 && len(scored) > topN {
		scored = scored[:topN]
	}
	return scored
}
