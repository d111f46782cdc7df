package memory

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashEmbedder is a deterministic offline embedder. Each lowercase word is
// hashed into a signed bucket, so texts sharing words point the same way.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a HashEmbedder with the given dimensions.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = defaultHashDims
	}
	return &HashEmbedder{dimensions: dimensions}
}

func (e *HashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func (e *HashEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func (e *HashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, texts, e.EmbedDocument)
}

// Dimensions returns the embedding size.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *HashEmbedder) embed(text string) []float32 {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len(words) == 0 {
		// Emoji or punctuation only: hash each visible rune instead.
		for _, r := range text {
			if !unicode.IsSpace(r) {
				words = append(words, string(r))
			}
		}
	}
	if len(words) == 0 {
		return nil
	}

	vec := make([]float32, e.dimensions)
	for _, word := range words {
		h := fnv.New64a()
		h.Write([]byte(word))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dimensions))
		if sum>>63 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}
	return normalize(vec)
}

func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
