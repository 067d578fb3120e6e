package services

import (
	"context"
	"hash/fnv"
	"strings"
	"testing"
	"time"
	"unicode"

	"github.com/stretchr/testify/require"

	"github/itish2003/admissions/rag"
)

// wordEmbedder hashes lower-cased words into a fixed number of buckets plus a
// constant component, so texts sharing words have a positive similarity.
var wordEmbedder = rag.EmbedderFunc(func(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = wordVector(t)
	}
	return out, nil
})

func wordVector(text string) []float32 {
	v := make([]float32, 65)
	v[64] = 0.01
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%64]++
	}
	return v
}

func newTestPipeline(t *testing.T, threshold float64) (*rag.Pipeline, *rag.MemoryStore) {
	t.Helper()
	store := rag.NewMemoryStore()
	p, err := rag.NewPipeline(rag.Config{
		ChunkMaxSize:       200,
		ChunkOverlap:       20,
		TopK:               5,
		RelevanceThreshold: threshold,
		MaxContextLength:   2000,
		EmbeddingModel:     "words",
		CallTimeout:        2 * time.Second,
	}, wordEmbedder, store, nil)
	require.NoError(t, err)
	return p, store
}
