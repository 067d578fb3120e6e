package rag

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode"
)

// letterEmbedder maps text to letter frequencies plus a constant component,
// which keeps every vector non-zero and makes equal texts embed equally.
type letterEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  error
}

func (e *letterEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	fail := e.fail
	e.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 27)
		v[26] = 1
		for _, r := range strings.ToLower(t) {
			if r >= 'a' && r <= 'z' {
				v[r-'a']++
			} else if unicode.IsLetter(r) {
				v[25]++
			}
		}
		out[i] = v
	}
	return out, nil
}

func (e *letterEmbedder) setFail(err error) {
	e.mu.Lock()
	e.fail = err
	e.mu.Unlock()
}

// tableEmbedder returns fixed vectors for known texts and a fallback for
// everything else.
type tableEmbedder struct {
	vectors  map[string][]float32
	fallback []float32
}

func (e *tableEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := e.vectors[t]; ok {
			out[i] = v
			continue
		}
		out[i] = e.fallback
	}
	return out, nil
}

// flakyStore wraps a MemoryStore and fails selected operations.
type flakyStore struct {
	*MemoryStore
	mu         sync.Mutex
	failUpsert bool
	failQuery  bool
	partial    bool
}

var errBackendDown = errors.New("connection refused")

func (s *flakyStore) Upsert(ctx context.Context, entries []StoredVectorEntry) error {
	s.mu.Lock()
	fail, partial := s.failUpsert, s.partial
	s.mu.Unlock()
	if fail {
		if partial && len(entries) > 0 {
			_ = s.MemoryStore.Upsert(ctx, entries[:1])
		}
		return errBackendDown
	}
	return s.MemoryStore.Upsert(ctx, entries)
}

func (s *flakyStore) Query(ctx context.Context, embedding []float32, topK int) ([]QueryResultItem, error) {
	s.mu.Lock()
	fail := s.failQuery
	s.mu.Unlock()
	if fail {
		return nil, errBackendDown
	}
	return s.MemoryStore.Query(ctx, embedding, topK)
}

// failingCatalog refuses every write.
type failingCatalog struct {
	*MemoryCatalog
}

func (c *failingCatalog) PutSource(context.Context, SourceRecord) error {
	return errors.New("disk full")
}

func testConfig() Config {
	return Config{
		ChunkMaxSize:       10,
		ChunkOverlap:       0,
		TopK:               5,
		RelevanceThreshold: 0,
		MaxContextLength:   1000,
		EmbeddingModel:     "letters",
		CallTimeout:        time.Second,
	}
}
