package rag

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemoryStore is an in-process VectorStore using brute-force cosine search.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]StoredVectorEntry
}

var _ VectorStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]StoredVectorEntry)}
}

// Upsert validates the whole batch before touching the map, so a rejected
// batch leaves the store unchanged.
func (s *MemoryStore) Upsert(_ context.Context, entries []StoredVectorEntry) error {
	for _, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("%w: entry without id", ErrInvalidInput)
		}
		if len(e.Embedding) == 0 {
			return fmt.Errorf("%w: entry %q has no embedding", ErrInvalidInput, e.ID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		e.Embedding = append([]float32(nil), e.Embedding...)
		s.entries[e.ID] = e
	}
	return nil
}

func (s *MemoryStore) Query(_ context.Context, embedding []float32, topK int) ([]QueryResultItem, error) {
	if topK <= 0 {
		return []QueryResultItem{}, nil
	}

	s.mu.RLock()
	items := make([]QueryResultItem, 0, len(s.entries))
	for _, e := range s.entries {
		items = append(items, QueryResultItem{
			Text:     e.Text,
			Score:    CosineSimilarity(embedding, e.Embedding),
			Metadata: e.Metadata,
		})
	}
	s.mu.RUnlock()

	SortResults(items)
	if len(items) > topK {
		items = items[:topK]
	}
	return items, nil
}

func (s *MemoryStore) DeleteBySource(_ context.Context, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if e.Metadata.SourceID == sourceID {
			delete(s.entries, id)
		}
	}
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.entries)
	return nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// EntriesForSource returns the entries of one source ordered by position.
func (s *MemoryStore) EntriesForSource(sourceID string) []StoredVectorEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StoredVectorEntry, 0)
	for _, e := range s.entries {
		if e.Metadata.SourceID == sourceID {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b StoredVectorEntry) int {
		return cmp.Compare(a.Metadata.Position, b.Metadata.Position)
	})
	return out
}
