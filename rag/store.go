package rag

import (
	"cmp"
	"context"
	"slices"
	"strconv"
)

// EntryMetadata is the metadata stored alongside every vector entry.
type EntryMetadata struct {
	SourceID string `json:"source_id"`
	Position int    `json:"position"`
}

// StoredVectorEntry is one embedded chunk as persisted by a VectorStore.
type StoredVectorEntry struct {
	ID        string
	Embedding []float32
	Text      string
	Metadata  EntryMetadata
}

// QueryResultItem is one nearest-neighbour hit.
type QueryResultItem struct {
	Text     string        `json:"text"`
	Score    float64       `json:"score"`
	Metadata EntryMetadata `json:"metadata"`
}

// VectorStore persists embedded chunks and answers similarity queries.
//
// Upsert must make either all or none of its entries visible. Query returns
// at most topK items ordered by SortResults. Any failure to reach the
// backing store is reported as ErrStoreUnavailable.
type VectorStore interface {
	Upsert(ctx context.Context, entries []StoredVectorEntry) error
	Query(ctx context.Context, embedding []float32, topK int) ([]QueryResultItem, error)
	DeleteBySource(ctx context.Context, sourceID string) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// EntryID derives the stored entry id for a chunk.
func EntryID(sourceID string, position int) string {
	return sourceID + "_" + strconv.Itoa(position)
}

// NewEntry converts an embedded chunk into its stored form.
func NewEntry(c Chunk) StoredVectorEntry {
	return StoredVectorEntry{
		ID:        EntryID(c.SourceID, c.Position),
		Embedding: c.Embedding,
		Text:      c.Text,
		Metadata:  EntryMetadata{SourceID: c.SourceID, Position: c.Position},
	}
}

// SortResults orders items by descending score, then ascending position,
// then ascending source id.
func SortResults(items []QueryResultItem) {
	slices.SortStableFunc(items, compareResults)
}

func compareResults(a, b QueryResultItem) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Metadata.Position, b.Metadata.Position); c != 0 {
		return c
	}
	return cmp.Compare(a.Metadata.SourceID, b.Metadata.SourceID)
}
