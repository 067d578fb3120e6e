package rag

import (
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Origin tells where a source came from.
type Origin string

const (
	OriginUpload Origin = "upload"
	OriginCrawl  Origin = "crawl"
)

// ParseOrigin accepts "upload" or "crawl". An empty string means upload.
func ParseOrigin(s string) (Origin, error) {
	switch Origin(s) {
	case "", OriginUpload:
		return OriginUpload, nil
	case OriginCrawl:
		return OriginCrawl, nil
	default:
		return "", fmt.Errorf("%w: unknown origin %q", ErrInvalidInput, s)
	}
}

// SourceRecord describes one successfully ingested source.
type SourceRecord struct {
	SourceID    string    `json:"source_id"`
	Origin      Origin    `json:"origin"`
	RawText     string    `json:"raw_text"`
	ContentHash string    `json:"content_hash"`
	ChunkCount  int       `json:"chunk_count"`
	IngestedAt  time.Time `json:"ingested_at"`
}

// SourceCatalog keeps the record of every live source.
type SourceCatalog interface {
	PutSource(ctx context.Context, rec SourceRecord) error
	// GetSource returns ErrSourceNotFound for unknown ids.
	GetSource(ctx context.Context, sourceID string) (*SourceRecord, error)
	ListSources(ctx context.Context) ([]SourceRecord, error)
	// DeleteSource is a no-op for unknown ids.
	DeleteSource(ctx context.Context, sourceID string) error
	ClearSources(ctx context.Context) error
}

// ContentHash returns the hex sha256 of text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// MemoryCatalog is a SourceCatalog held in memory.
type MemoryCatalog struct {
	mu      sync.RWMutex
	records map[string]SourceRecord
}

var _ SourceCatalog = (*MemoryCatalog)(nil)

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{records: make(map[string]SourceRecord)}
}

func (c *MemoryCatalog) PutSource(_ context.Context, rec SourceRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[rec.SourceID] = rec
	return nil
}

func (c *MemoryCatalog) GetSource(_ context.Context, sourceID string) (*SourceRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[sourceID]
	if !ok {
		return nil, ErrSourceNotFound
	}
	return &rec, nil
}

func (c *MemoryCatalog) ListSources(_ context.Context) ([]SourceRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]SourceRecord, 0, len(c.records))
	for _, rec := range c.records {
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b SourceRecord) int { return cmp.Compare(a.SourceID, b.SourceID) })
	return out, nil
}

func (c *MemoryCatalog) DeleteSource(_ context.Context, sourceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, sourceID)
	return nil
}

func (c *MemoryCatalog) ClearSources(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.records)
	return nil
}
