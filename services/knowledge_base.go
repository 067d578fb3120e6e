package services

import (
	"context"

	"github/itish2003/admissions/rag"
)

// KnowledgeBase is the part of rag.Pipeline that ingestion sources and the
// assistant depend on.
type KnowledgeBase interface {
	Ingest(ctx context.Context, doc rag.Document) (*rag.IngestResult, error)
	Query(ctx context.Context, text string) (*rag.RetrievalResult, error)
	DeleteSource(ctx context.Context, sourceID string) error
	Source(ctx context.Context, sourceID string) (*rag.SourceRecord, error)
	Sources(ctx context.Context) ([]rag.SourceRecord, error)
}

var _ KnowledgeBase = (*rag.Pipeline)(nil)
