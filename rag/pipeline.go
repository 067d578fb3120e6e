package rag

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github/itish2003/admissions/logger"
)

// Config is the immutable configuration of one Pipeline.
type Config struct {
	ChunkMaxSize       int
	ChunkOverlap       int
	TopK               int
	RelevanceThreshold float64
	MaxContextLength   int
	EmbeddingModel     string
	CallTimeout        time.Duration
}

func (c Config) Validate() error {
	if _, err := NewChunker(c.ChunkMaxSize, c.ChunkOverlap); err != nil {
		return err
	}
	if c.TopK < 1 {
		return fmt.Errorf("%w: top_k must be at least 1, got %d", ErrInvalidInput, c.TopK)
	}
	if c.MaxContextLength < 1 {
		return fmt.Errorf("%w: max_context_length must be at least 1, got %d", ErrInvalidInput, c.MaxContextLength)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("%w: call timeout must be positive, got %s", ErrInvalidInput, c.CallTimeout)
	}
	return nil
}

// Document is raw text handed to the pipeline by an ingestion source.
// ContentHash is optional; when empty the hash of Text is recorded.
type Document struct {
	SourceID    string
	Origin      Origin
	Text        string
	ContentHash string
}

// IngestResult describes a completed ingestion.
type IngestResult struct {
	SourceID string         `json:"source_id"`
	Chunks   int            `json:"chunks"`
	State    IngestionState `json:"state"`
}

// RetrievalResult is the outcome of the query flow. UsedSources is sorted
// and never nil.
type RetrievalResult struct {
	Context     string            `json:"context"`
	UsedSources []string          `json:"used_sources"`
	Items       []QueryResultItem `json:"items"`
}

// Pipeline runs ingestion (chunk, embed, index) and retrieval (embed, search,
// filter, assemble) over one embedder, one vector store and one catalog.
type Pipeline struct {
	cfg      Config
	chunker  *Chunker
	embedder Embedder
	store    VectorStore
	catalog  SourceCatalog

	// ingestions hold the read side; Clear holds the write side.
	maintenance sync.RWMutex
	sources     *keyedMutex

	now func() time.Time
}

// NewPipeline builds a pipeline. A nil catalog is replaced by an in-memory one.
func NewPipeline(cfg Config, embedder Embedder, store VectorStore, catalog SourceCatalog) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if embedder == nil || store == nil {
		return nil, errors.New("pipeline needs an embedder and a vector store")
	}
	if catalog == nil {
		catalog = NewMemoryCatalog()
	}
	chunker, err := NewChunker(cfg.ChunkMaxSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:      cfg,
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		catalog:  catalog,
		sources:  newKeyedMutex(),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (p *Pipeline) Config() Config { return p.cfg }

// Ingest indexes doc, replacing any earlier version of the same source.
//
// All chunks are embedded before the store is touched, so an embedding
// failure leaves the previous version in place. Once writing starts the
// source either ends up with exactly the new chunks or with none at all.
// Every failure is returned as *IngestionFailedError.
func (p *Pipeline) Ingest(ctx context.Context, doc Document) (*IngestResult, error) {
	state := StateReceived
	log := logger.WithFields(logrus.Fields{"source_id": doc.SourceID, "origin": doc.Origin})
	log.WithField("state", state).Debug("Ingestion received")

	fail := func(cause error) (*IngestResult, error) {
		log.WithFields(logrus.Fields{"state": StateFailed, "stage": state}).WithError(cause).Error("Ingestion failed")
		return nil, &IngestionFailedError{SourceID: doc.SourceID, Stage: state, Cause: cause}
	}

	if strings.TrimSpace(doc.SourceID) == "" {
		return fail(fmt.Errorf("%w: source id is required", ErrInvalidInput))
	}
	origin, err := ParseOrigin(string(doc.Origin))
	if err != nil {
		return fail(err)
	}

	p.maintenance.RLock()
	defer p.maintenance.RUnlock()
	unlock := p.sources.Lock(doc.SourceID)
	defer unlock()

	chunks := slices.Collect(p.chunker.Split(doc.SourceID, doc.Text))
	if len(chunks) == 0 {
		return fail(ErrEmptyDocument)
	}
	state = StateChunked
	log.WithFields(logrus.Fields{"state": state, "chunks": len(chunks)}).Debug("Document chunked")

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embed(ctx, texts)
	if err != nil {
		return fail(err)
	}
	entries := make([]StoredVectorEntry, len(chunks))
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
		entries[i] = NewEntry(chunks[i])
	}
	state = StateEmbedded
	log.WithField("state", state).Debug("Chunks embedded")

	if err := p.withStore(ctx, func(ctx context.Context) error {
		return p.store.DeleteBySource(ctx, doc.SourceID)
	}); err != nil {
		return fail(err)
	}
	if err := p.withStore(ctx, func(ctx context.Context) error {
		return p.store.Upsert(ctx, entries)
	}); err != nil {
		p.rollback(ctx, doc.SourceID, log)
		return fail(err)
	}

	hash := doc.ContentHash
	if hash == "" {
		hash = ContentHash(doc.Text)
	}
	rec := SourceRecord{
		SourceID:    doc.SourceID,
		Origin:      origin,
		RawText:     doc.Text,
		ContentHash: hash,
		ChunkCount:  len(chunks),
		IngestedAt:  p.now(),
	}
	if err := p.catalog.PutSource(ctx, rec); err != nil {
		p.rollback(ctx, doc.SourceID, log)
		return fail(fmt.Errorf("recording source: %w", err))
	}

	state = StateIndexed
	log.WithFields(logrus.Fields{"state": state, "chunks": len(chunks)}).Info("Source indexed")
	return &IngestResult{SourceID: doc.SourceID, Chunks: len(chunks), State: state}, nil
}

// rollback removes whatever part of a source reached the store. It runs on a
// context detached from the caller's cancellation.
func (p *Pipeline) rollback(ctx context.Context, sourceID string, log *logrus.Entry) {
	ctx = context.WithoutCancel(ctx)
	if err := p.withStore(ctx, func(ctx context.Context) error {
		return p.store.DeleteBySource(ctx, sourceID)
	}); err != nil {
		log.WithError(err).Warn("Rollback of partially indexed source failed")
	}
	if err := p.catalog.DeleteSource(ctx, sourceID); err != nil {
		log.WithError(err).Warn("Rollback of source record failed")
	}
}

// Query embeds text, searches the store and assembles the admitted items
// into a bounded context. Embedding and store failures are returned as
// *RetrievalFailedError. No admitted item is not an error: the context is
// empty and UsedSources has no entries.
func (p *Pipeline) Query(ctx context.Context, text string) (*RetrievalResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &RetrievalFailedError{Cause: fmt.Errorf("%w: query is empty", ErrInvalidInput)}
	}

	vectors, err := p.embed(ctx, []string{text})
	if err != nil {
		return nil, &RetrievalFailedError{Cause: err}
	}

	var hits []QueryResultItem
	if err := p.withStore(ctx, func(ctx context.Context) error {
		var qerr error
		hits, qerr = p.store.Query(ctx, vectors[0], p.cfg.TopK)
		return qerr
	}); err != nil {
		return nil, &RetrievalFailedError{Cause: err}
	}

	admitted := make([]QueryResultItem, 0, len(hits))
	for _, h := range hits {
		if Admit(h.Score, p.cfg.RelevanceThreshold) {
			admitted = append(admitted, h)
		}
	}

	contextText, used := AssembleContext(admitted, p.cfg.MaxContextLength)
	if used == nil {
		used = []QueryResultItem{}
	}
	logger.WithFields(logrus.Fields{
		"hits":     len(hits),
		"admitted": len(admitted),
		"used":     len(used),
	}).Debug("Query answered")

	return &RetrievalResult{
		Context:     contextText,
		UsedSources: UsedSources(used),
		Items:       used,
	}, nil
}

// DeleteSource removes a source and all its entries. Unknown ids are a no-op.
func (p *Pipeline) DeleteSource(ctx context.Context, sourceID string) error {
	p.maintenance.RLock()
	defer p.maintenance.RUnlock()
	unlock := p.sources.Lock(sourceID)
	defer unlock()

	if err := p.withStore(ctx, func(ctx context.Context) error {
		return p.store.DeleteBySource(ctx, sourceID)
	}); err != nil {
		return err
	}
	if err := p.catalog.DeleteSource(ctx, sourceID); err != nil {
		return fmt.Errorf("deleting source record: %w", err)
	}
	logger.Info("Source deleted", "source_id", sourceID)
	return nil
}

// Clear empties the vector store and the catalog. It waits for in-flight
// ingestions to finish first.
func (p *Pipeline) Clear(ctx context.Context) error {
	p.maintenance.Lock()
	defer p.maintenance.Unlock()

	if err := p.withStore(ctx, p.store.Clear); err != nil {
		return err
	}
	if err := p.catalog.ClearSources(ctx); err != nil {
		return fmt.Errorf("clearing source records: %w", err)
	}
	logger.Info("Knowledge base cleared")
	return nil
}

// Source returns the record of one source or ErrSourceNotFound.
func (p *Pipeline) Source(ctx context.Context, sourceID string) (*SourceRecord, error) {
	return p.catalog.GetSource(ctx, sourceID)
}

// Sources lists every live source ordered by id.
func (p *Pipeline) Sources(ctx context.Context) ([]SourceRecord, error) {
	return p.catalog.ListSources(ctx)
}

// EntryCount reports how many vector entries the store holds.
func (p *Pipeline) EntryCount(ctx context.Context) (int, error) {
	var n int
	err := p.withStore(ctx, func(ctx context.Context) error {
		var cerr error
		n, cerr = p.store.Count(ctx)
		return cerr
	})
	return n, err
}

// embedBatchSize caps how many texts go to the embedder in one call. Each
// call gets its own CallTimeout.
const embedBatchSize = 32

// embed embeds texts in batches of embedBatchSize and checks that every
// vector shares one dimension.
func (p *Pipeline) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for batch := range slices.Chunk(texts, embedBatchSize) {
		v, err := p.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, v...)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: no vectors for %d inputs", ErrEmbeddingUnavailable, len(texts))
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d", ErrEmbeddingUnavailable, i, len(v), dim)
		}
	}
	return vectors, nil
}

// embedBatch runs the embedder in its own goroutine so a client that ignores
// its context still cannot hold the caller past the call timeout. Embedding
// has no side effects, so abandoning a late call is safe.
func (p *Pipeline) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	defer cancel()

	type result struct {
		vectors [][]float32
		err     error
	}
	done := make(chan result, 1)
	go func() {
		v, err := p.embedder.Embed(ctx, texts)
		done <- result{v, err}
	}()

	var vectors [][]float32
	var err error
	select {
	case r := <-done:
		vectors, err = r.vectors, r.err
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		return nil, classify(err, ErrEmbeddingUnavailable)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs", ErrEmbeddingUnavailable, len(vectors), len(texts))
	}
	return vectors, nil
}

// withStore bounds a store call by the call timeout. Unlike embed it waits for
// op to return, so a write can never land after the pipeline gave up on it.
func (p *Pipeline) withStore(ctx context.Context, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	defer cancel()

	err := op(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInvalidInput) {
		return err
	}
	return classify(err, ErrStoreUnavailable)
}
