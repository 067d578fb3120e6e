package rag

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T, cfg Config, emb Embedder, store VectorStore, catalog SourceCatalog) *Pipeline {
	t.Helper()
	p, err := NewPipeline(cfg, emb, store, catalog)
	require.NoError(t, err)
	return p
}

func TestNewPipelineValidatesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.ChunkOverlap = cfg.ChunkMaxSize
	_, err := NewPipeline(cfg, &letterEmbedder{}, NewMemoryStore(), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	cfg = testConfig()
	cfg.TopK = 0
	_, err = NewPipeline(cfg, &letterEmbedder{}, NewMemoryStore(), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewPipeline(testConfig(), nil, NewMemoryStore(), nil)
	assert.Error(t, err)
}

func TestReingestReplacesChunks(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p := newTestPipeline(t, testConfig(), &letterEmbedder{}, store, nil)

	res, err := p.Ingest(ctx, Document{SourceID: "brochure.pdf", Origin: OriginUpload, Text: strings.Repeat("x", 30)})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, StateIndexed, res.State)
	assert.Len(t, store.EntriesForSource("brochure.pdf"), 3)

	res, err = p.Ingest(ctx, Document{SourceID: "brochure.pdf", Origin: OriginUpload, Text: strings.Repeat("y", 20)})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Chunks)

	entries := store.EntriesForSource("brochure.pdf")
	require.Len(t, entries, 2)
	for i, e := range entries {
		assert.Equal(t, EntryID("brochure.pdf", i), e.ID)
		assert.Equal(t, strings.Repeat("y", 10), e.Text)
	}

	rec, err := p.Source(ctx, "brochure.pdf")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.ChunkCount)
	assert.Equal(t, strings.Repeat("y", 20), rec.RawText)
	assert.Equal(t, ContentHash(strings.Repeat("y", 20)), rec.ContentHash)
	assert.Equal(t, OriginUpload, rec.Origin)
}

func TestEndToEndRetrievesClosestChunk(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.ChunkMaxSize = 300
	cfg.ChunkOverlap = 50
	cfg.TopK = 1
	cfg.RelevanceThreshold = 0.5

	text := sampleText(1000)
	chunker, err := NewChunker(300, 50)
	require.NoError(t, err)
	chunks := slices.Collect(chunker.Split("programs.pdf", text))
	require.Len(t, chunks, 4)

	emb := &tableEmbedder{
		vectors: map[string][]float32{
			chunks[0].Text:                  {1, 0, 0, 0},
			chunks[1].Text:                  {0, 1, 0, 0},
			chunks[2].Text:                  {0, 0, 1, 0},
			chunks[3].Text:                  {0, 0, 0, 1},
			"when is the application round?": {0.05, 0.1, 0.95, 0.05},
		},
		fallback: []float32{1, 1, 1, 1},
	}
	store := NewMemoryStore()
	p := newTestPipeline(t, cfg, emb, store, nil)

	res, err := p.Ingest(ctx, Document{SourceID: "programs.pdf", Origin: OriginUpload, Text: text})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Chunks)

	entries := store.EntriesForSource("programs.pdf")
	require.Len(t, entries, 4)
	for i, e := range entries {
		assert.Equal(t, i, e.Metadata.Position)
	}

	out, err := p.Query(ctx, "when is the application round?")
	require.NoError(t, err)
	assert.Equal(t, []string{"programs.pdf"}, out.UsedSources)
	assert.Equal(t, chunks[2].Text, out.Context)
	require.Len(t, out.Items, 1)
	assert.Equal(t, 2, out.Items[0].Metadata.Position)
}

func TestQueryBelowThresholdYieldsEmptyContext(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.RelevanceThreshold = 1.01
	p := newTestPipeline(t, cfg, &letterEmbedder{}, NewMemoryStore(), nil)

	_, err := p.Ingest(ctx, Document{SourceID: "a", Text: "tuition fees"})
	require.NoError(t, err)

	out, err := p.Query(ctx, "tuition fees")
	require.NoError(t, err)
	assert.Equal(t, "", out.Context)
	assert.NotNil(t, out.UsedSources)
	assert.Empty(t, out.UsedSources)
	assert.Empty(t, out.Items)
}

func TestQueryResultsSortedByScore(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, testConfig(), &letterEmbedder{}, NewMemoryStore(), nil)

	for i, text := range []string{"aaaaaaaaaa", "aaaaabbbbb", "bbbbbbbbbb", "ccccccccca"} {
		_, err := p.Ingest(ctx, Document{SourceID: fmt.Sprintf("s%d", i), Text: text})
		require.NoError(t, err)
	}

	out, err := p.Query(ctx, "aaaa")
	require.NoError(t, err)
	require.NotEmpty(t, out.Items)
	for i := 1; i < len(out.Items); i++ {
		assert.GreaterOrEqual(t, out.Items[i-1].Score, out.Items[i].Score)
	}
	assert.Equal(t, "s0", out.Items[0].Metadata.SourceID)
}

func TestClearThenQueryIsEmpty(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, testConfig(), &letterEmbedder{}, NewMemoryStore(), nil)

	_, err := p.Ingest(ctx, Document{SourceID: "a", Text: "scholarships for international students"})
	require.NoError(t, err)
	_, err = p.Ingest(ctx, Document{SourceID: "b", Origin: OriginCrawl, Text: "exchange programs"})
	require.NoError(t, err)

	require.NoError(t, p.Clear(ctx))

	out, err := p.Query(ctx, "scholarships")
	require.NoError(t, err)
	assert.Empty(t, out.Items)
	assert.Equal(t, "", out.Context)

	sources, err := p.Sources(ctx)
	require.NoError(t, err)
	assert.Empty(t, sources)
	n, err := p.EntryCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEmbeddingFailureKeepsPreviousVersion(t *testing.T) {
	ctx := context.Background()
	emb := &letterEmbedder{}
	store := NewMemoryStore()
	p := newTestPipeline(t, testConfig(), emb, store, nil)

	_, err := p.Ingest(ctx, Document{SourceID: "a", Text: strings.Repeat("a", 25)})
	require.NoError(t, err)

	emb.setFail(errors.New("dial tcp: connection refused"))
	_, err = p.Ingest(ctx, Document{SourceID: "a", Text: strings.Repeat("b", 5)})
	require.Error(t, err)

	var ingestErr *IngestionFailedError
	require.ErrorAs(t, err, &ingestErr)
	assert.Equal(t, "a", ingestErr.SourceID)
	assert.Equal(t, StateChunked, ingestErr.Stage)
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.Contains(t, err.Error(), `"a"`)

	assert.Len(t, store.EntriesForSource("a"), 3)
	rec, err := p.Source(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 3, rec.ChunkCount)
}

func TestUpsertFailureLeavesSourceAbsent(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: NewMemoryStore()}
	p := newTestPipeline(t, testConfig(), &letterEmbedder{}, store, nil)

	_, err := p.Ingest(ctx, Document{SourceID: "a", Text: strings.Repeat("a", 30)})
	require.NoError(t, err)

	store.mu.Lock()
	store.failUpsert, store.partial = true, true
	store.mu.Unlock()

	_, err = p.Ingest(ctx, Document{SourceID: "a", Text: strings.Repeat("b", 40)})
	var ingestErr *IngestionFailedError
	require.ErrorAs(t, err, &ingestErr)
	assert.Equal(t, StateEmbedded, ingestErr.Stage)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	assert.Empty(t, store.EntriesForSource("a"))
	_, err = p.Source(ctx, "a")
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestCatalogFailureRemovesEntries(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p := newTestPipeline(t, testConfig(), &letterEmbedder{}, store, &failingCatalog{NewMemoryCatalog()})

	_, err := p.Ingest(ctx, Document{SourceID: "a", Text: "deadline is in june"})
	var ingestErr *IngestionFailedError
	require.ErrorAs(t, err, &ingestErr)
	assert.Empty(t, store.EntriesForSource("a"))
}

func TestIngestRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, testConfig(), &letterEmbedder{}, NewMemoryStore(), nil)

	_, err := p.Ingest(ctx, Document{SourceID: " ", Text: "text"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = p.Ingest(ctx, Document{SourceID: "a", Origin: "email", Text: "text"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = p.Ingest(ctx, Document{SourceID: "a", Text: ""})
	assert.ErrorIs(t, err, ErrEmptyDocument)
	var ingestErr *IngestionFailedError
	require.ErrorAs(t, err, &ingestErr)
	assert.Equal(t, StateReceived, ingestErr.Stage)
}

func TestTimeoutsSurfaceAsUnavailable(t *testing.T) {
	ctx := context.Background()
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	hanging := EmbedderFunc(func(context.Context, []string) ([][]float32, error) {
		<-block
		return nil, nil
	})
	cfg := testConfig()
	cfg.CallTimeout = 20 * time.Millisecond
	p := newTestPipeline(t, cfg, hanging, NewMemoryStore(), nil)

	_, err := p.Ingest(ctx, Document{SourceID: "a", Text: "hello"})
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = p.Query(ctx, "hello")
	var retrievalErr *RetrievalFailedError
	require.ErrorAs(t, err, &retrievalErr)
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

func TestLargeDocumentsAreEmbeddedInBatches(t *testing.T) {
	var mu sync.Mutex
	var batches []int
	slow := EmbedderFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
		time.Sleep(time.Duration(len(texts)) * time.Millisecond)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mu.Lock()
		batches = append(batches, len(texts))
		mu.Unlock()
		return (&letterEmbedder{}).Embed(ctx, texts)
	})
	cfg := testConfig()
	cfg.CallTimeout = 200 * time.Millisecond
	p := newTestPipeline(t, cfg, slow, NewMemoryStore(), nil)

	text := strings.Repeat("admission ", 300)
	res, err := p.Ingest(context.Background(), Document{SourceID: "big", Text: text})
	require.NoError(t, err)
	require.Greater(t, res.Chunks, 3*embedBatchSize)

	mu.Lock()
	defer mu.Unlock()
	total := 0
	for _, n := range batches {
		assert.LessOrEqual(t, n, embedBatchSize)
		total += n
	}
	assert.Equal(t, res.Chunks, total)
}

func TestStoreFailureSurfacesAsRetrievalFailed(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: NewMemoryStore(), failQuery: true}
	p := newTestPipeline(t, testConfig(), &letterEmbedder{}, store, nil)

	_, err := p.Query(ctx, "fees")
	var retrievalErr *RetrievalFailedError
	require.ErrorAs(t, err, &retrievalErr)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, errBackendDown)
}

func TestDeleteSource(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p := newTestPipeline(t, testConfig(), &letterEmbedder{}, store, nil)

	_, err := p.Ingest(ctx, Document{SourceID: "a", Text: strings.Repeat("a", 20)})
	require.NoError(t, err)
	_, err = p.Ingest(ctx, Document{SourceID: "b", Text: strings.Repeat("b", 20)})
	require.NoError(t, err)

	require.NoError(t, p.DeleteSource(ctx, "a"))
	require.NoError(t, p.DeleteSource(ctx, "never-ingested"))

	assert.Empty(t, store.EntriesForSource("a"))
	assert.Len(t, store.EntriesForSource("b"), 2)
	sources, err := p.Sources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "b", sources[0].SourceID)
}

func TestConcurrentIngestOfOneSourceNeverInterleaves(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p := newTestPipeline(t, testConfig(), &letterEmbedder{}, store, nil)

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			letter := string(rune('a' + n))
			_, err := p.Ingest(ctx, Document{SourceID: "shared", Text: strings.Repeat(letter, n*10)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	rec, err := p.Source(ctx, "shared")
	require.NoError(t, err)
	entries := store.EntriesForSource("shared")
	require.Len(t, entries, rec.ChunkCount)

	want := string([]rune(rec.RawText)[:1])
	for i, e := range entries {
		assert.Equal(t, i, e.Metadata.Position)
		assert.Equal(t, strings.Repeat(want, 10), e.Text)
	}
}
