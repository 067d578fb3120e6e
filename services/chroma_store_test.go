package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github/itish2003/admissions/rag"
)

// fakeCollection keeps records in memory and understands the single
// equality where-filter the store sends on delete.
type fakeCollection struct {
	chromago.Collection
	ids       []chromago.DocumentID
	docs      []chromago.Document
	metas     []chromago.DocumentMetadata
	deletes   []string
	failWrite error
}

func (f *fakeCollection) Upsert(_ context.Context, opts ...chromago.CollectionAddOption) error {
	if f.failWrite != nil {
		return f.failWrite
	}
	op, err := chromago.NewCollectionAddOp(opts...)
	if err != nil {
		return err
	}
	if len(op.Ids) != len(op.Documents) || len(op.Ids) != len(op.Metadatas) || len(op.Ids) != len(op.Embeddings) {
		return errors.New("mismatched upsert")
	}
	f.ids = append(f.ids, op.Ids...)
	f.docs = append(f.docs, op.Documents...)
	f.metas = append(f.metas, op.Metadatas...)
	return nil
}

func (f *fakeCollection) Delete(_ context.Context, opts ...chromago.CollectionDeleteOption) error {
	op, err := chromago.NewCollectionDeleteOp(opts...)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(op.Where)
	if err != nil {
		return err
	}
	var where map[string]map[string]string
	if err := json.Unmarshal(raw, &where); err != nil {
		return err
	}
	sourceID := where[metaSourceID]["$eq"]
	f.deletes = append(f.deletes, sourceID)

	var ids []chromago.DocumentID
	var docs []chromago.Document
	var metas []chromago.DocumentMetadata
	for i, m := range f.metas {
		if id, _ := m.GetString(metaSourceID); id == sourceID {
			continue
		}
		ids, docs, metas = append(ids, f.ids[i]), append(docs, f.docs[i]), append(metas, m)
	}
	f.ids, f.docs, f.metas = ids, docs, metas
	return nil
}

func (f *fakeCollection) Get(context.Context, ...chromago.CollectionGetOption) (chromago.GetResult, error) {
	return &chromago.GetResultImpl{Ids: f.ids, Documents: f.docs, Metadatas: f.metas}, nil
}

func (f *fakeCollection) Query(context.Context, ...chromago.CollectionQueryOption) (chromago.QueryResult, error) {
	distances := make(embeddings.Distances, len(f.docs))
	for i := range distances {
		distances[i] = embeddings.Distance(0.1 * float32(i+1))
	}
	return &chromago.QueryResultImpl{
		IDLists:        []chromago.DocumentIDs{f.ids},
		DocumentsLists: []chromago.Documents{f.docs},
		MetadatasLists: []chromago.DocumentMetadatas{f.metas},
		DistancesLists: []embeddings.Distances{distances},
	}, nil
}

func (f *fakeCollection) Count(context.Context) (int, error) {
	return len(f.ids), nil
}

func chromaEntries(sourceID string, n int) []rag.StoredVectorEntry {
	entries := make([]rag.StoredVectorEntry, n)
	for i := range entries {
		entries[i] = rag.NewEntry(rag.Chunk{
			Text:      sourceID + " chunk",
			SourceID:  sourceID,
			Position:  i,
			Embedding: []float32{1, float32(i)},
		})
	}
	return entries
}

func TestChromaStoreUpsertWritesMetadata(t *testing.T) {
	ctx := context.Background()
	collection := &fakeCollection{}
	store := NewChromaStore(collection)

	require.NoError(t, store.Upsert(ctx, chromaEntries("fees.txt", 2)))
	require.NoError(t, store.Upsert(ctx, nil))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	for i, m := range collection.metas {
		sourceID, ok := m.GetString(metaSourceID)
		require.True(t, ok)
		assert.Equal(t, "fees.txt", sourceID)
		position, ok := m.GetInt(metaPosition)
		require.True(t, ok)
		assert.Equal(t, int64(i), position)
	}

	items, err := store.Query(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "fees.txt", items[0].Metadata.SourceID)
	assert.Equal(t, 0, items[0].Metadata.Position)
	assert.InDelta(t, 0.9, items[0].Score, 1e-6)
}

func TestChromaStoreDeleteBySourceAndClear(t *testing.T) {
	ctx := context.Background()
	collection := &fakeCollection{}
	store := NewChromaStore(collection)
	require.NoError(t, store.Upsert(ctx, chromaEntries("fees.txt", 2)))
	require.NoError(t, store.Upsert(ctx, chromaEntries("calendar.md", 3)))

	require.NoError(t, store.DeleteBySource(ctx, "fees.txt"))
	assert.Equal(t, []string{"fees.txt"}, collection.deletes)
	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, store.Upsert(ctx, chromaEntries("housing.html", 1)))
	require.NoError(t, store.Clear(ctx))
	assert.ElementsMatch(t, []string{"fees.txt", "calendar.md", "housing.html"}, collection.deletes)
	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestChromaStoreWrapsBackendErrors(t *testing.T) {
	store := NewChromaStore(&fakeCollection{failWrite: errors.New("connection refused")})
	err := store.Upsert(context.Background(), chromaEntries("fees.txt", 1))
	assert.ErrorIs(t, err, rag.ErrStoreUnavailable)
	assert.ErrorContains(t, err, "connection refused")
}

func TestItemsFromHitsScoresAndSorts(t *testing.T) {
	hits := []chromaHit{
		{Text: "b1", Distance: 0.2, Metadata: map[string]interface{}{"source_id": "b", "position": float64(1)}},
		{Text: "a3", Distance: 0.2, Metadata: map[string]interface{}{"source_id": "a", "position": float64(3)}},
		{Text: "best", Distance: 0.05, Metadata: map[string]interface{}{"source_id": "c", "position": float64(0)}},
		{Text: "", Distance: 0.01},
	}

	items := itemsFromHits(hits)
	require.Len(t, items, 3)

	assert.Equal(t, "best", items[0].Text)
	assert.InDelta(t, 0.95, items[0].Score, 1e-9)
	assert.Equal(t, "b1", items[1].Text)
	assert.Equal(t, 1, items[1].Metadata.Position)
	assert.Equal(t, "a3", items[2].Text)
	assert.Equal(t, "a", items[2].Metadata.SourceID)
}

func TestMetadataMapNil(t *testing.T) {
	assert.Empty(t, metadataMap(nil))
}
