package services

import (
	"context"
	"encoding/json"
	"fmt"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"

	"github/itish2003/admissions/logger"
	"github/itish2003/admissions/rag"
)

const (
	metaSourceID = "source_id"
	metaPosition = "position"
)

// ChromaStore is a rag.VectorStore backed by one Chroma collection using the
// cosine distance space, so similarity is 1 - distance.
type ChromaStore struct {
	collection chromago.Collection
}

var _ rag.VectorStore = (*ChromaStore)(nil)

func NewChromaStore(collection chromago.Collection) *ChromaStore {
	return &ChromaStore{collection: collection}
}

// OpenChromaCollection gets or creates the named collection on the server.
func OpenChromaCollection(ctx context.Context, client chromago.Client, name string) (chromago.Collection, error) {
	logger.Info("Getting or creating chroma collection", "collection", name)

	collection, err := client.GetOrCreateCollection(
		ctx,
		name,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("description", "Admissions knowledge base"),
				chromago.NewStringAttribute("created_by", "admissions"),
				chromago.NewStringAttribute("hnsw:space", "cosine"),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: get or create collection %q: %w", rag.ErrStoreUnavailable, name, err)
	}
	return collection, nil
}

// Upsert writes all entries in a single request.
func (s *ChromaStore) Upsert(ctx context.Context, entries []rag.StoredVectorEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ids := make([]chromago.DocumentID, len(entries))
	texts := make([]string, len(entries))
	vectors := make([]embeddings.Embedding, len(entries))
	metadatas := make([]chromago.DocumentMetadata, len(entries))
	for i, e := range entries {
		ids[i] = chromago.DocumentID(e.ID)
		texts[i] = e.Text
		vectors[i] = embeddings.NewEmbeddingFromFloat32(e.Embedding)
		metadatas[i] = chromago.NewDocumentMetadata(
			chromago.NewStringAttribute(metaSourceID, e.Metadata.SourceID),
			chromago.NewIntAttribute(metaPosition, int64(e.Metadata.Position)),
		)
	}

	err := s.collection.Upsert(ctx,
		chromago.WithIDs(ids...),
		chromago.WithTexts(texts...),
		chromago.WithEmbeddings(vectors...),
		chromago.WithMetadatas(metadatas...),
	)
	if err != nil {
		return fmt.Errorf("%w: upsert %d records: %w", rag.ErrStoreUnavailable, len(entries), err)
	}
	return nil
}

func (s *ChromaStore) Query(ctx context.Context, embedding []float32, topK int) ([]rag.QueryResultItem, error) {
	if topK <= 0 {
		return []rag.QueryResultItem{}, nil
	}
	results, err := s.collection.Query(
		ctx,
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(embedding)),
		chromago.WithNResults(topK),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", rag.ErrStoreUnavailable, err)
	}

	documentGroups := results.GetDocumentsGroups()
	if len(documentGroups) == 0 {
		return []rag.QueryResultItem{}, nil
	}
	var metadataGroup []chromago.DocumentMetadata
	if groups := results.GetMetadatasGroups(); len(groups) > 0 {
		metadataGroup = groups[0]
	}
	var distances []float64
	if groups := results.GetDistancesGroups(); len(groups) > 0 {
		for _, d := range groups[0] {
			distances = append(distances, float64(d))
		}
	}

	hits := make([]chromaHit, 0, len(documentGroups[0]))
	for i, doc := range documentGroups[0] {
		h := chromaHit{Text: doc.ContentString()}
		if i < len(metadataGroup) {
			h.Metadata = metadataMap(metadataGroup[i])
		}
		if i < len(distances) {
			h.Distance = distances[i]
		}
		hits = append(hits, h)
	}
	return itemsFromHits(hits), nil
}

func (s *ChromaStore) DeleteBySource(ctx context.Context, sourceID string) error {
	err := s.collection.Delete(ctx, chromago.WithWhereDelete(chromago.EqString(metaSourceID, sourceID)))
	if err != nil {
		return fmt.Errorf("%w: delete source %q: %w", rag.ErrStoreUnavailable, sourceID, err)
	}
	return nil
}

// Clear deletes every source that still has records in the collection.
func (s *ChromaStore) Clear(ctx context.Context) error {
	results, err := s.collection.Get(ctx)
	if err != nil {
		return fmt.Errorf("%w: list records: %w", rag.ErrStoreUnavailable, err)
	}
	seen := make(map[string]bool)
	for _, meta := range results.GetMetadatas() {
		id, _ := metadataMap(meta)[metaSourceID].(string)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if err := s.DeleteBySource(ctx, id); err != nil {
			return err
		}
	}
	logger.Info("Chroma collection cleared", "sources", len(seen))
	return nil
}

func (s *ChromaStore) Count(ctx context.Context) (int, error) {
	count, err := s.collection.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %w", rag.ErrStoreUnavailable, err)
	}
	return int(count), nil
}

type chromaHit struct {
	Text     string
	Metadata map[string]interface{}
	Distance float64
}

// itemsFromHits converts raw hits into sorted result items.
func itemsFromHits(hits []chromaHit) []rag.QueryResultItem {
	items := make([]rag.QueryResultItem, 0, len(hits))
	for _, h := range hits {
		if h.Text == "" {
			continue
		}
		sourceID, _ := h.Metadata[metaSourceID].(string)
		var position int
		if p, ok := h.Metadata[metaPosition].(float64); ok {
			position = int(p)
		}
		items = append(items, rag.QueryResultItem{
			Text:     h.Text,
			Score:    1 - h.Distance,
			Metadata: rag.EntryMetadata{SourceID: sourceID, Position: position},
		})
	}
	rag.SortResults(items)
	return items
}

// metadataMap flattens chroma document metadata. The metadata type exposes
// no accessor for all values, so it goes through its JSON form.
func metadataMap(meta chromago.DocumentMetadata) map[string]interface{} {
	out := make(map[string]interface{})
	if meta == nil {
		return out
	}
	jsonBytes, err := json.Marshal(meta)
	if err != nil {
		logger.Warn("Could not marshal chroma metadata", "error", err)
		return out
	}
	if err := json.Unmarshal(jsonBytes, &out); err != nil {
		logger.Warn("Could not unmarshal chroma metadata", "error", err)
		return make(map[string]interface{})
	}
	return out
}
