package services

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github/itish2003/admissions/rag"
)

// contentEmbedder is the part of *genai.Models the embedder needs.
type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// GeminiEmbedder embeds texts in one batch call to the Gemini API.
type GeminiEmbedder struct {
	models contentEmbedder
	model  string
}

var _ rag.Embedder = (*GeminiEmbedder)(nil)

func NewGeminiEmbedder(client *genai.Client, model string) *GeminiEmbedder {
	return &GeminiEmbedder{models: client.Models, model: model}
}

func (g *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, "user")
	}

	resp, err := g.models.EmbedContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini embed call failed: %w", rag.ErrEmbeddingUnavailable, err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("%w: gemini returned %d embeddings for %d texts", rag.ErrEmbeddingUnavailable, got, len(texts))
	}

	out := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("%w: gemini returned an empty embedding at index %d", rag.ErrEmbeddingUnavailable, i)
		}
		out[i] = e.Values
	}
	return out, nil
}
