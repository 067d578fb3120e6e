package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github/itish2003/admissions/rag"
)

// maxScoredRunes bounds how much of a page is embedded for scoring.
const maxScoredRunes = 2000

// AdmissionKeywords mark a page as relevant to programs and admissions.
var AdmissionKeywords = []string{
	"admission", "program", "bachelor", "master", "curriculum",
	"syllabus", "tuition", "fees", "apply", "deadline",
	"engineering", "major", "course", "calendar", "scholarship",
	"international", "exchange", "degree",
}

// PageScorer rates how relevant a crawled page is, higher meaning more.
type PageScorer interface {
	Score(ctx context.Context, page CrawledPage) (float64, error)
}

// KeywordScorer scores 1 when the page contains at least one keyword and 0
// otherwise.
type KeywordScorer struct {
	Keywords []string
}

func (s KeywordScorer) Score(_ context.Context, page CrawledPage) (float64, error) {
	text := strings.ToLower(page.Text())
	for _, kw := range s.Keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			return 1, nil
		}
	}
	return 0, nil
}

// EmbeddingScorer scores a page by the cosine similarity of its embedding to
// the embedding of a topic. It is not safe for concurrent use.
type EmbeddingScorer struct {
	embedder rag.Embedder
	topic    string
	topicVec []float32
}

func NewEmbeddingScorer(embedder rag.Embedder, topic string) *EmbeddingScorer {
	return &EmbeddingScorer{embedder: embedder, topic: topic}
}

func (s *EmbeddingScorer) Score(ctx context.Context, page CrawledPage) (float64, error) {
	texts := []string{truncateForScoring(page.Text())}
	if s.topicVec == nil {
		texts = append(texts, s.topic)
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		if errors.Is(err, rag.ErrEmbeddingUnavailable) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %w", rag.ErrEmbeddingUnavailable, err)
	}
	if len(vectors) != len(texts) {
		return 0, fmt.Errorf("%w: got %d vectors for %d inputs", rag.ErrEmbeddingUnavailable, len(vectors), len(texts))
	}
	if s.topicVec == nil {
		s.topicVec = vectors[1]
	}
	return rag.CosineSimilarity(vectors[0], s.topicVec), nil
}

func (c *Crawler) scorerFor(topic string) PageScorer {
	if strings.TrimSpace(topic) == "" || c.embedder == nil {
		return KeywordScorer{Keywords: AdmissionKeywords}
	}
	return NewEmbeddingScorer(c.embedder, topic)
}

func truncateForScoring(text string) string {
	runes := []rune(text)
	if len(runes) <= maxScoredRunes {
		return text
	}
	return string(runes[:maxScoredRunes])
}
