package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github/itish2003/admissions/logger"
	"github/itish2003/admissions/rag"
)

// BreakerEmbedder stops calling a failing embedding service for a while and
// answers ErrEmbeddingUnavailable straight away instead.
type BreakerEmbedder struct {
	next    rag.Embedder
	breaker *gobreaker.CircuitBreaker
}

var _ rag.Embedder = (*BreakerEmbedder)(nil)

// NewBreakerEmbedder opens after maxFailures consecutive failures and lets one
// call through again after cooldown.
func NewBreakerEmbedder(name string, next rag.Embedder, maxFailures uint32, cooldown time.Duration) *BreakerEmbedder {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &BreakerEmbedder{next: next, breaker: breaker}
}

func (b *BreakerEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.next.Embed(ctx, texts)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", rag.ErrEmbeddingUnavailable, err)
		}
		return nil, err
	}
	return result.([][]float32), nil
}

// State reports the breaker state for health checks.
func (b *BreakerEmbedder) State() string {
	return b.breaker.State().String()
}
