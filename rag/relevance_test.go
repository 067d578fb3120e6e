package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdmit(t *testing.T) {
	assert.True(t, Admit(0.5, 0.5))
	assert.True(t, Admit(0.51, 0.5))
	assert.False(t, Admit(0.49, 0.5))
	assert.True(t, Admit(-1, -1))
}

func TestAdmitIsMonotonic(t *testing.T) {
	scores := []float64{-1, -0.5, 0, 0.1, 0.25, 0.5, 0.75, 0.9, 1}
	for _, threshold := range scores {
		for _, s1 := range scores {
			if !Admit(s1, threshold) {
				continue
			}
			for _, s2 := range scores {
				if s2 >= s1 {
					assert.True(t, Admit(s2, threshold), "s1=%v s2=%v t=%v", s1, s2, threshold)
				}
			}
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	assert.Zero(t, CosineSimilarity(nil, nil))
}
