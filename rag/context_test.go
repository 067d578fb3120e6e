package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func item(source string, pos int, score float64, text string) QueryResultItem {
	return QueryResultItem{Text: text, Score: score, Metadata: EntryMetadata{SourceID: source, Position: pos}}
}

func TestAssembleContextEmpty(t *testing.T) {
	ctx, used := AssembleContext(nil, 100)
	assert.Equal(t, "", ctx)
	assert.Empty(t, used)
	assert.Equal(t, []string{}, UsedSources(used))
}

func TestAssembleContextJoinsInOrder(t *testing.T) {
	items := []QueryResultItem{item("a", 0, 0.9, "first"), item("b", 0, 0.8, "second")}
	ctx, used := AssembleContext(items, 100)
	assert.Equal(t, "first"+ContextSeparator+"second", ctx)
	assert.Len(t, used, 2)
}

func TestAssembleContextDropsLowestScoringFirst(t *testing.T) {
	items := []QueryResultItem{
		item("a", 0, 0.9, strings.Repeat("a", 40)),
		item("b", 0, 0.8, strings.Repeat("b", 40)),
		item("c", 0, 0.7, strings.Repeat("c", 40)),
	}
	limit := 40 + len(ContextSeparator) + 40

	ctx, used := AssembleContext(items, limit)
	assert.Equal(t, strings.Repeat("a", 40)+ContextSeparator+strings.Repeat("b", 40), ctx)
	assert.Equal(t, []string{"a", "b"}, UsedSources(used))
	assert.LessOrEqual(t, len([]rune(ctx)), limit)
}

func TestAssembleContextTruncatesSingleItem(t *testing.T) {
	items := []QueryResultItem{
		item("a", 0, 0.9, "日本語のパンフレット"),
		item("b", 0, 0.8, "dropped"),
	}
	ctx, used := AssembleContext(items, 4)
	assert.Equal(t, "日本語の", ctx)
	assert.Equal(t, []string{"a"}, UsedSources(used))
}

func TestUsedSourcesSortedAndUnique(t *testing.T) {
	items := []QueryResultItem{item("b", 0, 1, "x"), item("a", 1, 1, "y"), item("b", 2, 1, "z")}
	assert.Equal(t, []string{"a", "b"}, UsedSources(items))
}
