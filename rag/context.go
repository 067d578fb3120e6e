package rag

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// ContextSeparator joins retrieved passages in the assembled context.
const ContextSeparator = "\n\n---\n\n"

// AssembleContext joins admitted items in order and keeps the result within
// maxLength runes. Items are dropped from the tail, which holds the lowest
// scores, until the rest fits. A lone item that is still too long is cut to
// maxLength runes. It returns the context and the items that contributed to it.
func AssembleContext(items []QueryResultItem, maxLength int) (string, []QueryResultItem) {
	if len(items) == 0 || maxLength <= 0 {
		return "", nil
	}

	sepLen := utf8.RuneCountInString(ContextSeparator)
	total := 0
	for i, it := range items {
		total += utf8.RuneCountInString(it.Text)
		if i > 0 {
			total += sepLen
		}
	}

	kept := items
	for total > maxLength && len(kept) > 1 {
		last := kept[len(kept)-1]
		total -= utf8.RuneCountInString(last.Text) + sepLen
		kept = kept[:len(kept)-1]
	}

	texts := make([]string, len(kept))
	for i, it := range kept {
		texts[i] = it.Text
	}
	out := strings.Join(texts, ContextSeparator)
	if total > maxLength {
		out = truncateRunes(out, maxLength)
	}
	return out, slices.Clone(kept)
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// UsedSources returns the sorted distinct source ids of items. The result is
// never nil.
func UsedSources(items []QueryResultItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Metadata.SourceID)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
