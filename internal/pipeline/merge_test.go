package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeRemovesExactOverlap(t *testing.T) {
	m := NewMerger()

	// Both chunks share the exact five-word seam "the mitochondria is the
	// powerhouse"; it must appear exactly once in the output.
	results := []ChunkResult{
		{Index: 0, OK: true, StartSeconds: 0, EndSeconds: 480,
			Text: "today we will discuss cell biology and the mitochondria is the powerhouse"},
		{Index: 1, OK: true, StartSeconds: 450, EndSeconds: 930,
			Text: "the mitochondria is the powerhouse of the cell as everyone knows"},
	}

	merged := m.Merge(results)

	assert.Equal(t, 1, strings.Count(strings.ToLower(merged), "the mitochondria is the powerhouse"))
	assert.Contains(t, strings.ToLower(merged), "of the cell as everyone knows")
}

func TestMergeConcatenatesWhenNoOverlap(t *testing.T) {
	m := NewMerger()

	results := []ChunkResult{
		{Index: 0, OK: true, StartSeconds: 0, Text: "first section about thermodynamics"},
		{Index: 1, OK: true, StartSeconds: 450, Text: "completely different topic entirely now"},
	}

	merged := m.Merge(results)

	assert.Contains(t, strings.ToLower(merged), "first section about thermodynamics")
	assert.Contains(t, strings.ToLower(merged), "completely different topic entirely now")
}

func TestMergeSingleChunkMatchesNormalizedText(t *testing.T) {
	m := NewMerger()

	text := "the lecture begins now. we cover three topics"
	merged := m.Merge([]ChunkResult{{Index: 0, OK: true, Text: text}})

	assert.Equal(t, formatTranscript(text), merged)
	assert.Contains(t, merged, "The lecture begins now")
}

func TestMergeSortsByStartTime(t *testing.T) {
	m := NewMerger()

	// Completion order differs from temporal order.
	results := []ChunkResult{
		{Index: 1, OK: true, StartSeconds: 450, Text: "second part of the talk"},
		{Index: 0, OK: true, StartSeconds: 0, Text: "first part of the talk"},
	}

	merged := strings.ToLower(m.Merge(results))

	first := strings.Index(merged, "first part")
	second := strings.Index(merged, "second part")
	require.GreaterOrEqual(t, first, 0)
	require.GreaterOrEqual(t, second, 0)
	assert.Less(t, first, second)
}

func TestMergeEmbedsFailedChunkPlaceholder(t *testing.T) {
	m := NewMerger()

	results := []ChunkResult{
		{Index: 0, OK: true, StartSeconds: 0, Text: "opening remarks of the lecture"},
		{Index: 1, OK: false, StartSeconds: 450, Text: "[Error transcribing chunk 2: api timeout]",
			ErrorDetail: "api timeout"},
		{Index: 2, OK: true, StartSeconds: 900, Text: "closing remarks of the lecture"},
	}

	merged := m.Merge(results)

	assert.Contains(t, merged, "[Error transcribing chunk 2: api timeout]")
	assert.Contains(t, strings.ToLower(merged), "opening remarks")
	assert.Contains(t, strings.ToLower(merged), "closing remarks")
}

func TestMergeEmpty(t *testing.T) {
	assert.Equal(t, "", NewMerger().Merge(nil))
}

func TestRemoveOverlapFuzzyMatch(t *testing.T) {
	// The seam words differ slightly (a transcription artifact) but the
	// word sets are nearly identical, so the overlap is still stripped.
	previous := "we must consider the energy balance of the system"
	current := "consider the energy balance of the system and its surroundings"

	cleaned := removeOverlap(previous, current)

	assert.Equal(t, "and its surroundings", cleaned)
}

func TestRemoveOverlapNoMatchKeepsText(t *testing.T) {
	previous := "alpha beta gamma delta epsilon"
	current := "one two three four five six"

	assert.Equal(t, current, removeOverlap(previous, current))
}

func TestRemoveOverlapEmptyInputs(t *testing.T) {
	assert.Equal(t, "text", removeOverlap("", "text"))
	assert.Equal(t, "", removeOverlap("tail", ""))
}

func TestWordSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, wordSimilarity("the cat sat", "the cat sat"))
	assert.Equal(t, 0.0, wordSimilarity("aaa bbb", "ccc ddd"))
	assert.Equal(t, 0.0, wordSimilarity("", "anything"))
	assert.InDelta(t, 0.5, wordSimilarity("a b c", "a b d"), 0.001)
}

func TestFormatTranscript(t *testing.T) {
	cases := []struct {
		name string
		in   string
		out  string
	}{
		{"collapses whitespace", "hello   world", "Hello world"},
		{"normalizes period spacing", "one .two", "One. Two"},
		{"removes repeated punctuation", "wait... what??", "Wait. What?"},
		{"capitalizes sentences", "first sentence. second sentence", "First sentence. Second sentence"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.out, formatTranscript(tc.in))
		})
	}
}
