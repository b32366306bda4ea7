package pipeline

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

const (
	// tailWords is how much of the accumulated transcript the overlap scan
	// compares against.
	tailWords = 10
	// maxOverlapWords and minOverlapWords bound the candidate overlap
	// lengths, scanned longest first.
	maxOverlapWords = 15
	minOverlapWords = 3
	// similarityThreshold accepts a fuzzy word-set match as overlap.
	similarityThreshold = 0.8
)

// Merger stitches per-chunk transcripts into one coherent text, removing the
// duplicated words the chunker's sliding-window overlap introduces.
type Merger struct {
	logger *logrus.Entry
}

// NewMerger creates a merger.
func NewMerger() *Merger {
	return &Merger{logger: logrus.WithField("component", "merger")}
}

// Merge combines all chunk results in temporal order. Failed chunks
// contribute their placeholder text, set off by blank lines, so gaps in the
// transcript stay visible. The result goes through a final formatting pass.
func (m *Merger) Merge(results []ChunkResult) string {
	if len(results) == 0 {
		return ""
	}

	ordered := make([]ChunkResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].StartSeconds < ordered[b].StartSeconds
	})

	var merged string
	var prevTail string

	for i, r := range ordered {
		if !r.OK {
			merged += "\n\n" + r.Text + "\n\n"
			continue
		}

		current := strings.TrimSpace(r.Text)
		if i == 0 {
			merged = current
			prevTail = lastWords(current, tailWords)
			continue
		}

		cleaned := removeOverlap(prevTail, current)
		if strings.TrimSpace(cleaned) != "" {
			merged += " " + cleaned
		}
		prevTail = lastWords(cleaned, tailWords)
	}

	final := formatTranscript(merged)
	m.logger.WithFields(logrus.Fields{
		"chunks":     len(results),
		"characters": len(final),
	}).Info("Merged transcript")
	return final
}

// lastWords returns the final n words of s, or all of s when it has fewer.
func lastWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) < n {
		return s
	}
	return strings.Join(words[len(words)-n:], " ")
}

// removeOverlap strips from current the leading words that duplicate the
// tail of the previous chunk. Candidate overlap lengths are tried longest
// first; a candidate is accepted on an exact (case-insensitive) word match
// or when the word sets are similar enough. When nothing clears the bar the
// text is returned unchanged, accepting a bounded duplication at the seam.
func removeOverlap(previous, current string) string {
	if previous == "" || current == "" {
		return current
	}

	prevWords := strings.Fields(strings.ToLower(previous))
	currWords := strings.Fields(strings.ToLower(current))
	origWords := strings.Fields(current)

	maxCheck := maxOverlapWords
	if len(prevWords) < maxCheck {
		maxCheck = len(prevWords)
	}
	if len(currWords) < maxCheck {
		maxCheck = len(currWords)
	}

	for n := maxCheck; n >= minOverlapWords; n-- {
		prevEnd := strings.Join(prevWords[len(prevWords)-n:], " ")
		currStart := strings.Join(currWords[:n], " ")

		if prevEnd == currStart || wordSimilarity(prevEnd, currStart) > similarityThreshold {
			return strings.Join(origWords[n:], " ")
		}
	}
	return current
}

// wordSimilarity is the Jaccard index of the two word sets.
func wordSimilarity(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = struct{}{}
	}
	return set
}

var (
	whitespaceRe    = regexp.MustCompile(`\s+`)
	periodRe        = regexp.MustCompile(`\s*\.\s*`)
	questionRe      = regexp.MustCompile(`\s*\?\s*`)
	exclamationRe   = regexp.MustCompile(`\s*!\s*`)
	multiPeriodRe   = regexp.MustCompile(`\.{2,}`)
	multiQuestionRe = regexp.MustCompile(`\?{2,}`)
	multiExclamRe   = regexp.MustCompile(`!{2,}`)
)

// formatTranscript normalizes whitespace and sentence punctuation, collapses
// repeated punctuation runs, and capitalizes sentence starts.
func formatTranscript(text string) string {
	text = whitespaceRe.ReplaceAllString(text, " ")
	// Collapse punctuation runs before spacing them, or "..." turns into
	// ". . ." and the runs survive.
	text = multiPeriodRe.ReplaceAllString(text, ".")
	text = multiQuestionRe.ReplaceAllString(text, "?")
	text = multiExclamRe.ReplaceAllString(text, "!")
	text = periodRe.ReplaceAllString(text, ". ")
	text = questionRe.ReplaceAllString(text, "? ")
	text = exclamationRe.ReplaceAllString(text, "! ")

	sentences := strings.Split(text, ". ")
	cleaned := make([]string, 0, len(sentences))
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		cleaned = append(cleaned, capitalize(s))
	}
	return strings.TrimSpace(strings.Join(cleaned, ". "))
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
