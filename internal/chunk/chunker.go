// Package chunk partitions extracted text into bounded, overlapping windows.
package chunk

import (
	"fmt"
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/domain"
)

// Split returns a lazy sequence of windows over text. Offsets and lengths count runes.
// Windows start every maxWindowChars-overlapChars runes and the sequence stops once a
// window reaches the end of the text. Text shorter than maxWindowChars yields one window.
func Split(text string, maxWindowChars, overlapChars int) (iter.Seq[domain.TextWindow], error) {
	if overlapChars < 0 || maxWindowChars <= overlapChars {
		return nil, domain.InvalidChunkConfig(
			fmt.Sprintf("max window %d must exceed overlap %d >= 0", maxWindowChars, overlapChars), nil)
	}

	runes := []rune(text)
	step := maxWindowChars - overlapChars

	return func(yield func(domain.TextWindow) bool) {
		for index, offset := 0, 0; ; index, offset = index+1, offset+step {
			end := min(offset+maxWindowChars, len(runes))
			w := domain.TextWindow{
				Index:  index,
				Offset: offset,
				Length: end - offset,
				Text:   string(runes[offset:end]),
			}
			if !yield(w) || end == len(runes) {
				return
			}
		}
	}, nil
}

// Windows collects at most limit windows from Split and reports how many windows Split
// would yield in total. A limit <= 0 collects all of them.
func Windows(text string, maxWindowChars, overlapChars, limit int) ([]domain.TextWindow, int, error) {
	seq, err := Split(text, maxWindowChars, overlapChars)
	if err != nil {
		return nil, 0, err
	}

	var out []domain.TextWindow
	for w := range seq {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, w)
	}
	return out, Count(utf8.RuneCountInString(text), maxWindowChars, overlapChars), nil
}

// Count returns the number of windows Split yields for a text of n runes.
// The window configuration must already be valid.
func Count(n, maxWindowChars, overlapChars int) int {
	if n <= maxWindowChars {
		return 1
	}
	step := maxWindowChars - overlapChars
	return 1 + (n-maxWindowChars+step-1)/step
}

// Truncate returns the leading window of text holding at most maxChars runes.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	return string([]rune(text)[:maxChars])
}

// Join reassembles windows produced with the given overlap into the original text.
func Join(windows []domain.TextWindow, overlapChars int) string {
	var b strings.Builder
	for i, w := range windows {
		if i == 0 {
			b.WriteString(w.Text)
			continue
		}
		r := []rune(w.Text)
		skip := min(overlapChars, len(r))
		b.WriteString(string(r[skip:]))
	}
	return b.String()
}

// Sentences splits text on sentence-terminal punctuation (. ! ?) and returns trimmed, non-empty units.
// The terminal punctuation is kept with its sentence.
func Sentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			end := i + utf8.RuneLen(r)
			out = append(out, text[start:end])
			start = end
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}

	return lo.FilterMap(out, func(s string, _ int) (string, bool) {
		s = strings.TrimSpace(s)
		return s, s != "" && strings.IndexFunc(s, isWordRune) >= 0
	})
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Preview returns the first n runes of text.
func Preview(text string, n int) string {
	return Truncate(text, n)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
