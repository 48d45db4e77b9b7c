package locator

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultThreshold is the similarity a control's text must strictly exceed to
// be accepted by the fuzzy pass.
const DefaultThreshold = 0.6

// Comparator scores how similar two strings are, from 0 (unrelated) to 1 (equal).
type Comparator interface {
	Similarity(a, b string) float64
}

// ComparatorFunc adapts a function to the Comparator interface.
type ComparatorFunc func(a, b string) float64

// Similarity calls f(a, b).
func (f ComparatorFunc) Similarity(a, b string) float64 {
	return f(a, b)
}

// SequenceRatio is the Ratcliff/Obershelp ratio over characters:
// 2*M/T where M is the number of matched characters and T the combined length.
var SequenceRatio = ComparatorFunc(func(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	m := difflib.NewMatcher(splitChars(a), splitChars(b))
	return m.Ratio()
})

func splitChars(s string) []string {
	return strings.Split(s, "")
}
