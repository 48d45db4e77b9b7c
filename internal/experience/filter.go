// Package experience detects years-of-experience requirements in listing text.
package experience

import (
	"regexp"
	"strconv"
)

// yearsPattern matches phrases like "5+ years of experience", "at least 10 yrs"
// and "Minimum 3 years". Qualifiers and the trailing "of experience" are optional,
// so a bare "5 years" also matches. Best effort only: it over- and under-matches.
var yearsPattern = regexp.MustCompile(`(?i)\b(?:at least|min(?:imum)?|over)?\s*(\d{1,2})\s*\+?\s*(?:years?|yrs?)\s*(?:of experience)?`)

// Extract returns every year count mentioned in text, in order of appearance.
func Extract(text string) []int {
	var years []int
	for _, m := range yearsPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		years = append(years, n)
	}
	return years
}

// ExceedsLimit reports whether any year count in text is greater than maxYears.
func ExceedsLimit(text string, maxYears int) bool {
	for _, n := range Extract(text) {
		if n > maxYears {
			return true
		}
	}
	return false
}
