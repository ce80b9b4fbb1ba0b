package core

import (
	"math"

	"github.com/pmezard/go-difflib/difflib"
)

// runeSeq splits s into one element per rune so sequence matching compares
// characters rather than bytes.
func runeSeq(s string) []string {
	rs := []rune(s)
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}

// SequenceRatio returns the Ratcliff/Obershelp similarity of a and b in
// [0, 1]: twice the number of matching characters over the total length.
// Two empty strings are identical.
func SequenceRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	return difflib.NewMatcher(runeSeq(a), runeSeq(b)).Ratio()
}

// truncateRunes returns the first n runes of s.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
