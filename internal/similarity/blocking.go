package similarity

import (
	"unicode"

	"golang.org/x/text/cases"
)

// BlockKey returns the first n runes of v after NFC normalization and case
// folding. Values are compared only when their keys are equal.
//
// n <= 0 disables blocking; every value then shares the empty key. Values
// shorter than n runes use the whole folded value as their key.
func BlockKey(v string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(cases.Fold().String(normalize(v)))
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}

func notAlnum(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !isRawByte(r)
}
