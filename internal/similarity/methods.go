// Package similarity scores pairs of strings on a 0..100 scale and turns a
// column's unique values into candidate pairs for the clustering engine.
package similarity

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Func scores a and b on 0..100. 100 means identical under the method.
// Implementations are symmetric and safe for concurrent use.
type Func func(a, b string) float64

var methods = map[string]Func{
	"ratio":               Ratio,
	"partial_ratio":       PartialRatio,
	"token_sort_ratio":    TokenSortRatio,
	"token_set_ratio":     TokenSetRatio,
	"jaro":                Jaro,
	"jaro_winkler":        JaroWinkler,
	"levenshtein":         Levenshtein,
	"damerau_levenshtein": DamerauLevenshtein,
	"trigram":             Trigram,
}

// Lookup returns the scoring function registered under name.
func Lookup(name string) (Func, bool) {
	f, ok := methods[name]
	return f, ok
}

// Supports reports whether name is a known method.
func Supports(name string) bool {
	_, ok := methods[name]
	return ok
}

// Methods lists the known method names, sorted.
func Methods() []string {
	out := make([]string, 0, len(methods))
	for k := range methods {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Ratio is the normalized indel similarity: 2*LCS / (len(a)+len(b)).
func Ratio(a, b string) float64 {
	a, b = normalize(a), normalize(b)
	la, lb := runeLen(a), runeLen(b)
	if la+lb == 0 {
		return 100
	}
	lcs := matchr.LongestCommonSubsequence(a, b)
	return 100 * 2 * float64(lcs) / float64(la+lb)
}

// PartialRatio is the best Ratio of the shorter string against every
// equal-length window of the longer one.
func PartialRatio(a, b string) float64 {
	ra, rb := []rune(normalize(a)), []rune(normalize(b))
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	if len(ra) == 0 {
		if len(rb) == 0 {
			return 100
		}
		return 0
	}
	short := string(ra)
	best := 0.0
	for i := 0; i+len(ra) <= len(rb); i++ {
		if s := Ratio(short, string(rb[i:i+len(ra)])); s > best {
			best = s
			if best == 100 {
				break
			}
		}
	}
	return best
}

// TokenSortRatio compares the case-folded tokens of a and b after sorting them.
func TokenSortRatio(a, b string) float64 {
	ta, tb := tokens(a), tokens(b)
	sort.Strings(ta)
	sort.Strings(tb)
	return Ratio(strings.Join(ta, " "), strings.Join(tb, " "))
}

// TokenSetRatio compares the shared tokens against each side's full token set
// and keeps the best score, so "acme" and "acme acme inc" score high.
func TokenSetRatio(a, b string) float64 {
	sa, sb := tokenSet(a), tokenSet(b)

	var common, onlyA, onlyB []string
	for t := range sa {
		if sb[t] {
			common = append(common, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range sb {
		if !sa[t] {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(common, " ")
	withA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	withB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	best := Ratio(withA, withB)
	if len(common) > 0 {
		if s := Ratio(base, withA); s > best {
			best = s
		}
		if s := Ratio(base, withB); s > best {
			best = s
		}
	}
	return best
}

// Jaro is the Jaro similarity scaled to 0..100.
func Jaro(a, b string) float64 {
	a, b = normalize(a), normalize(b)
	switch {
	case a == b:
		return 100
	case a == "" || b == "":
		return 0
	}
	a, b = ordered(a, b)
	return 100 * matchr.Jaro(a, b)
}

// JaroWinkler is the Jaro-Winkler similarity scaled to 0..100.
func JaroWinkler(a, b string) float64 {
	a, b = normalize(a), normalize(b)
	switch {
	case a == b:
		return 100
	case a == "" || b == "":
		return 0
	}
	a, b = ordered(a, b)
	return 100 * matchr.JaroWinkler(a, b, false)
}

// Levenshtein is 1 - distance/maxLen, scaled to 0..100.
func Levenshtein(a, b string) float64 {
	a, b = normalize(a), normalize(b)
	return distanceScore(matchr.Levenshtein(a, b), a, b)
}

// DamerauLevenshtein is Levenshtein with adjacent transpositions counted as
// one edit.
func DamerauLevenshtein(a, b string) float64 {
	a, b = normalize(a), normalize(b)
	return distanceScore(matchr.DamerauLevenshtein(a, b), a, b)
}

// Trigram is the Jaccard similarity of padded, case-folded word trigrams, the
// same shape pg_trgm uses.
func Trigram(a, b string) float64 {
	ta, tb := trigrams(a), trigrams(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 100
	}
	shared := 0
	for g := range ta {
		if tb[g] {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	return 100 * float64(shared) / float64(union)
}

func distanceScore(d int, a, b string) float64 {
	longest := runeLen(a)
	if lb := runeLen(b); lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 100
	}
	s := 100 * (1 - float64(d)/float64(longest))
	if s < 0 {
		return 0
	}
	return s
}

// ordered fixes argument order so scores are symmetric.
func ordered(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

func runeLen(s string) int { return len([]rune(s)) }

// rawByteBase maps byte b of an invalid UTF-8 sequence to rune rawByteBase+b
// in the supplementary private use area.
const rawByteBase = 0x10FE00

// normalize returns s in NFC. Bytes that are not valid UTF-8 each become a
// distinct private-use rune instead of collapsing into U+FFFD, so values that
// differ only in those bytes stay distinct.
func normalize(s string) string {
	if utf8.ValidString(s) {
		return norm.NFC.String(s)
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if r == utf8.RuneError && size == 1 {
			b.WriteRune(rawByteBase + rune(s[0]))
		} else {
			b.WriteString(s[:size])
		}
		s = s[size:]
	}
	return norm.NFC.String(b.String())
}

func isRawByte(r rune) bool { return r >= rawByteBase+0x80 && r <= rawByteBase+0xFF }

func tokens(s string) []string {
	return strings.Fields(cases.Fold().String(normalize(s)))
}

func tokenSet(s string) map[string]bool {
	out := map[string]bool{}
	for _, t := range tokens(s) {
		out[t] = true
	}
	return out
}

func trigrams(s string) map[string]bool {
	out := map[string]bool{}
	for _, w := range strings.FieldsFunc(cases.Fold().String(normalize(s)), notAlnum) {
		r := []rune("  " + w + " ")
		for i := 0; i+3 <= len(r); i++ {
			out[string(r[i:i+3])] = true
		}
	}
	return out
}
