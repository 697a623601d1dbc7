package similarity

import (
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestMethods_IdenticalScoresHundred(t *testing.T) {
	t.Parallel()

	for _, name := range Methods() {
		f, _ := Lookup(name)
		for _, v := range []string{"Robert", "acme inc", "Zoë"} {
			if got := f(v, v); !near(got, 100) {
				t.Fatalf("%s(%q,%q)=%v, want 100", name, v, v, got)
			}
		}
	}
}

func TestMethods_SymmetricAndBounded(t *testing.T) {
	t.Parallel()

	inputs := [][2]string{
		{"Robert", "Rob"},
		{"Acme Inc", "ACME incorporated"},
		{"cat", "dog"},
		{"", "x"},
		{"New York", "York New"},
	}
	for _, name := range Methods() {
		f, _ := Lookup(name)
		for _, in := range inputs {
			ab, ba := f(in[0], in[1]), f(in[1], in[0])
			if !near(ab, ba) {
				t.Fatalf("%s not symmetric on %q: %v vs %v", name, in, ab, ba)
			}
			if ab < 0 || ab > 100 {
				t.Fatalf("%s(%q)=%v outside 0..100", name, in, ab)
			}
		}
	}
}

func TestRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want float64
	}{
		{a: "Robert", b: "Rob", want: 100 * 2 * 3 / 9.0},
		{a: "abc", b: "xyz", want: 0},
		{a: "", b: "", want: 100},
		{a: "ab", b: "ba", want: 50},
	}
	for _, tc := range tests {
		if got := Ratio(tc.a, tc.b); !near(got, tc.want) {
			t.Fatalf("Ratio(%q,%q)=%v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestRatio_NormalizesComposedForms(t *testing.T) {
	t.Parallel()

	// "é" precomposed vs e + combining acute.
	if got := Ratio("caf\u00e9", "cafe\u0301"); !near(got, 100) {
		t.Fatalf("Ratio=%v, want 100 after NFC", got)
	}
}

func TestMethods_InvalidUTF8BytesStayDistinct(t *testing.T) {
	t.Parallel()

	a, b := "a\xffb", "a\xfeb"
	for _, name := range Methods() {
		f, _ := Lookup(name)
		if got := f(a, b); got >= 100 {
			t.Fatalf("%s(%q,%q)=%v, want < 100", name, a, b, got)
		}
		if got := f(a, a); !near(got, 100) {
			t.Fatalf("%s(%q,%q)=%v, want 100", name, a, a, got)
		}
	}
	if BlockKey(a, 2) == BlockKey(b, 2) {
		t.Fatalf("BlockKey(%q)=BlockKey(%q)=%q, want distinct", a, b, BlockKey(a, 2))
	}
}

func TestTokenMethods(t *testing.T) {
	t.Parallel()

	if got := TokenSortRatio("New York Mets", "mets new york"); !near(got, 100) {
		t.Fatalf("TokenSortRatio=%v, want 100", got)
	}
	if got := TokenSetRatio("acme", "Acme acme Inc"); !near(got, 100) {
		t.Fatalf("TokenSetRatio=%v, want 100", got)
	}
	if got := PartialRatio("york", "new york city"); !near(got, 100) {
		t.Fatalf("PartialRatio=%v, want 100", got)
	}
}

func TestDistanceMethods(t *testing.T) {
	t.Parallel()

	if got := Levenshtein("kitten", "sitting"); !near(got, 100*(1-3.0/7)) {
		t.Fatalf("Levenshtein=%v", got)
	}
	// One transposition: DL distance 1, plain Levenshtein 2.
	if dl, l := DamerauLevenshtein("abcd", "acbd"), Levenshtein("abcd", "acbd"); !(dl > l) || !near(dl, 75) {
		t.Fatalf("DamerauLevenshtein=%v Levenshtein=%v", dl, l)
	}
}

func TestTrigram(t *testing.T) {
	t.Parallel()

	// "cat" -> {"  c"," ca","cat","at "}; "Cat" folds to the same set.
	if got := Trigram("cat", "Cat"); !near(got, 100) {
		t.Fatalf("Trigram=%v, want 100", got)
	}
	// "cat" vs "cap": shared {"  c"," ca"} of 6 distinct.
	if got := Trigram("cat", "cap"); !near(got, 100*2/6.0) {
		t.Fatalf("Trigram=%v, want %v", got, 100*2/6.0)
	}
}

func TestJaroWinklerPrefersSharedPrefix(t *testing.T) {
	t.Parallel()

	if jw, j := JaroWinkler("martha", "marhta"), Jaro("martha", "marhta"); !(jw > j) {
		t.Fatalf("JaroWinkler=%v should exceed Jaro=%v", jw, j)
	}
}

func TestLookupUnknown(t *testing.T) {
	t.Parallel()

	if _, ok := Lookup("soundex"); ok {
		t.Fatalf("soundex should not be registered")
	}
	if Supports("") {
		t.Fatalf("empty method should not be supported")
	}
}

func TestBlockKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		v    string
		n    int
		want string
	}{
		{v: "Robert", n: 0, want: ""},
		{v: "Robert", n: 2, want: "ro"},
		{v: "ROB", n: 2, want: "ro"},
		{v: "R", n: 3, want: "r"},
		{v: "ÉMILE", n: 2, want: "ém"},
		{v: "Émile", n: 1, want: "é"},
	}
	for _, tc := range tests {
		if got := BlockKey(tc.v, tc.n); got != tc.want {
			t.Fatalf("BlockKey(%q,%d)=%q, want %q", tc.v, tc.n, got, tc.want)
		}
	}
}
