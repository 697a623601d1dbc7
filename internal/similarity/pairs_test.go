package similarity

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"fuzzyclean/internal/fuzzy"
	"fuzzyclean/internal/storage"
)

func robertValues() []fuzzy.UniqueValue {
	return []fuzzy.UniqueValue{{Value: "Robert", Count: 5}, {Value: "Rob", Count: 2}, {Value: "Roberto", Count: 1}, {Value: "Alice", Count: 4}}
}

func TestComputePairs_ThresholdAndOrientation(t *testing.T) {
	t.Parallel()

	pairs, err := ComputePairs(context.Background(), robertValues(), fuzzy.PairQuery{Method: "ratio", Threshold: 80}, 2)
	if err != nil {
		t.Fatalf("ComputePairs: %v", err)
	}
	// Robert~Roberto: 2*6/13 = 92.3; Rob~Robert: 66.7; Rob~Roberto: 60.
	if len(pairs) != 1 {
		t.Fatalf("pairs=%v, want one", pairs)
	}
	p := pairs[0]
	if p.Left != "Robert" || p.Right != "Roberto" || p.LeftCount != 5 || p.RightCount != 1 {
		t.Fatalf("pair=%+v", p)
	}
	if p.Score < 92 || p.Score > 93 {
		t.Fatalf("score=%v, want ~92.3", p.Score)
	}
}

func TestComputePairs_ZeroThresholdPairsEverything(t *testing.T) {
	t.Parallel()

	pairs, err := ComputePairs(context.Background(), robertValues(), fuzzy.PairQuery{Method: "levenshtein"}, 1)
	if err != nil {
		t.Fatalf("ComputePairs: %v", err)
	}
	if len(pairs) != 6 {
		t.Fatalf("pairs=%d, want 6", len(pairs))
	}
	for _, p := range pairs {
		if !(p.Left < p.Right) {
			t.Fatalf("pair not oriented: %+v", p)
		}
	}
}

func TestComputePairs_PrefixBlocking(t *testing.T) {
	t.Parallel()

	values := []fuzzy.UniqueValue{{Value: "acme", Count: 1}, {Value: "ACME", Count: 1}, {Value: "bcme", Count: 1}}
	pairs, err := ComputePairs(context.Background(), values, fuzzy.PairQuery{Method: "ratio", Threshold: 0, PrefixBlocking: 1}, 0)
	if err != nil {
		t.Fatalf("ComputePairs: %v", err)
	}
	want := []fuzzy.Pair{{Left: "ACME", Right: "acme", LeftCount: 1, RightCount: 1, Score: 0}}
	if !reflect.DeepEqual(pairs, want) {
		t.Fatalf("pairs=%v, want %v", pairs, want)
	}
}

func TestComputePairs_WorkersDoNotChangeOutput(t *testing.T) {
	t.Parallel()

	var values []fuzzy.UniqueValue
	for i := 0; i < 60; i++ {
		values = append(values, fuzzy.UniqueValue{Value: fmt.Sprintf("customer %02d", i), Count: int64(i + 1)})
	}
	q := fuzzy.PairQuery{Method: "jaro_winkler", Threshold: 90}

	want, err := ComputePairs(context.Background(), values, q, 1)
	if err != nil {
		t.Fatalf("ComputePairs: %v", err)
	}
	for _, w := range []int{2, 7, 32} {
		got, err := ComputePairs(context.Background(), values, q, w)
		if err != nil {
			t.Fatalf("workers=%d: %v", w, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("workers=%d: output differs", w)
		}
	}
}

func TestComputePairs_Errors(t *testing.T) {
	t.Parallel()

	if _, err := ComputePairs(context.Background(), robertValues(), fuzzy.PairQuery{Method: "soundex"}, 1); !errors.Is(err, fuzzy.ErrUnknownMethod) {
		t.Fatalf("err=%v, want ErrUnknownMethod", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ComputePairs(ctx, robertValues(), fuzzy.PairQuery{Method: "ratio"}, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
}

type fakeValueStore struct {
	values     []storage.ValueCount
	uniqueCall atomic.Int64
	native     map[string]bool
	nativeRows []storage.PairRow
	lastQuery  storage.PairQuery
}

func (f *fakeValueStore) Close() {}
func (f *fakeValueStore) UniqueValueCounts(ctx context.Context, table, column string) ([]storage.ValueCount, error) {
	f.uniqueCall.Add(1)
	return f.values, nil
}
func (f *fakeValueStore) CopyColumn(ctx context.Context, table, from, to string) error { return nil }
func (f *fakeValueStore) ApplyRewrite(ctx context.Context, table, column string, a map[string]string) error {
	return nil
}

type fakePairStore struct{ fakeValueStore }

func (f *fakePairStore) SupportsPairMethod(m string) bool { return f.native[m] }
func (f *fakePairStore) SimilarPairs(ctx context.Context, table, column string, q storage.PairQuery) ([]storage.PairRow, error) {
	f.lastQuery = q
	return f.nativeRows, nil
}

func TestSource_ReadsColumnOncePerRun(t *testing.T) {
	t.Parallel()

	st := &fakeValueStore{values: []storage.ValueCount{{Value: "Robert", Count: 5}, {Value: "Roberto", Count: 1}}}
	src := &Source{Store: st}

	for run := 1; run <= 2; run++ {
		if _, err := src.UniqueValueCounts(context.Background(), "t", "name"); err != nil {
			t.Fatalf("UniqueValueCounts: %v", err)
		}
		pairs, err := src.SimilarPairs(context.Background(), "t", "name", fuzzy.PairQuery{Method: "ratio", Threshold: 80})
		if err != nil {
			t.Fatalf("SimilarPairs: %v", err)
		}
		if len(pairs) != 1 {
			t.Fatalf("pairs=%v, want one", pairs)
		}
		if got := st.uniqueCall.Load(); got != int64(run) {
			t.Fatalf("run %d: store reads=%d, want %d", run, got, run)
		}
	}

	// Without a preceding UniqueValueCounts the source fetches on its own.
	if _, err := src.SimilarPairs(context.Background(), "t", "name", fuzzy.PairQuery{Method: "ratio", Threshold: 80}); err != nil {
		t.Fatalf("SimilarPairs: %v", err)
	}
	if got := st.uniqueCall.Load(); got != 3 {
		t.Fatalf("store reads=%d, want 3", got)
	}
}

func TestSource_DelegatesNativeMethods(t *testing.T) {
	t.Parallel()

	st := &fakePairStore{fakeValueStore{
		native:     map[string]bool{"trigram": true, "pg_similarity": true},
		nativeRows: []storage.PairRow{{Left: "acme", Right: "acme inc", LeftCount: 3, RightCount: 1, Score: 72}},
	}}
	src := &Source{Store: st}

	if !src.SupportsMethod("pg_similarity") || !src.SupportsMethod("ratio") || src.SupportsMethod("soundex") {
		t.Fatalf("SupportsMethod mismatch")
	}

	pairs, err := src.SimilarPairs(context.Background(), "t", "name", fuzzy.PairQuery{Method: "trigram", Threshold: 70, PrefixBlocking: 2})
	if err != nil {
		t.Fatalf("SimilarPairs: %v", err)
	}
	want := []fuzzy.Pair{{Left: "acme", Right: "acme inc", LeftCount: 3, RightCount: 1, Score: 72}}
	if !reflect.DeepEqual(pairs, want) {
		t.Fatalf("pairs=%v, want %v", pairs, want)
	}
	if st.lastQuery != (storage.PairQuery{Method: "trigram", Threshold: 70, PrefixBlocking: 2}) {
		t.Fatalf("query=%+v", st.lastQuery)
	}
	if st.uniqueCall.Load() != 0 {
		t.Fatalf("native path read unique values")
	}
}

func TestSource_UnknownMethod(t *testing.T) {
	t.Parallel()

	src := &Source{Store: &fakeValueStore{}}
	_, err := src.SimilarPairs(context.Background(), "t", "c", fuzzy.PairQuery{Method: "soundex"})
	if !errors.Is(err, fuzzy.ErrUnknownMethod) {
		t.Fatalf("err=%v, want ErrUnknownMethod", err)
	}
	for _, name := range Methods() {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("err=%q, want known method %q listed", err.Error(), name)
		}
	}
}
