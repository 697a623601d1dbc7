package similarity

import (
	"context"
	"sync"

	"fuzzyclean/internal/fuzzy"
	"fuzzyclean/internal/storage"
)

// Source adapts a storage.ValueStore to fuzzy.Source.
//
// Pairs are scored in memory with ComputePairs unless the store implements
// storage.PairFinder and supports the requested method natively.
//
// The unique values fetched by UniqueValueCounts are reused by the next
// SimilarPairs call for the same column and then dropped, so one engine run
// reads the column once and a later run sees fresh data.
type Source struct {
	Store storage.ValueStore

	// Workers bounds in-memory scoring goroutines. <= 0 means GOMAXPROCS.
	Workers int

	mu     sync.Mutex
	cached map[string][]fuzzy.UniqueValue
}

var _ fuzzy.Source = (*Source)(nil)

// SupportsMethod reports whether either the store or the in-memory scorer
// knows method.
func (s *Source) SupportsMethod(method string) bool {
	if Supports(method) {
		return true
	}
	pf, ok := s.Store.(storage.PairFinder)
	return ok && pf.SupportsPairMethod(method)
}

// UniqueValueCounts reads the distinct values of table.column.
func (s *Source) UniqueValueCounts(ctx context.Context, table, column string) ([]fuzzy.UniqueValue, error) {
	rows, err := s.Store.UniqueValueCounts(ctx, table, column)
	if err != nil {
		return nil, err
	}
	out := make([]fuzzy.UniqueValue, 0, len(rows))
	for _, r := range rows {
		out = append(out, fuzzy.UniqueValue{Value: r.Value, Count: r.Count})
	}

	s.mu.Lock()
	if s.cached == nil {
		s.cached = map[string][]fuzzy.UniqueValue{}
	}
	s.cached[cacheKey(table, column)] = out
	s.mu.Unlock()
	return out, nil
}

// SimilarPairs returns the pairs of table.column scoring at or above q.Threshold.
func (s *Source) SimilarPairs(ctx context.Context, table, column string, q fuzzy.PairQuery) ([]fuzzy.Pair, error) {
	if pf, ok := s.Store.(storage.PairFinder); ok && pf.SupportsPairMethod(q.Method) {
		s.take(table, column)
		rows, err := pf.SimilarPairs(ctx, table, column, storage.PairQuery{
			Method:         q.Method,
			Threshold:      q.Threshold,
			PrefixBlocking: q.PrefixBlocking,
		})
		if err != nil {
			return nil, err
		}
		out := make([]fuzzy.Pair, 0, len(rows))
		for _, r := range rows {
			out = append(out, fuzzy.Pair{Left: r.Left, Right: r.Right, LeftCount: r.LeftCount, RightCount: r.RightCount, Score: r.Score})
		}
		return out, nil
	}

	if !Supports(q.Method) {
		return nil, UnknownMethodError(q.Method)
	}

	values, ok := s.take(table, column)
	if !ok {
		var err error
		if values, err = s.UniqueValueCounts(ctx, table, column); err != nil {
			return nil, err
		}
		s.take(table, column)
	}
	return ComputePairs(ctx, values, q, s.Workers)
}

func (s *Source) take(table, column string) ([]fuzzy.UniqueValue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := cacheKey(table, column)
	v, ok := s.cached[k]
	delete(s.cached, k)
	return v, ok
}

func cacheKey(table, column string) string { return table + "\x00" + column }
