package similarity

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"fuzzyclean/internal/fuzzy"
)

// UnknownMethodError wraps fuzzy.ErrUnknownMethod and lists the known methods.
func UnknownMethodError(name string) error {
	return fmt.Errorf("%w: %q (known: %s)", fuzzy.ErrUnknownMethod, name, strings.Join(Methods(), ", "))
}

// ComputePairs scores every pair of values that share a block and returns
// those at or above q.Threshold, oriented Left < Right and sorted.
//
// Scoring fans out over at most workers goroutines (<= 0 means GOMAXPROCS).
// Output does not depend on workers.
func ComputePairs(ctx context.Context, values []fuzzy.UniqueValue, q fuzzy.PairQuery, workers int) ([]fuzzy.Pair, error) {
	score, ok := Lookup(q.Method)
	if !ok {
		return nil, UnknownMethodError(q.Method)
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	blocks := blockValues(values, q.PrefixBlocking)

	// One task per (block, row) keeps tasks small without materialising pairs.
	type task struct{ block, row int }
	var tasks []task
	for b, blk := range blocks {
		for i := 0; i+1 < len(blk); i++ {
			tasks = append(tasks, task{block: b, row: i})
		}
	}

	results := make([][]fuzzy.Pair, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for ti, tk := range tasks {
		ti, tk := ti, tk
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			blk := blocks[tk.block]
			a := blk[tk.row]
			var out []fuzzy.Pair
			for _, b := range blk[tk.row+1:] {
				if a.Value == b.Value {
					continue
				}
				s := score(a.Value, b.Value)
				if s < q.Threshold {
					continue
				}
				out = append(out, orient(a, b, s))
			}
			results[ti] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var pairs []fuzzy.Pair
	for _, r := range results {
		pairs = append(pairs, r...)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Left != pairs[j].Left {
			return pairs[i].Left < pairs[j].Left
		}
		return pairs[i].Right < pairs[j].Right
	})
	return pairs, nil
}

// blockValues groups values by BlockKey; blocks and their members are sorted
// so task order is stable.
func blockValues(values []fuzzy.UniqueValue, n int) [][]fuzzy.UniqueValue {
	byKey := map[string][]fuzzy.UniqueValue{}
	for _, v := range values {
		k := BlockKey(v.Value, n)
		byKey[k] = append(byKey[k], v)
	}
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([][]fuzzy.UniqueValue, 0, len(keys))
	for _, k := range keys {
		blk := byKey[k]
		if len(blk) < 2 {
			continue
		}
		sort.Slice(blk, func(i, j int) bool { return blk[i].Value < blk[j].Value })
		out = append(out, blk)
	}
	return out
}

func orient(a, b fuzzy.UniqueValue, score float64) fuzzy.Pair {
	if b.Value < a.Value {
		a, b = b, a
	}
	return fuzzy.Pair{Left: a.Value, Right: b.Value, LeftCount: a.Count, RightCount: b.Count, Score: score}
}
