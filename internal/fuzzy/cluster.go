package fuzzy

import "sort"

// BuildClusters groups every value referenced by a pair into connected
// components of the similarity graph.
//
// Clustering is single-linkage: if A~B and B~C both qualify, A and C share a
// cluster even when A~C was never compared or scored below threshold.
//
// Edge cases:
//   - No pairs -> no clusters.
//   - Values that appear in no pair never get a cluster.
//   - Self-pairs are ignored.
func BuildClusters(pairs []Pair) []Cluster {
	if len(pairs) == 0 {
		return nil
	}

	ds := newDisjointSet(len(pairs))
	for _, p := range pairs {
		if p.Left == p.Right {
			continue
		}
		ds.union(p.Left, p.Right)
	}
	if ds.len() == 0 {
		return nil
	}

	groups := ds.groups()
	out := make([]Cluster, 0, len(groups))
	for _, g := range groups {
		if len(g) < 2 {
			continue
		}
		out = append(out, Cluster{Members: g})
	}
	return out
}

// membership maps each clustered value to the index of its cluster.
func membership(clusters []Cluster) map[string]int {
	n := 0
	for _, c := range clusters {
		n += len(c.Members)
	}
	out := make(map[string]int, n)
	for i, c := range clusters {
		for _, m := range c.Members {
			out[m] = i
		}
	}
	return out
}

// normalizePairs orients every pair as Left < Right, drops self-pairs and
// collapses duplicate edges to the highest score. The result is sorted by
// (Left, Right) so downstream float sums are order-independent.
func normalizePairs(pairs []Pair) []Pair {
	if len(pairs) == 0 {
		return nil
	}

	type edge struct{ l, r string }
	seen := make(map[edge]int, len(pairs))
	out := make([]Pair, 0, len(pairs))

	for _, p := range pairs {
		if p.Left == p.Right {
			continue
		}
		if p.Right < p.Left {
			p.Left, p.Right = p.Right, p.Left
			p.LeftCount, p.RightCount = p.RightCount, p.LeftCount
		}
		k := edge{p.Left, p.Right}
		if i, ok := seen[k]; ok {
			if p.Score > out[i].Score {
				out[i].Score = p.Score
			}
			continue
		}
		seen[k] = len(out)
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Left != out[j].Left {
			return out[i].Left < out[j].Left
		}
		return out[i].Right < out[j].Right
	})
	return out
}
