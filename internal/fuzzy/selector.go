package fuzzy

import (
	"fmt"
	"unicode/utf8"
)

// SelectCanonicals picks one canonical value per cluster. The returned slice is
// aligned with clusters.
//
// counts supplies row counts per value; values missing from it fall back to the
// counts carried on the pairs. Each cluster only reads its own pairs, so the
// result for one cluster never depends on another.
//
// Tie-breaks are fully determined by the policy chain and end with the
// lexicographically smallest value, so the outcome does not depend on the
// order of members or pairs.
func SelectCanonicals(clusters []Cluster, pairs []Pair, counts map[string]int64, policy Policy) ([]string, error) {
	policy, err := ParsePolicy(string(policy))
	if err != nil {
		return nil, err
	}
	if len(clusters) == 0 {
		return nil, nil
	}

	pairs = normalizePairs(pairs)
	member := membership(clusters)

	merged := make(map[string]int64, len(member))
	for v, n := range counts {
		merged[v] = n
	}

	perCluster := make([][]Pair, len(clusters))
	for _, p := range pairs {
		ci, ok := member[p.Left]
		if !ok {
			continue
		}
		if cj, ok := member[p.Right]; !ok || cj != ci {
			continue
		}
		perCluster[ci] = append(perCluster[ci], p)

		if _, ok := merged[p.Left]; !ok {
			merged[p.Left] = p.LeftCount
		}
		if _, ok := merged[p.Right]; !ok {
			merged[p.Right] = p.RightCount
		}
	}

	out := make([]string, len(clusters))
	for i, c := range clusters {
		s := selector{
			policy: policy,
			counts: merged,
			scores: &clusterScores{pairs: perCluster[i]},
		}
		out[i] = s.pick(c.Members)
	}
	return out, nil
}

type selector struct {
	policy Policy
	counts map[string]int64
	scores *clusterScores
}

func (s selector) pick(members []string) string {
	if len(members) == 0 {
		return ""
	}
	best := members[0]
	for _, m := range members[1:] {
		if s.better(m, best) {
			best = m
		}
	}
	return best
}

// better reports whether a strictly beats b under the policy. It is a strict
// total order over distinct values, which makes the reduction order-independent.
func (s selector) better(a, b string) bool {
	switch s.policy {
	case MostCommon:
		if ca, cb := s.counts[a], s.counts[b]; ca != cb {
			return ca > cb
		}
	case LongestString:
		if la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b); la != lb {
			return la > lb
		}
	case ShortestString:
		if la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b); la != lb {
			return la < lb
		}
	case MaxScore:
		if ma, mb := s.scores.Max(a), s.scores.Max(b); ma != mb {
			return ma > mb
		}
	case MostCentral:
		// falls through to the shared sum tie-break below
	default:
		panic(fmt.Sprintf("fuzzy: unhandled policy %q", s.policy))
	}

	if sa, sb := s.scores.Sum(a), s.scores.Sum(b); sa != sb {
		return sa > sb
	}
	return a < b
}
