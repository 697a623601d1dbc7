package fuzzy

import "fmt"

// ToAssignments turns per-cluster canonicals into the minimal rewrite map.
//
// Only non-canonical cluster members appear as keys, so a cluster of size k
// contributes exactly k-1 entries. Canonical values and values outside any
// cluster are never emitted.
func ToAssignments(clusters []Cluster, canonicals []string) (map[string]string, error) {
	if len(clusters) != len(canonicals) {
		return nil, fmt.Errorf("fuzzy: %d clusters but %d canonicals", len(clusters), len(canonicals))
	}

	n := 0
	for _, c := range clusters {
		n += len(c.Members) - 1
	}
	out := make(map[string]string, n)

	for i, c := range clusters {
		canon := canonicals[i]
		for _, m := range c.Members {
			if m == canon {
				continue
			}
			out[m] = canon
		}
	}
	return out, nil
}
