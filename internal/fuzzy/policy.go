package fuzzy

import (
	"fmt"
	"strings"
)

// Policy decides which member of a cluster becomes its canonical value.
type Policy string

const (
	// MostCommon keeps the value with the most rows.
	MostCommon Policy = "mostCommon"
	// LongestString keeps the value with the most characters.
	LongestString Policy = "longestString"
	// ShortestString keeps the value with the fewest characters.
	ShortestString Policy = "shortestString"
	// MostCentral keeps the value with the highest summed similarity to the rest of its cluster.
	MostCentral Policy = "mostCentral"
	// MaxScore keeps the value taking part in the single strongest pair.
	MaxScore Policy = "maxScore"
)

// DefaultPolicy is used when no policy is configured.
const DefaultPolicy = MostCommon

var policies = []Policy{MostCommon, LongestString, ShortestString, MostCentral, MaxScore}

// ParsePolicy resolves a configured keep value. Empty means DefaultPolicy.
func ParsePolicy(s string) (Policy, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultPolicy, nil
	}
	for _, p := range policies {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q (want one of %s)", ErrUnknownPolicy, s, policyList())
}

func policyList() string {
	names := make([]string, len(policies))
	for i, p := range policies {
		names[i] = string(p)
	}
	return strings.Join(names, "|")
}
