// Package fuzzy clusters near-duplicate values of a text column and computes
// the minimal value -> canonical mapping needed to rewrite them.
//
// The package performs no I/O of its own. Values and candidate pairs come from a
// Source, and the final mapping is handed to a Rewriter. Everything in between
// (clustering, canonical selection, assignment compaction) is a pure in-memory
// transform over the complete pair set.
package fuzzy

import "errors"

var (
	// ErrUnknownPolicy is returned when Options.Keep names no known policy.
	ErrUnknownPolicy = errors.New("fuzzy: unknown keep policy")

	// ErrUnknownMethod is returned when Options.Method is not supported by the Source.
	ErrUnknownMethod = errors.New("fuzzy: unknown similarity method")

	// ErrInvalidOptions covers all other configuration errors.
	ErrInvalidOptions = errors.New("fuzzy: invalid options")
)

// UniqueValue is a distinct non-null value of the target column and the number
// of rows holding it.
type UniqueValue struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// Pair links two distinct values whose similarity score met the threshold.
//
// Sources should emit Left < Right. The engine normalizes orientation anyway and
// drops self-pairs, so a sloppy source cannot create duplicate edges.
type Pair struct {
	Left       string  `json:"left"`
	Right      string  `json:"right"`
	LeftCount  int64   `json:"left_count"`
	RightCount int64   `json:"right_count"`
	Score      float64 `json:"score"`
}

// Cluster is a connected component of the similarity graph. Members are sorted
// and there are always at least two of them.
type Cluster struct {
	Members []string `json:"members"`
}

// PairQuery describes how a Source should find candidate pairs.
type PairQuery struct {
	Method    string
	Threshold float64

	// PrefixBlocking restricts comparisons to values sharing this many leading
	// characters (case-insensitive). 0 disables blocking.
	PrefixBlocking int
}
