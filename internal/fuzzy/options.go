package fuzzy

import (
	"fmt"
	"strings"
)

// Defaults applied by Options.Resolve.
const (
	DefaultMethod    = "ratio"
	DefaultThreshold = 80.0
)

// Options configures one clean-up run. Zero values mean "use the default".
type Options struct {
	// Method names the similarity scoring function. Default "ratio".
	Method string `json:"method"`

	// Threshold is the minimum score (0..100) for two values to pair.
	// Nil means DefaultThreshold; an explicit 0 pairs everything.
	Threshold *float64 `json:"threshold,omitempty"`

	// Keep is the canonical selection policy. Default "mostCommon".
	Keep string `json:"keep"`

	// PrefixBlockingSize restricts comparisons to values sharing that many
	// leading characters, case-insensitively. 0 compares every pair.
	PrefixBlockingSize int `json:"prefix_blocking_size"`
}

// Resolved is Options after defaults and validation.
type Resolved struct {
	Method             string
	Threshold          float64
	Keep               Policy
	PrefixBlockingSize int
}

// Query returns the PairQuery matching these options.
func (r Resolved) Query() PairQuery {
	return PairQuery{Method: r.Method, Threshold: r.Threshold, PrefixBlocking: r.PrefixBlockingSize}
}

// Resolve applies defaults and validates o.
//
// supports, when non-nil, decides whether a method name is known. Method
// validation is otherwise limited to rejecting blank names after defaults.
//
// Errors wrap ErrUnknownPolicy, ErrUnknownMethod or ErrInvalidOptions.
func (o Options) Resolve(supports func(method string) bool) (Resolved, error) {
	method := strings.TrimSpace(o.Method)
	if method == "" {
		method = DefaultMethod
	}
	if supports != nil && !supports(method) {
		return Resolved{}, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}

	keep, err := ParsePolicy(o.Keep)
	if err != nil {
		return Resolved{}, err
	}

	threshold := DefaultThreshold
	if o.Threshold != nil {
		threshold = *o.Threshold
	}
	if threshold < 0 || threshold > 100 {
		return Resolved{}, fmt.Errorf("%w: threshold %v outside 0..100", ErrInvalidOptions, threshold)
	}

	if o.PrefixBlockingSize < 0 {
		return Resolved{}, fmt.Errorf("%w: prefix_blocking_size %d must be >= 0", ErrInvalidOptions, o.PrefixBlockingSize)
	}

	return Resolved{
		Method:             method,
		Threshold:          threshold,
		Keep:               keep,
		PrefixBlockingSize: o.PrefixBlockingSize,
	}, nil
}

// Float64 is a small helper for setting Options.Threshold.
func Float64(v float64) *float64 { return &v }
