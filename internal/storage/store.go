package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config is the minimal configuration needed to open a ValueStore.
//
// When to use:
//   - Use Config when constructing a ValueStore via New.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
//   - Indexes may be nil; backends that maintain similarity indexes then keep
//     a private registry for the lifetime of the store.
type Config struct {
	Kind    string
	DSN     string
	Indexes *IndexRegistry
}

// ValueCount is one distinct non-null value of a column and its row count.
type ValueCount struct {
	Value string
	Count int64
}

// ValueStore is the backend-agnostic interface for reading and rewriting one
// text column.
//
// Each backend implements these semantics in its own idiomatic way (temporary
// key table + joined UPDATE on Postgres and SQL Server, correlated UPDATE on
// SQLite).
type ValueStore interface {
	// Close releases any backend resources (connections, pools).
	//
	// Callers should treat Close as "call once".
	Close()

	// UniqueValueCounts returns one entry per distinct non-null value, most
	// frequent first. Values are returned byte-exact; no trimming.
	UniqueValueCounts(ctx context.Context, table, column string) ([]ValueCount, error)

	// CopyColumn creates column to (if missing) and sets it to column from on
	// every row.
	CopyColumn(ctx context.Context, table, from, to string) error

	// ApplyRewrite sets column to assignments[column] on every row whose value
	// is a key of assignments. It runs in one transaction: either every row is
	// rewritten or none is.
	//
	// Edge cases:
	//   - An empty map is a no-op and must not open a transaction.
	ApplyRewrite(ctx context.Context, table, column string, assignments map[string]string) error
}

// PairQuery selects candidate pairs for a PairFinder.
type PairQuery struct {
	Method         string
	Threshold      float64
	PrefixBlocking int
}

// PairRow is one scored pair as returned by a backend. Scores are 0..100.
type PairRow struct {
	Left, Right           string
	LeftCount, RightCount int64
	Score                 float64
}

// PairFinder is implemented by backends that can score pairs natively for
// some methods (for example pg_trgm on Postgres).
type PairFinder interface {
	SupportsPairMethod(method string) bool
	SimilarPairs(ctx context.Context, table, column string, q PairQuery) ([]PairRow, error)
}

type factory func(ctx context.Context, cfg Config) (ValueStore, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f func(ctx context.Context, cfg Config) (ValueStore, error)) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a ValueStore using the registered backend factory.
//
// Concurrency:
//   - Safe for concurrent use with Register.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (ValueStore, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing storage.kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Rewrite is one from -> to entry of an assignment map.
type Rewrite struct {
	From, To string
}

// SortedRewrites flattens assignments into a slice ordered by From so
// backends issue statements in a stable order.
func SortedRewrites(assignments map[string]string) []Rewrite {
	out := make([]Rewrite, 0, len(assignments))
	for from, to := range assignments {
		out = append(out, Rewrite{From: from, To: to})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].From < out[j].From })
	return out
}

// Chunks splits n items into [start, end) ranges of at most size items.
func Chunks(n, size int) [][2]int {
	if size <= 0 {
		size = n
	}
	var out [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}
