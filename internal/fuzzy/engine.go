package fuzzy

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"fuzzyclean/internal/metrics"
)

// Logger is the minimal logging interface used by the engine.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Source provides the values and candidate pairs of a column.
type Source interface {
	// SupportsMethod reports whether the source can score pairs with method.
	// It must not perform I/O; the engine calls it during validation.
	SupportsMethod(method string) bool

	// UniqueValueCounts returns one entry per distinct non-null value.
	UniqueValueCounts(ctx context.Context, table, column string) ([]UniqueValue, error)

	// SimilarPairs returns the pairs scoring at or above q.Threshold.
	SimilarPairs(ctx context.Context, table, column string, q PairQuery) ([]Pair, error)
}

// Rewriter applies a value -> canonical mapping to every matching row in one
// bulk, key-based update.
type Rewriter interface {
	ApplyRewrite(ctx context.Context, table, column string, assignments map[string]string) error
}

// ColumnCopier creates column to as a copy of column from.
type ColumnCopier interface {
	CopyColumn(ctx context.Context, table, from, to string) error
}

// Request names the column to clean and how.
type Request struct {
	Table  string
	Column string

	// OutputColumn receives the cleaned values. Empty or equal to Column
	// rewrites in place; otherwise the column is created as a copy of Column,
	// which is then left untouched.
	OutputColumn string

	Options Options

	// DryRun computes assignments without copying or rewriting anything.
	DryRun bool
}

// Result summarizes one run.
type Result struct {
	RunID        string            `json:"run_id"`
	Table        string            `json:"table"`
	Column       string            `json:"column"`
	OutputColumn string            `json:"output_column"`
	UniqueValues int               `json:"unique_values"`
	Pairs        int               `json:"pairs"`
	Clusters     []Cluster         `json:"clusters,omitempty"`
	Canonicals   []string          `json:"canonicals,omitempty"`
	Assignments  map[string]string `json:"assignments"`
	Applied      bool              `json:"applied"`
}

// Engine runs the single-pass pipeline
// Source -> BuildClusters -> SelectCanonicals -> ToAssignments -> Rewriter.
//
// Nothing is written, not even the output column, until the complete
// assignment map exists, so a failure or cancellation before that point leaves
// the table untouched. Backend errors are
// returned wrapped but otherwise unchanged; the engine never retries.
type Engine struct {
	Source   Source
	Rewriter Rewriter

	// Copier is required only when Request.OutputColumn differs from Column.
	Copier ColumnCopier

	Logger Logger

	// NewRunID is a seam for deterministic tests. Defaults to uuid.NewString.
	NewRunID func() string
}

// Run executes one clean-up pass.
//
// Edge cases:
//   - No values, no pairs, or no non-canonical members end the run early with
//     an empty assignment map; Rewriter is not called. A distinct output
//     column is still created so it always exists after a successful run.
//   - Configuration errors are reported before any Source, Copier or Rewriter call.
func (e *Engine) Run(ctx context.Context, req Request) (Result, error) {
	opts, outCol, err := e.validate(req)
	if err != nil {
		return Result{}, err
	}

	logf := e.logger()
	res := Result{
		RunID:        e.runID(),
		Table:        req.Table,
		Column:       req.Column,
		OutputColumn: outCol,
		Assignments:  map[string]string{},
	}
	logf("stage=start run_id=%s table=%s column=%s output=%s method=%s threshold=%v keep=%s prefix_blocking=%d dry_run=%t",
		res.RunID, req.Table, req.Column, outCol, opts.Method, opts.Threshold, opts.Keep, opts.PrefixBlockingSize, req.DryRun)

	start := time.Now()
	values, err := e.Source.UniqueValueCounts(ctx, req.Table, req.Column)
	if err != nil {
		e.stepFailed("unique_values", start)
		return res, fmt.Errorf("unique values %s.%s: %w", req.Table, req.Column, err)
	}
	e.stepOK("unique_values", start)
	res.UniqueValues = len(values)
	metrics.RecordValues("unique", len(values))
	logf("stage=unique_values ok run_id=%s values=%d duration=%s", res.RunID, len(values), durMS(start))

	if len(values) < 2 {
		return e.write(ctx, req, res, "empty")
	}

	start = time.Now()
	pairs, err := e.Source.SimilarPairs(ctx, req.Table, req.Column, opts.Query())
	if err != nil {
		e.stepFailed("pairs", start)
		return res, fmt.Errorf("similar pairs %s.%s: %w", req.Table, req.Column, err)
	}
	pairs = normalizePairs(pairs)
	e.stepOK("pairs", start)
	res.Pairs = len(pairs)
	logf("stage=pairs ok run_id=%s pairs=%d duration=%s", res.RunID, len(pairs), durMS(start))

	if len(pairs) == 0 {
		return e.write(ctx, req, res, "no_pairs")
	}

	start = time.Now()
	clusters := BuildClusters(pairs)
	canonicals, err := SelectCanonicals(clusters, pairs, countsOf(values), opts.Keep)
	if err != nil {
		e.stepFailed("cluster", start)
		return res, err
	}
	assignments, err := ToAssignments(clusters, canonicals)
	if err != nil {
		e.stepFailed("cluster", start)
		return res, err
	}
	e.stepOK("cluster", start)
	res.Clusters = clusters
	res.Canonicals = canonicals
	res.Assignments = assignments
	metrics.RecordClusters(len(clusters))
	metrics.RecordValues("paired", pairedValues(clusters))
	logf("stage=cluster ok run_id=%s clusters=%d assignments=%d duration=%s", res.RunID, len(clusters), len(assignments), durMS(start))

	if len(assignments) == 0 {
		return e.write(ctx, req, res, "converged")
	}
	if req.DryRun {
		return e.finish(res, "dry_run"), nil
	}
	return e.write(ctx, req, res, "applied")
}

// write performs every side effect of a run once res holds the complete
// mapping: it creates the output column when it differs from the input, then
// applies res.Assignments to it.
func (e *Engine) write(ctx context.Context, req Request, res Result, status string) (Result, error) {
	outCol := res.OutputColumn
	if req.DryRun || (outCol == req.Column && len(res.Assignments) == 0) {
		return e.finish(res, status), nil
	}
	logf := e.logger()

	// Last chance to abort before the first write.
	if err := ctx.Err(); err != nil {
		metrics.RecordRun("error", false)
		logf("stage=done run_id=%s status=error applied=false err=%v", res.RunID, err)
		return res, fmt.Errorf("rewrite %s.%s: %w", req.Table, outCol, err)
	}

	if outCol != req.Column {
		start := time.Now()
		if err := e.Copier.CopyColumn(ctx, req.Table, req.Column, outCol); err != nil {
			e.stepFailed("copy_column", start)
			return res, fmt.Errorf("copy column %s -> %s: %w", req.Column, outCol, err)
		}
		e.stepOK("copy_column", start)
		logf("stage=copy_column ok run_id=%s duration=%s", res.RunID, durMS(start))
	}
	if len(res.Assignments) == 0 {
		return e.finish(res, status), nil
	}

	start := time.Now()
	if err := e.Rewriter.ApplyRewrite(ctx, req.Table, outCol, res.Assignments); err != nil {
		e.stepFailed("rewrite", start)
		return res, fmt.Errorf("rewrite %s.%s: %w", req.Table, outCol, err)
	}
	e.stepOK("rewrite", start)
	res.Applied = true
	metrics.RecordValues("rewritten", len(res.Assignments))
	logf("stage=rewrite ok run_id=%s assignments=%d duration=%s", res.RunID, len(res.Assignments), durMS(start))

	return e.finish(res, status), nil
}

func (e *Engine) validate(req Request) (Resolved, string, error) {
	if e.Source == nil {
		return Resolved{}, "", fmt.Errorf("%w: engine Source is required", ErrInvalidOptions)
	}
	if strings.TrimSpace(req.Table) == "" {
		return Resolved{}, "", fmt.Errorf("%w: table is required", ErrInvalidOptions)
	}
	if strings.TrimSpace(req.Column) == "" {
		return Resolved{}, "", fmt.Errorf("%w: column is required", ErrInvalidOptions)
	}

	opts, err := req.Options.Resolve(e.Source.SupportsMethod)
	if err != nil {
		return Resolved{}, "", err
	}

	outCol := strings.TrimSpace(req.OutputColumn)
	if outCol == "" {
		outCol = req.Column
	}
	if req.DryRun {
		return opts, outCol, nil
	}
	if e.Rewriter == nil {
		return Resolved{}, "", fmt.Errorf("%w: engine Rewriter is required", ErrInvalidOptions)
	}
	if outCol != req.Column && e.Copier == nil {
		return Resolved{}, "", fmt.Errorf("%w: output column %q needs a ColumnCopier", ErrInvalidOptions, outCol)
	}
	return opts, outCol, nil
}

func (e *Engine) finish(res Result, status string) Result {
	e.logger()("stage=done run_id=%s status=%s applied=%t", res.RunID, status, res.Applied)
	metrics.RecordRun(status, res.Applied)
	return res
}

func (e *Engine) stepOK(step string, start time.Time) {
	metrics.RecordStep(step, "ok", time.Since(start))
}

func (e *Engine) stepFailed(step string, start time.Time) {
	metrics.RecordStep(step, "error", time.Since(start))
	metrics.RecordRun("error", false)
}

func (e *Engine) runID() string {
	if e.NewRunID != nil {
		return e.NewRunID()
	}
	return uuid.NewString()
}

func (e *Engine) logger() func(format string, v ...any) {
	if e.Logger == nil {
		return log.New(io.Discard, "", 0).Printf
	}
	return e.Logger.Printf
}

func durMS(start time.Time) time.Duration { return time.Since(start).Truncate(time.Millisecond) }

func countsOf(values []UniqueValue) map[string]int64 {
	out := make(map[string]int64, len(values))
	for _, v := range values {
		out[v.Value] = v.Count
	}
	return out
}

func pairedValues(clusters []Cluster) int {
	n := 0
	for _, c := range clusters {
		n += len(c.Members)
	}
	return n
}
