package job

import (
	"context"
	"fmt"
	"time"

	"fuzzyclean/internal/fuzzy"
	"fuzzyclean/internal/similarity"
	"fuzzyclean/internal/storage"
)

// Runner opens the configured store and runs the engine against it.
type Runner struct {
	// storage-agnostic factory seam
	NewStore func(ctx context.Context, cfg storage.Config) (storage.ValueStore, error)

	Logger fuzzy.Logger

	// Indexes remembers similarity indexes prepared by earlier runs of this
	// process. Nil gives every Run a fresh registry.
	Indexes *storage.IndexRegistry

	// NewRunID overrides the engine's run id generator (tests).
	NewRunID func() string
}

func NewDefaultRunner(logger fuzzy.Logger) *Runner {
	return &Runner{
		NewStore: storage.New,
		Logger:   logger,
		Indexes:  storage.NewIndexRegistry(),
	}
}

// Run validates cfg, opens its store, and performs one clean-up pass.
//
// The store is closed before Run returns.
func (r *Runner) Run(ctx context.Context, cfg Config) (fuzzy.Result, error) {
	if err := cfg.Validate(); err != nil {
		return fuzzy.Result{}, err
	}

	newStore := r.NewStore
	if newStore == nil {
		newStore = storage.New
	}
	indexes := r.Indexes
	if indexes == nil {
		indexes = storage.NewIndexRegistry()
	}

	store, err := newStore(ctx, storage.Config{
		Kind:    cfg.Storage.Kind,
		DSN:     cfg.ExpandedDSN(),
		Indexes: indexes,
	})
	if err != nil {
		return fuzzy.Result{}, fmt.Errorf("open %s store: %w", cfg.Storage.Kind, err)
	}
	defer store.Close()

	var backend storage.ValueStore = store
	if cfg.Runtime.DebugTimings && r.Logger != nil {
		backend = newTimedStore(store, r.Logger)
	}

	engine := &fuzzy.Engine{
		Source:   &similarity.Source{Store: backend, Workers: cfg.Runtime.ScoreWorkers},
		Rewriter: backend,
		Copier:   backend,
		Logger:   r.Logger,
		NewRunID: r.NewRunID,
	}

	return engine.Run(ctx, fuzzy.Request{
		Table:        cfg.Target.Table,
		Column:       cfg.Target.Column,
		OutputColumn: cfg.Target.OutputColumn,
		Options:      cfg.Options,
		DryRun:       cfg.Runtime.DryRun,
	})
}

// timedStore logs the duration of every backend call.
type timedStore struct {
	storage.ValueStore
	log fuzzy.Logger
}

// timedPairStore is a timedStore over a store that also finds pairs natively.
type timedPairStore struct {
	*timedStore
	pf storage.PairFinder
}

// newTimedStore keeps the storage.PairFinder capability of s visible.
func newTimedStore(s storage.ValueStore, log fuzzy.Logger) storage.ValueStore {
	ts := &timedStore{ValueStore: s, log: log}
	if pf, ok := s.(storage.PairFinder); ok {
		return &timedPairStore{timedStore: ts, pf: pf}
	}
	return ts
}

func (t *timedStore) done(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	t.log.Printf("stage=backend op=%s status=%s duration=%s", op, status, time.Since(start).Truncate(time.Microsecond))
}

func (t *timedStore) UniqueValueCounts(ctx context.Context, table, column string) ([]storage.ValueCount, error) {
	start := time.Now()
	out, err := t.ValueStore.UniqueValueCounts(ctx, table, column)
	t.done("unique_value_counts", start, err)
	return out, err
}

func (t *timedStore) CopyColumn(ctx context.Context, table, from, to string) error {
	start := time.Now()
	err := t.ValueStore.CopyColumn(ctx, table, from, to)
	t.done("copy_column", start, err)
	return err
}

func (t *timedStore) ApplyRewrite(ctx context.Context, table, column string, assignments map[string]string) error {
	start := time.Now()
	err := t.ValueStore.ApplyRewrite(ctx, table, column, assignments)
	t.done("apply_rewrite", start, err)
	return err
}

func (t *timedPairStore) SupportsPairMethod(method string) bool {
	return t.pf.SupportsPairMethod(method)
}

func (t *timedPairStore) SimilarPairs(ctx context.Context, table, column string, q storage.PairQuery) ([]storage.PairRow, error) {
	start := time.Now()
	out, err := t.pf.SimilarPairs(ctx, table, column, q)
	t.done("similar_pairs", start, err)
	return out, err
}
