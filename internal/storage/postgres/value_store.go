package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fuzzyclean/internal/storage"
)

/*
ValueStore implements storage.ValueStore and storage.PairFinder for Postgres.

It provides:
  - Distinct value counts compared as text
  - Column copy with ADD COLUMN IF NOT EXISTS
  - Transactional rewrite through a COPY-loaded temp key table
  - Native "trigram" pairs through pg_trgm

Rewrite behavior matches the MSSQL and SQLite implementations.
*/
type ValueStore struct {
	pool    *pgxpool.Pool
	indexes *storage.IndexRegistry
}

var _ storage.PairFinder = (*ValueStore)(nil)

// New creates a new Postgres-backed ValueStore.
func New(ctx context.Context, cfg storage.Config) (storage.ValueStore, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	indexes := cfg.Indexes
	if indexes == nil {
		indexes = storage.NewIndexRegistry()
	}
	return &ValueStore{pool: pool, indexes: indexes}, nil
}

// Close closes the connection pool.
func (s *ValueStore) Close() {
	s.pool.Close()
}

// UniqueValueCounts returns the distinct non-null values of table.column as
// text, most frequent first.
func (s *ValueStore) UniqueValueCounts(ctx context.Context, table, column string) ([]storage.ValueCount, error) {
	rows, err := s.pool.Query(ctx, buildUniqueValuesSQL(table, column))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.ValueCount, error) {
		var vc storage.ValueCount
		err := row.Scan(&vc.Value, &vc.Count)
		return vc, err
	})
}

// CopyColumn adds column to (text) when missing and copies column from into it.
func (s *ValueStore) CopyColumn(ctx context.Context, table, from, to string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, stmt := range buildCopyColumnSQL(table, from, to) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("copy column %s -> %s: %w", from, to, err)
		}
	}
	return tx.Commit(ctx)
}

// ApplyRewrite loads assignments with COPY into a temp table that is dropped
// on commit, then rewrites table.column with one UPDATE ... FROM.
func (s *ValueStore) ApplyRewrite(ctx context.Context, table, column string, assignments map[string]string) error {
	if len(assignments) == 0 {
		return nil
	}
	rewrites := storage.SortedRewrites(assignments)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, createRewriteTableSQL); err != nil {
		return fmt.Errorf("create rewrite table: %w", err)
	}

	rows := make([][]any, len(rewrites))
	for i, r := range rewrites {
		rows[i] = []any{r.From, r.To}
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{"fuzzyclean_rewrite"}, []string{"fc_key", "fc_value"}, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy rewrite keys: %w", err)
	}
	if n != int64(len(rows)) {
		return fmt.Errorf("copy rewrite keys: copied %d of %d rows", n, len(rows))
	}

	if _, err := tx.Exec(ctx, buildRewriteSQL(table, column)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SupportsPairMethod reports the methods scored inside the database.
func (s *ValueStore) SupportsPairMethod(method string) bool {
	return method == "trigram"
}

// SimilarPairs scores pairs with pg_trgm similarity() (scaled to 0..100).
//
// The distinct values are materialized into a temp table with a GIN trigram
// index so the % operator can prune the self-join. The pg_trgm extension is
// created at most once per database per IndexRegistry.
func (s *ValueStore) SimilarPairs(ctx context.Context, table, column string, q storage.PairQuery) ([]storage.PairRow, error) {
	if !s.SupportsPairMethod(q.Method) {
		return nil, fmt.Errorf("postgres: method %q is not scored natively", q.Method)
	}
	if err := s.ensureTrigram(ctx); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	for _, stmt := range buildTrigramValuesSQL(table, column) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("stage values: %w", err)
		}
	}
	if q.Threshold > 0 {
		if _, err := tx.Exec(ctx, `SELECT set_config('pg_trgm.similarity_threshold', $1, true)`, prefilterThreshold(q.Threshold)); err != nil {
			return nil, fmt.Errorf("set similarity threshold: %w", err)
		}
	}

	sql, args := buildTrigramPairsSQL(q)
	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	pairs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.PairRow, error) {
		var p storage.PairRow
		err := row.Scan(&p.Left, &p.Right, &p.LeftCount, &p.RightCount, &p.Score)
		return p, err
	})
	if err != nil {
		return nil, err
	}
	return pairs, tx.Commit(ctx)
}

func (s *ValueStore) ensureTrigram(ctx context.Context) error {
	cc := s.pool.Config().ConnConfig
	key := "pg_trgm@" + cc.Host + "/" + cc.Database
	if s.indexes.Prepared(key) {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS pg_trgm`); err != nil {
		return fmt.Errorf("create extension pg_trgm: %w", err)
	}
	s.indexes.MarkPrepared(key)
	return nil
}

const createRewriteTableSQL = `CREATE TEMP TABLE fuzzyclean_rewrite (fc_key text PRIMARY KEY, fc_value text NOT NULL) ON COMMIT DROP`

func buildUniqueValuesSQL(table, column string) string {
	col := pgIdent(column)
	return fmt.Sprintf(
		`SELECT %s::text AS val, COUNT(*) AS n FROM %s WHERE %s IS NOT NULL GROUP BY 1 ORDER BY 2 DESC, %s::text COLLATE "C"`,
		col, pgTableIdent(table), col, col,
	)
}

func buildCopyColumnSQL(table, from, to string) []string {
	t := pgTableIdent(table)
	return []string{
		fmt.Sprintf(`ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s text`, t, pgIdent(to)),
		fmt.Sprintf(`UPDATE %s SET %s = %s::text`, t, pgIdent(to), pgIdent(from)),
	}
}

func buildRewriteSQL(table, column string) string {
	col := pgIdent(column)
	return fmt.Sprintf(
		`UPDATE %s AS tgt SET %s = r.fc_value FROM fuzzyclean_rewrite AS r WHERE tgt.%s::text = r.fc_key`,
		pgTableIdent(table), col, col,
	)
}

func buildTrigramValuesSQL(table, column string) []string {
	col := pgIdent(column)
	return []string{
		fmt.Sprintf(
			`CREATE TEMP TABLE fuzzyclean_values ON COMMIT DROP AS SELECT %s::text AS val, COUNT(*) AS n FROM %s WHERE %s IS NOT NULL GROUP BY 1`,
			col, pgTableIdent(table), col,
		),
		`CREATE INDEX ON fuzzyclean_values USING gin (val gin_trgm_ops)`,
	}
}

// buildTrigramPairsSQL returns the pair query over fuzzyclean_values.
//
// The % prefilter is strict (similarity > limit), so it is used only for a
// positive threshold, with the limit set just below it; the exact >= check
// follows in the WHERE clause.
func buildTrigramPairsSQL(q storage.PairQuery) (string, []any) {
	var b strings.Builder
	args := []any{q.Threshold}

	b.WriteString(`SELECT a.val, b.val, a.n, b.n, similarity(a.val, b.val)::float8 * 100 AS score `)
	b.WriteString(`FROM fuzzyclean_values AS a JOIN fuzzyclean_values AS b ON a.val COLLATE "C" < b.val COLLATE "C"`)
	if q.Threshold > 0 {
		b.WriteString(` AND a.val % b.val`)
	}
	if q.PrefixBlocking > 0 {
		args = append(args, q.PrefixBlocking)
		b.WriteString(` AND lower(left(a.val, $2)) = lower(left(b.val, $2))`)
	}
	b.WriteString(` WHERE similarity(a.val, b.val)::float8 * 100 >= $1`)
	b.WriteString(` ORDER BY a.val COLLATE "C", b.val COLLATE "C"`)
	return b.String(), args
}

// prefilterThreshold converts a 0..100 threshold to the 0..1 text setting
// pg_trgm expects, lowered slightly so equal scores survive the strict %.
func prefilterThreshold(threshold float64) string {
	v := threshold/100 - 1e-6
	if v < 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func pgIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// pgTableIdent quotes an optionally schema-qualified table name.
//
// Example:
//
//	"public.people" -> "public"."people"
func pgTableIdent(name string) string {
	schema, table := splitQualifiedName(name)
	if schema == "" {
		return pgx.Identifier{table}.Sanitize()
	}
	return pgx.Identifier{schema, table}.Sanitize()
}

// splitQualifiedName splits "schema.table" into (schema, table).
//
// This helper is intentionally conservative: it only handles a single dot.
// If callers pass a more complex expression, we treat it as unqualified.
func splitQualifiedName(name string) (schema string, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}
