package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"fuzzyclean/internal/storage"
)

// rewriteChunk bounds the rows per INSERT into the rewrite key table
// (two bound parameters each).
const rewriteChunk = 400

// ValueStore implements storage.ValueStore for SQLite.
//
// Key design points vs Postgres:
//   - The pool is pinned to a single connection. ":memory:" databases and
//     TEMP tables are per-connection in SQLite, and the rewrite relies on both
//     living on the connection that runs the UPDATE.
//   - Values are grouped with the default BINARY collation, so case and
//     trailing whitespace are significant.
type ValueStore struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

// New opens the database named by cfg.DSN (a file path or ":memory:").
func New(ctx context.Context, cfg storage.Config) (storage.ValueStore, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &ValueStore{db: db}, nil
}

func (s *ValueStore) Close() { _ = s.db.Close() }

// UniqueValueCounts returns the distinct non-null values of table.column, most
// frequent first, ties by value.
func (s *ValueStore) UniqueValueCounts(ctx context.Context, table, column string) ([]storage.ValueCount, error) {
	q := buildUniqueValuesSQL(table, column)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.ValueCount
	pos := map[string]int{}
	for rows.Next() {
		var raw any
		var n int64
		if err := rows.Scan(&raw, &n); err != nil {
			return nil, err
		}
		v, ok := storage.ScanString(raw)
		if !ok {
			continue
		}
		// Mixed storage classes (1 vs '1') collapse to one string value.
		if i, seen := pos[v]; seen {
			out[i].Count += n
			continue
		}
		pos[v] = len(out)
		out = append(out, storage.ValueCount{Value: v, Count: n})
	}
	return out, rows.Err()
}

// CopyColumn adds column to (TEXT) when missing and copies column from into it.
func (s *ValueStore) CopyColumn(ctx context.Context, table, from, to string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema, name := splitQualifiedName(table)
	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info(?, ?) WHERE name = ?`, name, schema, to,
	).Scan(&exists); err != nil {
		return fmt.Errorf("inspect %s: %w", table, err)
	}
	if exists == 0 {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s TEXT`, tableIdent(table), sqlIdent(to))); err != nil {
			return fmt.Errorf("add column %s.%s: %w", table, to, err)
		}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET %s = %s`, tableIdent(table), sqlIdent(to), sqlIdent(from))); err != nil {
		return fmt.Errorf("copy %s -> %s: %w", from, to, err)
	}
	return tx.Commit()
}

// ApplyRewrite loads assignments into a TEMP key table and rewrites table.column
// with one correlated UPDATE, all inside one transaction.
func (s *ValueStore) ApplyRewrite(ctx context.Context, table, column string, assignments map[string]string) error {
	if len(assignments) == 0 {
		return nil
	}
	rewrites := storage.SortedRewrites(assignments)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		`DROP TABLE IF EXISTS temp.fuzzyclean_rewrite`,
		`CREATE TEMP TABLE fuzzyclean_rewrite (fc_key TEXT PRIMARY KEY, fc_value TEXT NOT NULL)`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("prepare rewrite table: %w", err)
		}
	}

	for _, c := range storage.Chunks(len(rewrites), rewriteChunk) {
		q, args := buildInsertRewritesSQL(rewrites[c[0]:c[1]])
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("load rewrite keys: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, buildRewriteSQL(table, column)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DROP TABLE temp.fuzzyclean_rewrite`); err != nil {
		return err
	}
	return tx.Commit()
}

func buildUniqueValuesSQL(table, column string) string {
	col := sqlIdent(column)
	return fmt.Sprintf(
		`SELECT %s, COUNT(*) AS n FROM %s WHERE %s IS NOT NULL GROUP BY %s ORDER BY n DESC, %s`,
		col, tableIdent(table), col, col, col,
	)
}

func buildInsertRewritesSQL(rewrites []storage.Rewrite) (string, []any) {
	var b strings.Builder
	b.WriteString(`INSERT INTO temp.fuzzyclean_rewrite (fc_key, fc_value) VALUES `)
	args := make([]any, 0, 2*len(rewrites))
	for i, r := range rewrites {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?)")
		args = append(args, r.From, r.To)
	}
	return b.String(), args
}

// buildRewriteSQL references column unqualified inside the subquery; the key
// table has no such column so it binds to the row being updated.
func buildRewriteSQL(table, column string) string {
	col := sqlIdent(column)
	return fmt.Sprintf(
		`UPDATE %s SET %s = (SELECT fc_value FROM temp.fuzzyclean_rewrite WHERE fc_key = %s) WHERE %s IN (SELECT fc_key FROM temp.fuzzyclean_rewrite)`,
		tableIdent(table), col, col, col,
	)
}

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// tableIdent quotes each part of an optionally schema-qualified name.
func tableIdent(name string) string {
	schema, table := splitQualifiedName(name)
	if schema == "main" && !strings.Contains(name, ".") {
		return sqlIdent(table)
	}
	return sqlIdent(schema) + "." + sqlIdent(table)
}

// splitQualifiedName splits "schema.table"; the schema defaults to "main".
func splitQualifiedName(name string) (schema, table string) {
	name = strings.TrimSpace(name)
	if i := strings.Index(name, "."); i >= 0 {
		return strings.TrimSpace(name[:i]), strings.TrimSpace(name[i+1:])
	}
	return "main", name
}
