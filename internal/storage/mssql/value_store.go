package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"fuzzyclean/internal/storage"
)

// binCollation makes grouping and the rewrite join case- and accent-sensitive.
// SQL Server still pads trailing spaces when comparing, so "Acme" and "Acme "
// fall into one group on this backend.
const binCollation = "Latin1_General_100_BIN2"

// rewriteChunk keeps each INSERT under the 1000-row VALUES limit and the
// 2100-parameter limit (two parameters per row).
const rewriteChunk = 900

// ValueStore implements storage.ValueStore for Microsoft SQL Server.
//
// Note on driver registration:
//   - This package does NOT blank-import a SQL Server driver. The
//     "sqlserver" driver is registered by internal/storage/all.
type ValueStore struct {
	db dbConn
}

func init() {
	storage.Register("mssql", New)
}

// New constructs a ValueStore using database/sql and the "sqlserver" driver.
//
// This method validates connectivity via PingContext.
func New(ctx context.Context, cfg storage.Config) (storage.ValueStore, error) {
	raw, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	raw.SetMaxOpenConns(8)

	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &ValueStore{db: &sqlDB{db: raw}}, nil
}

// Close releases database resources held by this store.
func (s *ValueStore) Close() {
	if s == nil || s.db == nil {
		return
	}
	_ = s.db.Close()
}

// UniqueValueCounts returns the distinct non-null values of table.column,
// grouped under a binary collation.
func (s *ValueStore) UniqueValueCounts(ctx context.Context, table, column string) ([]storage.ValueCount, error) {
	if table == "" || column == "" {
		return nil, fmt.Errorf("UniqueValueCounts: table and column are required")
	}
	rows, err := s.db.QueryContext(ctx, buildUniqueValuesSQL(table, column))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.ValueCount
	for rows.Next() {
		var raw any
		var n int64
		if err := rows.Scan(&raw, &n); err != nil {
			return nil, err
		}
		if v, ok := storage.ScanString(raw); ok {
			out = append(out, storage.ValueCount{Value: v, Count: n})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CopyColumn adds column to (nvarchar(max)) when missing and copies column
// from into it.
//
// The ALTER and the UPDATE are separate batches: SQL Server compiles a batch
// before running it and would reject the UPDATE of a not-yet-existing column.
func (s *ValueStore) CopyColumn(ctx context.Context, table, from, to string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("CopyColumn: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	addSQL, updateSQL := buildCopyColumnSQL(table, from, to)
	if _, err := tx.ExecContext(ctx, addSQL, table, to); err != nil {
		return fmt.Errorf("CopyColumn: add %s: %w", to, err)
	}
	if _, err := tx.ExecContext(ctx, updateSQL); err != nil {
		return fmt.Errorf("CopyColumn: copy %s -> %s: %w", from, to, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("CopyColumn: commit: %w", err)
	}
	return nil
}

// ApplyRewrite loads assignments into a session temp table and rewrites
// table.column with one UPDATE ... JOIN, inside one transaction.
func (s *ValueStore) ApplyRewrite(ctx context.Context, table, column string, assignments map[string]string) error {
	if len(assignments) == 0 {
		return nil
	}
	rewrites := storage.SortedRewrites(assignments)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ApplyRewrite: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, createRewriteTableSQL); err != nil {
		return fmt.Errorf("ApplyRewrite: create key table: %w", err)
	}
	for _, c := range storage.Chunks(len(rewrites), rewriteChunk) {
		q, args := buildInsertRewritesSQL(rewrites[c[0]:c[1]])
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("ApplyRewrite: load keys: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, buildRewriteSQL(table, column)); err != nil {
		return fmt.Errorf("ApplyRewrite: update %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, `DROP TABLE #fuzzyclean_rewrite`); err != nil {
		return fmt.Errorf("ApplyRewrite: drop key table: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ApplyRewrite: commit: %w", err)
	}
	return nil
}

var createRewriteTableSQL = "CREATE TABLE #fuzzyclean_rewrite (fc_key nvarchar(max) COLLATE " + binCollation + " NOT NULL, fc_value nvarchar(max) NOT NULL)"

func textExpr(col string) string {
	return "CAST(" + col + " AS nvarchar(max)) COLLATE " + binCollation
}

func buildUniqueValuesSQL(table, column string) string {
	v := textExpr(mssqlIdent(column))
	return fmt.Sprintf(
		"SELECT %s AS val, COUNT_BIG(*) AS n FROM %s WHERE %s IS NOT NULL GROUP BY %s ORDER BY n DESC, val",
		v, mssqlTableIdent(table), mssqlIdent(column), v,
	)
}

// buildCopyColumnSQL returns the guarded ALTER (parameters: table, column)
// and the UPDATE.
func buildCopyColumnSQL(table, from, to string) (string, string) {
	t := mssqlTableIdent(table)
	addSQL := fmt.Sprintf("IF COL_LENGTH(@p1, @p2) IS NULL ALTER TABLE %s ADD %s nvarchar(max) NULL", t, mssqlIdent(to))
	updateSQL := fmt.Sprintf("UPDATE %s SET %s = CAST(%s AS nvarchar(max))", t, mssqlIdent(to), mssqlIdent(from))
	return addSQL, updateSQL
}

func buildInsertRewritesSQL(rewrites []storage.Rewrite) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO #fuzzyclean_rewrite (fc_key, fc_value) VALUES ")
	args := make([]any, 0, 2*len(rewrites))
	for i, r := range rewrites {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "(@p%d, @p%d)", 2*i+1, 2*i+2)
		args = append(args, r.From, r.To)
	}
	return b.String(), args
}

func buildRewriteSQL(table, column string) string {
	col := mssqlIdent(column)
	return fmt.Sprintf(
		"UPDATE tgt SET tgt.%s = r.fc_value FROM %s AS tgt JOIN #fuzzyclean_rewrite AS r ON %s = r.fc_key",
		col, mssqlTableIdent(table), textExpr("tgt."+col),
	)
}

// mssqlIdent returns a bracket-quoted identifier.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent returns a bracket-quoted identifier for schema-qualified names.
//
// Example:
//
//	"dbo.people" -> [dbo].[people]
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

// ---- database/sql seam types ----

// dbConn is a small interface over *sql.DB used to make this package testable.
type dbConn interface {
	QueryContext(ctx context.Context, query string, args ...any) (rowsScanner, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error)
	Close() error
}

// txConn is a small interface over *sql.Tx used for testability.
type txConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Commit() error
	Rollback() error
}

// rowsScanner is the subset of *sql.Rows this package reads.
type rowsScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// sqlDB wraps *sql.DB to implement dbConn.
type sqlDB struct {
	db *sql.DB
}

func (s *sqlDB) QueryContext(ctx context.Context, query string, args ...any) (rowsScanner, error) {
	return s.db.QueryContext(ctx, query, args...)
}

func (s *sqlDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error) {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *sqlDB) Close() error { return s.db.Close() }

var (
	_ dbConn = (*sqlDB)(nil)
	_ txConn = (*sql.Tx)(nil)
)
