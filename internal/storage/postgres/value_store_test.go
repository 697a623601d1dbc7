package postgres

import (
	"reflect"
	"strings"
	"testing"

	"fuzzyclean/internal/storage"
)

func TestBuildUniqueValuesSQL_QuotesAndGroupsAsText(t *testing.T) {
	t.Parallel()

	got := buildUniqueValuesSQL("public.people", "full name")
	for _, want := range []string{
		`SELECT "full name"::text AS val`,
		`FROM "public"."people"`,
		`WHERE "full name" IS NOT NULL GROUP BY 1`,
		`ORDER BY 2 DESC`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("sql missing %q: %q", want, got)
		}
	}
}

func TestBuildCopyColumnSQL(t *testing.T) {
	t.Parallel()

	got := buildCopyColumnSQL("people", "name", "name_clean")
	want := []string{
		`ALTER TABLE "people" ADD COLUMN IF NOT EXISTS "name_clean" text`,
		`UPDATE "people" SET "name_clean" = "name"::text`,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("buildCopyColumnSQL=%q, want %q", got, want)
	}
}

func TestBuildRewriteSQL_JoinsOnTextKey(t *testing.T) {
	t.Parallel()

	got := buildRewriteSQL("crm.accounts", `we"ird`)
	want := `UPDATE "crm"."accounts" AS tgt SET "we""ird" = r.fc_value FROM fuzzyclean_rewrite AS r WHERE tgt."we""ird"::text = r.fc_key`
	if got != want {
		t.Fatalf("buildRewriteSQL=%q, want %q", got, want)
	}
	if !strings.Contains(createRewriteTableSQL, "ON COMMIT DROP") {
		t.Fatalf("rewrite table must drop on commit: %q", createRewriteTableSQL)
	}
}

func TestBuildTrigramPairsSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		q         storage.PairQuery
		wantArgs  []any
		wantParts []string
		notParts  []string
	}{
		{
			name:      "threshold_uses_prefilter",
			q:         storage.PairQuery{Method: "trigram", Threshold: 60},
			wantArgs:  []any{60.0},
			wantParts: []string{"a.val % b.val", ">= $1"},
			notParts:  []string{"left("},
		},
		{
			name:      "zero_threshold_skips_prefilter",
			q:         storage.PairQuery{Method: "trigram"},
			wantArgs:  []any{0.0},
			wantParts: []string{">= $1"},
			notParts:  []string{"%"},
		},
		{
			name:      "prefix_blocking",
			q:         storage.PairQuery{Method: "trigram", Threshold: 50, PrefixBlocking: 3},
			wantArgs:  []any{50.0, 3},
			wantParts: []string{"lower(left(a.val, $2)) = lower(left(b.val, $2))"},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			sql, args := buildTrigramPairsSQL(tc.q)
			if !reflect.DeepEqual(args, tc.wantArgs) {
				t.Fatalf("args=%v, want %v", args, tc.wantArgs)
			}
			for _, p := range tc.wantParts {
				if !strings.Contains(sql, p) {
					t.Fatalf("sql missing %q: %q", p, sql)
				}
			}
			for _, p := range tc.notParts {
				if strings.Contains(sql, p) {
					t.Fatalf("sql unexpectedly contains %q: %q", p, sql)
				}
			}
		})
	}
}

func TestBuildTrigramValuesSQL_IndexesStagedValues(t *testing.T) {
	t.Parallel()

	got := buildTrigramValuesSQL("people", "name")
	if len(got) != 2 || !strings.Contains(got[0], `FROM "people"`) || !strings.Contains(got[1], "gin_trgm_ops") {
		t.Fatalf("buildTrigramValuesSQL=%q", got)
	}
}

func TestPrefilterThreshold(t *testing.T) {
	t.Parallel()

	if got := prefilterThreshold(80); got != "0.799999" {
		t.Fatalf("prefilterThreshold(80)=%q", got)
	}
	if got := prefilterThreshold(0.00001); got != "0.000000" {
		t.Fatalf("prefilterThreshold(~0)=%q, want 0.000000", got)
	}
}

func TestSupportsPairMethod(t *testing.T) {
	t.Parallel()

	var s ValueStore
	if !s.SupportsPairMethod("trigram") || s.SupportsPairMethod("ratio") {
		t.Fatalf("SupportsPairMethod mismatch")
	}
}

func TestSplitQualifiedName(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, schema, table string }{
		{"public.people", "public", "people"},
		{"people", "", "people"},
		{"a.b.c", "", "a.b.c"},
	}
	for _, tc := range tests {
		s, tb := splitQualifiedName(tc.in)
		if s != tc.schema || tb != tc.table {
			t.Fatalf("splitQualifiedName(%q)=%q,%q, want %q,%q", tc.in, s, tb, tc.schema, tc.table)
		}
	}
}
