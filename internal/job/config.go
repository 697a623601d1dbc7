// Package job turns a JSON job file into one fuzzy clean-up run against a
// storage backend.
package job

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"fuzzyclean/internal/fuzzy"
	"fuzzyclean/internal/similarity"
)

// Config is the JSON job file.
//
//	{
//	  "job": "dedupe_customers",
//	  "storage": {"kind": "postgres", "dsn": "${PG_DSN}"},
//	  "target":  {"table": "crm.customers", "column": "company", "output_column": "company_clean"},
//	  "options": {"method": "token_sort_ratio", "threshold": 85, "keep": "mostCommon"},
//	  "runtime": {"dry_run": false, "score_workers": 4}
//	}
type Config struct {
	Job     string        `json:"job"`
	Storage Storage       `json:"storage"`
	Target  Target        `json:"target"`
	Options fuzzy.Options `json:"options"`
	Runtime RuntimeConfig `json:"runtime"`
}

type Storage struct {
	// Backend kind: "postgres" | "mssql" | "sqlite"
	Kind string `json:"kind"`

	// DSN may reference environment variables ($VAR or ${VAR}).
	DSN string `json:"dsn"`
}

// Target names the column to clean.
type Target struct {
	Table  string `json:"table"`
	Column string `json:"column"`

	// OutputColumn receives the cleaned values. Empty rewrites Column in place.
	OutputColumn string `json:"output_column,omitempty"`
}

// RuntimeConfig controls run behavior.
type RuntimeConfig struct {
	// DryRun computes and reports assignments without writing.
	DryRun bool `json:"dry_run"`

	// ScoreWorkers bounds in-memory pair scoring goroutines. <= 0 means GOMAXPROCS.
	ScoreWorkers int `json:"score_workers"`

	// DebugTimings logs the duration of every backend call.
	DebugTimings bool `json:"debug_timings"`
}

// ExpandedDSN returns Storage.DSN with environment variables substituted.
func (c Config) ExpandedDSN() string {
	return os.ExpandEnv(c.Storage.DSN)
}

// Validate reports every problem with c at once, joined with errors.Join.
// Option errors keep their fuzzy sentinel (errors.Is works on the result).
//
// Nothing here touches a backend: an unknown method or keep policy fails
// before any store is opened.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Storage.Kind) == "" {
		errs = append(errs, fmt.Errorf("storage.kind must be set"))
	}
	if strings.TrimSpace(c.Storage.DSN) == "" {
		errs = append(errs, fmt.Errorf("storage.dsn must be set"))
	}
	if strings.TrimSpace(c.Target.Table) == "" {
		errs = append(errs, fmt.Errorf("target.table must be set"))
	}
	if strings.TrimSpace(c.Target.Column) == "" {
		errs = append(errs, fmt.Errorf("target.column must be set"))
	}
	if c.Runtime.ScoreWorkers < 0 {
		errs = append(errs, fmt.Errorf("runtime.score_workers must be >= 0"))
	}
	if _, err := c.Options.Resolve(similarity.Supports); err != nil {
		if errors.Is(err, fuzzy.ErrUnknownMethod) {
			err = similarity.UnknownMethodError(c.Options.Method)
		}
		errs = append(errs, fmt.Errorf("options: %w", err))
	}

	return errors.Join(errs...)
}

// Unmarshal decodes a job file into v like json.Unmarshal, except that
// unknown fields are rejected so a misspelled option does not silently fall
// back to its default.
func Unmarshal(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
