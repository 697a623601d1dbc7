// Package metrics is the process-wide metrics facade used by the clean-up jobs.
//
// Core code records through the package-level helpers only; a concrete backend
// (e.g. internal/metrics/datadog) is installed once at startup with SetBackend.
// Until then every call is a no-op.
package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Metric names understood by backends.
const (
	StepTotal           = "fuzzyclean_step_total"
	StepDurationSeconds = "fuzzyclean_step_duration_seconds"
	ValuesTotal         = "fuzzyclean_values_total"
	ClustersTotal       = "fuzzyclean_clusters_total"
	RunsTotal           = "fuzzyclean_runs_total"
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives metric observations.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// flusher is implemented by backends that buffer.
type flusher interface {
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process backend. A nil b restores the no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter forwards to the installed backend.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram forwards to the installed backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush flushes the installed backend if it buffers. Otherwise it is a no-op.
func Flush() error {
	if f, ok := current().(flusher); ok {
		return f.Flush()
	}
	return nil
}

// RecordStep counts one pipeline step and its duration.
func RecordStep(step, status string, d time.Duration) {
	l := Labels{"step": step, "status": status}
	IncCounter(StepTotal, 1, l)
	ObserveHistogram(StepDurationSeconds, d.Seconds(), l)
}

// RecordValues counts values by kind ("unique", "paired", "rewritten").
func RecordValues(kind string, n int) {
	if n <= 0 {
		return
	}
	IncCounter(ValuesTotal, float64(n), Labels{"kind": kind})
}

// RecordClusters counts clusters found by one run.
func RecordClusters(n int) {
	if n <= 0 {
		return
	}
	IncCounter(ClustersTotal, float64(n), Labels{})
}

// RecordRun counts one finished run.
func RecordRun(status string, applied bool) {
	IncCounter(RunsTotal, 1, Labels{"status": status, "applied": strconv.FormatBool(applied)})
}
