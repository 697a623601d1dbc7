package metrics

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

type observation struct {
	name   string
	value  float64
	labels Labels
}

type fakeBackend struct {
	mu       sync.Mutex
	counters []observation
	hists    []observation
	flushes  int
	flushErr error
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = append(f.counters, observation{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hists = append(f.hists, observation{name, value, labels})
}

type flushingBackend struct{ fakeBackend }

func (f *flushingBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return f.flushErr
}

// Tests in this file swap the process backend, so none of them run in parallel.

func TestRecordHelpers_ForwardLabels(t *testing.T) {
	fb := &fakeBackend{}
	SetBackend(fb)
	defer SetBackend(nil)

	RecordStep("pairs", "ok", 1500*time.Millisecond)
	RecordValues("unique", 3)
	RecordValues("rewritten", 0)
	RecordClusters(2)
	RecordClusters(-1)
	RecordRun("dry_run", false)

	wantCounters := []observation{
		{StepTotal, 1, Labels{"step": "pairs", "status": "ok"}},
		{ValuesTotal, 3, Labels{"kind": "unique"}},
		{ClustersTotal, 2, Labels{}},
		{RunsTotal, 1, Labels{"status": "dry_run", "applied": "false"}},
	}
	if !reflect.DeepEqual(fb.counters, wantCounters) {
		t.Fatalf("counters=%v, want %v", fb.counters, wantCounters)
	}
	wantHists := []observation{{StepDurationSeconds, 1.5, Labels{"step": "pairs", "status": "ok"}}}
	if !reflect.DeepEqual(fb.hists, wantHists) {
		t.Fatalf("histograms=%v, want %v", fb.hists, wantHists)
	}
}

func TestSetBackendNil_RestoresNop(t *testing.T) {
	fb := &fakeBackend{}
	SetBackend(fb)
	SetBackend(nil)

	RecordClusters(5)
	if len(fb.counters) != 0 {
		t.Fatalf("counters=%v after SetBackend(nil), want none", fb.counters)
	}
	if err := Flush(); err != nil {
		t.Fatalf("Flush() on nop backend err=%v, want nil", err)
	}
}

func TestFlush(t *testing.T) {
	t.Run("non_buffering_backend_is_noop", func(t *testing.T) {
		SetBackend(&fakeBackend{})
		defer SetBackend(nil)
		if err := Flush(); err != nil {
			t.Fatalf("Flush() err=%v, want nil", err)
		}
	})

	t.Run("buffering_backend_is_flushed", func(t *testing.T) {
		boom := errors.New("submit failed")
		fb := &flushingBackend{fakeBackend{flushErr: boom}}
		SetBackend(fb)
		defer SetBackend(nil)

		if err := Flush(); !errors.Is(err, boom) {
			t.Fatalf("Flush() err=%v, want %v", err, boom)
		}
		if fb.flushes != 1 {
			t.Fatalf("flushes=%d, want 1", fb.flushes)
		}
	})
}
