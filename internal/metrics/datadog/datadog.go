// Package datadog implements a Datadog backend for the internal/metrics package.
//
// Flushing:
//   - Observations are buffered in memory under a mutex.
//   - A background loop calls Flush on a ticker (default once per minute) so
//     long clean-up runs show up as a time series.
//   - Close stops the loop and flushes one final time.
//
// Flush snapshots and resets the buffers under the lock, then submits outside
// it, so callers recording metrics never wait on the network.
package datadog

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"fuzzyclean/internal/metrics"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric.
	// If empty, defaults to "fuzzyclean".
	JobName string

	// Tags are extra Datadog tags (e.g. []string{"env:prod", "team:data"}).
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// If <= 0, defaults to 60 seconds.
	FlushEvery time.Duration

	// Unexported test seams; production code leaves them nil.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the part of *datadogV2.MetricsApi the backend uses.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags []string

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu  sync.Mutex
	buf buffers
}

// buffers holds one collection window.
type buffers struct {
	stepCounts      map[string]float64   // step\x00status -> count
	durationSamples map[string][]float64 // step\x00status -> seconds
	valueCounts     map[string]float64   // kind -> count
	runCounts       map[string]float64   // status\x00applied -> count
	clusterCount    float64
}

func newBuffers() buffers {
	return buffers{
		stepCounts:      make(map[string]float64),
		durationSamples: make(map[string][]float64),
		valueCounts:     make(map[string]float64),
		runCounts:       make(map[string]float64),
	}
}

func (s buffers) isEmpty() bool {
	return len(s.stepCounts) == 0 &&
		len(s.durationSamples) == 0 &&
		len(s.valueCounts) == 0 &&
		len(s.runCounts) == 0 &&
		s.clusterCount == 0
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

// NewBackend constructs a Datadog backend using the official client and
// starts its flush loop.
//
// Edge cases:
//   - Environment tag selection uses ENV then DD_ENV, otherwise env:unknown.
//   - Credentials come from DD_API_KEY / DD_SITE via dd.NewDefaultContext;
//     a missing key surfaces as a Flush error, not here.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	job := opts.JobName
	if job == "" {
		job = "fuzzyclean"
	}

	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	submitter := opts.submitter
	if submitter == nil {
		submitter = datadogV2.NewMetricsApi(dd.NewAPIClient(dd.NewConfiguration()))
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		baseTags:   baseTags,
		now:        nowFn,
		newTicker:  newTicker,
		buf:        newBuffers(),
	}

	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the background flush loop and performs one final Flush.
// Close must be called once.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case metrics.StepTotal:
		b.buf.stepCounts[pairKey(labels["step"], labels["status"])] += delta

	case metrics.ValuesTotal:
		kind := labels["kind"]
		if kind == "" {
			return
		}
		b.buf.valueCounts[kind] += delta

	case metrics.ClustersTotal:
		b.buf.clusterCount += delta

	case metrics.RunsTotal:
		b.buf.runCounts[pairKey(labels["status"], labels["applied"])] += delta
	}
}

// ObserveHistogram implements metrics.Backend. Unknown names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 || name != metrics.StepDurationSeconds {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	k := pairKey(labels["step"], labels["status"])
	b.buf.durationSamples[k] = append(b.buf.durationSamples[k], value)
}

func (b *Backend) snapshotAndReset() buffers {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.buf
	b.buf = newBuffers()
	return s
}

// Flush submits buffered metrics to Datadog and resets local buffers.
//
// Errors:
//   - Returns any error from Datadog submission.
//   - Returns nil if there is nothing to submit.
//
// Buffers are reset even if submission fails.
func (b *Backend) Flush() error {
	snap := b.snapshotAndReset()
	if snap.isEmpty() {
		return nil
	}

	series := b.buildSeries(snap, b.now().Unix())
	payload := datadogV2.MetricPayload{Series: series}

	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries turns a snapshot into Datadog series at a fixed timestamp.
// Output order is sorted by metric name then tags so payloads are stable.
func (b *Backend) buildSeries(s buffers, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(s.stepCounts)+len(s.valueCounts)+len(s.runCounts)+6*len(s.durationSamples)+1)

	for k, v := range s.stepCounts {
		step, status := splitPairKey(k)
		series = append(series, countSeries("fuzzyclean.step.total", v, withTags(b.baseTags, "step:"+step, "status:"+status), nowUnix))
	}
	for kind, v := range s.valueCounts {
		series = append(series, countSeries("fuzzyclean.values.total", v, withTags(b.baseTags, "kind:"+kind), nowUnix))
	}
	if s.clusterCount != 0 {
		series = append(series, countSeries("fuzzyclean.clusters.total", s.clusterCount, b.baseTags, nowUnix))
	}
	for k, v := range s.runCounts {
		status, applied := splitPairKey(k)
		series = append(series, countSeries("fuzzyclean.runs.total", v, withTags(b.baseTags, "status:"+status, "applied:"+applied), nowUnix))
	}
	for k, samples := range s.durationSamples {
		step, status := splitPairKey(k)
		addPercentiles(&series, "fuzzyclean.step.duration_seconds", samples, withTags(b.baseTags, "step:"+step, "status:"+status), nowUnix)
	}

	sort.SliceStable(series, func(i, j int) bool {
		if series[i].Metric != series[j].Metric {
			return series[i].Metric < series[j].Metric
		}
		return strings.Join(series[i].Tags, ",") < strings.Join(series[j].Tags, ",")
	})
	return series
}

// addPercentiles appends p50/p90/p95/p99/max/samples gauges for one sample
// set. It sorts a copy of samples.
func addPercentiles(series *[]datadogV2.MetricSeries, metricPrefix string, samples []float64, tags []string, nowUnix int64) {
	if len(samples) == 0 {
		return
	}
	cp := append([]float64(nil), samples...)
	sort.Float64s(cp)

	*series = append(*series,
		gaugeSeries(metricPrefix+".p50", percentileNearestRank(cp, 0.50), tags, nowUnix),
		gaugeSeries(metricPrefix+".p90", percentileNearestRank(cp, 0.90), tags, nowUnix),
		gaugeSeries(metricPrefix+".p95", percentileNearestRank(cp, 0.95), tags, nowUnix),
		gaugeSeries(metricPrefix+".p99", percentileNearestRank(cp, 0.99), tags, nowUnix),
		gaugeSeries(metricPrefix+".max", cp[len(cp)-1], tags, nowUnix),
		gaugeSeries(metricPrefix+".samples", float64(len(cp)), tags, nowUnix),
	)
}

func countSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return pointSeries(metric, datadogV2.METRICINTAKETYPE_COUNT, value, tags, nowUnix)
}

func gaugeSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return pointSeries(metric, datadogV2.METRICINTAKETYPE_GAUGE, value, tags, nowUnix)
}

func pointSeries(metric string, typ datadogV2.MetricIntakeType, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   typ.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func pairKey(a, b string) string {
	return a + "\x00" + b
}

func splitPairKey(k string) (string, string) {
	parts := strings.SplitN(k, "\x00", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return k, "unknown"
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	out = append(out, extras...)
	return out
}

func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return s[0]
	}
	if p >= 1 {
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

var _ metrics.Backend = (*Backend)(nil)

// ParseTagsCSV parses comma-separated tags like "env:prod,team:data".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// WrapInitErr prefixes backend construction errors for the CLI.
func WrapInitErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("datadog metrics init: %w", err)
}
