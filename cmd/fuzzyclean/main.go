// Command fuzzyclean clusters near-duplicate values of one text column and
// rewrites each cluster to a single canonical value.
//
//	fuzzyclean -config job.json [-dry-run] [-metrics-backend datadog] [-v]
//
// The run summary (clusters, canonicals and the applied value mapping) is
// printed to stdout as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fuzzyclean/internal/fuzzy"
	"fuzzyclean/internal/job"
	"fuzzyclean/internal/metrics"
	"fuzzyclean/internal/metrics/datadog"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "fuzzyclean/internal/storage/all"
)

// runner is the part of *job.Runner the CLI uses.
type runner interface {
	Run(ctx context.Context, cfg job.Config) (fuzzy.Result, error)
}

// appDeps are the side-effecting seams of runMain.
type appDeps struct {
	readFile    func(path string) ([]byte, error)
	unmarshal   func(data []byte, v any) error
	newRunner   func(logger fuzzy.Logger) runner
	initMetrics func(ctx context.Context, jobName, backendName string, tags []string) (func(), error)
}

func defaultDeps() appDeps {
	return appDeps{
		readFile:    os.ReadFile,
		unmarshal:   job.Unmarshal,
		newRunner:   func(logger fuzzy.Logger) runner { return job.NewDefaultRunner(logger) },
		initMetrics: initMetrics,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runMain(ctx, os.Args[1:], os.Stdout, os.Stderr, defaultDeps())
	stop()
	os.Exit(code)
}

// runMain is main without process exit. Exit codes: 0 success, 1 failure,
// 2 usage error.
func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	fs := flag.NewFlagSet("fuzzyclean", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		cfgPath    string
		backendFlg string
		tagsFlg    string
		validate   bool
		dryRun     bool
		verbose    bool
	)
	fs.StringVar(&cfgPath, "config", "", "job config JSON path")
	fs.StringVar(&backendFlg, "metrics-backend", "", "metrics backend: none|datadog (default env METRICS_BACKEND, else none)")
	fs.StringVar(&tagsFlg, "dd-tags", "", "extra Datadog tags, comma separated (default env METRICS_TAGS)")
	fs.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	fs.BoolVar(&dryRun, "dry-run", false, "compute the mapping without writing")
	fs.BoolVar(&verbose, "v", false, "enable verbose logs")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(cfgPath) == "" {
		fmt.Fprintln(stderr, "usage: fuzzyclean -config path/to/job.json [-dry-run] [-validate] [-metrics-backend none|datadog] [-v]")
		return 2
	}

	raw, err := deps.readFile(cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "read config: %v\n", err)
		return 1
	}
	var cfg job.Config
	if err := deps.unmarshal(raw, &cfg); err != nil {
		fmt.Fprintf(stderr, "parse config: %v\n", err)
		return 1
	}
	if dryRun {
		cfg.Runtime.DryRun = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "invalid config %s:\n%v\n", cfgPath, err)
		return 1
	}
	if validate {
		fmt.Fprintf(stdout, "config ok: %s\n", cfgPath)
		return 0
	}

	// Decide metrics backend: flag -> env -> none.
	backendName := backendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	tags := tagsFlg
	if tags == "" {
		tags = os.Getenv("METRICS_TAGS")
	}

	cleanup, err := deps.initMetrics(ctx, cfg.Job, backendName, datadog.ParseTagsCSV(tags))
	if err != nil {
		fmt.Fprintf(stderr, "init metrics: %v\n", err)
		return 1
	}
	defer cleanup()

	var logger fuzzy.Logger
	if verbose {
		logger = log.New(stderr, "", log.LstdFlags)
	}

	start := time.Now()
	res, err := deps.newRunner(logger).Run(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "run: %v\n", err)
		return 1
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "encode result: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "%s\n", out)

	if verbose {
		fmt.Fprintf(stderr, "completed in %s\n", time.Since(start).Truncate(time.Millisecond))
	}
	return 0
}

// metricsBackend is a metrics.Backend that owns a flush loop.
type metricsBackend interface {
	metrics.Backend
	Close() error
}

// Seams for initMetrics tests.
var (
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metricsBackend, error) {
		b, err := datadog.NewBackend(ctx, opts)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	setMetricsBackend = metrics.SetBackend
	logPrintf         = log.Printf
)

// initMetrics installs the named metrics backend. The returned cleanup is
// never nil; for datadog it stops the flush loop, flushes once more and
// restores the no-op backend.
func initMetrics(ctx context.Context, jobName, backendName string, tags []string) (func(), error) {
	switch strings.ToLower(strings.TrimSpace(backendName)) {
	case "", "none", "nop", "noop":
		return func() {}, nil

	case "datadog", "dd":
		b, err := newDatadogBackend(ctx, datadog.Options{
			JobName:    jobName,
			Tags:       tags,
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			return func() {}, datadog.WrapInitErr(err)
		}
		setMetricsBackend(b)
		return func() {
			setMetricsBackend(nil)
			if err := b.Close(); err != nil {
				logPrintf("metrics: datadog close error: %v", err)
			}
		}, nil

	default:
		return func() {}, fmt.Errorf("unknown metrics backend %q (want none|datadog)", backendName)
	}
}
