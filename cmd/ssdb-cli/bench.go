package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/pior/ssdb"
)

type benchOperation string

const (
	benchGetHit  benchOperation = "get-hit"
	benchGetMiss benchOperation = "get-miss"
	benchSetGet  benchOperation = "set-get"
	benchIncr    benchOperation = "incr"
	benchAll     benchOperation = "all"
)

var benchOperations = []benchOperation{benchGetHit, benchGetMiss, benchSetGet, benchIncr}

type benchResult struct {
	Operation    benchOperation
	Duration     time.Duration
	TotalOps     int64
	Successes    int64
	Failures     int64
	AvgLatency   time.Duration
	OpsPerSecond float64
	Correct      bool
	ErrorMessage string
}

type benchConfig struct {
	duration    time.Duration
	concurrency int
}

func newBenchCmd(opts *options) *cobra.Command {
	var (
		operation string
		cfg       benchConfig
	)

	c := &cobra.Command{
		Use:   "bench",
		Short: "Measure request throughput, one connection per worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.concurrency < 1 {
				return fmt.Errorf("concurrency must be at least 1, got %d", cfg.concurrency)
			}

			ops := []benchOperation{benchOperation(operation)}
			if benchOperation(operation) == benchAll {
				ops = benchOperations
			}

			out := cmd.OutOrStdout()
			for _, op := range ops {
				result, err := runBench(cmd.Context(), opts, op, cfg)
				if err != nil {
					return err
				}
				printBenchResult(out, result)
			}
			return nil
		},
	}

	c.Flags().StringVar(&operation, "operation", string(benchAll), "get-hit, get-miss, set-get, incr or all")
	c.Flags().DurationVar(&cfg.duration, "duration", 5*time.Second, "how long each operation runs")
	c.Flags().IntVar(&cfg.concurrency, "concurrency", 1, "number of concurrent workers")
	return c
}

// benchStep performs one unit of work and reports how many requests it sent.
type benchStep func(ctx context.Context, client *ssdb.Client, worker, iteration int) (requests int, err error)

func benchStepFor(op benchOperation) (benchStep, bool) {
	switch op {
	case benchGetHit:
		return func(ctx context.Context, client *ssdb.Client, _, _ int) (int, error) {
			item, err := client.Get(ctx, "bench:hit")
			if err != nil {
				return 1, err
			}
			if !item.Found || string(item.Value) != "bench-value" {
				return 1, fmt.Errorf("unexpected value for bench:hit: %q", item.Value)
			}
			return 1, nil
		}, true

	case benchGetMiss:
		return func(ctx context.Context, client *ssdb.Client, worker, iteration int) (int, error) {
			item, err := client.Get(ctx, fmt.Sprintf("bench:missing:%d:%d", worker, iteration))
			if err != nil {
				return 1, err
			}
			if item.Found {
				return 1, fmt.Errorf("expected a miss, got %q", item.Value)
			}
			return 1, nil
		}, true

	case benchSetGet:
		return func(ctx context.Context, client *ssdb.Client, worker, iteration int) (int, error) {
			key := fmt.Sprintf("bench:dynamic:%d:%d", worker, iteration)
			value := strconv.Itoa(iteration)
			if _, err := client.Set(ctx, key, value); err != nil {
				return 1, err
			}
			item, err := client.Get(ctx, key)
			if err != nil {
				return 2, err
			}
			if string(item.Value) != value {
				return 2, fmt.Errorf("value mismatch for %s: %q", key, item.Value)
			}
			return 2, nil
		}, true

	case benchIncr:
		return func(ctx context.Context, client *ssdb.Client, worker, _ int) (int, error) {
			_, err := client.Incr(ctx, fmt.Sprintf("bench:counter:%d", worker), 1)
			return 1, err
		}, true
	}
	return nil, false
}

func runBench(ctx context.Context, opts *options, op benchOperation, cfg benchConfig) (*benchResult, error) {
	step, ok := benchStepFor(op)
	if !ok {
		return nil, fmt.Errorf("unknown operation %q", op)
	}

	clients := make([]*ssdb.Client, cfg.concurrency)
	for i := range clients {
		client := ssdb.NewClient(opts.host, opts.port, ssdb.Config{DialTimeout: opts.timeout})
		if err := client.Connect(ctx); err != nil {
			for _, c := range clients[:i] {
				c.Close()
			}
			return nil, fmt.Errorf("failed to connect to %s: %w", client.Addr(), err)
		}
		defer client.Close()
		clients[i] = client
	}

	if op == benchGetHit {
		if _, err := clients[0].Set(ctx, "bench:hit", "bench-value"); err != nil {
			return nil, fmt.Errorf("failed to set up %s: %w", op, err)
		}
	}

	result := &benchResult{Operation: op, Correct: true}
	var (
		totalOps, successes, failures, totalLatency atomic.Int64
		mu                                          sync.Mutex
		wg                                          sync.WaitGroup
	)

	start := time.Now()
	for worker, client := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for iteration := 0; time.Since(start) < cfg.duration; iteration++ {
				reqCtx, cancel := context.WithTimeout(ctx, opts.timeout)
				opStart := time.Now()
				n, err := step(reqCtx, client, worker, iteration)
				latency := time.Since(opStart)
				cancel()

				totalOps.Add(int64(n))
				totalLatency.Add(int64(latency))

				if err != nil {
					failures.Add(1)
					mu.Lock()
					result.Correct = false
					if result.ErrorMessage == "" {
						result.ErrorMessage = err.Error()
					}
					mu.Unlock()

					if !client.IsConnected() {
						if err := client.Connect(ctx); err != nil {
							return
						}
					}
					continue
				}
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	result.Duration = time.Since(start)
	result.TotalOps = totalOps.Load()
	result.Successes = successes.Load()
	result.Failures = failures.Load()

	if result.TotalOps > 0 {
		result.AvgLatency = time.Duration(totalLatency.Load() / result.TotalOps)
		result.OpsPerSecond = float64(result.TotalOps) / result.Duration.Seconds()
	}
	return result, nil
}

func printBenchResult(out io.Writer, r *benchResult) {
	fmt.Fprintf(out, "%s\n", r.Operation)
	fmt.Fprintf(out, "  duration:    %v\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "  requests:    %d\n", r.TotalOps)
	fmt.Fprintf(out, "  successes:   %d\n", r.Successes)
	fmt.Fprintf(out, "  failures:    %d\n", r.Failures)
	fmt.Fprintf(out, "  avg latency: %v\n", r.AvgLatency)
	fmt.Fprintf(out, "  ops/sec:     %.0f\n", r.OpsPerSecond)
	if r.Correct {
		fmt.Fprintln(out, "  correctness: ok")
	} else {
		fmt.Fprintf(out, "  correctness: FAILED (%s)\n", r.ErrorMessage)
	}
}
