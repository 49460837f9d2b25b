package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/signalscan/internal/model"
)

// ErrInvalidWorkers is returned when RunParallel is asked for fewer than one
// worker.
var ErrInvalidWorkers = errors.New("worker count must be at least 1")

// Factory builds the Controller for one worker. Workers are numbered from 1.
// The returned release function closes the worker's browser and is called
// once the worker finishes.
type Factory func(ctx context.Context, worker int) (*Controller, func(), error)

// Split divides urls into at most n contiguous, disjoint slices whose sizes
// differ by at most one. Earlier slices receive the remainder.
func Split(urls []string, n int) [][]string {
	if n <= 0 || len(urls) == 0 {
		return nil
	}
	n = min(n, len(urls))

	parts := make([][]string, 0, n)
	size, rest := len(urls)/n, len(urls)%n
	start := 0
	for i := range n {
		end := start + size
		if i < rest {
			end++
		}
		parts = append(parts, urls[start:end])
		start = end
	}
	return parts
}

// RunParallel crawls urls with up to workers independent sessions and merges
// their output in worker order.
//
// Design decision: We split the list into contiguous slices rather than
// feeding a shared queue because each worker owns a browser and a session
// slot. Static slices keep the workers free of shared mutable state until
// the final merge, which applies the same dedup rule as a single run.
//
// A run-fatal error in one worker cancels the others. The merged run is
// returned together with the first such error so that the caller can still
// finalize it.
func RunParallel(ctx context.Context, urls []string, workers int, factory Factory, opts ...ParallelOption) (*model.CrawlRun, error) {
	if workers < 1 {
		return nil, ErrInvalidWorkers
	}
	if len(urls) == 0 {
		return nil, ErrNoURLs
	}

	cfg := parallelConfig{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	parts := Split(urls, workers)
	runs := make([]*model.CrawlRun, len(parts))
	startedAt := cfg.now()

	cfg.logger.Info("starting parallel crawl", "urls", len(urls), "workers", len(parts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(parts))

	for i, part := range parts {
		g.Go(func() error {
			worker := i + 1
			ctrl, release, err := factory(gctx, worker)
			if err != nil {
				return fmt.Errorf("starting worker %d: %w", worker, err)
			}
			if release != nil {
				defer release()
			}

			run, err := ctrl.Run(gctx, part, 0)
			runs[i] = run
			if err != nil {
				cfg.logger.Warn("worker stopped early", "worker", worker, "error", err)
				return fmt.Errorf("worker %d: %w", worker, err)
			}
			return nil
		})
	}
	err := g.Wait()

	merged := model.NewCrawlRun(urls, startedAt)
	for _, run := range runs {
		merged.Merge(run)
	}
	merged.Finish(cfg.now())

	if err == nil {
		// A parent cancellation can end workers without an error of their own.
		err = ctx.Err()
	}
	return merged, err
}

type parallelConfig struct {
	now    func() time.Time
	logger *slog.Logger
}

// ParallelOption configures RunParallel.
type ParallelOption func(*parallelConfig)

// WithParallelClock sets the clock used for the merged run's timestamps.
func WithParallelClock(now func() time.Time) ParallelOption {
	return func(c *parallelConfig) { c.now = now }
}

// WithParallelLogger sets the logger used for worker-level messages.
func WithParallelLogger(l *slog.Logger) ParallelOption {
	return func(c *parallelConfig) { c.logger = l }
}
