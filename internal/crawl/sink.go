package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/signalscan/internal/model"
)

// Sink persists a finished run. CSV files and the SQLite store are sinks.
type Sink interface {
	// Name identifies the sink in logs and errors.
	Name() string

	// Write stores the run.
	Write(ctx context.Context, run *model.CrawlRun) error
}

// Finalize hands run to every sink in order.
//
// Every sink is attempted even when an earlier one fails, and the sinks run
// under a context detached from ctx's cancellation so that an interrupted
// crawl is still flushed. The returned error joins every sink failure.
func Finalize(ctx context.Context, run *model.CrawlRun, logger *slog.Logger, sinks ...Sink) error {
	if run == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	flushCtx := context.WithoutCancel(ctx)
	var errs []error
	for _, s := range sinks {
		if err := s.Write(flushCtx, run); err != nil {
			logger.Error("failed to write run output", "sink", s.Name(), "run_id", run.ID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		logger.Debug("wrote run output", "sink", s.Name(), "run_id", run.ID)
	}
	return errors.Join(errs...)
}
