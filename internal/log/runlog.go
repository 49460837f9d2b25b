package log

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// RunLog is a logger that writes to the console and to a per-run file.
type RunLog struct {
	// Logger masks sensitive values on both outputs.
	Logger *slog.Logger

	// Path is the log file, or empty when file logging is disabled.
	Path string

	file *os.File
}

// Close flushes and closes the log file.
func (l *RunLog) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		_ = l.file.Close()
		return err
	}
	return l.file.Close()
}

// OpenRunLog creates signalscan_<timestamp>.log under dir and returns a
// logger that tees to console and to the file. The console honours verbose;
// the file records Info and above even when the console is quiet. An empty
// dir disables the file.
func OpenRunLog(console io.Writer, dir string, verbose bool, now time.Time) (*RunLog, error) {
	consoleHandler := slog.NewTextHandler(console, &slog.HandlerOptions{Level: levelFor(verbose)})
	if dir == "" {
		return &RunLog{Logger: slog.New(NewSecureHandler(consoleHandler))}, nil
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	path := filepath.Join(dir, "signalscan_"+now.Format("20060102_150405")+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec // path is built from the configured log dir
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	fileLevel := slog.LevelInfo
	if verbose {
		fileLevel = slog.LevelDebug
	}
	fileHandler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: fileLevel})

	return &RunLog{
		Logger: slog.New(NewSecureHandler(teeHandler{consoleHandler, fileHandler})),
		Path:   path,
		file:   f,
	}, nil
}

// teeHandler sends each record to every handler that accepts its level.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
