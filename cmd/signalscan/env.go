package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/nao1215/signalscan/internal/browser"
	"github.com/nao1215/signalscan/internal/config"
	"github.com/nao1215/signalscan/internal/delay"
)

// rendererFunc opens the browser for one worker.
type rendererFunc func(ctx context.Context, cfg *config.Config, worker int) (browser.Renderer, error)

// env holds the process-level collaborators of the commands. Tests replace
// the browser, the clock and the sleeper so that no Chrome is started and no
// real time passes.
type env struct {
	stdout      io.Writer
	stderr      io.Writer
	now         func() time.Time
	sleeper     delay.Sleeper
	newRenderer rendererFunc
}

func defaultEnv() *env {
	return &env{
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		now:         time.Now,
		sleeper:     delay.RealSleeper{},
		newRenderer: chromeRenderer,
	}
}

// chromeRenderer launches Chrome with the configured browser options.
func chromeRenderer(ctx context.Context, cfg *config.Config, _ int) (browser.Renderer, error) {
	opts := browser.DefaultOptions()
	opts.Headless = cfg.Headless
	opts.ExecPath = cfg.ChromePath
	if cfg.UserAgent != "" {
		opts.UserAgent = cfg.UserAgent
	}
	return browser.NewChrome(ctx, opts)
}
