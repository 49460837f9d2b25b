package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/signalscan/internal/auth"
	"github.com/nao1215/signalscan/internal/browser"
	"github.com/nao1215/signalscan/internal/config"
	"github.com/nao1215/signalscan/internal/crawl"
	"github.com/nao1215/signalscan/internal/extract"
	"github.com/nao1215/signalscan/internal/fetch"
	"github.com/nao1215/signalscan/internal/paginate"
	"github.com/nao1215/signalscan/internal/session"
)

// worker is one browser session with the components that drive it.
type worker struct {
	renderer  browser.Renderer
	store     *session.Store
	auth      *auth.Controller
	extractor *extract.Extractor
	fetcher   *fetch.Fetcher
	paginator *paginate.Driver
	crawler   *crawl.Controller
	logger    *slog.Logger
}

// newWorker opens a browser for worker n and restores its saved session.
// Each worker uses its own session slot so that parallel browsers never
// share cookies.
func newWorker(ctx context.Context, e *env, cfg *config.Config, n int, logger *slog.Logger) (*worker, error) {
	logger = logger.With("worker", n)

	r, err := e.newRenderer(ctx, cfg, n)
	if err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	store := session.NewStore(cfg.SessionPath(n), cfg.KeyPath(),
		session.WithLogger(logger),
		session.WithClock(e.now),
	)

	a := auth.NewController(r, store,
		auth.WithBaseURL(cfg.BaseURL),
		auth.WithLoginURL(cfg.LoginURL),
		auth.WithMarkers(cfg.LoginMarkers),
		auth.WithLoginTimeout(cfg.LoginTimeout),
		auth.WithPrompt(e.stdout),
		auth.WithSleeper(e.sleeper),
		auth.WithClock(e.now),
		auth.WithLogger(logger),
	)

	x := extract.New(
		extract.WithBaseURL(cfg.BaseURL),
		extract.WithClock(e.now),
		extract.WithLogger(logger),
	)

	f := fetch.New(r, a,
		fetch.WithMaxRetries(cfg.MaxRetries),
		fetch.WithSettle(cfg.SettleDelay),
		fetch.WithBackoff(cfg.BackoffDelay, cfg.BackoffCap),
		fetch.WithBodyTimeout(cfg.PageTimeout),
		fetch.WithRequestsPerMinute(cfg.RequestsPerMinute),
		fetch.WithSleeper(e.sleeper),
		fetch.WithClock(e.now),
		fetch.WithLogger(logger),
	)

	p := paginate.New(r, x,
		paginate.WithCeiling(cfg.PageCeiling),
		paginate.WithStallPages(cfg.StallPages),
		paginate.WithClickWait(cfg.ClickWait),
		paginate.WithSleeper(e.sleeper),
		paginate.WithLogger(logger),
	)

	c := crawl.New(f, p, x,
		crawl.WithPause(cfg.Pause),
		crawl.WithSleeper(e.sleeper),
		crawl.WithClock(e.now),
		crawl.WithLogger(logger),
	)

	w := &worker{
		renderer:  r,
		store:     store,
		auth:      a,
		extractor: x,
		fetcher:   f,
		paginator: p,
		crawler:   c,
		logger:    logger,
	}

	if err := a.Restore(ctx); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

// Close shuts the browser down.
func (w *worker) Close() {
	if err := w.renderer.Close(); err != nil && !errors.Is(err, browser.ErrClosed) {
		w.logger.Warn("failed to close browser", "error", err)
	}
}

// factory adapts newWorker to crawl.RunParallel.
func factory(e *env, cfg *config.Config, logger *slog.Logger) crawl.Factory {
	return func(ctx context.Context, n int) (*crawl.Controller, func(), error) {
		w, err := newWorker(ctx, e, cfg, n, logger)
		if err != nil {
			return nil, nil, err
		}
		return w.crawler, w.Close, nil
	}
}
