package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/signalscan/internal/auth"
	"github.com/nao1215/signalscan/internal/delay"
	"github.com/nao1215/signalscan/internal/model"
	"github.com/nao1215/signalscan/internal/paginate"
)

// ErrNoURLs is returned when a run is started without any target.
var ErrNoURLs = errors.New("no target URLs")

// Fetcher loads one URL. *fetch.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) model.FetchResult
}

// Paginator collects every record reachable from a listing snapshot.
// *paginate.Driver satisfies it.
type Paginator interface {
	Collect(ctx context.Context, sourceURL, snapshot string) paginate.Result
}

// ListingDetector reports whether a snapshot contains a listing table.
// *extract.Extractor satisfies it.
type ListingDetector interface {
	HasListing(snapshot string) bool
}

// Controller runs a crawl over a list of URLs with one browsing session.
type Controller struct {
	fetcher   Fetcher
	paginator Paginator
	detector  ListingDetector

	// pause is drawn between consecutive URLs.
	pause   delay.Window
	sleeper delay.Sleeper
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithPause sets the idle window drawn between consecutive URLs.
// The zero window disables the pause.
func WithPause(w delay.Window) Option {
	return func(c *Controller) { c.pause = w }
}

// WithSleeper sets the sleeper used for the pause between URLs.
func WithSleeper(s delay.Sleeper) Option {
	return func(c *Controller) { c.sleeper = s }
}

// WithClock sets the clock used for run and error timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New creates a Controller from its collaborators.
func New(f Fetcher, p Paginator, d ListingDetector, opts ...Option) *Controller {
	c := &Controller{
		fetcher:   f,
		paginator: p,
		detector:  d,
		sleeper:   delay.RealSleeper{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Truncate returns the first limit URLs. A limit of zero or less keeps all.
func Truncate(urls []string, limit int) []string {
	if limit <= 0 || limit >= len(urls) {
		return urls
	}
	return urls[:limit]
}

// Run visits the first limit URLs in order and returns the accumulated run.
//
// The returned run is never nil once the crawl has started, even when an
// error is returned: a run aborted by an expired login or a cancelled context
// still carries everything collected so far and must be finalized.
func (c *Controller) Run(ctx context.Context, urls []string, limit int) (*model.CrawlRun, error) {
	targets := Truncate(urls, limit)
	if len(targets) == 0 {
		return nil, ErrNoURLs
	}

	run := model.NewCrawlRun(targets, c.now())
	c.logger.Info("starting crawl", "run_id", run.ID, "urls", len(targets))

	err := c.visitAll(ctx, run, targets)
	run.Finish(c.now())

	s := run.Summary()
	c.logger.Info("crawl finished",
		"run_id", run.ID,
		"status", s.Status,
		"attempted", s.Attempted,
		"succeeded", s.Succeeded,
		"failed", s.Failed,
		"unique_records", s.UniqueRecords,
	)
	return run, err
}

func (c *Controller) visitAll(ctx context.Context, run *model.CrawlRun, targets []string) error {
	for i, url := range targets {
		if err := ctx.Err(); err != nil {
			c.logger.Warn("crawl interrupted", "run_id", run.ID, "remaining", len(targets)-i)
			return err
		}
		if i > 0 {
			if err := c.idle(ctx); err != nil {
				return err
			}
		}

		c.logger.Info("visiting page", "url", url, "index", i+1, "total", len(targets))
		if err := c.visit(ctx, run, url); err != nil {
			return err
		}
	}
	return nil
}

// visit processes one URL. It returns an error only when the run must stop.
func (c *Controller) visit(ctx context.Context, run *model.CrawlRun, url string) error {
	res := c.fetcher.Fetch(ctx, url)

	switch res.Outcome {
	case model.OutcomeSuccess:
		c.collect(ctx, run, res)
		return nil

	case model.OutcomeAuthRequired:
		c.recordFailure(run, res)
		run.Abort(res.Reason)
		c.logger.Error("login not completed, aborting crawl", "url", url, "reason", res.Reason)
		return fmt.Errorf("crawl aborted at %s: %w", url, auth.ErrAuthTimeout)

	default:
		if err := ctx.Err(); err != nil {
			// The page was not finished; nothing is recorded for it.
			return err
		}
		c.recordFailure(run, res)
		c.logger.Warn("page failed, continuing", "url", url, "reason", res.Reason)
		return nil
	}
}

func (c *Controller) collect(ctx context.Context, run *model.CrawlRun, res model.FetchResult) {
	if c.detector.HasListing(res.HTMLSnapshot) {
		page := c.paginator.Collect(ctx, res.URL, res.HTMLSnapshot)
		added := run.AddRecords(page.Records)
		c.logger.Info("collected listing",
			"url", res.URL,
			"pages", page.Pages,
			"clicks", page.Clicks,
			"termination", page.Termination,
			"records", len(page.Records),
			"new", added,
		)
	} else {
		c.logger.Info("no listing table, keeping raw text only", "url", res.URL)
	}

	run.AddCapture(model.RawCapture{
		URL:       res.URL,
		RawText:   res.RawText,
		Timestamp: res.Timestamp,
	})
}

func (c *Controller) recordFailure(run *model.CrawlRun, res model.FetchResult) {
	ts := res.Timestamp
	if ts.IsZero() {
		ts = c.now()
	}
	run.AddError(model.ErrorRecord{URL: res.URL, Reason: res.Reason, Timestamp: ts})
	run.AddCapture(model.RawCapture{URL: res.URL, Timestamp: ts, Error: res.Reason})
}

func (c *Controller) idle(ctx context.Context) error {
	d := c.pause.Draw()
	if d <= 0 {
		return nil
	}
	return c.sleeper.Sleep(ctx, d)
}
