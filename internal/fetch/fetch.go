package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/signalscan/internal/auth"
	"github.com/nao1215/signalscan/internal/browser"
	"github.com/nao1215/signalscan/internal/delay"
	"github.com/nao1215/signalscan/internal/extract"
	"github.com/nao1215/signalscan/internal/model"
)

// Defaults for Fetcher.
const (
	DefaultMaxRetries  = 3
	DefaultBodyTimeout = 20 * time.Second
	DefaultBackoffCap  = 60 * time.Second
)

var (
	// DefaultSettle is the wait after each navigation.
	DefaultSettle = delay.Window{Min: 5 * time.Second, Max: 8 * time.Second}

	// DefaultBackoff is the wait before the first retry.
	DefaultBackoff = delay.Window{Min: 5 * time.Second, Max: 10 * time.Second}
)

var (
	// ErrFetchFailure wraps the last error once every attempt has failed.
	ErrFetchFailure = errors.New("fetch failed")

	// ErrStillLoggedOut indicates the page was still a login prompt after a
	// completed login.
	ErrStillLoggedOut = errors.New("page still requires login after authentication")
)

// ReasonCancelled is the failure reason recorded when the context ends.
const ReasonCancelled = "cancelled"

// Authenticator is the part of the auth controller the fetcher uses.
type Authenticator interface {
	InjectCookies(ctx context.Context) error
	IsLoggedOut(sig auth.PageSignal) bool
	EnsureAuthenticated(ctx context.Context, sig auth.PageSignal) (bool, error)
}

// Fetcher loads pages through a Renderer.
type Fetcher struct {
	renderer    browser.Renderer
	auth        Authenticator
	maxRetries  int
	settle      delay.Window
	backoff     delay.Window
	backoffCap  time.Duration
	bodyTimeout time.Duration
	limiter     *rate.Limiter
	sleeper     delay.Sleeper
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithMaxRetries sets the number of attempts per URL. Values below 1 are
// treated as 1.
func WithMaxRetries(n int) Option {
	return func(f *Fetcher) { f.maxRetries = max(n, 1) }
}

// WithSettle sets the post-navigation jitter window.
func WithSettle(w delay.Window) Option {
	return func(f *Fetcher) { f.settle = w }
}

// WithBackoff sets the base retry backoff window and its cap.
func WithBackoff(w delay.Window, limit time.Duration) Option {
	return func(f *Fetcher) {
		f.backoff = w
		f.backoffCap = limit
	}
}

// WithBodyTimeout bounds the wait for the document body.
func WithBodyTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.bodyTimeout = d }
}

// WithRequestsPerMinute paces navigations. Zero disables pacing.
func WithRequestsPerMinute(n int) Option {
	return func(f *Fetcher) {
		if n <= 0 {
			f.limiter = nil
			return
		}
		f.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
	}
}

// WithSleeper sets the sleeper used for jitter and backoff.
func WithSleeper(s delay.Sleeper) Option {
	return func(f *Fetcher) { f.sleeper = s }
}

// WithClock sets the clock used to stamp results.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) { f.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New creates a Fetcher.
func New(r browser.Renderer, a Authenticator, opts ...Option) *Fetcher {
	f := &Fetcher{
		renderer:    r,
		auth:        a,
		maxRetries:  DefaultMaxRetries,
		settle:      DefaultSettle,
		backoff:     DefaultBackoff,
		backoffCap:  DefaultBackoffCap,
		bodyTimeout: DefaultBodyTimeout,
		sleeper:     delay.RealSleeper{},
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Renderer returns the renderer the fetcher drives.
func (f *Fetcher) Renderer() browser.Renderer {
	return f.renderer
}

// Fetch loads url and captures its visible text and DOM.
func (f *Fetcher) Fetch(ctx context.Context, url string) model.FetchResult {
	res := model.FetchResult{URL: url}
	var lastErr error

	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		res.Attempts = attempt
		if ctx.Err() != nil {
			return f.cancelled(res)
		}

		f.logger.Info("fetching page", "url", url, "attempt", attempt, "max_attempts", f.maxRetries)
		html, err := f.attempt(ctx, url)
		if err == nil {
			res.Outcome = model.OutcomeSuccess
			res.HTMLSnapshot = html
			res.RawText = extract.VisibleText(html)
			res.Timestamp = f.now()
			return res
		}

		if errors.Is(err, auth.ErrAuthTimeout) {
			res.Outcome = model.OutcomeAuthRequired
			res.Reason = err.Error()
			res.Timestamp = f.now()
			return res
		}
		if ctx.Err() != nil {
			return f.cancelled(res)
		}

		lastErr = err
		f.logger.Warn("fetch attempt failed", "url", url, "attempt", attempt, "error", err)

		if attempt < f.maxRetries {
			wait := f.backoff.Backoff(attempt, f.backoffCap)
			f.logger.Debug("backing off before retry", "url", url, "wait", wait)
			if err := f.sleeper.Sleep(ctx, wait); err != nil {
				return f.cancelled(res)
			}
		}
	}

	res.Outcome = model.OutcomeFailure
	res.Reason = fmt.Errorf("%w after %d attempts: %w", ErrFetchFailure, res.Attempts, lastErr).Error()
	res.Timestamp = f.now()
	f.logger.Error("giving up on page", "url", url, "reason", res.Reason)
	return res
}

func (f *Fetcher) cancelled(res model.FetchResult) model.FetchResult {
	res.Outcome = model.OutcomeFailure
	res.Reason = ReasonCancelled
	res.RawText = ""
	res.HTMLSnapshot = ""
	res.Timestamp = f.now()
	return res
}

// attempt performs one attempt and returns the page source on success.
func (f *Fetcher) attempt(ctx context.Context, url string) (string, error) {
	sig, err := f.load(ctx, url)
	if err != nil {
		return "", err
	}
	if !f.auth.IsLoggedOut(sig) {
		return sig.Text, nil
	}

	loggedIn, err := f.auth.EnsureAuthenticated(ctx, sig)
	if err != nil {
		return "", err
	}
	if !loggedIn {
		return "", ErrStillLoggedOut
	}

	sig, err = f.load(ctx, url)
	if err != nil {
		return "", err
	}
	if f.auth.IsLoggedOut(sig) {
		return "", ErrStillLoggedOut
	}
	return sig.Text, nil
}

// load injects cookies, navigates, waits and reads the resulting page.
func (f *Fetcher) load(ctx context.Context, url string) (auth.PageSignal, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return auth.PageSignal{}, err
		}
	}
	if err := f.auth.InjectCookies(ctx); err != nil {
		return auth.PageSignal{}, err
	}
	if err := f.renderer.Navigate(ctx, url); err != nil {
		return auth.PageSignal{}, err
	}
	if err := f.sleeper.Sleep(ctx, f.settle.Draw()); err != nil {
		return auth.PageSignal{}, err
	}
	if err := f.renderer.WaitForCondition(ctx, browser.ElementPresent(f.renderer, "body"), f.bodyTimeout); err != nil {
		return auth.PageSignal{}, fmt.Errorf("waiting for page body: %w", err)
	}

	current, err := f.renderer.CurrentURL(ctx)
	if err != nil {
		return auth.PageSignal{}, err
	}
	html, err := f.renderer.PageSource(ctx)
	if err != nil {
		return auth.PageSignal{}, err
	}
	return auth.PageSignal{URL: current, Text: html}, nil
}
