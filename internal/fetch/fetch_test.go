package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/signalscan/internal/auth"
	"github.com/nao1215/signalscan/internal/browser/browsertest"
	"github.com/nao1215/signalscan/internal/delay"
	"github.com/nao1215/signalscan/internal/model"
	"github.com/nao1215/signalscan/internal/session"
)

const (
	pageURL     = "https://signal.nfx.com/investor-lists/top-marketplaces-seed-investors"
	homeURL     = "https://signal.nfx.com/investors"
	listingHTML = `<html><body><h1>Investors in Marketplaces</h1><table><tr><td>row</td></tr></table></body></html>`
	loginHTML   = `<html><body><a>LOGIN</a><button>Continue With Google</button></body></html>`
)

var start = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory auth.SessionStore.
type memStore struct{ saves int }

func (m *memStore) Load() (*session.Session, error) { return nil, session.ErrNotFound }
func (m *memStore) Save(*session.Session) error     { m.saves++; return nil }

func newController(f *browsertest.Fake, clock *delay.VirtualClock, s delay.Sleeper) *auth.Controller {
	return auth.NewController(f, &memStore{},
		auth.WithLogger(discardLogger()),
		auth.WithClock(clock.Now),
		auth.WithSleeper(s),
		auth.WithPrompt(io.Discard),
	)
}

// stubAuth reports every page as logged out and every login as successful.
type stubAuth struct{ logins int }

func (s *stubAuth) InjectCookies(context.Context) error { return nil }
func (s *stubAuth) IsLoggedOut(auth.PageSignal) bool    { return true }
func (s *stubAuth) EnsureAuthenticated(context.Context, auth.PageSignal) (bool, error) {
	s.logins++
	return true, nil
}

// sleeperFunc adapts a function to delay.Sleeper.
type sleeperFunc func(ctx context.Context, d time.Duration) error

func (f sleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

func newFetcher(f *browsertest.Fake, a Authenticator, clock *delay.VirtualClock) *Fetcher {
	return New(f, a,
		WithSleeper(clock),
		WithClock(clock.Now),
		WithLogger(discardLogger()),
	)
}

func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	fake := browsertest.New(map[string]string{pageURL: listingHTML})
	clock := delay.NewVirtualClock(start)
	f := newFetcher(fake, newController(fake, clock, clock), clock)

	res := f.Fetch(context.Background(), pageURL)

	if res.Outcome != model.OutcomeSuccess {
		t.Fatalf("expected success, got %s (%s)", res.Outcome, res.Reason)
	}
	if res.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", res.Attempts)
	}
	if res.RawText != "Investors in Marketplaces row" {
		t.Errorf("unexpected raw text %q", res.RawText)
	}
	if res.HTMLSnapshot != listingHTML {
		t.Error("expected the DOM snapshot to be captured")
	}
	sleeps := clock.Sleeps()
	if len(sleeps) != 1 || sleeps[0] < DefaultSettle.Min || sleeps[0] > DefaultSettle.Max {
		t.Errorf("expected one settle wait within %v, got %v", DefaultSettle, sleeps)
	}
	if !res.Timestamp.Equal(start.Add(sleeps[0])) {
		t.Errorf("expected timestamp from injected clock, got %v", res.Timestamp)
	}
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	fake := browsertest.New(map[string]string{pageURL: listingHTML})
	fake.OnNavigate = func(f *browsertest.Fake, url string, n int) error {
		if n <= 2 {
			return errors.New("net::ERR_CONNECTION_RESET")
		}
		return f.Load(url)
	}
	clock := delay.NewVirtualClock(start)
	f := newFetcher(fake, newController(fake, clock, clock), clock)

	res := f.Fetch(context.Background(), pageURL)

	if res.Outcome != model.OutcomeSuccess {
		t.Fatalf("expected success, got %s (%s)", res.Outcome, res.Reason)
	}
	if got := len(fake.Navigations()); got != 3 {
		t.Errorf("expected exactly 3 navigations, got %d", got)
	}
	if res.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", res.Attempts)
	}

	sleeps := clock.Sleeps()
	if len(sleeps) != 3 {
		t.Fatalf("expected 2 backoffs and 1 settle wait, got %v", sleeps)
	}
	if sleeps[0] < 5*time.Second || sleeps[0] > 10*time.Second {
		t.Errorf("first backoff %v outside [5s, 10s]", sleeps[0])
	}
	if sleeps[1] < 10*time.Second || sleeps[1] > 20*time.Second {
		t.Errorf("second backoff %v outside [10s, 20s]", sleeps[1])
	}
}

func TestFetchExhaustsRetries(t *testing.T) {
	t.Parallel()

	fake := browsertest.New(nil)
	fake.OnNavigate = func(*browsertest.Fake, string, int) error {
		return errors.New("net::ERR_TIMED_OUT")
	}
	clock := delay.NewVirtualClock(start)
	f := New(fake, newController(fake, clock, clock),
		WithMaxRetries(4),
		WithSleeper(clock),
		WithClock(clock.Now),
		WithLogger(discardLogger()),
	)

	res := f.Fetch(context.Background(), pageURL)

	if res.Outcome != model.OutcomeFailure {
		t.Fatalf("expected failure, got %s", res.Outcome)
	}
	if res.RawText != "" {
		t.Errorf("expected empty raw text, got %q", res.RawText)
	}
	if !strings.Contains(res.Reason, ErrFetchFailure.Error()) || !strings.Contains(res.Reason, "ERR_TIMED_OUT") {
		t.Errorf("unexpected reason %q", res.Reason)
	}
	if got := len(fake.Navigations()); got != 4 {
		t.Errorf("expected 4 navigations, got %d", got)
	}
	for i, d := range clock.Sleeps() {
		if d > DefaultBackoffCap {
			t.Errorf("backoff %d = %v exceeds cap", i, d)
		}
	}
}

func TestFetchLogsInAndRefetchesWithinAttempt(t *testing.T) {
	t.Parallel()

	fake := browsertest.New(map[string]string{
		pageURL:              listingHTML,
		homeURL:              `<html><body>Welcome back</body></html>`,
		auth.DefaultLoginURL: loginHTML,
	})
	fake.Redirect(pageURL, auth.DefaultLoginURL)

	clock := delay.NewVirtualClock(start)
	operator := sleeperFunc(func(ctx context.Context, d time.Duration) error {
		if d == auth.DefaultPollInterval {
			fake.ClearRedirect(pageURL)
			fake.Show(homeURL, `<html><body>Welcome back</body></html>`)
		}
		return clock.Sleep(ctx, d)
	})
	f := newFetcher(fake, newController(fake, clock, operator), clock)

	res := f.Fetch(context.Background(), pageURL)

	if res.Outcome != model.OutcomeSuccess {
		t.Fatalf("expected success, got %s (%s)", res.Outcome, res.Reason)
	}
	if res.Attempts != 1 {
		t.Errorf("expected the login to not consume a retry, got %d attempts", res.Attempts)
	}
	want := []string{pageURL, auth.DefaultLoginURL, pageURL}
	got := fake.Navigations()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected navigations %v, got %v", want, got)
	}
}

func TestFetchAuthTimeout(t *testing.T) {
	t.Parallel()

	fake := browsertest.New(map[string]string{
		pageURL:              listingHTML,
		auth.DefaultLoginURL: loginHTML,
	})
	fake.Redirect(pageURL, auth.DefaultLoginURL)
	clock := delay.NewVirtualClock(start)
	f := newFetcher(fake, newController(fake, clock, clock), clock)

	res := f.Fetch(context.Background(), pageURL)

	if res.Outcome != model.OutcomeAuthRequired {
		t.Fatalf("expected auth required, got %s (%s)", res.Outcome, res.Reason)
	}
	if res.Attempts != 1 {
		t.Errorf("expected no retry after auth timeout, got %d attempts", res.Attempts)
	}
}

func TestFetchStillLoggedOut(t *testing.T) {
	t.Parallel()

	fake := browsertest.New(map[string]string{pageURL: loginHTML})
	clock := delay.NewVirtualClock(start)
	stub := &stubAuth{}
	f := newFetcher(fake, stub, clock)

	res := f.Fetch(context.Background(), pageURL)

	if res.Outcome != model.OutcomeFailure {
		t.Fatalf("expected failure, got %s", res.Outcome)
	}
	if !strings.Contains(res.Reason, ErrStillLoggedOut.Error()) {
		t.Errorf("unexpected reason %q", res.Reason)
	}
	if stub.logins != DefaultMaxRetries {
		t.Errorf("expected one login per attempt, got %d", stub.logins)
	}
	if got := len(fake.Navigations()); got != 2*DefaultMaxRetries {
		t.Errorf("expected one re-navigation per attempt, got %d navigations", got)
	}
}

func TestFetchCancelled(t *testing.T) {
	t.Parallel()

	t.Run("before first attempt", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		fake := browsertest.New(map[string]string{pageURL: listingHTML})
		clock := delay.NewVirtualClock(start)
		res := newFetcher(fake, newController(fake, clock, clock), clock).Fetch(ctx, pageURL)

		if res.Outcome != model.OutcomeFailure || res.Reason != ReasonCancelled {
			t.Errorf("expected cancelled failure, got %s (%s)", res.Outcome, res.Reason)
		}
		if len(fake.Navigations()) != 0 {
			t.Error("expected no navigation")
		}
	})

	t.Run("during backoff", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		fake := browsertest.New(nil)
		fake.OnNavigate = func(*browsertest.Fake, string, int) error { return errors.New("boom") }
		clock := delay.NewVirtualClock(start)
		cancelling := sleeperFunc(func(ctx context.Context, d time.Duration) error {
			cancel()
			return clock.Sleep(ctx, d)
		})
		f := New(fake, newController(fake, clock, clock),
			WithSleeper(cancelling),
			WithClock(clock.Now),
			WithLogger(discardLogger()),
		)

		res := f.Fetch(ctx, pageURL)
		if res.Reason != ReasonCancelled {
			t.Errorf("expected cancelled, got %q", res.Reason)
		}
		if got := len(fake.Navigations()); got != 1 {
			t.Errorf("expected 1 navigation, got %d", got)
		}
	})
}

func TestFetchBodyTimeout(t *testing.T) {
	t.Parallel()

	fake := browsertest.New(map[string]string{pageURL: listingHTML})
	fake.FindErr = errors.New("node lookup failed")
	clock := delay.NewVirtualClock(start)
	f := New(fake, newController(fake, clock, clock),
		WithMaxRetries(1),
		WithSleeper(clock),
		WithClock(clock.Now),
		WithLogger(discardLogger()),
	)

	res := f.Fetch(context.Background(), pageURL)
	if res.Outcome != model.OutcomeFailure {
		t.Fatalf("expected failure, got %s", res.Outcome)
	}
	if !strings.Contains(res.Reason, "waiting for page body") {
		t.Errorf("unexpected reason %q", res.Reason)
	}
}

func TestWithRequestsPerMinute(t *testing.T) {
	t.Parallel()

	f := New(nil, nil, WithRequestsPerMinute(30))
	if f.limiter == nil {
		t.Fatal("expected limiter to be configured")
	}
	if got := f.limiter.Limit(); got < 0.49 || got > 0.51 {
		t.Errorf("expected 0.5 requests per second, got %v", got)
	}

	f = New(nil, nil, WithRequestsPerMinute(0))
	if f.limiter != nil {
		t.Error("expected no limiter for zero rate")
	}
}
