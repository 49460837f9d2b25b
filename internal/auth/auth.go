package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/nao1215/signalscan/internal/browser"
	"github.com/nao1215/signalscan/internal/delay"
	"github.com/nao1215/signalscan/internal/model"
	"github.com/nao1215/signalscan/internal/session"
)

// Defaults for the interactive login.
const (
	DefaultBaseURL      = "https://signal.nfx.com"
	DefaultLoginURL     = "https://signal.nfx.com/login"
	DefaultLoginPath    = "login"
	DefaultPollInterval = 2 * time.Second
	DefaultLoginTimeout = 120 * time.Second
)

// DefaultMarkers are page fragments that only appear when logged out.
var DefaultMarkers = []string{"Continue With Google", "sign up or log in", "LOGIN"}

// ErrAuthTimeout indicates the interactive login was not completed before
// the deadline. It is fatal for the run.
var ErrAuthTimeout = errors.New("interactive login was not completed in time")

// ErrSessionNotSaved indicates the login completed but its cookies could not
// be persisted. The browser stays authenticated; the previous session file is
// left untouched.
var ErrSessionNotSaved = errors.New("login completed but the session was not saved")

// State is the authentication state of the controller.
type State int

const (
	// StateUnauthenticated is the initial state.
	StateUnauthenticated State = iota
	// StateAuthenticated means session cookies are believed valid.
	StateAuthenticated
	// StateLoginInProgress means the operator is logging in.
	StateLoginInProgress
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateLoginInProgress:
		return "login_in_progress"
	default:
		return "unknown"
	}
}

// PageSignal describes the page the browser is currently showing.
type PageSignal struct {
	// URL is the document URL after redirects.
	URL string
	// Text is the page content searched for logged-out markers.
	Text string
}

// SessionStore persists sessions. *session.Store satisfies it.
type SessionStore interface {
	Load() (*session.Session, error)
	Save(*session.Session) error
}

// Controller owns the authentication state for one browser.
// It is safe for concurrent use, but a Renderer is driven by one goroutine
// at a time, so in practice one crawl worker owns one Controller.
type Controller struct {
	renderer     browser.Renderer
	store        SessionStore
	baseURL      string
	loginURL     string
	loginPath    string
	markers      []string
	pollInterval time.Duration
	loginTimeout time.Duration
	prompt       io.Writer
	sleeper      delay.Sleeper
	now          func() time.Time
	logger       *slog.Logger

	mu      sync.Mutex
	state   State
	cookies []model.Cookie
}

// Option configures a Controller.
type Option func(*Controller)

// WithBaseURL sets the site root. Saved cookies are limited to its
// registrable domain.
func WithBaseURL(u string) Option {
	return func(c *Controller) { c.baseURL = u }
}

// WithLoginURL sets the page opened for the interactive login.
func WithLoginURL(u string) Option {
	return func(c *Controller) { c.loginURL = u }
}

// WithLoginPath sets the URL path fragment that identifies a login page.
func WithLoginPath(p string) Option {
	return func(c *Controller) { c.loginPath = strings.ToLower(p) }
}

// WithMarkers replaces the logged-out markers.
func WithMarkers(markers []string) Option {
	return func(c *Controller) { c.markers = slices.Clone(markers) }
}

// WithPollInterval sets how often the login page is re-checked.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) { c.pollInterval = d }
}

// WithLoginTimeout sets the interactive login deadline.
func WithLoginTimeout(d time.Duration) Option {
	return func(c *Controller) { c.loginTimeout = d }
}

// WithPrompt sets where operator instructions are printed.
func WithPrompt(w io.Writer) Option {
	return func(c *Controller) { c.prompt = w }
}

// WithSleeper sets the sleeper used between polls.
func WithSleeper(s delay.Sleeper) Option {
	return func(c *Controller) { c.sleeper = s }
}

// WithClock sets the clock used for the login deadline.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// NewController creates a controller in StateUnauthenticated.
func NewController(r browser.Renderer, store SessionStore, opts ...Option) *Controller {
	c := &Controller{
		renderer:     r,
		store:        store,
		baseURL:      DefaultBaseURL,
		loginURL:     DefaultLoginURL,
		loginPath:    DefaultLoginPath,
		markers:      slices.Clone(DefaultMarkers),
		pollInterval: DefaultPollInterval,
		loginTimeout: DefaultLoginTimeout,
		prompt:       os.Stdout,
		sleeper:      delay.RealSleeper{},
		now:          time.Now,
		logger:       slog.Default(),
		state:        StateUnauthenticated,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	if prev != s {
		c.logger.Debug("auth state changed", "from", prev.String(), "to", s.String())
	}
}

// Cookies returns a copy of the current session cookies.
func (c *Controller) Cookies() []model.Cookie {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.cookies)
}

// Restore loads the saved session and injects it into the browser.
// A missing or unreadable session is not an error; the controller simply
// stays unauthenticated. Only context cancellation is returned.
func (c *Controller) Restore(ctx context.Context) error {
	sess, err := c.store.Load()
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.logger.Info("no saved session, login will be requested when needed")
		} else {
			c.logger.Warn("failed to load saved session", "error", err)
		}
		return nil
	}

	now := c.now()
	live := make([]model.Cookie, 0, len(sess.Cookies))
	for _, ck := range sess.Cookies {
		if ck.Expired(now) {
			continue
		}
		live = append(live, ck)
	}
	if len(live) == 0 {
		c.logger.Info("saved session has no live cookies")
		return nil
	}

	c.mu.Lock()
	c.cookies = live
	c.mu.Unlock()

	if err := c.InjectCookies(ctx); err != nil {
		return err
	}
	c.setState(StateAuthenticated)
	c.logger.Info("restored saved session", "cookies", len(live), "saved_at", sess.SavedAt)
	return nil
}

// InjectCookies adds the current session cookies to the browser. A cookie the
// browser rejects is logged and skipped.
func (c *Controller) InjectCookies(ctx context.Context) error {
	for _, ck := range c.Cookies() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.renderer.AddCookie(ctx, ck); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("could not inject cookie", "name", ck.Name, "error", err)
		}
	}
	return nil
}

// IsLoggedOut reports whether the page is a login prompt.
func (c *Controller) IsLoggedOut(sig PageSignal) bool {
	if c.onLoginPath(sig.URL) {
		return true
	}
	for _, m := range c.markers {
		if m != "" && strings.Contains(sig.Text, m) {
			return true
		}
	}
	return false
}

func (c *Controller) onLoginPath(raw string) bool {
	if c.loginPath == "" || raw == "" {
		return false
	}
	path := raw
	if u, err := url.Parse(raw); err == nil {
		path = u.Path
	}
	return strings.Contains(strings.ToLower(path), c.loginPath)
}

// EnsureAuthenticated runs the interactive login if sig shows a logged-out
// page. It reports whether a login was performed, in which case the caller
// must navigate to its page again. ErrAuthTimeout is returned when the login
// deadline passes.
func (c *Controller) EnsureAuthenticated(ctx context.Context, sig PageSignal) (bool, error) {
	if !c.IsLoggedOut(sig) {
		return false, nil
	}
	c.logger.Info("login required", "url", sig.URL)
	if err := c.login(ctx); err != nil && !errors.Is(err, ErrSessionNotSaved) {
		return false, err
	}
	return true, nil
}

// Login runs the interactive login unconditionally. It returns
// ErrSessionNotSaved when the login succeeded but no session was written.
func (c *Controller) Login(ctx context.Context) error {
	return c.login(ctx)
}

func (c *Controller) login(ctx context.Context) error {
	c.setState(StateLoginInProgress)

	if err := c.renderer.Navigate(ctx, c.loginURL); err != nil {
		c.setState(StateUnauthenticated)
		return fmt.Errorf("failed to open login page: %w", err)
	}

	fmt.Fprintln(c.prompt)
	fmt.Fprintln(c.prompt, "=== Login Required ===")
	fmt.Fprintf(c.prompt, "Please log in to %s in the browser window.\n", c.baseURL)
	fmt.Fprintf(c.prompt, "Waiting up to %s for the login to complete...\n", c.loginTimeout)
	fmt.Fprintln(c.prompt)

	deadline := c.now().Add(c.loginTimeout)
	for {
		if c.loginCompleted(ctx) {
			break
		}
		if !c.now().Before(deadline) {
			c.setState(StateUnauthenticated)
			c.logger.Error("login deadline passed", "timeout", c.loginTimeout)
			return ErrAuthTimeout
		}
		if err := c.sleeper.Sleep(ctx, c.pollInterval); err != nil {
			c.setState(StateUnauthenticated)
			return err
		}
	}

	c.setState(StateAuthenticated)
	fmt.Fprintln(c.prompt, "Login detected, continuing.")

	// The saved session is only replaced by a readable, non-empty cookie set.
	cookies, err := c.renderer.Cookies(ctx)
	if err != nil {
		c.logger.Warn("logged in but could not read cookies, session not saved", "error", err)
		return fmt.Errorf("%w: %w", ErrSessionNotSaved, err)
	}
	cookies = c.scopeCookies(cookies)
	if len(cookies) == 0 {
		c.logger.Warn("logged in but no site cookies were set, session not saved")
		return fmt.Errorf("%w: no cookies for %s", ErrSessionNotSaved, c.baseURL)
	}

	c.mu.Lock()
	c.cookies = cookies
	c.mu.Unlock()

	if err := c.store.Save(&session.Session{Cookies: cookies}); err != nil {
		c.logger.Error("failed to save session", "error", err)
		return fmt.Errorf("%w: %w", ErrSessionNotSaved, err)
	}
	c.logger.Info("login successful, session saved", "cookies", len(cookies))
	return nil
}

// loginCompleted reports whether the page no longer looks logged out. Read
// errors count as not completed, since the page may be mid-navigation.
func (c *Controller) loginCompleted(ctx context.Context) bool {
	current, err := c.renderer.CurrentURL(ctx)
	if err != nil {
		c.logger.Debug("could not read URL while waiting for login", "error", err)
		return false
	}
	src, err := c.renderer.PageSource(ctx)
	if err != nil {
		c.logger.Debug("could not read page while waiting for login", "error", err)
		return false
	}
	return !c.IsLoggedOut(PageSignal{URL: current, Text: src})
}

// scopeCookies keeps cookies that belong to the base URL's registrable
// domain, dropping third-party cookies picked up during the login flow.
func (c *Controller) scopeCookies(cookies []model.Cookie) []model.Cookie {
	site := registrableDomain(hostOf(c.baseURL))
	if site == "" {
		return cookies
	}
	kept := make([]model.Cookie, 0, len(cookies))
	for _, ck := range cookies {
		if registrableDomain(strings.TrimPrefix(ck.Domain, ".")) == site {
			kept = append(kept, ck)
			continue
		}
		c.logger.Debug("dropping third-party cookie", "name", ck.Name, "domain", ck.Domain)
	}
	return kept
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// registrableDomain returns the eTLD+1 of host, or host itself when it has
// none (IP addresses, localhost).
func registrableDomain(host string) string {
	host = strings.ToLower(host)
	if host == "" {
		return ""
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}
