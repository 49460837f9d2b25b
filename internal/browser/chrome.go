package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/nao1215/signalscan/internal/model"
)

// Default browser settings.
const (
	DefaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0 Safari/537.36"
	DefaultWindowWidth  = 1920
	DefaultWindowHeight = 1080
	DefaultPollInterval = 250 * time.Millisecond
)

// Options configures a Chrome instance.
type Options struct {
	// Headless runs Chrome without a window. Interactive login needs a window.
	Headless bool

	// ExecPath overrides the Chrome binary. Empty uses chromedp's lookup.
	ExecPath string

	// UserAgent overrides the user agent string.
	UserAgent string

	// UserDataDir is a persistent profile directory. Empty uses a temp dir.
	UserDataDir string

	// WindowWidth and WindowHeight set the viewport size.
	WindowWidth  int
	WindowHeight int

	// Flags are extra Chrome command-line switches, e.g. "disable-extensions".
	// A value of true enables a switch without an argument.
	Flags map[string]any

	// PollInterval is how often WaitForCondition re-evaluates.
	PollInterval time.Duration

	// Logger receives diagnostic messages.
	Logger *slog.Logger
}

// DefaultOptions returns options matching a normal desktop browser.
func DefaultOptions() Options {
	return Options{
		Headless:     false,
		UserAgent:    DefaultUserAgent,
		WindowWidth:  DefaultWindowWidth,
		WindowHeight: DefaultWindowHeight,
		Flags: map[string]any{
			"disable-blink-features": "AutomationControlled",
			"disable-dev-shm-usage":  true,
			"no-sandbox":             true,
		},
		PollInterval: DefaultPollInterval,
	}
}

// Chrome is a Renderer backed by a chromedp-controlled Chrome tab.
type Chrome struct {
	ctx          context.Context
	cancel       context.CancelFunc
	allocCancel  context.CancelFunc
	pollInterval time.Duration
	logger       *slog.Logger

	mu     sync.Mutex
	closed bool
}

var _ Renderer = (*Chrome)(nil)

// NewChrome launches Chrome and opens a blank tab.
// Errors wrap ErrStart.
func NewChrome(ctx context.Context, opts Options) (*Chrome, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOptions(opts)...)
	tabCtx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			opts.Logger.Debug("chromedp error", "message", fmt.Sprintf(format, args...))
		}),
	)

	if err := chromedp.Run(tabCtx, network.Enable(), chromedp.Navigate("about:blank")); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("%w: %w", ErrStart, err)
	}

	return &Chrome{
		ctx:          tabCtx,
		cancel:       cancel,
		allocCancel:  allocCancel,
		pollInterval: opts.PollInterval,
		logger:       opts.Logger,
	}, nil
}

func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.Flag("headless", opts.Headless))

	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}
	for name, value := range opts.Flags {
		allocOpts = append(allocOpts, chromedp.Flag(name, value))
	}
	return allocOpts
}

// run executes actions on the tab, aborting when either the caller's context
// or the tab's context ends.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	runCtx, cancel := context.WithCancel(c.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Navigate loads url.
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	if err := c.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// CurrentURL returns the document location.
func (c *Chrome) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := c.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return loc, nil
}

// PageSource returns the outer HTML of the document element.
func (c *Chrome) PageSource(ctx context.Context) (string, error) {
	var html string
	if err := c.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page source: %w", err)
	}
	return html, nil
}

// WaitForCondition polls cond at the configured interval.
func (c *Chrome) WaitForCondition(ctx context.Context, cond Condition, timeout time.Duration) error {
	return Poll(ctx, cond, c.pollInterval, timeout)
}

// FindElements returns the nodes matching selector. It does not wait for
// matches to appear.
func (c *Chrome) FindElements(ctx context.Context, selector string) ([]Element, error) {
	var nodes []*cdp.Node
	if err := c.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", selector, err)
	}

	elements := make([]Element, 0, len(nodes))
	for _, node := range nodes {
		var text string
		if err := c.run(ctx, chromedp.TextContent([]cdp.NodeID{node.NodeID}, &text, chromedp.ByNodeID)); err != nil {
			c.logger.Debug("failed to read element text", "selector", selector, "error", err)
		}
		_, disabled := node.Attribute("disabled")
		elements = append(elements, Element{
			Handle:   node,
			Text:     strings.TrimSpace(text),
			Disabled: disabled,
		})
	}
	return elements, nil
}

// Click performs a mouse click at the centre of the element, scrolling it
// into view first.
func (c *Chrome) Click(ctx context.Context, el Element) error {
	node, ok := el.Handle.(*cdp.Node)
	if !ok || node == nil {
		return ErrStaleElement
	}
	if err := c.run(ctx, chromedp.MouseClickNode(node)); err != nil {
		return fmt.Errorf("failed to click element: %w", err)
	}
	return nil
}

// Cookies returns the cookies for the current page.
func (c *Chrome) Cookies(ctx context.Context) ([]model.Cookie, error) {
	var raw []*network.Cookie
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}

	cookies := make([]model.Cookie, 0, len(raw))
	for _, rc := range raw {
		cookies = append(cookies, fromNetworkCookie(rc))
	}
	return cookies, nil
}

// AddCookie injects a cookie.
func (c *Chrome) AddCookie(ctx context.Context, ck model.Cookie) error {
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return toSetCookie(ck).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("failed to set cookie %s: %w", ck.Name, err)
	}
	return nil
}

// Close closes the tab and the browser process. It is safe to call twice.
func (c *Chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.cancel()
	c.allocCancel()
	return nil
}
