// Package browsertest provides a scriptable in-memory browser.Renderer.
package browsertest

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/signalscan/internal/browser"
	"github.com/nao1215/signalscan/internal/model"
)

// Fake is an in-memory Renderer. The zero value is not usable; create one
// with New. Hooks run without the internal lock held, so they may call the
// Fake's exported methods.
type Fake struct {
	mu          sync.Mutex
	pages       map[string]string
	redirects   map[string]string
	url         string
	html        string
	cookies     []model.Cookie
	navigations []string
	clicks      []browser.Element
	waits       int
	closed      bool

	// OnNavigate replaces the default navigation behaviour. n is the total
	// number of navigations so far, including this one. Call Load for the
	// default behaviour.
	OnNavigate func(f *Fake, url string, n int) error

	// OnClick runs for every click.
	OnClick func(f *Fake, el browser.Element) error

	// OnWait runs before every condition evaluation in WaitForCondition.
	OnWait func(f *Fake)

	// WaitPolls is how many times WaitForCondition evaluates the condition
	// before reporting a timeout. Defaults to 1.
	WaitPolls int

	// SourceErr, when set, is returned by PageSource.
	SourceErr error

	// FindErr, when set, is returned by FindElements.
	FindErr error

	// CookiesErr, when set, is returned by Cookies.
	CookiesErr error
}

var _ browser.Renderer = (*Fake)(nil)

// New returns a Fake serving pages keyed by URL.
func New(pages map[string]string) *Fake {
	if pages == nil {
		pages = make(map[string]string)
	}
	return &Fake{
		pages:     pages,
		redirects: make(map[string]string),
		url:       "about:blank",
		html:      "<html><head></head><body></body></html>",
		WaitPolls: 1,
	}
}

// SetPage registers html for url.
func (f *Fake) SetPage(url, html string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[url] = html
}

// Redirect makes navigation to from land on to.
func (f *Fake) Redirect(from, to string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.redirects[from] = to
}

// ClearRedirect removes a redirect.
func (f *Fake) ClearRedirect(from string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.redirects, from)
}

// Load shows the page registered for url, following redirects.
func (f *Fake) Load(url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	target := url
	if to, ok := f.redirects[url]; ok {
		target = to
	}
	html, ok := f.pages[target]
	if !ok {
		return fmt.Errorf("net::ERR_NAME_NOT_RESOLVED at %s", target)
	}
	f.url = target
	f.html = html
	return nil
}

// Show replaces the current document without a navigation.
func (f *Fake) Show(url, html string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.url = url
	f.html = html
}

// Navigations returns every URL passed to Navigate.
func (f *Fake) Navigations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.navigations)
}

// Clicks returns every clicked element.
func (f *Fake) Clicks() []browser.Element {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.clicks)
}

// Waits returns how many times WaitForCondition was called.
func (f *Fake) Waits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waits
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// SetCookies replaces the cookie jar.
func (f *Fake) SetCookies(cookies []model.Cookie) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cookies = slices.Clone(cookies)
}

// Navigate records url and loads it.
func (f *Fake) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return browser.ErrClosed
	}
	f.navigations = append(f.navigations, url)
	n := len(f.navigations)
	hook := f.OnNavigate
	f.mu.Unlock()

	if hook != nil {
		return hook(f, url, n)
	}
	return f.Load(url)
}

// CurrentURL returns the current document URL.
func (f *Fake) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url, nil
}

// PageSource returns the current document.
func (f *Fake) PageSource(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SourceErr != nil {
		return "", f.SourceErr
	}
	return f.html, nil
}

// WaitForCondition evaluates cond up to WaitPolls times.
func (f *Fake) WaitForCondition(ctx context.Context, cond browser.Condition, _ time.Duration) error {
	f.mu.Lock()
	f.waits++
	polls := max(f.WaitPolls, 1)
	hook := f.OnWait
	f.mu.Unlock()

	for range polls {
		if err := ctx.Err(); err != nil {
			return err
		}
		if hook != nil {
			hook(f)
		}
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return browser.ErrWaitTimeout
}

// FindElements matches selector against the current document with goquery.
// Element handles are the match index.
func (f *Fake) FindElements(ctx context.Context, selector string) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	html, findErr := f.html, f.FindErr
	f.mu.Unlock()
	if findErr != nil {
		return nil, findErr
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var elements []browser.Element
	doc.Find(selector).Each(func(i int, s *goquery.Selection) {
		_, disabled := s.Attr("disabled")
		elements = append(elements, browser.Element{
			Handle:   i,
			Text:     strings.TrimSpace(s.Text()),
			Disabled: disabled,
		})
	})
	return elements, nil
}

// Click records el and runs OnClick.
func (f *Fake) Click(ctx context.Context, el browser.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.clicks = append(f.clicks, el)
	hook := f.OnClick
	f.mu.Unlock()

	if hook != nil {
		return hook(f, el)
	}
	return nil
}

// Cookies returns the cookie jar.
func (f *Fake) Cookies(ctx context.Context) ([]model.Cookie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CookiesErr != nil {
		return nil, f.CookiesErr
	}
	return slices.Clone(f.cookies), nil
}

// AddCookie stores c, replacing a cookie with the same name and domain.
func (f *Fake) AddCookie(ctx context.Context, c model.Cookie) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.cookies {
		if existing.Name == c.Name && existing.Domain == c.Domain {
			f.cookies[i] = c
			return nil
		}
	}
	f.cookies = append(f.cookies, c)
	return nil
}

// Close marks the fake closed.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
