package browser

import (
	"context"
	"errors"
	"time"

	"github.com/nao1215/signalscan/internal/model"
)

var (
	// ErrStart indicates the browser could not be launched. It is fatal for a run.
	ErrStart = errors.New("failed to start browser")

	// ErrWaitTimeout is returned by WaitForCondition when the timeout elapses.
	ErrWaitTimeout = errors.New("timed out waiting for condition")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("browser is closed")

	// ErrStaleElement is returned when clicking an element whose handle is
	// not usable by this renderer.
	ErrStaleElement = errors.New("element handle is not valid")
)

// Element is a DOM element found by FindElements.
type Element struct {
	// Handle is renderer-specific and must only be passed back to the
	// renderer that produced it.
	Handle any

	// Text is the element's text content with surrounding space trimmed.
	Text string

	// Disabled reports whether the element carries the disabled attribute.
	Disabled bool
}

// Condition is evaluated repeatedly by WaitForCondition until it returns true.
type Condition func(ctx context.Context) (bool, error)

// Renderer is a browser tab that executes page scripts.
// A Renderer is used by one goroutine at a time.
type Renderer interface {
	// Navigate loads url and returns once the navigation has committed.
	Navigate(ctx context.Context, url string) error

	// CurrentURL returns the URL of the loaded document.
	CurrentURL(ctx context.Context) (string, error)

	// PageSource returns the current DOM serialized as HTML.
	PageSource(ctx context.Context) (string, error)

	// WaitForCondition polls cond until it reports true or timeout elapses.
	WaitForCondition(ctx context.Context, cond Condition, timeout time.Duration) error

	// FindElements returns every element matching the CSS selector.
	FindElements(ctx context.Context, selector string) ([]Element, error)

	// Click clicks an element returned by FindElements.
	Click(ctx context.Context, el Element) error

	// Cookies returns the cookies visible to the current page.
	Cookies(ctx context.Context) ([]model.Cookie, error)

	// AddCookie injects a cookie into the browser's cookie store.
	AddCookie(ctx context.Context, c model.Cookie) error

	// Close releases the tab and, for an owned browser, the process.
	Close() error
}

// ElementPresent returns a condition that holds once selector matches at
// least one element.
func ElementPresent(r Renderer, selector string) Condition {
	return func(ctx context.Context) (bool, error) {
		els, err := r.FindElements(ctx, selector)
		if err != nil {
			return false, err
		}
		return len(els) > 0, nil
	}
}

// Poll evaluates cond every interval until it holds, the timeout elapses, or
// ctx is done. It is the WaitForCondition loop shared by implementations.
func Poll(ctx context.Context, cond Condition, interval, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := cond(ctx)
		if err != nil && ctx.Err() == nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrWaitTimeout
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
