// Package browser defines the rendering capability the crawler depends on and
// provides a Chrome implementation built on chromedp.
//
// The crawler never talks to chromedp directly. It drives a Renderer, which
// can navigate, report the current URL and DOM, wait for a condition, find
// and click elements, and read or inject cookies. This keeps the fetch, auth
// and pagination logic testable with the scriptable fake in browsertest.
//
// Design decision: Browser stealth flags are treated as a black box. Chrome
// accepts extra command-line flags through Options.Flags and the package does
// not try to be clever about bot detection beyond that.
package browser
