// Package fetch loads one URL through the browser with retries, jittered
// waits and transparent re-authentication.
//
// Fetch never returns an error and never panics. Every outcome, including
// exhausted retries, an expired login deadline and context cancellation, is
// encoded in the returned model.FetchResult so that the caller can always
// record that the URL was attempted.
//
// Per attempt the fetcher injects the session cookies, navigates, waits a
// random settle delay, then waits for the document body. If the page turns
// out to be a login prompt it hands over to the auth controller; when that
// performs a login the page is loaded again within the same attempt, at most
// once. Failed attempts are followed by a randomized backoff that doubles
// with each further retry.
package fetch
