// Package auth tracks whether the browser holds an authenticated session and
// drives the interactive login when it does not.
//
// The controller is a small state machine:
//
//	Unauthenticated --Restore(session found)--> Authenticated
//	Authenticated --EnsureAuthenticated(logged-out page)--> LoginInProgress
//	LoginInProgress --markers gone--> Authenticated (session saved)
//	LoginInProgress --deadline--> Unauthenticated (ErrAuthTimeout)
//
// Design decision: Authentication is detected as a side effect of fetching a
// page rather than checked up front. A restored session is trusted
// optimistically, and the login flow only runs when a fetched page turns out
// to be a login prompt. On the common path, where the saved session is still
// valid, this costs no extra round trip.
//
// The login itself is performed by a human in the browser window. The
// controller prints a prompt and polls the page until the logged-out markers
// disappear, bounded by a deadline.
package auth
