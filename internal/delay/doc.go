// Package delay provides randomized wait windows and a context-aware sleeper.
//
// The crawler waits a random duration after every navigation so that page
// scripts can settle, and waits a growing random duration between retries.
// Both waits go through the Sleeper interface so that tests can record the
// requested durations instead of actually sleeping.
package delay
