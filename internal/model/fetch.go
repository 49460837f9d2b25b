package model

import "time"

// Outcome classifies the result of fetching a URL.
type Outcome int

const (
	// OutcomeSuccess means the page was rendered and captured.
	OutcomeSuccess Outcome = iota

	// OutcomeAuthRequired means the page required a login that could not be
	// completed. It is fatal for the run.
	OutcomeAuthRequired

	// OutcomeFailure means every attempt failed. Reason holds the last error.
	OutcomeFailure
)

// String returns a human-readable name for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeAuthRequired:
		return "auth_required"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// FetchResult is the immutable result of one Fetch call.
//
// Design decision: Failures are encoded in Outcome and Reason instead of an
// error return, so that the caller can still record that the URL was
// attempted. RawText is empty on failure.
type FetchResult struct {
	// URL is the requested URL.
	URL string `json:"url"`

	// RawText is the visible page text with whitespace collapsed.
	RawText string `json:"raw_text"`

	// HTMLSnapshot is the rendered DOM serialized as HTML.
	HTMLSnapshot string `json:"-"`

	// Timestamp is when the result was produced.
	Timestamp time.Time `json:"timestamp"`

	// Outcome classifies the result.
	Outcome Outcome `json:"outcome"`

	// Reason explains a non-success outcome.
	Reason string `json:"reason,omitempty"`

	// Attempts is the number of attempts consumed.
	Attempts int `json:"attempts"`
}

// OK reports whether the fetch succeeded.
func (r FetchResult) OK() bool {
	return r.Outcome == OutcomeSuccess
}
