package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// RawCapture is the visible text captured for one attempted URL.
// A capture is recorded for every attempted URL, whether or not structured
// records were found, because the text is useful even without a listing.
type RawCapture struct {
	URL       string    `json:"url"`
	RawText   string    `json:"raw_text"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

// Failed reports whether the capture records a failed fetch.
func (c RawCapture) Failed() bool {
	return c.Error != ""
}

// ErrorRecord records a per-URL failure that did not stop the run.
type ErrorRecord struct {
	URL       string    `json:"url"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// RunStatus is the exit status of a whole crawl run.
type RunStatus string

const (
	// StatusSuccess means at least one URL produced output.
	StatusSuccess RunStatus = "success"

	// StatusDegraded means no URL produced output. It is recorded, not
	// treated as a crash.
	StatusDegraded RunStatus = "degraded"
)

// Summary holds the end-of-run counters shown to the operator.
type Summary struct {
	RunID         string    `json:"run_id"`
	Status        RunStatus `json:"status"`
	Attempted     int       `json:"attempted"`
	Succeeded     int       `json:"succeeded"`
	Failed        int       `json:"failed"`
	UniqueRecords int       `json:"unique_records"`
	Aborted       string    `json:"aborted,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// CrawlRun accumulates the output of one crawl run.
//
// Design decision: The result slices are unexported and only grow through
// AddRecord, AddCapture and AddError. This keeps the dedup set and the
// results in lockstep: the set of keys in Results always equals the dedup set,
// and no record is appended whose key is already present.
//
// CrawlRun is not safe for concurrent use. Parallel workers each own a run
// and the runs are combined afterwards with Merge.
type CrawlRun struct {
	// ID uniquely identifies the run in durable storage.
	ID string `json:"id"`

	// TargetURLs is the ordered list of URLs the run was asked to visit.
	TargetURLs []string `json:"target_urls"`

	// StartedAt is when the run was created.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when Finish was called. Zero while the run is active.
	FinishedAt time.Time `json:"finished_at"`

	// AbortReason is set when a run-fatal error stopped the run early.
	AbortReason string `json:"abort_reason,omitempty"`

	seen     *DedupSet
	results  []InvestorRecord
	captures []RawCapture
	errors   []ErrorRecord
}

// NewCrawlRun creates an empty run for the given targets.
func NewCrawlRun(targets []string, startedAt time.Time) *CrawlRun {
	return &CrawlRun{
		ID:         uuid.NewString(),
		TargetURLs: slices.Clone(targets),
		StartedAt:  startedAt,
		seen:       NewDedupSet(),
		results:    make([]InvestorRecord, 0),
		captures:   make([]RawCapture, 0),
		errors:     make([]ErrorRecord, 0),
	}
}

// AddRecord appends the record unless it is invalid or its key was already
// seen. It reports whether the record was appended.
func (r *CrawlRun) AddRecord(rec InvestorRecord) bool {
	if !rec.Valid() {
		return false
	}
	if !r.seen.Add(rec.Key()) {
		return false
	}
	r.results = append(r.results, rec)
	return true
}

// AddRecords appends each record in order and returns how many were new.
func (r *CrawlRun) AddRecords(recs []InvestorRecord) int {
	added := 0
	for _, rec := range recs {
		if r.AddRecord(rec) {
			added++
		}
	}
	return added
}

// AddCapture appends a raw capture.
func (r *CrawlRun) AddCapture(c RawCapture) {
	r.captures = append(r.captures, c)
}

// AddError appends an error record.
func (r *CrawlRun) AddError(e ErrorRecord) {
	r.errors = append(r.errors, e)
}

// Abort marks the run as stopped by a run-fatal error.
func (r *CrawlRun) Abort(reason string) {
	r.AbortReason = reason
}

// Finish stamps the run's finish time.
func (r *CrawlRun) Finish(at time.Time) {
	r.FinishedAt = at
}

// Results returns the deduplicated records in first-seen order.
func (r *CrawlRun) Results() []InvestorRecord {
	return slices.Clone(r.results)
}

// Captures returns the raw captures in attempt order.
func (r *CrawlRun) Captures() []RawCapture {
	return slices.Clone(r.captures)
}

// Errors returns the error records in occurrence order.
func (r *CrawlRun) Errors() []ErrorRecord {
	return slices.Clone(r.errors)
}

// Seen reports whether a record with the given key is in the results.
func (r *CrawlRun) Seen(key DedupKey) bool {
	return r.seen.Contains(key)
}

// Merge folds another run's output into r, applying the same dedup rule.
// Records from other are considered after r's own, in their original order.
func (r *CrawlRun) Merge(other *CrawlRun) {
	if other == nil {
		return
	}
	r.AddRecords(other.results)
	r.captures = append(r.captures, other.captures...)
	r.errors = append(r.errors, other.errors...)
	if r.AbortReason == "" && other.AbortReason != "" {
		r.AbortReason = other.AbortReason
	}
}

// Status returns StatusSuccess when at least one URL produced output.
func (r *CrawlRun) Status() RunStatus {
	for _, c := range r.captures {
		if !c.Failed() {
			return StatusSuccess
		}
	}
	return StatusDegraded
}

// Summary returns the end-of-run counters.
func (r *CrawlRun) Summary() Summary {
	s := Summary{
		RunID:         r.ID,
		Status:        r.Status(),
		Attempted:     len(r.captures),
		UniqueRecords: len(r.results),
		Aborted:       r.AbortReason,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
	}
	for _, c := range r.captures {
		if c.Failed() {
			s.Failed++
		} else {
			s.Succeeded++
		}
	}
	return s
}
