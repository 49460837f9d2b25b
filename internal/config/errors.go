package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoTarget is returned when neither URLs nor a sitemap is given.
	ErrNoTarget = errors.New("no target specified: provide URLs or use --sitemap")

	// ErrInvalidRetries is returned when fewer than one attempt is allowed.
	ErrInvalidRetries = errors.New("invalid retries: must be at least 1")

	// ErrInvalidTimeout is returned when the login or page timeout is not
	// positive, or the backoff cap is negative.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidDelayWindow is returned when a delay window has min > max or
	// a negative bound.
	ErrInvalidDelayWindow = errors.New("invalid delay window: must satisfy 0 <= min <= max")

	// ErrInvalidWorkers is returned when fewer than one worker is requested.
	ErrInvalidWorkers = errors.New("invalid workers: must be at least 1")

	// ErrInvalidLimit is returned when the URL limit is negative.
	ErrInvalidLimit = errors.New("invalid limit: must be non-negative")

	// ErrInvalidPageCeiling is returned when the pagination ceiling or stall
	// threshold is below one.
	ErrInvalidPageCeiling = errors.New("invalid pagination bounds: ceiling and stall pages must be at least 1")

	// ErrInvalidRate is returned when the request rate is negative.
	ErrInvalidRate = errors.New("invalid requests per minute: must be non-negative")

	// ErrInvalidURL is returned when the base or login URL is empty.
	ErrInvalidURL = errors.New("invalid site URL: base and login URLs are required")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
