package config

import (
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/signalscan/internal/delay"
)

// Default configuration values.
// These values mirror the pacing that keeps a single interactive session
// usable on the directory site for long runs.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "signalscan"

	// DefaultBaseURL is the site root. Relative links are resolved against it.
	DefaultBaseURL = "https://signal.nfx.com"

	// DefaultLoginURL is opened when the operator has to log in.
	DefaultLoginURL = "https://signal.nfx.com/login"

	// DefaultMaxRetries is the number of fetch attempts per URL.
	DefaultMaxRetries = 3

	// DefaultWorkers is the number of independent browser sessions.
	// One session is the reference behaviour; more sessions need more logins.
	DefaultWorkers = 1

	// DefaultLoginTimeout bounds how long the operator has to log in.
	DefaultLoginTimeout = 120 * time.Second

	// DefaultPageTimeout bounds the wait for a page body to appear.
	DefaultPageTimeout = 20 * time.Second

	// DefaultBackoffCap caps the wait between fetch attempts.
	DefaultBackoffCap = 60 * time.Second

	// DefaultPageCeiling is the maximum number of load-more clicks per page.
	DefaultPageCeiling = 100

	// DefaultStallPages is how many consecutive pages without new records
	// end pagination.
	DefaultStallPages = 2

	// DefaultSitemapFilter selects investor list URLs from a sitemap.
	DefaultSitemapFilter = "signal.nfx.com/investor-lists"
)

// Default delay windows. Waits are drawn uniformly from each window.
var (
	DefaultSettleDelay  = delay.Window{Min: 5 * time.Second, Max: 8 * time.Second}
	DefaultBackoffDelay = delay.Window{Min: 5 * time.Second, Max: 10 * time.Second}
	DefaultClickWait    = delay.Window{Min: 3 * time.Second, Max: 5 * time.Second}
	DefaultPause        = delay.Window{Min: 2 * time.Second, Max: 5 * time.Second}
)

// DefaultLoginMarkers are page texts that only appear while logged out.
// Matching is case-sensitive.
var DefaultLoginMarkers = []string{"Continue With Google", "sign up or log in", "LOGIN"}

// Config holds all configuration options for signalscan.
// This struct is populated from defaults, then the config file, then CLI
// flags, and is passed through the application rather than kept global.
//
// Design decision: We keep a single flat struct as the CLI does, with the
// config file mapped onto it by File.Apply. Nesting is confined to the YAML
// layout, where grouping helps operators find options.
type Config struct {
	// Targets is the list of URLs to crawl, in order.
	Targets []string

	// SitemapPath is a local sitemap file to read targets from.
	SitemapPath string

	// SitemapFilter keeps only sitemap locations containing this substring.
	SitemapFilter string

	// Limit truncates the target list. Zero means no limit.
	Limit int

	// MaxRetries is the number of fetch attempts per URL.
	MaxRetries int

	// Workers is the number of parallel browser sessions.
	Workers int

	// Headless runs Chrome without a window. The first login needs a window.
	Headless bool

	// ChromePath overrides the Chrome executable.
	ChromePath string

	// UserAgent overrides the browser's User-Agent.
	UserAgent string

	// BaseURL is the site root used to resolve relative links.
	BaseURL string

	// LoginURL is opened for interactive login.
	LoginURL string

	// LoginMarkers are page texts that indicate a logged-out page.
	LoginMarkers []string

	// LoginTimeout bounds the interactive login.
	LoginTimeout time.Duration

	// PageTimeout bounds the wait for a page body.
	PageTimeout time.Duration

	// SettleDelay is waited after every navigation.
	SettleDelay delay.Window

	// BackoffDelay is the base wait between fetch attempts. It doubles with
	// each further attempt up to BackoffCap.
	BackoffDelay delay.Window

	// BackoffCap caps the retry wait.
	BackoffCap time.Duration

	// ClickWait is waited after every load-more click.
	ClickWait delay.Window

	// Pause is waited between consecutive URLs.
	Pause delay.Window

	// RequestsPerMinute caps navigations per minute. Zero disables the cap.
	RequestsPerMinute int

	// PageCeiling is the maximum number of load-more clicks per page.
	PageCeiling int

	// StallPages is the number of consecutive pages without new records
	// that ends pagination.
	StallPages int

	// SessionFile is the encrypted cookie store. Empty means the XDG default.
	SessionFile string

	// KeyFile holds the session encryption key. Empty means the XDG default.
	KeyFile string

	// OutputDir receives the CSV files.
	OutputDir string

	// DBDir is the directory of the SQLite database.
	DBDir string

	// SaveToDB enables the SQLite store.
	SaveToDB bool

	// JSONReport prints the run summary as JSON.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport prints the run summary as Markdown.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile writes the summary to a file instead of stdout.
	ReportFile string

	// LogDir receives per-run log files. Empty disables file logging.
	LogDir string

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, .signalscan is searched in the current directory and then
	// in the user's home directory.
	ConfigFilePath string
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because most defaults are non-zero (retries, windows, URLs).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		SitemapFilter: DefaultSitemapFilter,
		MaxRetries:    DefaultMaxRetries,
		Workers:       DefaultWorkers,
		BaseURL:       DefaultBaseURL,
		LoginURL:      DefaultLoginURL,
		LoginMarkers:  append([]string(nil), DefaultLoginMarkers...),
		LoginTimeout:  DefaultLoginTimeout,
		PageTimeout:   DefaultPageTimeout,
		SettleDelay:   DefaultSettleDelay,
		BackoffDelay:  DefaultBackoffDelay,
		BackoffCap:    DefaultBackoffCap,
		ClickWait:     DefaultClickWait,
		Pause:         DefaultPause,
		PageCeiling:   DefaultPageCeiling,
		StallPages:    DefaultStallPages,
		OutputDir:     ".",
		DBDir:         XDGDataDir(),
		SaveToDB:      true,
		LogDir:        filepath.Join(XDGStateDir(), "logs"),
	}
}

// XDGDataDir returns the XDG data directory for signalscan.
// On Linux: ~/.local/share/signalscan
// On macOS: ~/Library/Application Support/signalscan
// On Windows: %LOCALAPPDATA%\signalscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for signalscan.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGStateDir returns the XDG state directory for signalscan.
// The session file, key file and logs live here.
func XDGStateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// SessionPath returns the session file for the given worker. Worker 0 and 1
// share the primary session file; further workers get numbered slots.
func (c *Config) SessionPath(worker int) string {
	path := c.SessionFile
	if path == "" {
		path = filepath.Join(XDGStateDir(), "session.enc")
	}
	if worker <= 1 {
		return path
	}
	ext := filepath.Ext(path)
	return path[:len(path)-len(ext)] + "-" + strconv.Itoa(worker) + ext
}

// KeyPath returns the session key file.
func (c *Config) KeyPath() string {
	if c.KeyFile != "" {
		return c.KeyFile
	}
	return filepath.Join(XDGStateDir(), "session.key")
}

// Validate checks if the configuration is valid for a crawl.
// It returns the first problem found as a sentinel error.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after flags and the config file are merged.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 && c.SitemapPath == "" {
		return ErrNoTarget
	}
	if err := c.ValidateSession(); err != nil {
		return err
	}
	if c.Limit < 0 {
		return ErrInvalidLimit
	}
	if c.Workers < 1 {
		return ErrInvalidWorkers
	}
	if c.PageCeiling < 1 || c.StallPages < 1 {
		return ErrInvalidPageCeiling
	}
	if c.RequestsPerMinute < 0 {
		return ErrInvalidRate
	}
	for _, w := range []delay.Window{c.SettleDelay, c.BackoffDelay, c.ClickWait, c.Pause} {
		if err := w.Validate(); err != nil {
			return ErrInvalidDelayWindow
		}
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}

// ValidateSession checks the options shared by every command that opens a
// browser session.
func (c *Config) ValidateSession() error {
	if c.MaxRetries < 1 {
		return ErrInvalidRetries
	}
	if c.LoginTimeout <= 0 || c.PageTimeout <= 0 || c.BackoffCap < 0 {
		return ErrInvalidTimeout
	}
	if c.BaseURL == "" || c.LoginURL == "" {
		return ErrInvalidURL
	}
	return nil
}
