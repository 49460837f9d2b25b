package config

import (
	"time"

	"github.com/nao1215/signalscan/internal/delay"
)

// File represents the structure of the .signalscan configuration file.
// Every field is optional; zero values and absent keys leave the Config
// untouched.
type File struct {
	Site     SiteSection    `yaml:"site,omitempty"`
	Crawl    CrawlSection   `yaml:"crawl,omitempty"`
	Timeouts TimeoutSection `yaml:"timeouts,omitempty"`
	Delays   DelaySection   `yaml:"delays,omitempty"`
	Browser  BrowserSection `yaml:"browser,omitempty"`
	Session  SessionSection `yaml:"session,omitempty"`
	Output   OutputSection  `yaml:"output,omitempty"`
}

// SiteSection configures the site being crawled.
type SiteSection struct {
	BaseURL      string   `yaml:"base_url,omitempty"`
	LoginURL     string   `yaml:"login_url,omitempty"`
	LoginMarkers []string `yaml:"login_markers,omitempty"`
}

// CrawlSection configures targets and pacing.
type CrawlSection struct {
	Sitemap           string        `yaml:"sitemap,omitempty"`
	SitemapFilter     string        `yaml:"sitemap_filter,omitempty"`
	Limit             int           `yaml:"limit,omitempty"`
	Retries           int           `yaml:"retries,omitempty"`
	Workers           int           `yaml:"workers,omitempty"`
	RequestsPerMinute int           `yaml:"requests_per_minute,omitempty"`
	PageCeiling       int           `yaml:"page_ceiling,omitempty"`
	StallPages        int           `yaml:"stall_pages,omitempty"`
	Pause             *delay.Window `yaml:"pause,omitempty"`
}

// TimeoutSection configures timeouts. Values use Go duration syntax ("20s").
type TimeoutSection struct {
	Login      time.Duration `yaml:"login,omitempty"`
	Page       time.Duration `yaml:"page,omitempty"`
	BackoffCap time.Duration `yaml:"backoff_cap,omitempty"`
}

// DelaySection configures the randomized waits.
type DelaySection struct {
	Settle  *delay.Window `yaml:"settle,omitempty"`
	Backoff *delay.Window `yaml:"backoff,omitempty"`
	Click   *delay.Window `yaml:"click,omitempty"`
}

// BrowserSection configures Chrome.
type BrowserSection struct {
	Headless   *bool  `yaml:"headless,omitempty"`
	ChromePath string `yaml:"chrome_path,omitempty"`
	UserAgent  string `yaml:"user_agent,omitempty"`
}

// SessionSection configures the encrypted session store.
type SessionSection struct {
	File    string `yaml:"file,omitempty"`
	KeyFile string `yaml:"key_file,omitempty"`
}

// OutputSection configures where results go.
type OutputSection struct {
	Dir      string `yaml:"dir,omitempty"`
	DBDir    string `yaml:"db_dir,omitempty"`
	SaveToDB *bool  `yaml:"save_to_db,omitempty"`
	LogDir   string `yaml:"log_dir,omitempty"`
}

// Apply copies every value set in the file onto cfg.
// CLI flags are applied afterwards by the caller, so they win.
func (f *File) Apply(cfg *Config) {
	setString(&cfg.BaseURL, f.Site.BaseURL)
	setString(&cfg.LoginURL, f.Site.LoginURL)
	if len(f.Site.LoginMarkers) > 0 {
		cfg.LoginMarkers = append([]string(nil), f.Site.LoginMarkers...)
	}

	setString(&cfg.SitemapPath, f.Crawl.Sitemap)
	setString(&cfg.SitemapFilter, f.Crawl.SitemapFilter)
	setInt(&cfg.Limit, f.Crawl.Limit)
	setInt(&cfg.MaxRetries, f.Crawl.Retries)
	setInt(&cfg.Workers, f.Crawl.Workers)
	setInt(&cfg.RequestsPerMinute, f.Crawl.RequestsPerMinute)
	setInt(&cfg.PageCeiling, f.Crawl.PageCeiling)
	setInt(&cfg.StallPages, f.Crawl.StallPages)
	setWindow(&cfg.Pause, f.Crawl.Pause)

	setDuration(&cfg.LoginTimeout, f.Timeouts.Login)
	setDuration(&cfg.PageTimeout, f.Timeouts.Page)
	setDuration(&cfg.BackoffCap, f.Timeouts.BackoffCap)

	setWindow(&cfg.SettleDelay, f.Delays.Settle)
	setWindow(&cfg.BackoffDelay, f.Delays.Backoff)
	setWindow(&cfg.ClickWait, f.Delays.Click)

	if f.Browser.Headless != nil {
		cfg.Headless = *f.Browser.Headless
	}
	setString(&cfg.ChromePath, f.Browser.ChromePath)
	setString(&cfg.UserAgent, f.Browser.UserAgent)

	setString(&cfg.SessionFile, f.Session.File)
	setString(&cfg.KeyFile, f.Session.KeyFile)

	setString(&cfg.OutputDir, f.Output.Dir)
	setString(&cfg.DBDir, f.Output.DBDir)
	if f.Output.SaveToDB != nil {
		cfg.SaveToDB = *f.Output.SaveToDB
	}
	setString(&cfg.LogDir, f.Output.LogDir)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

func setWindow(dst *delay.Window, v *delay.Window) {
	if v != nil {
		*dst = *v
	}
}
