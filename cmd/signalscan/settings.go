package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/signalscan/internal/config"
	applog "github.com/nao1215/signalscan/internal/log"
)

// flagSetter copies one flag onto the config.
type flagSetter func(cmd *cobra.Command, name string, cfg *config.Config) error

// flagSetters maps flag names to config fields. Only flags the user set
// explicitly are applied, so config file values survive flag defaults.
var flagSetters = map[string]flagSetter{
	"sitemap":        stringFlag(func(c *config.Config) *string { return &c.SitemapPath }),
	"sitemap-filter": stringFlag(func(c *config.Config) *string { return &c.SitemapFilter }),
	"limit":          intFlag(func(c *config.Config) *int { return &c.Limit }),
	"retries":        intFlag(func(c *config.Config) *int { return &c.MaxRetries }),
	"workers":        intFlag(func(c *config.Config) *int { return &c.Workers }),
	"rpm":            intFlag(func(c *config.Config) *int { return &c.RequestsPerMinute }),
	"page-ceiling":   intFlag(func(c *config.Config) *int { return &c.PageCeiling }),
	"headless":       boolFlag(func(c *config.Config) *bool { return &c.Headless }),
	"chrome-path":    stringFlag(func(c *config.Config) *string { return &c.ChromePath }),
	"session-file":   stringFlag(func(c *config.Config) *string { return &c.SessionFile }),
	"key-file":       stringFlag(func(c *config.Config) *string { return &c.KeyFile }),
	"output":         stringFlag(func(c *config.Config) *string { return &c.OutputDir }),
	"db-dir":         stringFlag(func(c *config.Config) *string { return &c.DBDir }),
	"log-dir":        stringFlag(func(c *config.Config) *string { return &c.LogDir }),
	"json":           boolFlag(func(c *config.Config) *bool { return &c.JSONReport }),
	"markdown":       boolFlag(func(c *config.Config) *bool { return &c.MarkdownReport }),
	"report-file":    stringFlag(func(c *config.Config) *string { return &c.ReportFile }),
	"verbose":        boolFlag(func(c *config.Config) *bool { return &c.Verbose }),
	"login-timeout": func(cmd *cobra.Command, name string, cfg *config.Config) error {
		d, err := cmd.Flags().GetDuration(name)
		cfg.LoginTimeout = d
		return err
	},
	"page-timeout": func(cmd *cobra.Command, name string, cfg *config.Config) error {
		d, err := cmd.Flags().GetDuration(name)
		cfg.PageTimeout = d
		return err
	},
	"no-db": func(cmd *cobra.Command, name string, cfg *config.Config) error {
		v, err := cmd.Flags().GetBool(name)
		cfg.SaveToDB = !v
		return err
	},
}

func stringFlag(field func(*config.Config) *string) flagSetter {
	return func(cmd *cobra.Command, name string, cfg *config.Config) error {
		v, err := cmd.Flags().GetString(name)
		*field(cfg) = v
		return err
	}
}

func intFlag(field func(*config.Config) *int) flagSetter {
	return func(cmd *cobra.Command, name string, cfg *config.Config) error {
		v, err := cmd.Flags().GetInt(name)
		*field(cfg) = v
		return err
	}
}

func boolFlag(field func(*config.Config) *bool) flagSetter {
	return func(cmd *cobra.Command, name string, cfg *config.Config) error {
		v, err := cmd.Flags().GetBool(name)
		*field(cfg) = v
		return err
	}
}

// loadConfig builds the configuration from defaults, the config file and
// the flags the user set, in that order of precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// If the user explicitly specified a config file path, error if not found.
	// If no path is specified, silently use defaults when no file is found.
	explicit := cfg.ConfigFilePath != ""
	if path := config.FindConfigFile(cfg.ConfigFilePath); path != "" {
		file, err := config.LoadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		file.Apply(cfg)
	} else if explicit {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	for name, set := range flagSetters {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := set(cmd, name, cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// addSessionFlags registers the flags of commands that open a browser.
func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("headless", false,
		"Run Chrome without a window (requires a valid saved session)")
	cmd.Flags().String("chrome-path", "", "Chrome executable to use")
	cmd.Flags().IntP("retries", "r", config.DefaultMaxRetries, "Fetch attempts per URL")
	cmd.Flags().Int("rpm", 0, "Maximum page loads per minute (0 = unlimited)")
	cmd.Flags().Duration("login-timeout", config.DefaultLoginTimeout, "Time allowed for an interactive login")
	cmd.Flags().Duration("page-timeout", config.DefaultPageTimeout, "Time allowed for a page body to appear")
	cmd.Flags().String("session-file", "", "Encrypted session file (default: XDG state dir)")
	cmd.Flags().String("key-file", "", "Session key file (default: XDG state dir)")
	cmd.Flags().String("log-dir", "", "Directory for per-run log files (default: XDG state dir)")
}

// addReportFlags registers the summary format flags.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false, "Print the report as JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false, "Print the report as Markdown (mutually exclusive with --json)")
	cmd.Flags().String("report-file", "", "Write the report to a file instead of stdout")
}

// openLogger creates the run logger that writes masked records to stderr
// and, when a log directory is configured, to a per-run file.
func openLogger(e *env, cfg *config.Config) (*applog.RunLog, error) {
	rl, err := applog.OpenRunLog(e.stderr, cfg.LogDir, cfg.Verbose, e.now())
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	slog.SetDefault(rl.Logger)
	return rl, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM. The
// returned stop function releases the signal handler.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, saving collected results...")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

// isCancellation reports whether err only says the crawl was interrupted.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
