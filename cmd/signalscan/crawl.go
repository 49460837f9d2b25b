package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/signalscan/internal/config"
	"github.com/nao1215/signalscan/internal/crawl"
	"github.com/nao1215/signalscan/internal/database"
	"github.com/nao1215/signalscan/internal/model"
	"github.com/nao1215/signalscan/internal/report"
	"github.com/nao1215/signalscan/internal/sitemap"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Crawl investor listings and extract investors",
		Long: `Crawl visits each listing URL with Chrome, expands the listing through its
"load more" control, and extracts every investor row.

URLs are taken from the arguments, or from a local sitemap file with
--sitemap. A saved session is reused; when it has expired the browser opens
the login page and waits for you to sign in.

Every URL is recorded: listings produce investor rows, every page produces a
raw text capture, and failed pages produce error rows. Results are written to
raw_data_<ts>.csv, investors_<ts>.csv and errors_<ts>.csv in the output
directory and stored in the database. Interrupting the crawl with Ctrl+C
still saves what was collected.

Examples:
  # Crawl the first 10 investor lists from a sitemap
  signalscan crawl --sitemap sitemap.xml --limit 10

  # Crawl specific lists
  signalscan crawl https://signal.nfx.com/investor-lists/top-fintech-seed-investors

  # Use three browser sessions in parallel
  signalscan crawl --sitemap sitemap.xml --workers 3

  # Print the summary as Markdown
  signalscan crawl --sitemap sitemap.xml --markdown --report-file summary.md`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawlCmd(cmd, args, e)
		},
	}

	cmd.Flags().StringP("sitemap", "s", "", "Read target URLs from a local sitemap file")
	cmd.Flags().String("sitemap-filter", config.DefaultSitemapFilter,
		"Keep only sitemap URLs containing this text")
	cmd.Flags().IntP("limit", "l", 0, "Crawl at most this many URLs (0 = all)")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of parallel browser sessions (each needs its own login)")
	cmd.Flags().Int("page-ceiling", config.DefaultPageCeiling, "Maximum load-more clicks per listing")
	cmd.Flags().StringP("output", "o", ".", "Directory for the CSV files")
	cmd.Flags().String("db-dir", "", "Database directory (default: XDG data dir)")
	cmd.Flags().Bool("no-db", false, "Do not store the run in the database")
	addSessionFlags(cmd)
	addReportFlags(cmd)

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string, e *env) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.Targets = args
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	rl, err := openLogger(e, cfg)
	if err != nil {
		return err
	}
	defer rl.Close()

	ctx, stop := signalContext(cmd.Context(), rl.Logger)
	defer stop()

	return runCrawl(ctx, e, cfg, rl.Logger)
}

// resolveTargets returns the URLs to crawl: explicit targets first, then the
// sitemap, truncated to the configured limit.
func resolveTargets(cfg *config.Config) ([]string, error) {
	targets := append([]string{}, cfg.Targets...)
	if cfg.SitemapPath != "" {
		urls, err := sitemap.ParseFile(cfg.SitemapPath, cfg.SitemapFilter)
		if err != nil {
			return nil, err
		}
		targets = append(targets, urls...)
	}
	targets = crawl.Truncate(targets, cfg.Limit)
	if len(targets) == 0 {
		return nil, crawl.ErrNoURLs
	}
	return targets, nil
}

// runCrawl crawls the targets and always finalizes whatever was collected.
func runCrawl(ctx context.Context, e *env, cfg *config.Config, logger *slog.Logger) error {
	targets, err := resolveTargets(cfg)
	if err != nil {
		return err
	}

	logger.Info("starting crawl",
		"targets", len(targets),
		"workers", cfg.Workers,
		"save_to_db", cfg.SaveToDB,
	)

	sinks, outputs, closeSinks, err := openSinks(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	run, crawlErr := crawl.RunParallel(ctx, targets, cfg.Workers, factory(e, cfg, logger),
		crawl.WithParallelClock(e.now),
		crawl.WithParallelLogger(logger),
	)
	if run == nil {
		return crawlErr
	}

	sinkErr := crawl.Finalize(ctx, run, logger, sinks...)
	if sinkErr != nil {
		logger.Error("some outputs could not be written", "error", sinkErr)
	}

	if err := writeRunReport(e, cfg, report.NewRunReport(run, outputs())); err != nil {
		logger.Error("failed to write summary", "error", err)
	}

	switch {
	case crawlErr != nil && isCancellation(crawlErr):
		fmt.Fprintln(e.stderr, "Crawl interrupted; collected results were saved.")
		return nil
	case crawlErr != nil:
		return crawlErr
	case sinkErr != nil:
		return sinkErr
	}
	if run.Status() == model.StatusDegraded {
		logger.Warn("no URL produced output", "run_id", run.ID)
	}
	return nil
}

// openSinks opens the CSV sink and, when enabled, the database.
// outputs reports where the run ended up once the sinks have written.
func openSinks(cfg *config.Config, logger *slog.Logger) (sinks []crawl.Sink, outputs func() []string, closeFn func(), err error) {
	csvSink := report.NewCSVSink(cfg.OutputDir, report.WithCSVLogger(logger))
	sinks = []crawl.Sink{csvSink}
	closeFn = func() {}

	var db *database.CrawlDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		sinks = append(sinks, db)
		closeFn = func() {
			if err := db.Close(); err != nil {
				logger.Warn("failed to close database", "error", err)
			}
		}
	}

	outputs = func() []string {
		out := csvSink.Files()
		if db != nil {
			out = append(out, db.Path())
		}
		return out
	}
	return sinks, outputs, closeFn, nil
}

// reportWriter returns the summary writer selected by the format flags.
func reportWriter(w io.Writer, cfg *config.Config) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(w, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
	}
}

// withReportOutput runs write against stdout or the configured report file.
func withReportOutput(e *env, cfg *config.Config, write func(report.Writer) error) error {
	if cfg.ReportFile == "" {
		return write(reportWriter(e.stdout, cfg))
	}

	if dir := filepath.Dir(cfg.ReportFile); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	f, err := os.Create(cfg.ReportFile)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	werr := write(reportWriter(f, cfg))
	cerr := f.Close()
	if werr != nil {
		return werr
	}
	if cerr != nil {
		return cerr
	}
	fmt.Fprintf(e.stdout, "Report written to %s\n", cfg.ReportFile)
	return nil
}

func writeRunReport(e *env, cfg *config.Config, r *report.RunReport) error {
	return withReportOutput(e, cfg, func(w report.Writer) error {
		_, err := w.Write(r)
		return err
	})
}

// errNothingToDo is returned by commands whose inputs selected no work.
var errNothingToDo = errors.New("nothing to do")
