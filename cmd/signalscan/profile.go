package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nao1215/signalscan/internal/auth"
	"github.com/nao1215/signalscan/internal/browser"
	"github.com/nao1215/signalscan/internal/config"
	"github.com/nao1215/signalscan/internal/crawl"
	"github.com/nao1215/signalscan/internal/database"
	"github.com/nao1215/signalscan/internal/delay"
	"github.com/nao1215/signalscan/internal/extract"
	"github.com/nao1215/signalscan/internal/model"
)

// expandButtonPrefix and expandButtonText identify the control that loads
// the full past-investments table on a profile page.
const (
	expandButtonPrefix = "see all"
	expandButtonText   = "investments on record"
)

// NewProfileCmd creates the profile command.
func NewProfileCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile [profile-url...]",
		Short: "Scrape investor profile pages",
		Long: `Profile visits investor profile pages and extracts the details that listings
do not show: stats, experience, sector rankings, social links, network
memberships and past investments. The full investment history is loaded by
clicking "See all ... investments on record" once when it is present.

Profiles are stored in the database, replacing earlier scrapes of the same
URL. URLs are taken from the arguments or, with --from-db, from the profile
links of crawled investors.

Examples:
  # Scrape one profile
  signalscan profile https://signal.nfx.com/investors/jane-doe

  # Scrape the first 20 profiles found by the latest crawls
  signalscan profile --from-db --limit 20

  # Only profiles of one run, skipping those scraped in the last week
  signalscan profile --from-db --run-id <id> --skip-recent 168h`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfileCmd(cmd, args, e)
		},
	}

	cmd.Flags().Bool("from-db", false, "Take profile URLs from crawled investors")
	cmd.Flags().String("run-id", "", "With --from-db, only use investors of this run")
	cmd.Flags().IntP("limit", "l", 0, "Scrape at most this many profiles (0 = all)")
	cmd.Flags().Duration("skip-recent", 0, "Skip profiles scraped within this duration")
	cmd.Flags().String("db-dir", "", "Database directory (default: XDG data dir)")
	cmd.Flags().BoolP("json", "j", false, "Print the scraped profiles as JSON")
	addSessionFlags(cmd)

	return cmd
}

type profileOptions struct {
	fromDB     bool
	runID      string
	skipRecent time.Duration
	json       bool
}

func runProfileCmd(cmd *cobra.Command, args []string, e *env) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateSession(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	var opts profileOptions
	if opts.fromDB, err = cmd.Flags().GetBool("from-db"); err != nil {
		return err
	}
	if opts.runID, err = cmd.Flags().GetString("run-id"); err != nil {
		return err
	}
	if opts.skipRecent, err = cmd.Flags().GetDuration("skip-recent"); err != nil {
		return err
	}
	if opts.json, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if len(args) == 0 && !opts.fromDB {
		return errors.New("no profile URLs given (pass URLs or use --from-db)")
	}

	rl, err := openLogger(e, cfg)
	if err != nil {
		return err
	}
	defer rl.Close()

	ctx, stop := signalContext(cmd.Context(), rl.Logger)
	defer stop()

	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	urls := append([]string{}, args...)
	if opts.fromDB {
		stored, err := db.ProfileURLs(ctx, opts.runID, 0)
		if err != nil {
			return err
		}
		urls = append(urls, stored...)
	}
	urls = crawl.Truncate(urls, cfg.Limit)
	if len(urls) == 0 {
		return fmt.Errorf("%w: no profile URLs found", errNothingToDo)
	}

	return scrapeProfiles(ctx, e, cfg, db, urls, opts, rl.Logger)
}

// scrapeProfiles fetches and stores each profile in order. A failed profile
// is recorded and skipped; only a login timeout stops the batch.
func scrapeProfiles(ctx context.Context, e *env, cfg *config.Config, db *database.CrawlDB, urls []string, opts profileOptions, logger *slog.Logger) error {
	w, err := newWorker(ctx, e, cfg, 1, logger)
	if err != nil {
		return err
	}
	defer w.Close()

	batchID := "profiles-" + uuid.NewString()
	profiles := make([]model.Profile, 0, len(urls))
	failed, skipped := 0, 0

	for i, url := range urls {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			if err := e.sleeper.Sleep(ctx, cfg.Pause.Draw()); err != nil {
				break
			}
		}

		if opts.skipRecent > 0 {
			recent, err := db.HasRecentProfile(ctx, url, e.now().Add(-opts.skipRecent))
			if err != nil {
				logger.Warn("failed to check profile history", "url", url, "error", err)
			} else if recent {
				logger.Info("skipping recently scraped profile", "url", url)
				skipped++
				continue
			}
		}

		fmt.Fprintf(e.stdout, "[%d/%d] %s\n", i+1, len(urls), url)
		p, err := scrapeProfile(ctx, w, cfg, e.sleeper, url)
		if err != nil {
			if errors.Is(err, auth.ErrAuthTimeout) {
				return err
			}
			if ctx.Err() != nil {
				break
			}
			failed++
			logger.Error("failed to scrape profile", "url", url, "error", err)
			rec := model.ErrorRecord{URL: url, Reason: err.Error(), Timestamp: e.now()}
			if err := db.SaveError(context.WithoutCancel(ctx), batchID, rec); err != nil {
				logger.Error("failed to record profile error", "url", url, "error", err)
			}
			continue
		}

		if err := db.SaveProfile(context.WithoutCancel(ctx), p); err != nil {
			return err
		}
		profiles = append(profiles, p)
	}

	if opts.json {
		enc := json.NewEncoder(e.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(profiles); err != nil {
			return err
		}
	}
	fmt.Fprintf(e.stdout, "Scraped %d profiles (%d failed, %d skipped). Stored in %s\n",
		len(profiles), failed, skipped, db.Path())
	if ctx.Err() != nil {
		fmt.Fprintln(e.stderr, "Interrupted; scraped profiles were saved.")
	}
	return nil
}

// scrapeProfile fetches one profile page, expands its investment table and
// extracts it.
func scrapeProfile(ctx context.Context, w *worker, cfg *config.Config, sleeper delay.Sleeper, url string) (model.Profile, error) {
	res := w.fetcher.Fetch(ctx, url)
	switch res.Outcome {
	case model.OutcomeAuthRequired:
		return model.Profile{}, fmt.Errorf("%s: %w", url, auth.ErrAuthTimeout)
	case model.OutcomeFailure:
		return model.Profile{}, errors.New(res.Reason)
	}

	snapshot := res.HTMLSnapshot
	if expanded, ok := expandInvestments(ctx, w, cfg, sleeper); ok {
		snapshot = expanded
	}
	return w.extractor.ExtractProfile(snapshot, url), nil
}

// expandInvestments clicks the "See all ... investments on record" control
// once and waits for more investment rows. It returns the new DOM when the
// table grew.
func expandInvestments(ctx context.Context, w *worker, cfg *config.Config, sleeper delay.Sleeper) (string, bool) {
	buttons, err := w.renderer.FindElements(ctx, "button")
	if err != nil {
		return "", false
	}
	var target *browser.Element
	for i := range buttons {
		text := strings.ToLower(strings.Join(strings.Fields(buttons[i].Text), " "))
		if strings.HasPrefix(text, expandButtonPrefix) && strings.Contains(text, expandButtonText) && !buttons[i].Disabled {
			target = &buttons[i]
			break
		}
	}
	if target == nil {
		return "", false
	}

	before := countRows(ctx, w.renderer)
	if err := w.renderer.Click(ctx, *target); err != nil {
		w.logger.Warn("failed to expand investments", "error", err)
		return "", false
	}
	if err := sleeper.Sleep(ctx, cfg.ClickWait.Draw()); err != nil {
		return "", false
	}
	grew := func(ctx context.Context) (bool, error) {
		return countRows(ctx, w.renderer) > before, nil
	}
	if err := w.renderer.WaitForCondition(ctx, grew, cfg.PageTimeout); err != nil {
		w.logger.Info("investment table did not grow", "error", err)
		return "", false
	}
	src, err := w.renderer.PageSource(ctx)
	if err != nil {
		return "", false
	}
	w.logger.Info("loaded additional investments", "rows_before", before)
	return src, true
}

func countRows(ctx context.Context, r browser.Renderer) int {
	rows, err := r.FindElements(ctx, extract.PastInvestmentsSelector)
	if err != nil {
		return 0
	}
	return len(rows)
}
