package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/signalscan/internal/config"
	"github.com/nao1215/signalscan/internal/database"
	"github.com/nao1215/signalscan/internal/report"
)

// NewCompareCmd creates the compare command.
// This command compares the investors of two crawl runs stored in the database.
func NewCompareCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare crawl results with an earlier run",
		Long: `Compare shows how the extracted investors changed between two crawl runs:
- Investors that appeared since the earlier run
- Investors that are no longer listed
- Investors whose links, range, locations or categories changed

Investors are matched by name, company and role. By default the latest two
runs are compared. Use 'signalscan crawl' to create runs.

Examples:
  # Compare the latest two runs
  signalscan compare

  # List stored runs
  signalscan compare --list

  # Compare the latest run with a specific earlier run
  signalscan compare --with-run-id <id>

  # Output the comparison as JSON
  signalscan compare --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompareCmd(cmd, e)
		},
	}

	cmd.Flags().BoolP("list", "l", false, "List stored crawl runs")
	cmd.Flags().StringP("with-run-id", "i", "",
		"Compare the latest run with this run (use --list to see available IDs)")
	cmd.Flags().String("db-dir", "", "Database directory (default: XDG data dir)")
	addReportFlags(cmd)

	return cmd
}

func runCompareCmd(cmd *cobra.Command, e *env) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.JSONReport && cfg.MarkdownReport {
		return fmt.Errorf("configuration error: %w", config.ErrConflictingReportFormats)
	}

	list, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	withRunID, err := cmd.Flags().GetString("with-run-id")
	if err != nil {
		return err
	}

	db, err := database.Open(cfg.DBDir, database.Options{})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if list {
		return listRuns(ctx, e, db)
	}

	c, err := compareRuns(ctx, db, withRunID)
	if err != nil {
		return err
	}
	return withReportOutput(e, cfg, func(w report.Writer) error {
		_, err := w.WriteComparison(c)
		return err
	})
}

// listRuns prints the stored runs, most recent first.
func listRuns(ctx context.Context, e *env, db *database.CrawlDB) error {
	runs, err := db.ListRuns(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(e.stdout, "No crawl runs found in the database.")
		fmt.Fprintln(e.stdout, "\nUse 'signalscan crawl <url>' to crawl listing pages.")
		return nil
	}

	fmt.Fprintf(e.stdout, "Crawl runs (%d):\n\n", len(runs))
	fmt.Fprintf(e.stdout, "  %-36s  %-19s  %-8s  %7s  %s\n", "ID", "Started", "Status", "Records", "URLs (ok/failed)")
	fmt.Fprintln(e.stdout, "  "+strings.Repeat("-", 96))
	for _, r := range runs {
		status := string(r.Status)
		if r.AbortReason != "" {
			status += "*"
		}
		fmt.Fprintf(e.stdout, "  %-36s  %-19s  %-8s  %7d  %d/%d\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			status,
			r.UniqueRecords,
			r.Succeeded,
			r.Failed,
		)
	}
	fmt.Fprintln(e.stdout, "\n* aborted before all URLs were visited")
	fmt.Fprintln(e.stdout, "Use 'signalscan compare' to compare the latest two runs.")
	fmt.Fprintln(e.stdout, "Use 'signalscan compare --with-run-id <id>' to compare with a specific run.")
	return nil
}

// compareRuns compares the latest run with withRunID, or with the run
// before it when withRunID is empty.
func compareRuns(ctx context.Context, db *database.CrawlDB, withRunID string) (*report.Comparison, error) {
	runs, err := db.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: no runs stored yet (use 'signalscan crawl' first)", errNothingToDo)
	}

	current := runs[0]
	var previous *database.RunMetadata
	switch {
	case withRunID != "":
		if withRunID == current.ID {
			return nil, fmt.Errorf("run %s is the latest run; choose an earlier one", withRunID)
		}
		previous, err = db.GetRun(ctx, withRunID)
		if err != nil {
			return nil, err
		}
		if previous == nil {
			return nil, fmt.Errorf("run %s not found", withRunID)
		}
	case len(runs) < 2:
		return nil, fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
	default:
		previous = &runs[1]
	}

	prevRecs, err := db.Investors(ctx, previous.ID)
	if err != nil {
		return nil, err
	}
	curRecs, err := db.Investors(ctx, current.ID)
	if err != nil {
		return nil, err
	}
	return report.Compare(runInfo(*previous), runInfo(current), prevRecs, curRecs), nil
}

func runInfo(m database.RunMetadata) report.RunInfo {
	return report.RunInfo{
		ID:            m.ID,
		StartedAt:     m.StartedAt,
		Status:        m.Status,
		UniqueRecords: m.UniqueRecords,
	}
}
