package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/signalscan/internal/config"
	"github.com/nao1215/signalscan/internal/database"
	"github.com/nao1215/signalscan/internal/report"
	"github.com/nao1215/signalscan/internal/textparse"
)

// NewAnalyzeCmd creates the analyze command.
func NewAnalyzeCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Summarize the raw text captured by a crawl",
		Long: `Analyze re-reads the visible text captured by a crawl and tallies what it
mentions: investors, roles, firms, categories and locations, plus the average
investment range. It works on text alone, so it also covers pages where the
structured listing could not be extracted.

The captures are read from the database (the latest run by default) or from
a raw_data CSV file written by the crawl command.

Examples:
  # Analyze the latest run
  signalscan analyze

  # Analyze a specific run
  signalscan analyze --run-id <id>

  # Analyze a CSV file and print Markdown
  signalscan analyze --csv output/raw_data_20250101_120000.csv --markdown`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyzeCmd(cmd, e)
		},
	}

	cmd.Flags().String("run-id", "", "Run to analyze (default: latest)")
	cmd.Flags().String("csv", "", "Analyze a raw_data CSV file instead of the database")
	cmd.Flags().String("db-dir", "", "Database directory (default: XDG data dir)")
	addReportFlags(cmd)

	return cmd
}

func runAnalyzeCmd(cmd *cobra.Command, e *env) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.JSONReport && cfg.MarkdownReport {
		return fmt.Errorf("configuration error: %w", config.ErrConflictingReportFormats)
	}

	runID, err := cmd.Flags().GetString("run-id")
	if err != nil {
		return err
	}
	csvPath, err := cmd.Flags().GetString("csv")
	if err != nil {
		return err
	}
	if runID != "" && csvPath != "" {
		return errors.New("--run-id and --csv are mutually exclusive")
	}

	var texts []string
	if csvPath != "" {
		texts, err = report.ReadRawText(csvPath)
	} else {
		texts, err = capturedText(cmd.Context(), cfg.DBDir, runID)
	}
	if err != nil {
		return err
	}
	if len(texts) == 0 {
		return fmt.Errorf("%w: no captured text to analyze", errNothingToDo)
	}

	a := textparse.Analyze(texts)
	return withReportOutput(e, cfg, func(w report.Writer) error {
		_, err := w.WriteAnalysis(&a)
		return err
	})
}

// capturedText returns the successful captures of a stored run, or of the
// latest run when runID is empty.
func capturedText(ctx context.Context, dbDir, runID string) ([]string, error) {
	db, err := database.Open(dbDir, database.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	meta, err := findRun(ctx, db, runID)
	if err != nil {
		return nil, err
	}

	captures, err := db.Captures(ctx, meta.ID)
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(captures))
	for _, c := range captures {
		if !c.Failed() && c.RawText != "" {
			texts = append(texts, c.RawText)
		}
	}
	return texts, nil
}

// findRun looks up runID, or the latest run when runID is empty.
func findRun(ctx context.Context, db *database.CrawlDB, runID string) (*database.RunMetadata, error) {
	var (
		meta *database.RunMetadata
		err  error
	)
	if runID == "" {
		meta, err = db.LatestRun(ctx)
	} else {
		meta, err = db.GetRun(ctx, runID)
	}
	if err != nil {
		return nil, err
	}
	if meta == nil {
		if runID == "" {
			return nil, fmt.Errorf("%w: no runs stored yet (use 'signalscan crawl' first)", errNothingToDo)
		}
		return nil, fmt.Errorf("run %s not found", runID)
	}
	return meta, nil
}
