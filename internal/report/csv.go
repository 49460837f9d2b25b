package report

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/signalscan/internal/model"
)

// ListSeparator joins list-valued fields into one CSV cell.
const ListSeparator = "; "

// fileTimestamp is the layout of the timestamp in output file names.
const fileTimestamp = "20060102_150405"

// CSVSink writes a run as three CSV files in a directory:
// raw_data_<ts>.csv, investors_<ts>.csv and errors_<ts>.csv, where <ts> is the
// run's start time. Every file is written even when it has no rows, so that
// each run leaves a complete set.
type CSVSink struct {
	dir    string
	logger *slog.Logger
	files  []string
}

// CSVOption configures a CSVSink.
type CSVOption func(*CSVSink)

// WithCSVLogger sets the logger.
func WithCSVLogger(logger *slog.Logger) CSVOption {
	return func(s *CSVSink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewCSVSink creates a sink writing into dir.
func NewCSVSink(dir string, opts ...CSVOption) *CSVSink {
	s := &CSVSink{dir: dir, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name identifies the sink.
func (s *CSVSink) Name() string {
	return "csv"
}

// Files returns the paths written by the last Write.
func (s *CSVSink) Files() []string {
	out := make([]string, len(s.files))
	copy(out, s.files)
	return out
}

// Write writes the three record streams of run.
// A failure in one file does not prevent the others from being written.
func (s *CSVSink) Write(ctx context.Context, run *model.CrawlRun) error {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	ts := run.StartedAt.Format(fileTimestamp)
	streams := []struct {
		prefix string
		header []string
		rows   [][]string
	}{
		{"raw_data", rawHeader, rawRows(run.Captures())},
		{"investors", investorHeader, investorRows(run.Results())},
		{"errors", errorHeader, errorRows(run.Errors())},
	}

	s.files = s.files[:0]
	var errs []error
	for _, st := range streams {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		path := filepath.Join(s.dir, st.prefix+"_"+ts+".csv")
		if err := writeCSVFile(path, st.header, st.rows); err != nil {
			errs = append(errs, err)
			continue
		}
		s.files = append(s.files, path)
		s.logger.Info("saved records", "file", path, "rows", len(st.rows))
	}
	return errors.Join(errs...)
}

var (
	rawHeader = []string{"url", "raw_text", "timestamp", "error"}

	investorHeader = []string{
		"name", "company", "role", "profile_url", "company_url", "image_url",
		"investment_range", "locations", "categories", "source_url", "timestamp",
	}

	errorHeader = []string{"url", "reason", "timestamp"}
)

func rawRows(captures []model.RawCapture) [][]string {
	rows := make([][]string, 0, len(captures))
	for _, c := range captures {
		rows = append(rows, []string{c.URL, c.RawText, formatCSVTime(c.Timestamp), c.Error})
	}
	return rows
}

func investorRows(recs []model.InvestorRecord) [][]string {
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []string{
			r.Name,
			r.Company,
			r.Role,
			r.ProfileURL,
			r.CompanyURL,
			r.ImageURL,
			r.InvestmentRange,
			strings.Join(r.Locations, ListSeparator),
			strings.Join(r.Categories, ListSeparator),
			r.SourceURL,
			formatCSVTime(r.Timestamp),
		})
	}
	return rows
}

func errorRows(recs []model.ErrorRecord) [][]string {
	rows := make([][]string, 0, len(recs))
	for _, e := range recs {
		rows = append(rows, []string{e.URL, e.Reason, formatCSVTime(e.Timestamp)})
	}
	return rows
}

func formatCSVTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// writeCSVFile writes through a temporary file and renames it into place.
func writeCSVFile(path string, header []string, rows [][]string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w := csv.NewWriter(tmp)
	if err = w.Write(header); err != nil {
		return fmt.Errorf("failed to write header of %s: %w", path, err)
	}
	if err = w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", path, err)
	}
	return nil
}

// ReadRawText reads the raw_text column of a raw_data CSV file.
// The analyze command uses it when captures come from files rather than
// the database.
func ReadRawText(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) == 0 {
		return []string{}, nil
	}

	col := -1
	for i, h := range records[0] {
		if h == "raw_text" {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("%s has no raw_text column", path)
	}

	texts := make([]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		if col < len(rec) && rec[col] != "" {
			texts = append(texts, rec[col])
		}
	}
	return texts, nil
}
