package report

import (
	"io"
	"slices"

	"github.com/nao1215/signalscan/internal/model"
	"github.com/nao1215/signalscan/internal/textparse"
)

// Writer defines the interface for report output.
//
// Design decision: We use an interface to allow different output formats
// and destinations. The crawl, compare and analyze commands pick a writer
// from their format flags and never format output themselves.
type Writer interface {
	// Write outputs the end-of-run summary.
	Write(r *RunReport) (int, error)

	// WriteComparison outputs the differences between two runs.
	WriteComparison(c *Comparison) (int, error)

	// WriteAnalysis outputs a free-text analysis of raw captures.
	WriteAnalysis(a *textparse.Analysis) (int, error)
}

// RunReport is the operator-facing view of a finished run.
type RunReport struct {
	// Summary holds the run counters.
	Summary model.Summary `json:"summary"`

	// Errors lists the per-URL failures.
	Errors []model.ErrorRecord `json:"errors"`

	// Outputs lists where the run was written, e.g. CSV paths and the
	// database file.
	Outputs []string `json:"outputs"`
}

// NewRunReport builds the report for run.
func NewRunReport(run *model.CrawlRun, outputs []string) *RunReport {
	out := make([]string, 0, len(outputs))
	out = append(out, outputs...)
	return &RunReport{
		Summary: run.Summary(),
		Errors:  run.Errors(),
		Outputs: out,
	}
}

// Completed reports whether the run visited its targets without aborting.
func (r *RunReport) Completed() bool {
	return r.Summary.Aborted == ""
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: slices.Clone(writers)}
}

// Write outputs the run report to all configured Writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(r *RunReport) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.Write(r) })
}

// WriteComparison outputs the comparison to all configured Writers.
func (m *MultiWriter) WriteComparison(c *Comparison) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteComparison(c) })
}

// WriteAnalysis outputs the analysis to all configured Writers.
func (m *MultiWriter) WriteAnalysis(a *textparse.Analysis) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteAnalysis(a) })
}

func (m *MultiWriter) each(fn func(Writer) (int, error)) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := fn(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// topN is how many entries of each tally the analysis outputs show.
const topN = 10
