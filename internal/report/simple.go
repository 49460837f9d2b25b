package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/signalscan/internal/model"
	"github.com/nao1215/signalscan/internal/textparse"
)

// SimpleWriter outputs human-readable text reports.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors because the summary is often piped into files and cron mail.
type SimpleWriter struct {
	baseWriter

	// verbose lists every error record instead of only the first few.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// errorPreview is how many errors are listed when not verbose.
const errorPreview = 5

// Write outputs the end-of-run summary.
func (w *SimpleWriter) Write(r *RunReport) (int, error) {
	var sb strings.Builder
	s := r.Summary

	writeRule(&sb, "=")
	sb.WriteString("                        SIGNALSCAN CRAWL SUMMARY\n")
	writeRule(&sb, "=")
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "Run ID:         %s\n", s.RunID)
	fmt.Fprintf(&sb, "Started:        %s\n", s.StartedAt.Format("2006-01-02 15:04:05 MST"))
	if !s.FinishedAt.IsZero() {
		fmt.Fprintf(&sb, "Duration:       %s\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Second))
	}
	fmt.Fprintf(&sb, "Status:         %s\n", statusText(s))
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "  URLs attempted: %d\n", s.Attempted)
	fmt.Fprintf(&sb, "  Succeeded:      %d\n", s.Succeeded)
	fmt.Fprintf(&sb, "  Failed:         %d\n", s.Failed)
	fmt.Fprintf(&sb, "  Unique records: %d\n", s.UniqueRecords)
	sb.WriteString("\n")

	if len(r.Errors) > 0 {
		writeRule(&sb, "-")
		fmt.Fprintf(&sb, "ERRORS (%d)\n", len(r.Errors))
		writeRule(&sb, "-")
		shown := r.Errors
		if !w.verbose && len(shown) > errorPreview {
			shown = shown[:errorPreview]
		}
		for _, e := range shown {
			fmt.Fprintf(&sb, "  [!] %s\n      %s\n", e.URL, e.Reason)
		}
		if len(shown) < len(r.Errors) {
			fmt.Fprintf(&sb, "  ... and %d more (see the errors file)\n", len(r.Errors)-len(shown))
		}
		sb.WriteString("\n")
	}

	if len(r.Outputs) > 0 {
		writeRule(&sb, "-")
		sb.WriteString("OUTPUT\n")
		writeRule(&sb, "-")
		for _, o := range r.Outputs {
			fmt.Fprintf(&sb, "  %s\n", o)
		}
		sb.WriteString("\n")
	}

	return w.output.Write([]byte(sb.String()))
}

// WriteComparison outputs the differences between two runs.
func (w *SimpleWriter) WriteComparison(c *Comparison) (int, error) {
	var sb strings.Builder

	sb.WriteString("Run Comparison\n")
	writeRule(&sb, "=")
	fmt.Fprintf(&sb, "\nPrevious run: %s  %s  (%d investors)\n",
		c.Previous.ID, c.Previous.StartedAt.Format("2006-01-02 15:04:05"), c.Previous.UniqueRecords)
	fmt.Fprintf(&sb, "Current run:  %s  %s  (%d investors)\n",
		c.Current.ID, c.Current.StartedAt.Format("2006-01-02 15:04:05"), c.Current.UniqueRecords)
	fmt.Fprintf(&sb, "Change:       %s\n", formatDelta(c.Delta()))

	if len(c.Added) > 0 {
		fmt.Fprintf(&sb, "\nNew Investors (%d):\n", len(c.Added))
		for _, r := range c.Added {
			fmt.Fprintf(&sb, "  [+] %s\n", investorLine(r))
		}
	}
	if len(c.Removed) > 0 {
		fmt.Fprintf(&sb, "\nRemoved Investors (%d):\n", len(c.Removed))
		for _, r := range c.Removed {
			fmt.Fprintf(&sb, "  [-] %s\n", investorLine(r))
		}
	}
	if len(c.Changed) > 0 {
		fmt.Fprintf(&sb, "\nUpdated Investors (%d):\n", len(c.Changed))
		for _, r := range c.Changed {
			fmt.Fprintf(&sb, "  [~] %s\n", investorLine(r))
		}
	}
	if c.UnchangedCount > 0 {
		fmt.Fprintf(&sb, "\nUnchanged: %d investors\n", c.UnchangedCount)
	}

	return w.output.Write([]byte(sb.String()))
}

// WriteAnalysis outputs the free-text analysis.
func (w *SimpleWriter) WriteAnalysis(a *textparse.Analysis) (int, error) {
	var sb strings.Builder

	sb.WriteString("Investor Text Analysis\n")
	writeRule(&sb, "=")
	fmt.Fprintf(&sb, "\nInvestors found: %d\n", len(a.Investors))
	if a.AvgMin > 0 || a.AvgMax > 0 {
		fmt.Fprintf(&sb, "Average range:   $%.0fK - $%.0fK\n", a.AvgMin, a.AvgMax)
	}

	sections := []struct {
		title  string
		counts []textparse.Count
	}{
		{"Top Roles", a.Roles},
		{"Top Firms", a.Firms},
		{"Top Categories", a.Categories},
		{"Top Locations", a.Locations},
	}
	for _, sec := range sections {
		counts := textparse.Top(sec.counts, topN)
		if len(counts) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n%s:\n", sec.title)
		for _, c := range counts {
			fmt.Fprintf(&sb, "  %-40s %d\n", c.Value, c.N)
		}
	}

	return w.output.Write([]byte(sb.String()))
}

func writeRule(sb *strings.Builder, ch string) {
	sb.WriteString(strings.Repeat(ch, 70))
	sb.WriteString("\n")
}

// statusText describes the run status, including an abort reason.
func statusText(s model.Summary) string {
	switch {
	case s.Aborted != "":
		return "ABORTED - " + s.Aborted
	case s.Status == model.StatusDegraded:
		return "DEGRADED (no URL produced output)"
	default:
		return "Complete"
	}
}

// investorLine formats an investor as "Name, Role at Company".
func investorLine(r model.InvestorRecord) string {
	var sb strings.Builder
	sb.WriteString(r.Name)
	if r.Role != "" {
		if sb.Len() > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(r.Role)
	}
	if r.Company != "" {
		if sb.Len() > 0 {
			sb.WriteString(" at ")
		}
		sb.WriteString(r.Company)
	}
	return sb.String()
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
