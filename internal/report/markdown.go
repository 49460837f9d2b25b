package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/signalscan/internal/model"
	"github.com/nao1215/signalscan/internal/textparse"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation, which gives us tables, GitHub alerts and mermaid charts without
// hand-escaping pipes in investor names.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the end-of-run summary in Markdown format.
func (w *MarkdownWriter) Write(r *RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	s := r.Summary

	md.H1("signalscan Crawl Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run ID", "`" + s.RunID + "`"},
			{"Started", s.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Status", statusText(s)},
			{"URLs Attempted", strconv.Itoa(s.Attempted)},
			{"Succeeded", strconv.Itoa(s.Succeeded)},
			{"Failed", strconv.Itoa(s.Failed)},
			{"Unique Records", strconv.Itoa(s.UniqueRecords)},
		},
	})
	md.PlainText("")

	if s.Attempted > 0 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("URL Outcomes"),
			piechart.WithShowData(true),
		)
		if s.Succeeded > 0 {
			chart.LabelAndIntValue("Succeeded", uint64(s.Succeeded))
		}
		if s.Failed > 0 {
			chart.LabelAndIntValue("Failed", uint64(s.Failed))
		}
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	switch {
	case s.Aborted != "":
		md.Cautionf("The run was aborted: %s. Partial results were saved.", s.Aborted)
	case s.Status == model.StatusDegraded:
		md.Warning("No URL produced output. Check the session and the error records.")
	case s.Failed > 0:
		md.Importantf("%d URL(s) failed and were skipped.", s.Failed)
	default:
		md.Tip("Every URL was crawled successfully.")
	}
	md.PlainText("")

	if len(r.Errors) > 0 {
		md.H2("Errors")
		md.PlainText("")
		rows := make([][]string, len(r.Errors))
		for i, e := range r.Errors {
			rows[i] = []string{e.URL, truncateString(e.Reason, 80), e.Timestamp.Format("15:04:05")}
		}
		md.Table(markdown.TableSet{Header: []string{"URL", "Reason", "Time"}, Rows: rows})
		md.PlainText("")
	}

	if len(r.Outputs) > 0 {
		md.H2("Output")
		md.PlainText("")
		items := make([]string, len(r.Outputs))
		for i, o := range r.Outputs {
			items[i] = "`" + o + "`"
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	return len(md.String()), md.Build()
}

// WriteComparison outputs the comparison in Markdown format.
func (w *MarkdownWriter) WriteComparison(c *Comparison) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Run Comparison")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows: [][]string{
			{"Run", "`" + c.Previous.ID + "`", "`" + c.Current.ID + "`", "-"},
			{"Date", c.Previous.StartedAt.Format("2006-01-02 15:04"), c.Current.StartedAt.Format("2006-01-02 15:04"), "-"},
			{"Investors", strconv.Itoa(c.Previous.UniqueRecords), strconv.Itoa(c.Current.UniqueRecords), formatDelta(c.Delta())},
		},
	})
	md.PlainText("")

	w.writeInvestorTable(md, fmt.Sprintf("New Investors (%d)", len(c.Added)), c.Added)
	w.writeInvestorTable(md, fmt.Sprintf("Removed Investors (%d)", len(c.Removed)), c.Removed)
	w.writeInvestorTable(md, fmt.Sprintf("Updated Investors (%d)", len(c.Changed)), c.Changed)

	if c.UnchangedCount > 0 {
		md.HorizontalRule()
		md.PlainTextf("*%d investors unchanged*", c.UnchangedCount)
	}
	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeInvestorTable(md *markdown.Markdown, title string, recs []model.InvestorRecord) {
	if len(recs) == 0 {
		return
	}
	md.H2(title)
	md.PlainText("")
	rows := make([][]string, len(recs))
	for i, r := range recs {
		rows[i] = []string{
			dash(r.Name),
			dash(r.Role),
			dash(r.Company),
			dash(r.InvestmentRange),
			dash(strings.Join(r.Categories, ", ")),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Name", "Role", "Company", "Range", "Categories"},
		Rows:   rows,
	})
	md.PlainText("")
}

// WriteAnalysis outputs the free-text analysis in Markdown format.
func (w *MarkdownWriter) WriteAnalysis(a *textparse.Analysis) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Investor Text Analysis")
	md.PlainText("")
	md.PlainTextf("Investors found: **%d**", len(a.Investors))
	md.PlainText("")
	if a.AvgMin > 0 || a.AvgMax > 0 {
		md.PlainTextf("Average investment range: **$%.0fK - $%.0fK**", a.AvgMin, a.AvgMax)
		md.PlainText("")
	}
	md.Note("These figures are guessed from page text and may be inaccurate.")
	md.PlainText("")

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
		md.H2(sec.title)
		md.PlainText("")
		rows := make([][]string, len(counts))
		for i, c := range counts {
			rows[i] = []string{c.Value, strconv.Itoa(c.N)}
		}
		md.Table(markdown.TableSet{Header: []string{"Value", "Count"}, Rows: rows})
		md.PlainText("")
	}

	return len(md.String()), md.Build()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
