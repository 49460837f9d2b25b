// Package report provides run output and report generation.
//
// This package contains:
//   - CSVSink: Writes the raw capture, investor and error streams of a run as
//     CSV files. It is a crawl sink.
//   - SimpleWriter: Human-readable text summaries for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - MarkdownWriter: Markdown summaries for sharing
//   - Compare: Investor-level differences between two stored runs
//
// Design decision: Persistence (CSVSink) and presentation (the writers) are
// separate. The sinks receive the whole CrawlRun at finalization; the writers
// only receive the summary views built from it, so a summary can be printed
// even when a sink failed.
package report
