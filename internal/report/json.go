package report

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/nao1215/signalscan/internal/textparse"
)

// JSONWriter outputs reports in JSON format for scripts and other tools.
// URLs are written as-is; HTML characters such as '&' in query strings are
// not escaped.
type JSONWriter struct {
	baseWriter
	prefix string
	indent string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables indented output. prefix starts every line and indent
// is repeated once per nesting level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.prefix = prefix
		w.indent = indent
	}
}

// WithPrettyPrint indents with two spaces.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
// Output is compact unless an indent option is given.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run report.
func (w *JSONWriter) Write(r *RunReport) (int, error) {
	return w.encode(r)
}

// WriteComparison outputs the comparison.
func (w *JSONWriter) WriteComparison(c *Comparison) (int, error) {
	return w.encode(c)
}

// WriteAnalysis outputs the analysis.
func (w *JSONWriter) WriteAnalysis(a *textparse.Analysis) (int, error) {
	return w.encode(a)
}

// encode buffers the whole document so that a marshalling error never
// leaves partial output behind. The document ends with a newline.
func (w *JSONWriter) encode(v any) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if w.prefix != "" || w.indent != "" {
		enc.SetIndent(w.prefix, w.indent)
	}
	if err := enc.Encode(v); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}
