// Package textparse pulls investor hints out of captured page text.
//
// The parsers here are regular-expression heuristics over the flattened
// visible text of a page. They carry no correctness guarantee and are kept
// apart from the DOM extractor, which is the source of truth for investor
// records. The analyze command uses them to summarize raw captures, including
// captures of pages that had no listing table.
package textparse
