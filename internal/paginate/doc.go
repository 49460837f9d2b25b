// Package paginate expands "load more" listings and collects the records of
// every page.
//
// Starting from an already fetched snapshot, the driver extracts records,
// looks for an enabled load-more button, clicks it, waits, re-reads the DOM
// and repeats. It stops when the button is gone or disabled, when the click
// ceiling is reached, when two consecutive pages add no new records, or when
// the context or the renderer fails. Records gathered before the stop are
// always returned.
package paginate
