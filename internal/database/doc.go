// Package database provides SQLite-based storage for signalscan.
//
// This package implements CrawlDB, which stores:
//   - Crawl runs with their summary counters
//   - Raw page captures, one per attempted URL
//   - Deduplicated investor records per run
//   - Per-URL error records
//   - Investor profiles, upserted by profile URL
//
// Design decision: We use SQLite (via modernc.org/sqlite) because the
// database is a single file next to the operator's session, the driver is
// CGO-free, and WAL mode lets the analyze and compare commands read while a
// crawl writes. The CSV files remain the primary hand-off format; the
// database keeps history across runs.
package database
