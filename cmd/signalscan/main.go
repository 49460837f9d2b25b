// Package main provides the entry point for the signalscan CLI.
//
// signalscan crawls the session-gated investor directory at signal.nfx.com
// with a real browser, paginates each listing through its "load more"
// control, and writes the investors it finds to CSV files and a SQLite
// database.
//
// Usage:
//
//	signalscan login
//	signalscan crawl --sitemap sitemap.xml --limit 10
//	signalscan crawl https://signal.nfx.com/investor-lists/top-fintech-seed-investors
//
// See --help for all available options.
package main

// main is the entry point for signalscan.
func main() {
	Execute()
}
