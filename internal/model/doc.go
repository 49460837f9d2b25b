// Package model defines the core data structures used throughout signalscan.
//
// This package contains the following main types:
//   - InvestorRecord: One investor row extracted from a listing page
//   - FetchResult: The classified outcome of fetching one URL
//   - CrawlRun: The accumulated state and output of one crawl run
//   - Profile: The detail record extracted from an investor profile page
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The fetcher, pagination driver, extractor, crawl controller and
// output writers all exchange these types, so centralizing them prevents
// import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
