// Package crawl orchestrates fetching, pagination and extraction across a
// list of target URLs.
//
// # Architecture
//
// The Controller visits URLs strictly in order, one at a time, against a
// single browsing session:
//
//	for each URL:
//	    fetch ──► Success ──► listing? ──► paginate ──► merge (dedup)
//	      │                        └─────────────────► raw capture
//	      ├──► Failure ──► error record + raw capture, continue
//	      └──► AuthRequired ──► abort run (partial run returned)
//
// Design decision: Per-URL failures never escape the Controller. They become
// error records on the run, so one broken page cannot lose the output of the
// others. Only an expired interactive login and a renderer that cannot start
// stop the run early.
//
// # Parallel runs
//
// RunParallel splits the URL list into contiguous slices and gives each slice
// its own Controller, browser and session slot. Worker runs are merged in
// worker order through the same dedup rule a single run uses.
//
// # Output
//
// A Sink receives the finished run. Finalize hands the run to every sink,
// even after an earlier sink failed or the context was cancelled, so that an
// interrupted crawl still flushes what it collected.
package crawl
