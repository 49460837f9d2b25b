// Package extract maps rendered HTML into investor records.
//
// Extraction is a pure function of the DOM snapshot (and the injected clock
// used for timestamps): extracting the same snapshot twice yields identical
// records. The extractor never fails. A page without a listing table yields
// no records, and a row with a missing optional cell yields empty values for
// that cell.
//
// The structural anchors are fixed to the directory's markup:
//
//	table > tr > td (first) > div.flex       info block
//	  img[src]                                avatar
//	  strong.sn-investor-name (inside a)      name and profile link
//	  a[href] (firm link)                     company and company link
//	  span.sn-small-link                      role
//	td.text-center.pt2                        investment range
//	td[style="max-width: 400px;"] (first)     locations
//	td[style="max-width: 400px;"] (last)      categories
//
// Deduplication is not done here. The crawl controller owns it.
package extract
