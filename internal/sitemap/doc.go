// Package sitemap reads target URLs from a sitemap file.
//
// Both sitemaps.org document kinds are accepted: a urlset lists pages and a
// sitemapindex lists further sitemaps. In either case every <loc> value is a
// candidate, and only those containing the filter substring are returned.
// Nested sitemaps are not fetched; the caller supplies local files.
package sitemap
