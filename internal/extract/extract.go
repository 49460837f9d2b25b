package extract

import (
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/signalscan/internal/model"
)

// DefaultBaseURL is used to resolve relative links.
const DefaultBaseURL = "https://signal.nfx.com"

// Selectors for the listing markup.
const (
	selTable     = "table"
	selRow       = "tr"
	selCell      = "td"
	selInfoBlock = "div.flex"
	selImage     = "img[src]"
	selName      = "strong.sn-investor-name"
	selLink      = "a[href]"
	selFirmLink  = `a[href*="/firms/"]`
	selRole      = "span.sn-small-link"
	selRange     = "td.text-center.pt2"
	selLinkCell  = "td[style]"
)

// linkCellStyle identifies the location and category cells. Whitespace is
// ignored when comparing.
const linkCellStyle = "max-width:400px"

// Extractor turns listing snapshots into records.
type Extractor struct {
	base   *url.URL
	now    func() time.Time
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithBaseURL sets the URL against which relative links are resolved.
// An unparsable URL is ignored.
func WithBaseURL(raw string) Option {
	return func(e *Extractor) {
		if u, err := url.Parse(raw); err == nil {
			e.base = u
		}
	}
}

// WithClock sets the clock used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	base, _ := url.Parse(DefaultBaseURL)
	e := &Extractor{
		base:   base,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HasListing reports whether the snapshot contains a listing table.
func (e *Extractor) HasListing(snapshot string) bool {
	doc, err := parse(snapshot)
	if err != nil {
		return false
	}
	return doc.Find(selTable).Length() > 0
}

// Extract returns the records in the snapshot's first table, in row order.
// Rows without an info block, or with neither name nor company, are skipped.
func (e *Extractor) Extract(snapshot, sourceURL string) []model.InvestorRecord {
	records := make([]model.InvestorRecord, 0)

	doc, err := parse(snapshot)
	if err != nil {
		e.logger.Warn("failed to parse snapshot", "url", sourceURL, "error", err)
		return records
	}

	table := doc.Find(selTable).First()
	if table.Length() == 0 {
		e.logger.Debug("no listing table", "url", sourceURL)
		return records
	}

	ts := e.now()
	table.Find(selRow).Each(func(_ int, row *goquery.Selection) {
		rec, ok := e.extractRow(row)
		if !ok {
			return
		}
		rec.SourceURL = sourceURL
		rec.Timestamp = ts
		records = append(records, rec)
	})

	e.logger.Debug("extracted records", "url", sourceURL, "count", len(records))
	return records
}

func (e *Extractor) extractRow(row *goquery.Selection) (model.InvestorRecord, bool) {
	var rec model.InvestorRecord

	cell := row.Find(selCell).First()
	if cell.Length() == 0 {
		return rec, false
	}
	block := cell.Find(selInfoBlock).First()
	if block.Length() == 0 {
		return rec, false
	}

	if src, ok := block.Find(selImage).First().Attr("src"); ok {
		rec.ImageURL = e.resolve(src)
	}

	name := block.Find(selName).First()
	var nameAnchor *goquery.Selection
	if name.Length() > 0 {
		rec.Name = cleanText(name.Text())
		nameAnchor = name.Closest("a")
		if href, ok := nameAnchor.Attr("href"); ok {
			rec.ProfileURL = e.resolve(href)
		}
	}

	if company := e.companyAnchor(block, nameAnchor, rec.ProfileURL); company != nil {
		rec.Company = cleanText(company.Text())
		if href, ok := company.Attr("href"); ok {
			rec.CompanyURL = e.resolve(href)
		}
	}

	rec.Role = cleanText(block.Find(selRole).First().Text())
	rec.InvestmentRange = cleanText(row.Find(selRange).First().Text())

	linkCells := row.Find(selLinkCell).FilterFunction(func(_ int, s *goquery.Selection) bool {
		style, _ := s.Attr("style")
		return normalizeStyle(style) == linkCellStyle
	})
	// With a single qualifying cell it is both the first and the last, so
	// its links are reported as locations and as categories.
	rec.Locations = linkTexts(linkCells.First())
	rec.Categories = linkTexts(linkCells.Last())

	if !rec.Valid() {
		return rec, false
	}
	return rec, true
}

// companyAnchor prefers an explicit firm link and otherwise takes the first
// link in the block that is not the name's anchor. Links back to the profile
// and links without text, such as a wrapped avatar, are not firm links.
func (e *Extractor) companyAnchor(block, nameAnchor *goquery.Selection, profileURL string) *goquery.Selection {
	if firm := block.Find(selFirmLink).First(); firm.Length() > 0 {
		return firm
	}
	var found *goquery.Selection
	block.Find(selLink).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if nameAnchor != nil && nameAnchor.Length() > 0 && a.IsSelection(nameAnchor) {
			return true
		}
		if cleanText(a.Text()) == "" {
			return true
		}
		if href, ok := a.Attr("href"); ok && profileURL != "" && e.resolve(href) == profileURL {
			return true
		}
		found = a
		return false
	})
	return found
}

func linkTexts(cell *goquery.Selection) []string {
	return linkTextsMatching(cell, "a")
}

// resolve turns a possibly relative href into an absolute URL.
func (e *Extractor) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || e.base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return e.base.ResolveReference(ref).String()
}

func parse(snapshot string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(snapshot))
}

// cleanText trims the text and collapses runs of whitespace, including
// non-breaking spaces, to a single space.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normalizeStyle(style string) string {
	style = strings.ToLower(strings.Join(strings.Fields(style), ""))
	return strings.TrimSuffix(style, ";")
}
