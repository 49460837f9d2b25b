package sitemap

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultFilter selects investor list pages.
const DefaultFilter = "signal.nfx.com/investor-lists"

// ErrNotSitemap is returned when the document root is neither urlset nor
// sitemapindex.
var ErrNotSitemap = errors.New("document is not a sitemap")

// ParseFile reads the sitemap at path. See Parse.
func ParseFile(path, filter string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // path is operator supplied
	if err != nil {
		return nil, fmt.Errorf("failed to open sitemap: %w", err)
	}
	defer f.Close()

	urls, err := Parse(f, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return urls, nil
}

// Parse returns the <loc> values containing filter, in document order and
// without duplicates. An empty filter keeps every location.
func Parse(r io.Reader, filter string) ([]string, error) {
	dec := xml.NewDecoder(r)
	urls := make([]string, 0)
	seen := make(map[string]struct{})
	rootSeen := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse sitemap: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !rootSeen {
			rootSeen = true
			if start.Name.Local != "urlset" && start.Name.Local != "sitemapindex" {
				return nil, fmt.Errorf("%w: root element <%s>", ErrNotSitemap, start.Name.Local)
			}
			continue
		}
		if start.Name.Local != "loc" {
			continue
		}

		var loc string
		if err := dec.DecodeElement(&loc, &start); err != nil {
			return nil, fmt.Errorf("failed to parse sitemap: %w", err)
		}
		loc = strings.TrimSpace(loc)
		if loc == "" || !strings.Contains(loc, filter) {
			continue
		}
		if _, dup := seen[loc]; dup {
			continue
		}
		seen[loc] = struct{}{}
		urls = append(urls, loc)
	}

	if !rootSeen {
		return nil, ErrNotSitemap
	}
	return urls, nil
}
