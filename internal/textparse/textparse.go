package textparse

import (
	"cmp"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

const (
	// listingMarker must appear in a capture for it to be split into
	// investor sections.
	listingMarker = "INVESTORS"

	// sectionSeparator is the button text that follows every investor card.
	sectionSeparator = "Save View"
)

var (
	reRange    = regexp.MustCompile(`\$([\d.]+)K?\s*\(([\d.]+)K?\s*-\s*([\d.]+)K?\)`)
	reCategory = regexp.MustCompile(`Investors in ([^,]+)`)
	reLocation = regexp.MustCompile(`Investors in ([^,]+) \(([^)]+)\)`)
	reInvestor = regexp.MustCompile(`([A-Za-z\s]+)\s+([A-Za-z\s]+)\s+([A-Za-z\s]+)`)
)

// Range is an investment range in thousands of dollars.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Guess is a best-effort reading of one investor section.
type Guess struct {
	Name       string   `json:"name"`
	Role       string   `json:"role"`
	Firm       string   `json:"firm"`
	Range      *Range   `json:"range,omitempty"`
	Categories []string `json:"categories"`
	Locations  []string `json:"locations"`
}

// ParseRange finds a "$X (Y - Z)" range and returns its bounds.
func ParseRange(text string) (Range, bool) {
	m := reRange.FindStringSubmatch(text)
	if m == nil {
		return Range{}, false
	}
	lo, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Range{}, false
	}
	hi, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Range{}, false
	}
	return Range{Min: lo, Max: hi}, true
}

// Categories returns every "Investors in <category>" phrase, in order.
func Categories(text string) []string {
	out := make([]string, 0)
	for _, m := range reCategory.FindAllStringSubmatch(text, -1) {
		c := strings.TrimSpace(m[1])
		if c == "" || strings.HasPrefix(c, "Investors in") {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Locations returns every "Investors in <place> (<qualifier>)" phrase as
// "<place> (<qualifier>)", in order.
func Locations(text string) []string {
	out := make([]string, 0)
	for _, m := range reLocation.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1]+" ("+m[2]+")")
	}
	return out
}

// GuessInvestor reads name, role and firm as the first three runs of
// letters and spaces, then attaches any range, categories and locations.
func GuessInvestor(section string) (Guess, bool) {
	m := reInvestor.FindStringSubmatch(section)
	if m == nil {
		return Guess{}, false
	}
	g := Guess{
		Name:       strings.TrimSpace(m[1]),
		Role:       strings.TrimSpace(m[2]),
		Firm:       strings.TrimSpace(m[3]),
		Categories: Categories(section),
		Locations:  Locations(section),
	}
	if r, ok := ParseRange(section); ok {
		g.Range = &r
	}
	return g, true
}

// Sections splits a listing capture into per-investor sections. Captures
// without the listing marker yield nothing, and the text before the first
// separator is page chrome.
func Sections(rawText string) []string {
	if !strings.Contains(rawText, listingMarker) {
		return nil
	}
	parts := strings.Split(rawText, sectionSeparator)
	if len(parts) < 2 {
		return nil
	}
	return parts[1:]
}

// Count is a value and how often it was seen.
type Count struct {
	Value string `json:"value"`
	N     int    `json:"count"`
}

// Analysis summarizes the investors guessed from a set of captures.
type Analysis struct {
	Investors  []Guess `json:"investors"`
	Roles      []Count `json:"roles"`
	Firms      []Count `json:"firms"`
	Categories []Count `json:"categories"`
	Locations  []Count `json:"locations"`

	// AvgMin and AvgMax average the ranges that were found, in thousands.
	AvgMin float64 `json:"avg_min"`
	AvgMax float64 `json:"avg_max"`
}

// Analyze guesses investors from every capture and tallies the results.
func Analyze(captures []string) Analysis {
	a := Analysis{Investors: make([]Guess, 0)}
	for _, text := range captures {
		for _, section := range Sections(text) {
			if g, ok := GuessInvestor(section); ok {
				a.Investors = append(a.Investors, g)
			}
		}
	}

	roles := make(map[string]int)
	firms := make(map[string]int)
	categories := make(map[string]int)
	locations := make(map[string]int)
	var sumMin, sumMax float64
	ranged := 0

	for _, g := range a.Investors {
		roles[g.Role]++
		firms[g.Firm]++
		for _, c := range g.Categories {
			categories[c]++
		}
		for _, l := range g.Locations {
			locations[l]++
		}
		if g.Range != nil {
			sumMin += g.Range.Min
			sumMax += g.Range.Max
			ranged++
		}
	}

	a.Roles = tally(roles)
	a.Firms = tally(firms)
	a.Categories = tally(categories)
	a.Locations = tally(locations)
	if ranged > 0 {
		a.AvgMin = sumMin / float64(ranged)
		a.AvgMax = sumMax / float64(ranged)
	}
	return a
}

// Top returns at most n counts.
func Top(counts []Count, n int) []Count {
	if n <= 0 || n >= len(counts) {
		return counts
	}
	return counts[:n]
}

// tally orders counts by frequency, then by value.
func tally(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for v, n := range m {
		out = append(out, Count{Value: v, N: n})
	}
	slices.SortFunc(out, func(a, b Count) int {
		if c := cmp.Compare(b.N, a.N); c != 0 {
			return c
		}
		return cmp.Compare(a.Value, b.Value)
	})
	return out
}
