package model

import (
	"slices"
	"time"
)

// InvestorRecord is one investor extracted from a listing page row.
//
// Design decision: List-valued fields (Locations, Categories) keep the order
// in which the links appear on the page because the site orders them by
// relevance, and that order is worth preserving in the output.
type InvestorRecord struct {
	// Name is the investor's display name.
	Name string `json:"name"`

	// Company is the investor's firm.
	Company string `json:"company"`

	// Role is the investor's title at the firm. Empty when the row has none.
	Role string `json:"role"`

	// ProfileURL links to the investor's profile page.
	ProfileURL string `json:"profile_url"`

	// CompanyURL links to the firm's page.
	CompanyURL string `json:"company_url"`

	// ImageURL is the avatar image source. Empty when the row has no avatar.
	ImageURL string `json:"image_url"`

	// InvestmentRange is the free-form range cell, e.g. "$100K - $2M".
	InvestmentRange string `json:"investment_range"`

	// Locations are the link texts of the location cell.
	Locations []string `json:"locations"`

	// Categories are the link texts of the last qualifying cell in the row.
	Categories []string `json:"categories"`

	// SourceURL is the listing page the record was found on.
	SourceURL string `json:"source_url"`

	// Timestamp is when the record was extracted.
	Timestamp time.Time `json:"timestamp"`
}

// DedupKey identifies an investor for deduplication.
// Fields are compared exactly and case-sensitively, as extracted.
//
// Two different people sharing name, company and role collapse into one
// record. No stronger identifier is present on every row, so the collision
// is accepted.
type DedupKey struct {
	Name    string
	Company string
	Role    string
}

// Key returns the record's deduplication key.
func (r InvestorRecord) Key() DedupKey {
	return DedupKey{Name: r.Name, Company: r.Company, Role: r.Role}
}

// Valid reports whether the record carries a name or a company.
// Records with neither are dropped by every consumer.
func (r InvestorRecord) Valid() bool {
	return r.Name != "" || r.Company != ""
}

// Clone returns a deep copy of the record.
func (r InvestorRecord) Clone() InvestorRecord {
	c := r
	c.Locations = slices.Clone(r.Locations)
	c.Categories = slices.Clone(r.Categories)
	return c
}

// DedupSet tracks which investor keys have already been accepted.
// The zero value is not usable; create one with NewDedupSet.
type DedupSet struct {
	seen map[DedupKey]struct{}
}

// NewDedupSet creates an empty DedupSet.
func NewDedupSet() *DedupSet {
	return &DedupSet{seen: make(map[DedupKey]struct{})}
}

// Add records the key and reports whether it was new.
func (s *DedupSet) Add(key DedupKey) bool {
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Contains reports whether the key has been added.
func (s *DedupSet) Contains(key DedupKey) bool {
	_, ok := s.seen[key]
	return ok
}

// Len returns the number of distinct keys.
func (s *DedupSet) Len() int {
	return len(s.seen)
}
