package model

import "time"

// Profile is the detail record extracted from an investor profile page.
type Profile struct {
	URL                 string            `json:"url"`
	Name                string            `json:"name"`
	CurrentCompany      string            `json:"current_company"`
	InvestmentRange     string            `json:"investment_range"`
	InvestmentsOnRecord string            `json:"investments_on_record"`
	SweetSpot           string            `json:"sweet_spot"`
	CurrentFundSize     string            `json:"current_fund_size"`
	Experience          []Experience      `json:"experience"`
	SectorRankings      []string          `json:"sector_rankings"`
	SocialLinks         map[string]string `json:"social_links"`
	Networks            []Network         `json:"networks"`
	Education           []string          `json:"education"`
	PastInvestments     []Investment      `json:"past_investments"`
	Timestamp           time.Time         `json:"timestamp"`
}

// Experience is one position in the profile's experience section.
type Experience struct {
	Role     string `json:"role"`
	Company  string `json:"company"`
	Duration string `json:"duration"`
}

// Network is a network membership with its connection count.
type Network struct {
	Name        string `json:"name"`
	Connections string `json:"connections"`
}

// Investment is one row of the past-investments table.
type Investment struct {
	Company     string `json:"company"`
	Stage       string `json:"stage,omitempty"`
	Date        string `json:"date,omitempty"`
	RoundSize   string `json:"round_size,omitempty"`
	TotalRaised string `json:"total_raised,omitempty"`
}

// NewProfile returns a Profile with non-nil collections.
func NewProfile(url string, at time.Time) Profile {
	return Profile{
		URL:             url,
		Experience:      make([]Experience, 0),
		SectorRankings:  make([]string, 0),
		SocialLinks:     make(map[string]string),
		Networks:        make([]Network, 0),
		Education:       make([]string, 0),
		PastInvestments: make([]Investment, 0),
		Timestamp:       at,
	}
}
