package report

import (
	"slices"
	"time"

	"github.com/nao1215/signalscan/internal/model"
)

// RunInfo identifies one side of a comparison.
type RunInfo struct {
	ID            string          `json:"id"`
	StartedAt     time.Time       `json:"started_at"`
	Status        model.RunStatus `json:"status"`
	UniqueRecords int             `json:"unique_records"`
}

// Comparison holds the investor-level differences between two runs.
type Comparison struct {
	// Previous is the older run.
	Previous RunInfo `json:"previous_run"`

	// Current is the newer run.
	Current RunInfo `json:"current_run"`

	// Added contains investors present only in the current run.
	Added []model.InvestorRecord `json:"added"`

	// Removed contains investors present only in the previous run.
	Removed []model.InvestorRecord `json:"removed"`

	// Changed contains investors present in both runs whose details differ.
	// The current run's record is kept.
	Changed []model.InvestorRecord `json:"changed"`

	// UnchangedCount is the number of investors identical in both runs.
	UnchangedCount int `json:"unchanged_count"`
}

// Delta returns the change in unique record count.
func (c *Comparison) Delta() int {
	return c.Current.UniqueRecords - c.Previous.UniqueRecords
}

// Compare matches investors of two runs by their dedup key.
// Added and Changed follow the current run's order; Removed follows the
// previous run's order.
func Compare(previous, current RunInfo, prevRecs, curRecs []model.InvestorRecord) *Comparison {
	c := &Comparison{
		Previous: previous,
		Current:  current,
		Added:    make([]model.InvestorRecord, 0),
		Removed:  make([]model.InvestorRecord, 0),
		Changed:  make([]model.InvestorRecord, 0),
	}

	before := make(map[model.DedupKey]model.InvestorRecord, len(prevRecs))
	for _, r := range prevRecs {
		before[r.Key()] = r
	}
	after := make(map[model.DedupKey]struct{}, len(curRecs))

	for _, r := range curRecs {
		after[r.Key()] = struct{}{}
		old, ok := before[r.Key()]
		switch {
		case !ok:
			c.Added = append(c.Added, r)
		case detailsDiffer(old, r):
			c.Changed = append(c.Changed, r)
		default:
			c.UnchangedCount++
		}
	}
	for _, r := range prevRecs {
		if _, ok := after[r.Key()]; !ok {
			c.Removed = append(c.Removed, r)
		}
	}
	return c
}

// detailsDiffer compares the fields that describe an investor. Source page
// and extraction time are ignored.
func detailsDiffer(a, b model.InvestorRecord) bool {
	return a.ProfileURL != b.ProfileURL ||
		a.CompanyURL != b.CompanyURL ||
		a.InvestmentRange != b.InvestmentRange ||
		!slices.Equal(a.Locations, b.Locations) ||
		!slices.Equal(a.Categories, b.Categories)
}
