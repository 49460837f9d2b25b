package report

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/signalscan/internal/model"
)

func TestCompare(t *testing.T) {
	t.Parallel()

	jane := model.InvestorRecord{Name: "Jane Doe", Company: "Acme", Role: "Partner", InvestmentRange: "$1M"}
	john := model.InvestorRecord{Name: "John Roe", Company: "Beta"}
	ada := model.InvestorRecord{Name: "Ada Poe", Company: "Gamma", Categories: []string{"AI"}}

	janeMoved := jane
	janeMoved.InvestmentRange = "$2M"
	janeResourced := jane
	janeResourced.SourceURL = "https://signal.nfx.com/investor-lists/other"

	adaRetagged := ada
	adaRetagged.Categories = []string{"AI", "Robotics"}

	tests := []struct {
		name      string
		prev      []model.InvestorRecord
		cur       []model.InvestorRecord
		added     []model.InvestorRecord
		removed   []model.InvestorRecord
		changed   []model.InvestorRecord
		unchanged int
	}{
		{
			name:      "identical",
			prev:      []model.InvestorRecord{jane, john},
			cur:       []model.InvestorRecord{john, jane},
			added:     []model.InvestorRecord{},
			removed:   []model.InvestorRecord{},
			changed:   []model.InvestorRecord{},
			unchanged: 2,
		},
		{
			name:      "added and removed",
			prev:      []model.InvestorRecord{jane, john},
			cur:       []model.InvestorRecord{ada, jane},
			added:     []model.InvestorRecord{ada},
			removed:   []model.InvestorRecord{john},
			changed:   []model.InvestorRecord{},
			unchanged: 1,
		},
		{
			name:    "changed details",
			prev:    []model.InvestorRecord{jane, ada},
			cur:     []model.InvestorRecord{janeMoved, adaRetagged},
			added:   []model.InvestorRecord{},
			removed: []model.InvestorRecord{},
			changed: []model.InvestorRecord{janeMoved, adaRetagged},
		},
		{
			name:      "source page is ignored",
			prev:      []model.InvestorRecord{jane},
			cur:       []model.InvestorRecord{janeResourced},
			added:     []model.InvestorRecord{},
			removed:   []model.InvestorRecord{},
			changed:   []model.InvestorRecord{},
			unchanged: 1,
		},
		{
			name:    "empty previous run",
			cur:     []model.InvestorRecord{john},
			added:   []model.InvestorRecord{john},
			removed: []model.InvestorRecord{},
			changed: []model.InvestorRecord{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Compare(RunInfo{ID: "a", UniqueRecords: len(tt.prev)}, RunInfo{ID: "b", UniqueRecords: len(tt.cur)}, tt.prev, tt.cur)
			if diff := cmp.Diff(tt.added, got.Added); diff != "" {
				t.Errorf("added mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.removed, got.Removed); diff != "" {
				t.Errorf("removed mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.changed, got.Changed); diff != "" {
				t.Errorf("changed mismatch (-want +got):\n%s", diff)
			}
			if got.UnchangedCount != tt.unchanged {
				t.Errorf("expected %d unchanged, got %d", tt.unchanged, got.UnchangedCount)
			}
			if got.Delta() != len(tt.cur)-len(tt.prev) {
				t.Errorf("expected delta %d, got %d", len(tt.cur)-len(tt.prev), got.Delta())
			}
		})
	}
}
