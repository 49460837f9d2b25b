package textparse

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		text   string
		want   Range
		wantOK bool
	}{
		{name: "thousands", text: "Sweet spot $500K (100K - 2000K)", want: Range{Min: 100, Max: 2000}, wantOK: true},
		{name: "decimals", text: "$1.5 (0.5 - 3)", want: Range{Min: 0.5, Max: 3}, wantOK: true},
		{name: "no range", text: "$100K - $2M", wantOK: false},
		{name: "empty", text: "", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseRange(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestCategoriesAndLocations(t *testing.T) {
	t.Parallel()

	text := "Investors in Fintech, Investors in New York (NYC), Investors in London (UK)"

	wantCategories := []string{"Fintech", "New York (NYC)", "London (UK)"}
	if diff := cmp.Diff(wantCategories, Categories(text)); diff != "" {
		t.Errorf("categories mismatch (-want +got):\n%s", diff)
	}

	wantLocations := []string{"New York (NYC)", "London (UK)"}
	if diff := cmp.Diff(wantLocations, Locations(text)); diff != "" {
		t.Errorf("locations mismatch (-want +got):\n%s", diff)
	}

	if got := Categories("nothing here"); len(got) != 0 {
		t.Errorf("expected no categories, got %v", got)
	}
}

func TestGuessInvestor(t *testing.T) {
	t.Parallel()

	g, ok := GuessInvestor(" Jane Doe Partner Acme $500K (100K - 2000K) Investors in Fintech, ")
	if !ok {
		t.Fatal("expected a guess")
	}
	want := Guess{
		Name:       "Jane Doe",
		Role:       "Partner",
		Firm:       "Acme",
		Range:      &Range{Min: 100, Max: 2000},
		Categories: []string{"Fintech"},
		Locations:  []string{},
	}
	if diff := cmp.Diff(want, g); diff != "" {
		t.Errorf("guess mismatch (-want +got):\n%s", diff)
	}

	if _, ok := GuessInvestor("123 456"); ok {
		t.Error("expected no guess for text without words")
	}
}

func TestSections(t *testing.T) {
	t.Parallel()

	text := "SIGNAL INVESTORS header Save View Jane Doe Partner Acme Save View John Roe Principal Beta"
	want := []string{" Jane Doe Partner Acme ", " John Roe Principal Beta"}
	if diff := cmp.Diff(want, Sections(text)); diff != "" {
		t.Errorf("sections mismatch (-want +got):\n%s", diff)
	}

	if got := Sections("About Save View us"); got != nil {
		t.Errorf("expected no sections without the listing marker, got %v", got)
	}
	if got := Sections("INVESTORS only"); got != nil {
		t.Errorf("expected no sections without a separator, got %v", got)
	}
}

func TestAnalyze(t *testing.T) {
	t.Parallel()

	captures := []string{
		"SIGNAL INVESTORS Save View Jane Doe Partner Acme $500K (100K - 2000K) Investors in Fintech, Save View John Roe Principal Beta",
		"About Signal",
	}
	a := Analyze(captures)

	if len(a.Investors) != 2 {
		t.Fatalf("expected 2 investors, got %d", len(a.Investors))
	}
	wantRoles := []Count{{Value: "Partner", N: 1}, {Value: "Principal", N: 1}}
	if diff := cmp.Diff(wantRoles, a.Roles); diff != "" {
		t.Errorf("roles mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Count{{Value: "Fintech", N: 1}}, a.Categories); diff != "" {
		t.Errorf("categories mismatch (-want +got):\n%s", diff)
	}
	if a.AvgMin != 100 || a.AvgMax != 2000 {
		t.Errorf("expected averages 100/2000, got %v/%v", a.AvgMin, a.AvgMax)
	}
}

func TestTop(t *testing.T) {
	t.Parallel()

	counts := tally(map[string]int{"a": 1, "b": 3, "c": 2, "d": 2})
	want := []Count{{Value: "b", N: 3}, {Value: "c", N: 2}}
	if diff := cmp.Diff(want, Top(counts, 2)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if got := Top(counts, 0); len(got) != 4 {
		t.Errorf("expected all counts for n=0, got %d", len(got))
	}
}
