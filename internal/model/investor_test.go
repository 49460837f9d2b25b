package model

import "testing"

func TestInvestorRecordValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		record InvestorRecord
		want   bool
	}{
		{name: "name only", record: InvestorRecord{Name: "Jane"}, want: true},
		{name: "company only", record: InvestorRecord{Company: "Acme"}, want: true},
		{name: "both", record: InvestorRecord{Name: "Jane", Company: "Acme"}, want: true},
		{name: "neither", record: InvestorRecord{Role: "Partner"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.record.Valid(); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestInvestorRecordClone(t *testing.T) {
	t.Parallel()

	orig := InvestorRecord{Name: "Jane", Locations: []string{"NYC"}, Categories: []string{"Fintech"}}
	c := orig.Clone()
	c.Locations[0] = "SF"
	c.Categories[0] = "AI"

	if orig.Locations[0] != "NYC" || orig.Categories[0] != "Fintech" {
		t.Error("expected Clone to copy list fields")
	}
}

func TestDedupSet(t *testing.T) {
	t.Parallel()

	s := NewDedupSet()
	k := DedupKey{Name: "Jane", Company: "Acme", Role: "Partner"}

	if !s.Add(k) {
		t.Error("expected first Add to report new key")
	}
	if s.Add(k) {
		t.Error("expected second Add to report existing key")
	}
	if !s.Contains(k) {
		t.Error("expected Contains to find key")
	}
	if s.Len() != 1 {
		t.Errorf("expected length 1, got %d", s.Len())
	}
}

func TestOutcomeString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		outcome Outcome
		want    string
	}{
		{OutcomeSuccess, "success"},
		{OutcomeAuthRequired, "auth_required"},
		{OutcomeFailure, "failure"},
		{Outcome(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.outcome.String(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}
