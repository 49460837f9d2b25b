package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/signalscan/internal/model"
)

// setupTestDB creates a temporary database that is closed when the test
// and all of its parallel subtests finish.
func setupTestDB(t *testing.T) *CrawlDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

var testStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// sampleRun builds a finished run with two investors, one failed URL and one
// successful capture.
func sampleRun(start time.Time) *model.CrawlRun {
	run := model.NewCrawlRun([]string{"https://signal.nfx.com/investor-lists/top-fintech-seed-investors", "https://signal.nfx.com/investor-lists/broken"}, start)
	run.AddRecords([]model.InvestorRecord{
		{
			Name:            "Jane Doe",
			Company:         "Acme Ventures",
			Role:            "Partner",
			ProfileURL:      "https://signal.nfx.com/investors/jane-doe",
			CompanyURL:      "https://signal.nfx.com/firms/acme-ventures",
			InvestmentRange: "$100K - $2M",
			Locations:       []string{"San Francisco", "New York"},
			Categories:      []string{"Fintech", "SaaS"},
			SourceURL:       "https://signal.nfx.com/investor-lists/top-fintech-seed-investors",
			Timestamp:       start.Add(time.Second),
		},
		{
			Name:       "John Roe",
			Company:    "Beta Capital",
			ProfileURL: "https://signal.nfx.com/investors/john-roe",
			SourceURL:  "https://signal.nfx.com/investor-lists/top-fintech-seed-investors",
			Timestamp:  start.Add(2 * time.Second),
		},
	})
	run.AddCapture(model.RawCapture{
		URL:       "https://signal.nfx.com/investor-lists/top-fintech-seed-investors",
		RawText:   "INVESTORS Jane Doe Partner at Acme Ventures",
		Timestamp: start.Add(time.Second),
	})
	run.AddCapture(model.RawCapture{
		URL:       "https://signal.nfx.com/investor-lists/broken",
		Error:     "navigation failed after 3 attempts",
		Timestamp: start.Add(3 * time.Second),
	})
	run.AddError(model.ErrorRecord{
		URL:       "https://signal.nfx.com/investor-lists/broken",
		Reason:    "navigation failed after 3 attempts",
		Timestamp: start.Add(3 * time.Second),
	})
	run.Finish(start.Add(time.Minute))
	return run
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("expected path %s, got %s", filepath.Join(dbDir, FileName), db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{CreateIfNotExists: false})
		if err == nil {
			t.Fatal("expected error for missing database")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dbDir := t.TempDir()
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		_ = db.Close()

		db, err = Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		_ = db.Close()
	})
}

// TestDefaultOptions tests the default options.
func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	if !opts.CreateIfNotExists {
		t.Error("expected CreateIfNotExists to be true")
	}
	if !opts.EnableWAL {
		t.Error("expected EnableWAL to be true")
	}
}

// TestSaveAndGetRun tests storing a run and reading every part of it back.
func TestSaveAndGetRun(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)

	ctx := context.Background()
	run := sampleRun(testStart)
	if err := db.SaveRun(ctx, run); err != nil {
		t.Fatalf("failed to save run: %v", err)
	}

	t.Run("metadata", func(t *testing.T) {
		t.Parallel()

		got, err := db.GetRun(ctx, run.ID)
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got == nil {
			t.Fatal("expected run, got nil")
		}
		want := &RunMetadata{
			ID:            run.ID,
			StartedAt:     testStart,
			FinishedAt:    testStart.Add(time.Minute),
			Status:        model.StatusSuccess,
			Attempted:     2,
			Succeeded:     1,
			Failed:        1,
			UniqueRecords: 2,
			TargetURLs:    run.TargetURLs,
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("run mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("investors", func(t *testing.T) {
		t.Parallel()

		got, err := db.Investors(ctx, run.ID)
		if err != nil {
			t.Fatalf("failed to get investors: %v", err)
		}
		want := run.Results()
		// Empty lists come back as empty slices.
		want[1].Locations = []string{}
		want[1].Categories = []string{}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("investors mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("captures", func(t *testing.T) {
		t.Parallel()

		got, err := db.Captures(ctx, run.ID)
		if err != nil {
			t.Fatalf("failed to get captures: %v", err)
		}
		if diff := cmp.Diff(run.Captures(), got); diff != "" {
			t.Errorf("captures mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("errors", func(t *testing.T) {
		t.Parallel()

		got, err := db.Errors(ctx, run.ID)
		if err != nil {
			t.Fatalf("failed to get errors: %v", err)
		}
		if diff := cmp.Diff(run.Errors(), got); diff != "" {
			t.Errorf("errors mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestSaveRunReplacesExisting(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)

	ctx := context.Background()
	run := sampleRun(testStart)
	if err := db.SaveRun(ctx, run); err != nil {
		t.Fatalf("failed to save run: %v", err)
	}
	if err := db.Write(ctx, run); err != nil {
		t.Fatalf("failed to save run twice: %v", err)
	}

	investors, err := db.Investors(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to get investors: %v", err)
	}
	if len(investors) != 2 {
		t.Errorf("expected 2 investors, got %d", len(investors))
	}
	captures, err := db.Captures(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to get captures: %v", err)
	}
	if len(captures) != 2 {
		t.Errorf("expected 2 captures, got %d", len(captures))
	}
}

func TestGetRunNotFound(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)

	got, err := db.GetRun(context.Background(), "no-such-run")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}

	latest, err := db.LatestRun(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest != nil {
		t.Errorf("expected nil latest run, got %+v", latest)
	}
}

func TestListRuns(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)

	ctx := context.Background()
	older := sampleRun(testStart)
	newer := sampleRun(testStart.Add(24 * time.Hour))
	aborted := model.NewCrawlRun([]string{"https://signal.nfx.com/investor-lists/a"}, testStart.Add(-time.Hour))
	aborted.Abort("login not completed within 2m0s")
	aborted.Finish(testStart.Add(-time.Hour))

	for _, r := range []*model.CrawlRun{older, newer, aborted} {
		if err := db.SaveRun(ctx, r); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
	}

	runs, err := db.ListRuns(ctx)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	gotIDs := make([]string, 0, len(runs))
	for _, r := range runs {
		gotIDs = append(gotIDs, r.ID)
	}
	if diff := cmp.Diff([]string{newer.ID, older.ID, aborted.ID}, gotIDs); diff != "" {
		t.Errorf("run order mismatch (-want +got):\n%s", diff)
	}
	if runs[2].Status != model.StatusDegraded {
		t.Errorf("expected degraded status, got %s", runs[2].Status)
	}
	if runs[2].AbortReason == "" {
		t.Error("expected abort reason to be stored")
	}

	latest, err := db.LatestRun(ctx)
	if err != nil {
		t.Fatalf("failed to get latest run: %v", err)
	}
	if latest == nil || latest.ID != newer.ID {
		t.Errorf("expected latest run %s, got %+v", newer.ID, latest)
	}
}

func TestProfileURLs(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)

	ctx := context.Background()
	first := sampleRun(testStart)
	second := model.NewCrawlRun([]string{"https://signal.nfx.com/investor-lists/saas"}, testStart.Add(time.Hour))
	second.AddRecords([]model.InvestorRecord{
		{Name: "John Roe", Company: "Beta Capital", ProfileURL: "https://signal.nfx.com/investors/john-roe"},
		{Name: "Ada Poe", Company: "Gamma", ProfileURL: "https://signal.nfx.com/investors/ada-poe"},
		{Name: "No Link", Company: "Delta"},
	})
	for _, r := range []*model.CrawlRun{first, second} {
		if err := db.SaveRun(ctx, r); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
	}

	tests := []struct {
		name  string
		runID string
		limit int
		want  []string
	}{
		{
			name:  "single run",
			runID: second.ID,
			want:  []string{"https://signal.nfx.com/investors/john-roe", "https://signal.nfx.com/investors/ada-poe"},
		},
		{
			name: "all runs distinct",
			want: []string{
				"https://signal.nfx.com/investors/jane-doe",
				"https://signal.nfx.com/investors/john-roe",
				"https://signal.nfx.com/investors/ada-poe",
			},
		},
		{
			name:  "limited",
			limit: 1,
			want:  []string{"https://signal.nfx.com/investors/jane-doe"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := db.ProfileURLs(ctx, tt.runID, tt.limit)
			if err != nil {
				t.Fatalf("failed to get profile urls: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("profile urls mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSaveAndGetProfile(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)

	ctx := context.Background()
	url := "https://signal.nfx.com/investors/jane-doe"

	p := model.NewProfile(url, testStart)
	p.Name = "Jane Doe"
	p.CurrentCompany = "Acme Ventures"
	p.InvestmentRange = "$100K - $2M"
	p.SocialLinks["linkedin"] = "https://www.linkedin.com/in/janedoe"
	p.PastInvestments = append(p.PastInvestments, model.Investment{Company: "Widgets Inc", Stage: "Seed"})

	if err := db.SaveProfile(ctx, p); err != nil {
		t.Fatalf("failed to save profile: %v", err)
	}

	got, err := db.GetProfile(ctx, url)
	if err != nil {
		t.Fatalf("failed to get profile: %v", err)
	}
	if diff := cmp.Diff(&p, got); diff != "" {
		t.Errorf("profile mismatch (-want +got):\n%s", diff)
	}

	// A later scrape overwrites the stored profile.
	p.CurrentCompany = "Acme Growth"
	p.Timestamp = testStart.Add(time.Hour)
	if err := db.SaveProfile(ctx, p); err != nil {
		t.Fatalf("failed to update profile: %v", err)
	}
	got, err = db.GetProfile(ctx, url)
	if err != nil {
		t.Fatalf("failed to get profile: %v", err)
	}
	if got.CurrentCompany != "Acme Growth" {
		t.Errorf("expected updated company, got %s", got.CurrentCompany)
	}

	missing, err := db.GetProfile(ctx, "https://signal.nfx.com/investors/nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil profile, got %+v", missing)
	}
}

// TestHasRecentProfile tests the recency check used to skip re-scraping.
func TestHasRecentProfile(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)

	ctx := context.Background()
	url := "https://signal.nfx.com/investors/jane-doe"
	if err := db.SaveProfile(ctx, model.NewProfile(url, testStart)); err != nil {
		t.Fatalf("failed to save profile: %v", err)
	}

	tests := []struct {
		name  string
		url   string
		since time.Time
		want  bool
	}{
		{name: "scraped after since", url: url, since: testStart.Add(-time.Hour), want: true},
		{name: "scraped before since", url: url, since: testStart.Add(time.Hour), want: false},
		{name: "never scraped", url: "https://signal.nfx.com/investors/other", since: testStart.Add(-time.Hour), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := db.HasRecentProfile(ctx, tt.url, tt.since)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSaveError(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)

	ctx := context.Background()
	rec := model.ErrorRecord{URL: "https://signal.nfx.com/investors/x", Reason: "timeout", Timestamp: testStart}
	if err := db.SaveError(ctx, "profile-batch", rec); err != nil {
		t.Fatalf("failed to save error: %v", err)
	}
	got, err := db.Errors(ctx, "profile-batch")
	if err != nil {
		t.Fatalf("failed to get errors: %v", err)
	}
	if diff := cmp.Diff([]model.ErrorRecord{rec}, got); diff != "" {
		t.Errorf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{name: "stored format", input: "2026-03-01 09:00:00.500000", want: testStart.Add(500 * time.Millisecond)},
		{name: "seconds only", input: "2026-03-01 09:00:00", want: testStart},
		{name: "RFC3339", input: "2026-03-01T09:00:00Z", want: testStart},
		{name: "empty", input: "", want: time.Time{}},
		{name: "garbage", input: "yesterday", want: time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := parseTimestamp(tt.input)
			if !got.Equal(tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	// Round trip drops nothing at microsecond precision.
	at := time.Date(2026, 3, 1, 9, 0, 0, 123456000, time.UTC)
	if got := parseTimestamp(formatTime(at)); !got.Equal(at) {
		t.Errorf("expected %v, got %v", at, got)
	}
}
