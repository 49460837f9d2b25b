package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/signalscan/internal/model"
)

// FileName is the database file created inside the database directory.
const FileName = "signalscan.db"

// CrawlDB provides SQLite-based storage for crawl runs and profiles.
//
// Design decision: Every table row of a run carries the run ID, and a run is
// written in one transaction. A crash while flushing therefore leaves either
// the whole run or nothing, never a run with half of its investors.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a crawl first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

func (cdb *CrawlDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		status TEXT NOT NULL,
		attempted INTEGER NOT NULL DEFAULT 0,
		succeeded INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		unique_records INTEGER NOT NULL DEFAULT 0,
		abort_reason TEXT,
		target_urls TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- One capture per attempted URL, failed attempts included
	CREATE TABLE IF NOT EXISTS raw_captures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		url TEXT NOT NULL,
		raw_text TEXT,
		error TEXT,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_captures_run ON raw_captures(run_id);

	-- Investors are unique per run under the (name, company, role) key
	CREATE TABLE IF NOT EXISTS investors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		name TEXT NOT NULL,
		company TEXT NOT NULL,
		role TEXT NOT NULL,
		profile_url TEXT,
		company_url TEXT,
		image_url TEXT,
		investment_range TEXT,
		locations TEXT,
		categories TEXT,
		source_url TEXT,
		timestamp TEXT NOT NULL,
		UNIQUE(run_id, name, company, role)
	);

	CREATE INDEX IF NOT EXISTS idx_investors_run ON investors(run_id);
	CREATE INDEX IF NOT EXISTS idx_investors_profile ON investors(profile_url);

	CREATE TABLE IF NOT EXISTS crawl_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		url TEXT NOT NULL,
		reason TEXT NOT NULL,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_errors_run ON crawl_errors(run_id);

	-- Profiles are keyed by URL and overwritten by later scrapes
	CREATE TABLE IF NOT EXISTS profiles (
		url TEXT PRIMARY KEY,
		name TEXT,
		current_company TEXT,
		investment_range TEXT,
		profile_json TEXT NOT NULL,
		timestamp TEXT NOT NULL
	);
	`
	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// Name identifies the database as a run sink.
func (cdb *CrawlDB) Name() string {
	return "sqlite"
}

// Write stores the run. It lets CrawlDB act as a crawl sink.
func (cdb *CrawlDB) Write(ctx context.Context, run *model.CrawlRun) error {
	return cdb.SaveRun(ctx, run)
}

// SaveRun stores a run with its captures, investors and errors in one
// transaction. Saving the same run again replaces it.
func (cdb *CrawlDB) SaveRun(ctx context.Context, run *model.CrawlRun) (err error) {
	targets, err := json.Marshal(run.TargetURLs)
	if err != nil {
		return fmt.Errorf("failed to serialize targets: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"raw_captures", "investors", "crawl_errors"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE run_id = ?", run.ID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	s := run.Summary()
	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (id, started_at, finished_at, status, attempted, succeeded, failed, unique_records, abort_reason, target_urls)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		finished_at = excluded.finished_at,
		status = excluded.status,
		attempted = excluded.attempted,
		succeeded = excluded.succeeded,
		failed = excluded.failed,
		unique_records = excluded.unique_records,
		abort_reason = excluded.abort_reason,
		target_urls = excluded.target_urls
	`,
		run.ID, formatTime(run.StartedAt), formatTime(run.FinishedAt), string(s.Status),
		s.Attempted, s.Succeeded, s.Failed, s.UniqueRecords, run.AbortReason, string(targets),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	for _, c := range run.Captures() {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO raw_captures (run_id, url, raw_text, error, timestamp) VALUES (?, ?, ?, ?, ?)`,
			run.ID, c.URL, c.RawText, c.Error, formatTime(c.Timestamp),
		); err != nil {
			return fmt.Errorf("failed to save capture: %w", err)
		}
	}

	for _, r := range run.Results() {
		if err = insertInvestor(ctx, tx, run.ID, r); err != nil {
			return err
		}
	}

	for _, e := range run.Errors() {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO crawl_errors (run_id, url, reason, timestamp) VALUES (?, ?, ?, ?)`,
			run.ID, e.URL, e.Reason, formatTime(e.Timestamp),
		); err != nil {
			return fmt.Errorf("failed to save error record: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

func insertInvestor(ctx context.Context, tx *sql.Tx, runID string, r model.InvestorRecord) error {
	locations, err := json.Marshal(nonNil(r.Locations))
	if err != nil {
		return fmt.Errorf("failed to serialize locations: %w", err)
	}
	categories, err := json.Marshal(nonNil(r.Categories))
	if err != nil {
		return fmt.Errorf("failed to serialize categories: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
	INSERT INTO investors (run_id, name, company, role, profile_url, company_url, image_url,
		investment_range, locations, categories, source_url, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID, r.Name, r.Company, r.Role, r.ProfileURL, r.CompanyURL, r.ImageURL,
		r.InvestmentRange, string(locations), string(categories), r.SourceURL, formatTime(r.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to save investor: %w", err)
	}
	return nil
}

// RunMetadata is the stored summary of a run.
type RunMetadata struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    time.Time
	Status        model.RunStatus
	Attempted     int
	Succeeded     int
	Failed        int
	UniqueRecords int
	AbortReason   string
	TargetURLs    []string
}

const runColumns = `id, started_at, finished_at, status, attempted, succeeded, failed, unique_records, abort_reason, target_urls`

func scanRun(row interface{ Scan(...any) error }) (RunMetadata, error) {
	var (
		m                   RunMetadata
		started, targets    string
		finished, abortText sql.NullString
		status              string
	)
	if err := row.Scan(&m.ID, &started, &finished, &status, &m.Attempted, &m.Succeeded,
		&m.Failed, &m.UniqueRecords, &abortText, &targets); err != nil {
		return m, err
	}
	m.StartedAt = parseTimestamp(started)
	m.FinishedAt = parseTimestamp(finished.String)
	m.Status = model.RunStatus(status)
	m.AbortReason = abortText.String
	if err := json.Unmarshal([]byte(targets), &m.TargetURLs); err != nil {
		return m, fmt.Errorf("failed to parse targets: %w", err)
	}
	return m, nil
}

// ListRuns returns stored runs, most recent first.
func (cdb *CrawlDB) ListRuns(ctx context.Context) ([]RunMetadata, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunMetadata, 0)
	for rows.Next() {
		m, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, m)
	}
	return runs, rows.Err()
}

// GetRun returns the run with the given ID, or nil if there is none.
func (cdb *CrawlDB) GetRun(ctx context.Context, id string) (*RunMetadata, error) {
	m, err := scanRun(cdb.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &m, nil
}

// LatestRun returns the most recent run, or nil if none is stored.
func (cdb *CrawlDB) LatestRun(ctx context.Context) (*RunMetadata, error) {
	m, err := scanRun(cdb.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return &m, nil
}

// Investors returns a run's investors in first-seen order.
func (cdb *CrawlDB) Investors(ctx context.Context, runID string) ([]model.InvestorRecord, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT name, company, role, profile_url, company_url, image_url, investment_range,
		locations, categories, source_url, timestamp
	FROM investors WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query investors: %w", err)
	}
	defer rows.Close()

	out := make([]model.InvestorRecord, 0)
	for rows.Next() {
		var (
			r                          model.InvestorRecord
			locations, categories, ts  string
			profile, company, img, rng sql.NullString
			source                     sql.NullString
		)
		if err := rows.Scan(&r.Name, &r.Company, &r.Role, &profile, &company, &img, &rng,
			&locations, &categories, &source, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan investor: %w", err)
		}
		r.ProfileURL, r.CompanyURL, r.ImageURL = profile.String, company.String, img.String
		r.InvestmentRange, r.SourceURL = rng.String, source.String
		r.Timestamp = parseTimestamp(ts)
		if err := json.Unmarshal([]byte(locations), &r.Locations); err != nil {
			return nil, fmt.Errorf("failed to parse locations: %w", err)
		}
		if err := json.Unmarshal([]byte(categories), &r.Categories); err != nil {
			return nil, fmt.Errorf("failed to parse categories: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Captures returns a run's raw captures in attempt order.
func (cdb *CrawlDB) Captures(ctx context.Context, runID string) ([]model.RawCapture, error) {
	rows, err := cdb.db.QueryContext(ctx,
		`SELECT url, raw_text, error, timestamp FROM raw_captures WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query captures: %w", err)
	}
	defer rows.Close()

	out := make([]model.RawCapture, 0)
	for rows.Next() {
		var (
			c             model.RawCapture
			text, errText sql.NullString
			ts            string
		)
		if err := rows.Scan(&c.URL, &text, &errText, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan capture: %w", err)
		}
		c.RawText, c.Error, c.Timestamp = text.String, errText.String, parseTimestamp(ts)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Errors returns a run's error records in occurrence order.
func (cdb *CrawlDB) Errors(ctx context.Context, runID string) ([]model.ErrorRecord, error) {
	rows, err := cdb.db.QueryContext(ctx,
		`SELECT url, reason, timestamp FROM crawl_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query errors: %w", err)
	}
	defer rows.Close()

	out := make([]model.ErrorRecord, 0)
	for rows.Next() {
		var (
			e  model.ErrorRecord
			ts string
		)
		if err := rows.Scan(&e.URL, &e.Reason, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan error record: %w", err)
		}
		e.Timestamp = parseTimestamp(ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveError records a failure outside a crawl run, such as a profile that
// could not be scraped. batchID groups the errors of one invocation.
func (cdb *CrawlDB) SaveError(ctx context.Context, batchID string, e model.ErrorRecord) error {
	_, err := cdb.db.ExecContext(ctx,
		`INSERT INTO crawl_errors (run_id, url, reason, timestamp) VALUES (?, ?, ?, ?)`,
		batchID, e.URL, e.Reason, formatTime(e.Timestamp))
	if err != nil {
		return fmt.Errorf("failed to save error record: %w", err)
	}
	return nil
}

// ProfileURLs returns the distinct profile URLs of a run in first-seen order.
// An empty runID selects every run. A positive limit truncates the result.
func (cdb *CrawlDB) ProfileURLs(ctx context.Context, runID string, limit int) ([]string, error) {
	query := `
	SELECT profile_url FROM investors
	WHERE profile_url IS NOT NULL AND profile_url != ''
	`
	args := make([]any, 0, 2)
	if runID != "" {
		query += " AND run_id = ?"
		args = append(args, runID)
	}
	query += " GROUP BY profile_url ORDER BY MIN(id)"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query profile urls: %w", err)
	}
	defer rows.Close()

	urls := make([]string, 0)
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan profile url: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// SaveProfile inserts or replaces the profile stored for p.URL.
func (cdb *CrawlDB) SaveProfile(ctx context.Context, p model.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to serialize profile: %w", err)
	}
	_, err = cdb.db.ExecContext(ctx, `
	INSERT INTO profiles (url, name, current_company, investment_range, profile_json, timestamp)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		name = excluded.name,
		current_company = excluded.current_company,
		investment_range = excluded.investment_range,
		profile_json = excluded.profile_json,
		timestamp = excluded.timestamp
	`, p.URL, p.Name, p.CurrentCompany, p.InvestmentRange, string(data), formatTime(p.Timestamp))
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// GetProfile returns the stored profile for url, or nil if there is none.
func (cdb *CrawlDB) GetProfile(ctx context.Context, url string) (*model.Profile, error) {
	var data string
	err := cdb.db.QueryRowContext(ctx, `SELECT profile_json FROM profiles WHERE url = ?`, url).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	var p model.Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	return &p, nil
}

// HasRecentProfile reports whether url was scraped after since.
func (cdb *CrawlDB) HasRecentProfile(ctx context.Context, url string, since time.Time) (bool, error) {
	var count int
	err := cdb.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM profiles WHERE url = ? AND timestamp > ?`, url, formatTime(since)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check recent profile: %w", err)
	}
	return count > 0, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// storedFormat sorts lexically in time order, which the queries rely on.
const storedFormat = "2006-01-02 15:04:05.000000"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(storedFormat)
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	storedFormat,
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	time.RFC3339,
}

// parseTimestamp parses a stored timestamp. Unparseable or empty values
// yield the zero time.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
