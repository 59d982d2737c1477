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

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/newsharvest/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "newsharvest.db"

// timeLayout keeps a fixed fraction width so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var (
	// ErrRunNotFound is returned when no stored run matches an ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrAmbiguousID is returned when an ID prefix matches more than one run.
	ErrAmbiguousID = errors.New("run ID prefix matches more than one run")
)

// HistoryDB stores run reports and the records they exported.
// Each run is kept as a JSON document plus one row per record, so that
// listing runs and checking for previously seen articles do not need to
// decode every report.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
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

// Open opens or creates a HistoryDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	-- One row per run; the full report is kept as JSON
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		lookback_months INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		state TEXT,
		record_count INTEGER DEFAULT 0,
		output_dir TEXT,
		error TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_query ON runs(query);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Exported records, used to tell new articles from known ones
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		fingerprint TEXT NOT NULL,
		title TEXT NOT NULL,
		date TEXT NOT NULL,
		contains_amount INTEGER DEFAULT 0,
		UNIQUE(run_id, fingerprint)
	);

	CREATE INDEX IF NOT EXISTS idx_records_article ON records(title, date);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRunReport stores the report and its records in one transaction.
// A report without an ID is given a new UUID; the ID is returned and also
// written back into report.ID. Saving a report with an existing ID replaces
// the stored run.
func (hdb *HistoryDB) SaveRunReport(ctx context.Context, report *model.RunReport) (string, error) {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE run_id = ?", report.ID); err != nil {
		return "", fmt.Errorf("failed to clear records: %w", err)
	}

	query := `
	INSERT INTO runs (id, query, lookback_months, started_at, finished_at, state, record_count, output_dir, error, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		finished_at = excluded.finished_at,
		state = excluded.state,
		record_count = excluded.record_count,
		output_dir = excluded.output_dir,
		error = excluded.error,
		report_json = excluded.report_json
	`

	var finished sql.NullString
	if !report.FinishedAt.IsZero() {
		finished = sql.NullString{String: report.FinishedAt.UTC().Format(timeLayout), Valid: true}
	}

	_, err = tx.ExecContext(ctx, query,
		report.ID,
		report.Search.Query,
		report.Search.LookbackMonths,
		report.StartedAt.UTC().Format(timeLayout),
		finished,
		report.State,
		report.RecordCount(),
		report.OutputDir,
		report.ErrorMessage,
		string(reportJSON),
	)
	if err != nil {
		return "", fmt.Errorf("failed to save run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT OR IGNORE INTO records (run_id, fingerprint, title, date, contains_amount)
	VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range report.Records {
		if _, err := stmt.ExecContext(ctx, report.ID, r.Fingerprint(), r.Title, r.Date.String(), r.ContainsAmount); err != nil {
			return "", fmt.Errorf("failed to save record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}

	return report.ID, nil
}

// CountNewRecords returns how many of records have a title and date that no
// stored run has exported yet. Image paths are ignored because they are
// numbered per run.
func (hdb *HistoryDB) CountNewRecords(ctx context.Context, records []model.NewsRecord) (int, error) {
	query := `
	SELECT EXISTS(SELECT 1 FROM records WHERE title = ? AND date = ?)
	`

	n := 0
	for _, r := range records {
		var seen bool
		if err := hdb.db.QueryRowContext(ctx, query, r.Title, r.Date.String()).Scan(&seen); err != nil {
			return 0, fmt.Errorf("failed to look up record: %w", err)
		}
		if !seen {
			n++
		}
	}
	return n, nil
}

// RunMetadata contains summary information about a stored run.
// It is used for listing runs without loading the full report.
type RunMetadata struct {
	// ID is the run UUID.
	ID string

	// Query is the search text.
	Query string

	// LookbackMonths is the requested window.
	LookbackMonths int

	// StartedAt is when the run began.
	StartedAt time.Time

	// FinishedAt is when the run ended. Zero if it never finished.
	FinishedAt time.Time

	// State is the final scraper state.
	State string

	// RecordCount is the number of exported records.
	RecordCount int

	// OutputDir is where the run wrote its files.
	OutputDir string

	// Error is the error message, if the run failed.
	Error string
}

// ListRuns returns run metadata, newest first. A non-empty queryFilter keeps
// runs whose query contains it, ignoring case. A positive limit caps the
// number of rows.
func (hdb *HistoryDB) ListRuns(ctx context.Context, queryFilter string, limit int) ([]RunMetadata, error) {
	query := `
	SELECT id, query, lookback_months, started_at, finished_at, state, record_count, output_dir, error
	FROM runs
	WHERE 1=1
	`
	args := make([]any, 0, 2)

	if queryFilter != "" {
		query += " AND instr(lower(query), lower(?)) > 0"
		args = append(args, queryFilter)
	}

	query += " ORDER BY started_at DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var started string
		var finished, state, outputDir, errMsg sql.NullString

		if err := rows.Scan(
			&meta.ID,
			&meta.Query,
			&meta.LookbackMonths,
			&started,
			&finished,
			&state,
			&meta.RecordCount,
			&outputDir,
			&errMsg,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		meta.StartedAt = parseTimestamp(started)
		if finished.Valid {
			meta.FinishedAt = parseTimestamp(finished.String)
		}
		meta.State = state.String
		meta.OutputDir = outputDir.String
		meta.Error = errMsg.String

		results = append(results, meta)
	}

	return results, rows.Err()
}

// GetRun retrieves a stored report by its ID or by a unique ID prefix.
// The prefix is compared literally, so "%" and "_" match only themselves.
func (hdb *HistoryDB) GetRun(ctx context.Context, id string) (*model.RunReport, error) {
	if id == "" {
		return nil, ErrRunNotFound
	}

	query := `
	SELECT report_json FROM runs
	WHERE substr(id, 1, length(?)) = ?
	LIMIT 2
	`

	rows, err := hdb.db.QueryContext(ctx, query, id, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	defer rows.Close()

	var docs []string
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	switch len(docs) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 1:
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousID, id)
	}

	var report model.RunReport
	if err := json.Unmarshal([]byte(docs[0]), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// DeleteRun removes a run and its records.
func (hdb *HistoryDB) DeleteRun(ctx context.Context, id string) error {
	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE run_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,          // what SaveRunReport writes
	time.RFC3339,              // Full RFC3339 format
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
