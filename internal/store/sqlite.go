package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/jonathan/autoapply/internal/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS applied_urls (
	url      TEXT PRIMARY KEY,
	added_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS applied_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	url        TEXT NOT NULL,
	title      TEXT NOT NULL,
	company    TEXT NOT NULL,
	portal     TEXT NOT NULL DEFAULT '',
	run_id     TEXT NOT NULL DEFAULT '',
	applied_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS failed_log (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	url       TEXT NOT NULL,
	title     TEXT NOT NULL,
	company   TEXT NOT NULL,
	portal    TEXT NOT NULL DEFAULT '',
	run_id    TEXT NOT NULL DEFAULT '',
	reason    TEXT NOT NULL,
	failed_at TEXT NOT NULL
);`

// SQLiteStore keeps the index and logs in a local SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &Error{Op: "open", Path: path, Cause: err}
	}
	// One connection keeps writes serialized and lets ":memory:" work.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, &Error{Op: "migrate", Path: path, Cause: err}
	}
	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) LoadApplied(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT url FROM applied_urls ORDER BY rowid`)
	if err != nil {
		return nil, &Error{Op: "load applied", Path: s.path, Cause: err}
	}
	defer func() { _ = rows.Close() }()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, &Error{Op: "scan applied", Path: s.path, Cause: err}
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

func (s *SQLiteStore) MarkApplied(ctx context.Context, url string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO applied_urls (url, added_at) VALUES (?, ?)`,
		url, formatTime(time.Now()),
	)
	if err != nil {
		return &Error{Op: "mark applied", Path: s.path, Cause: err}
	}
	return nil
}

func (s *SQLiteStore) AppendApplied(ctx context.Context, rec types.AppliedRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO applied_log (url, title, company, portal, run_id, applied_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.URL, rec.Title, rec.Company, string(rec.Portal), rec.RunID, formatTime(rec.AppliedAt),
	)
	if err != nil {
		return &Error{Op: "append applied", Path: s.path, Cause: err}
	}
	return nil
}

func (s *SQLiteStore) AppendFailed(ctx context.Context, rec types.FailedRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO failed_log (url, title, company, portal, run_id, reason, failed_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.URL, rec.Title, rec.Company, string(rec.Portal), rec.RunID, rec.Reason, formatTime(rec.FailedAt),
	)
	if err != nil {
		return &Error{Op: "append failed", Path: s.path, Cause: err}
	}
	return nil
}

func (s *SQLiteStore) ListApplied(ctx context.Context) ([]types.AppliedRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT url, title, company, portal, run_id, applied_at FROM applied_log ORDER BY id`)
	if err != nil {
		return nil, &Error{Op: "list applied", Path: s.path, Cause: err}
	}
	defer func() { _ = rows.Close() }()

	records := []types.AppliedRecord{}
	for rows.Next() {
		var rec types.AppliedRecord
		var portal, at string
		if err := rows.Scan(&rec.URL, &rec.Title, &rec.Company, &portal, &rec.RunID, &at); err != nil {
			return nil, &Error{Op: "scan applied log", Path: s.path, Cause: err}
		}
		rec.Portal = types.Portal(portal)
		if rec.AppliedAt, err = parseTime(at); err != nil {
			return nil, &Error{Op: "scan applied log", Path: s.path, Cause: err}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) ListFailed(ctx context.Context) ([]types.FailedRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT url, title, company, portal, run_id, reason, failed_at FROM failed_log ORDER BY id`)
	if err != nil {
		return nil, &Error{Op: "list failed", Path: s.path, Cause: err}
	}
	defer func() { _ = rows.Close() }()

	records := []types.FailedRecord{}
	for rows.Next() {
		var rec types.FailedRecord
		var portal, at string
		if err := rows.Scan(&rec.URL, &rec.Title, &rec.Company, &portal, &rec.RunID, &rec.Reason, &at); err != nil {
			return nil, &Error{Op: "scan failed log", Path: s.path, Cause: err}
		}
		rec.Portal = types.Portal(portal)
		if rec.FailedAt, err = parseTime(at); err != nil {
			return nil, &Error{Op: "scan failed log", Path: s.path, Cause: err}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
