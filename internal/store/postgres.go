package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/autoapply/internal/types"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS applied_urls (
	url      TEXT PRIMARY KEY,
	added_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS applied_log (
	id         BIGSERIAL PRIMARY KEY,
	url        TEXT NOT NULL,
	title      TEXT NOT NULL,
	company    TEXT NOT NULL,
	portal     TEXT NOT NULL DEFAULT '',
	run_id     TEXT NOT NULL DEFAULT '',
	applied_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS failed_log (
	id        BIGSERIAL PRIMARY KEY,
	url       TEXT NOT NULL,
	title     TEXT NOT NULL,
	company   TEXT NOT NULL,
	portal    TEXT NOT NULL DEFAULT '',
	run_id    TEXT NOT NULL DEFAULT '',
	reason    TEXT NOT NULL,
	failed_at TIMESTAMPTZ NOT NULL
);`

// PostgresStore keeps the index and logs in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres establishes a connection pool and applies the schema.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, &Error{Op: "migrate", Cause: err}
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) LoadApplied(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT url FROM applied_urls ORDER BY added_at, url`)
	if err != nil {
		return nil, &Error{Op: "load applied", Cause: err}
	}
	urls, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, &Error{Op: "load applied", Cause: err}
	}
	return urls, nil
}

func (s *PostgresStore) MarkApplied(ctx context.Context, url string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO applied_urls (url) VALUES ($1) ON CONFLICT (url) DO NOTHING`,
		url,
	)
	if err != nil {
		return &Error{Op: "mark applied", Cause: err}
	}
	return nil
}

func (s *PostgresStore) AppendApplied(ctx context.Context, rec types.AppliedRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO applied_log (url, title, company, portal, run_id, applied_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.URL, rec.Title, rec.Company, string(rec.Portal), rec.RunID, rec.AppliedAt,
	)
	if err != nil {
		return &Error{Op: "append applied", Cause: err}
	}
	return nil
}

func (s *PostgresStore) AppendFailed(ctx context.Context, rec types.FailedRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO failed_log (url, title, company, portal, run_id, reason, failed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.URL, rec.Title, rec.Company, string(rec.Portal), rec.RunID, rec.Reason, rec.FailedAt,
	)
	if err != nil {
		return &Error{Op: "append failed", Cause: err}
	}
	return nil
}

func (s *PostgresStore) ListApplied(ctx context.Context) ([]types.AppliedRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT url, title, company, portal, run_id, applied_at FROM applied_log ORDER BY id`)
	if err != nil {
		return nil, &Error{Op: "list applied", Cause: err}
	}
	defer rows.Close()

	records := []types.AppliedRecord{}
	for rows.Next() {
		var rec types.AppliedRecord
		var portal string
		if err := rows.Scan(&rec.URL, &rec.Title, &rec.Company, &portal, &rec.RunID, &rec.AppliedAt); err != nil {
			return nil, &Error{Op: "scan applied log", Cause: err}
		}
		rec.Portal = types.Portal(portal)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) ListFailed(ctx context.Context) ([]types.FailedRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT url, title, company, portal, run_id, reason, failed_at FROM failed_log ORDER BY id`)
	if err != nil {
		return nil, &Error{Op: "list failed", Cause: err}
	}
	defer rows.Close()

	records := []types.FailedRecord{}
	for rows.Next() {
		var rec types.FailedRecord
		var portal string
		if err := rows.Scan(&rec.URL, &rec.Title, &rec.Company, &portal, &rec.RunID, &rec.Reason, &rec.FailedAt); err != nil {
			return nil, &Error{Op: "scan failed log", Cause: err}
		}
		rec.Portal = types.Portal(portal)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
