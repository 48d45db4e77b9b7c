// Package store persists the applied-listing index and the applied/failed
// outcome logs. A single process is assumed to own the store at a time.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jonathan/autoapply/internal/types"
)

// Supported drivers.
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// AppliedIndex is the persisted set of listing URLs already applied to.
type AppliedIndex interface {
	// LoadApplied returns every URL ever marked, in insertion order.
	LoadApplied(ctx context.Context) ([]string, error)
	// MarkApplied appends url. Existing entries are never rewritten.
	MarkApplied(ctx context.Context, url string) error
}

// OutcomeLog is the append-only record of applied and failed listings.
type OutcomeLog interface {
	AppendApplied(ctx context.Context, rec types.AppliedRecord) error
	AppendFailed(ctx context.Context, rec types.FailedRecord) error
	ListApplied(ctx context.Context) ([]types.AppliedRecord, error)
	ListFailed(ctx context.Context) ([]types.FailedRecord, error)
}

// Store bundles the index and logs of one backend.
type Store interface {
	AppliedIndex
	OutcomeLog
	Close() error
}

// Error represents a storage failure.
type Error struct {
	Op    string
	Path  string
	Cause error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Cause)
	}
	return fmt.Sprintf("store %s: %v", e.Op, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Config selects and configures a backend.
type Config struct {
	Driver      string
	Dir         string
	DatabaseURL string
	Logger      *slog.Logger
}

// SQLiteFile is the database file name used when no DatabaseURL is given.
const SQLiteFile = "autoapply.db"

// Open returns the configured backend. An empty driver means DriverFile.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Dir == "" {
		cfg.Dir = "."
	}

	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "", DriverFile:
		s, err = NewFileStore(cfg.Dir, cfg.Logger)
	case DriverSQLite:
		path := cfg.DatabaseURL
		if path == "" {
			if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
				return nil, &Error{Op: "mkdir", Path: cfg.Dir, Cause: err}
			}
			path = filepath.Join(cfg.Dir, SQLiteFile)
		}
		s, err = OpenSQLite(ctx, path)
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres store requires a database URL")
		}
		s, err = OpenPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// AppliedSet is the in-memory view of an AppliedIndex for one run.
type AppliedSet struct {
	index AppliedIndex
	urls  map[string]struct{}
}

// LoadAppliedSet reads index in full.
func LoadAppliedSet(ctx context.Context, index AppliedIndex) (*AppliedSet, error) {
	urls, err := index.LoadApplied(ctx)
	if err != nil {
		return nil, err
	}
	set := &AppliedSet{index: index, urls: make(map[string]struct{}, len(urls))}
	for _, u := range urls {
		set.urls[u] = struct{}{}
	}
	return set, nil
}

// Contains reports whether url was applied to in this or an earlier run.
func (s *AppliedSet) Contains(url string) bool {
	_, ok := s.urls[url]
	return ok
}

// Add persists url and then records it in memory. Adding a present url is a no-op.
func (s *AppliedSet) Add(ctx context.Context, url string) error {
	if s.Contains(url) {
		return nil
	}
	if err := s.index.MarkApplied(ctx, url); err != nil {
		return err
	}
	s.urls[url] = struct{}{}
	return nil
}

// Len returns the number of known URLs.
func (s *AppliedSet) Len() int {
	return len(s.urls)
}
