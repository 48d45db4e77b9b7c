package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonathan/autoapply/internal/types"
)

// File names used by FileStore inside its directory.
const (
	AppliedJobsFile = "applied_jobs.txt"
	AppliedLogFile  = "applied_log.json"
	FailedLogFile   = "failed_log.json"
)

// FileStore keeps the applied index as a newline-delimited text file and each
// outcome log as a JSON array that is rewritten in full on every append.
type FileStore struct {
	appliedPath    string
	appliedLogPath string
	failedLogPath  string
	log            *slog.Logger
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &Error{Op: "mkdir", Path: dir, Cause: err}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{
		appliedPath:    filepath.Join(dir, AppliedJobsFile),
		appliedLogPath: filepath.Join(dir, AppliedLogFile),
		failedLogPath:  filepath.Join(dir, FailedLogFile),
		log:            logger.With("component", "store"),
	}, nil
}

func (s *FileStore) LoadApplied(_ context.Context) ([]string, error) {
	f, err := os.Open(s.appliedPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &Error{Op: "open", Path: s.appliedPath, Cause: err}
	}
	defer func() { _ = f.Close() }()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			urls = append(urls, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &Error{Op: "read", Path: s.appliedPath, Cause: err}
	}
	return urls, nil
}

func (s *FileStore) MarkApplied(_ context.Context, url string) error {
	f, err := os.OpenFile(s.appliedPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &Error{Op: "open", Path: s.appliedPath, Cause: err}
	}
	if _, err := f.WriteString(url + "\n"); err != nil {
		_ = f.Close()
		return &Error{Op: "append", Path: s.appliedPath, Cause: err}
	}
	if err := f.Close(); err != nil {
		return &Error{Op: "close", Path: s.appliedPath, Cause: err}
	}
	return nil
}

func (s *FileStore) AppendApplied(_ context.Context, rec types.AppliedRecord) error {
	return appendJSON(s.appliedLogPath, rec, s.log)
}

func (s *FileStore) AppendFailed(_ context.Context, rec types.FailedRecord) error {
	return appendJSON(s.failedLogPath, rec, s.log)
}

func (s *FileStore) ListApplied(_ context.Context) ([]types.AppliedRecord, error) {
	return readJSON[types.AppliedRecord](s.appliedLogPath, s.log)
}

func (s *FileStore) ListFailed(_ context.Context) ([]types.FailedRecord, error) {
	return readJSON[types.FailedRecord](s.failedLogPath, s.log)
}

func (s *FileStore) Close() error {
	return nil
}

// readJSON loads a JSON array. A missing file is empty; unparseable content is
// logged and treated as empty.
func readJSON[T any](path string, log *slog.Logger) ([]T, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return []T{}, nil
	}
	if err != nil {
		return nil, &Error{Op: "read", Path: path, Cause: err}
	}

	entries := []T{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Warn("outcome log is corrupt, starting from an empty log", "path", path, "error", err)
		return []T{}, nil
	}
	return entries, nil
}

// appendJSON reads the whole array, appends entry and rewrites the file.
func appendJSON[T any](path string, entry T, log *slog.Logger) error {
	entries, err := readJSON[T](path, log)
	if err != nil {
		return err
	}
	entries = append(entries, entry)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return &Error{Op: "encode", Path: path, Cause: err}
	}
	return writeAtomic(path, data)
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &Error{Op: "write", Path: tmp, Cause: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return &Error{Op: "rename", Path: path, Cause: err}
	}
	return nil
}
