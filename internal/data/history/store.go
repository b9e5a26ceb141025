// Package history persists per-file analysis outcomes. The realtime
// pipeline itself is deliberately non-persistent (pending work is lost
// on restart); this store only records completed results for trend
// queries.
package history

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// Entry is one recorded analysis outcome.
type Entry struct {
	Path       string
	Language   string
	Score      int
	IssueCount int
	ChangeType string
	Timestamp  time.Time
}

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL reduce lock conflicts during watch-mode churn.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS analyses (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  path TEXT NOT NULL,
  language TEXT NOT NULL DEFAULT '',
  score INTEGER NOT NULL,
  issue_count INTEGER NOT NULL,
  change_type TEXT NOT NULL DEFAULT '',
  ts_utc TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analyses_path ON analyses(path);
CREATE INDEX IF NOT EXISTS idx_analyses_ts ON analyses(ts_utc);
`)
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save records one analysis outcome.
func (s *Store) Save(entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	return s.withRetry("save analysis", func() error {
		_, err := s.db.Exec(
			`INSERT INTO analyses (path, language, score, issue_count, change_type, ts_utc) VALUES (?, ?, ?, ?, ?, ?)`,
			entry.Path,
			entry.Language,
			entry.Score,
			entry.IssueCount,
			entry.ChangeType,
			entry.Timestamp.UTC().Format(time.RFC3339Nano),
		)
		return err
	})
}

// Recent returns the latest entries for one path, newest first.
func (s *Store) Recent(path string, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}

	var rows *sql.Rows
	err := s.withRetry("load analyses", func() error {
		var qErr error
		rows, qErr = s.db.Query(
			`SELECT path, language, score, issue_count, change_type, ts_utc
			 FROM analyses WHERE path = ? ORDER BY ts_utc DESC LIMIT ?`,
			path, limit,
		)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var entry Entry
		var tsRaw string
		if err := rows.Scan(&entry.Path, &entry.Language, &entry.Score, &entry.IssueCount, &entry.ChangeType, &tsRaw); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, tsRaw); err == nil {
			entry.Timestamp = ts
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) withRetry(operation string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !strings.Contains(strings.ToLower(err.Error()), "lock") {
			return err
		}
		slog.Debug("sqlite busy, retrying", "operation", operation, "attempt", attempt)
		time.Sleep(time.Duration(attempt) * 20 * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", operation, err)
}
