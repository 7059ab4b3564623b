// Package querylog keeps a SQLite log of executed searches.
package querylog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

// Entry is one logged search page.
type Entry struct {
	Date       string   `json:"date"`
	Corpus     string   `json:"corpus"`
	Components []string `json:"components"`
	Pattern    string   `json:"pattern"`
	Hits       int      `json:"hits"`
}

// Totals aggregates the log of one corpus.
type Totals struct {
	Searches int64 `json:"searches"`
	Hits     int64 `json:"hits"`
}

// Store manages SQLite persistence for the search log.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// DefaultPath returns ~/.treesearch/searches.db.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".treesearch", "searches.db"), nil
}

// NewStore opens the log at dbPath, or at DefaultPath when dbPath is empty.
// The directory and database file are created if they don't exist.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		var err error
		if dbPath, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// the log is written by concurrent requests
	db.SetMaxOpenConns(1)

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS searches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL,
			corpus TEXT NOT NULL,
			components TEXT NOT NULL,
			pattern TEXT NOT NULL,
			hits INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS searches_corpus_date ON searches (corpus, date);
	`
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// RecordSearch appends one search page to the log with today's date.
func (s *Store) RecordSearch(ctx context.Context, corpus string, components []string, pattern string, hits int) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO searches (date, corpus, components, pattern, hits) VALUES (?, ?, ?, ?, ?)",
		s.now().Format(dateLayout), corpus, strings.Join(components, ","), pattern, hits,
	)
	if err != nil {
		return fmt.Errorf("failed to record search: %w", err)
	}
	return nil
}

// Totals returns the number of searches and hits per corpus.
func (s *Store) Totals(ctx context.Context) (map[string]Totals, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT corpus, COUNT(*), COALESCE(SUM(hits), 0) FROM searches GROUP BY corpus",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}
	defer rows.Close()

	result := make(map[string]Totals)
	for rows.Next() {
		var corpus string
		var t Totals
		if err := rows.Scan(&corpus, &t.Searches, &t.Hits); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result[corpus] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return result, nil
}

// CountByDate returns the number of searches of a corpus on date (YYYY-MM-DD).
func (s *Store) CountByDate(ctx context.Context, corpus, date string) (int64, error) {
	var count int64
	row := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM searches WHERE corpus = ? AND date = ?",
		corpus, date,
	)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get count: %w", err)
	}
	return count, nil
}

// Recent returns the last limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT date, corpus, components, pattern, hits FROM searches ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent searches: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var components string
		if err := rows.Scan(&e.Date, &e.Corpus, &components, &e.Pattern, &e.Hits); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if components != "" {
			e.Components = strings.Split(components, ",")
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return entries, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
