package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const memoryPath = ":memory:"

type Database struct {
	db *sql.DB
}

type SuggestionRecord struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"sessionId"`
	Persona     string    `json:"persona"`
	Query       string    `json:"query"`
	URL         string    `json:"url"`
	SuggestedAt time.Time `json:"suggestedAt"`
}

type MostSuggestedRecord struct {
	Query         string    `json:"query"`
	URL           string    `json:"url"`
	Count         int       `json:"count"`
	LastSuggested time.Time `json:"lastSuggested"`
}

// New opens the sqlite database at dbPath. ":memory:" keeps everything in
// process memory.
func New(dbPath string) (*Database, error) {
	if dbPath == "" {
		dbPath = memoryPath
	}

	if dbPath != memoryPath {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dbPath == memoryPath {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	d := &Database{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Infof("Database initialized at %s", dbPath)
	return d, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS audio_cache (
			query TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			resolved_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS song_suggestions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			persona TEXT NOT NULL,
			query TEXT NOT NULL,
			url TEXT NOT NULL DEFAULT '',
			suggested_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_song_suggestions_query ON song_suggestions(query)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	return nil
}

func cacheKey(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// GetCachedURL returns the URL resolved for query if it is younger than maxAge.
func (d *Database) GetCachedURL(query string, maxAge time.Duration) (string, bool) {
	var url, resolvedAt string
	err := d.db.QueryRow(
		`SELECT url, resolved_at FROM audio_cache WHERE query = ?`,
		cacheKey(query),
	).Scan(&url, &resolvedAt)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Warnf("failed to read audio cache for %q: %v", query, err)
		}
		return "", false
	}

	ts, ok := parseTimestamp(resolvedAt)
	if !ok || time.Since(ts) > maxAge {
		return "", false
	}
	return url, true
}

// CacheURL stores or refreshes the URL for query.
func (d *Database) CacheURL(query, url string) error {
	_, err := d.db.Exec(
		`INSERT OR REPLACE INTO audio_cache (query, url, resolved_at) VALUES (?, ?, ?)`,
		cacheKey(query), url, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to cache audio url: %w", err)
	}
	return nil
}

// RecordSuggestion logs a song MusicBot suggested. url is empty when no
// playable version was found.
func (d *Database) RecordSuggestion(sessionID, persona, query, url string) error {
	_, err := d.db.Exec(
		`INSERT INTO song_suggestions (session_id, persona, query, url, suggested_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sessionID, persona, query, url, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to record suggestion: %w", err)
	}
	return nil
}

// GetHistory returns the most recent suggestions across all sessions.
func (d *Database) GetHistory(limit int) ([]SuggestionRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := d.db.Query(
		`SELECT id, session_id, persona, query, url, suggested_at
		 FROM song_suggestions
		 ORDER BY id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []SuggestionRecord
	for rows.Next() {
		var r SuggestionRecord
		var suggestedAt string
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Persona, &r.Query, &r.URL, &suggestedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		r.SuggestedAt = mustParseTimestamp(suggestedAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetMostSuggested returns the songs suggested most often.
func (d *Database) GetMostSuggested(limit int) ([]MostSuggestedRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := d.db.Query(
		`SELECT query, MAX(url) as url, COUNT(*) as suggestion_count, MAX(suggested_at) as last_suggested, MAX(id) as last_id
		 FROM song_suggestions
		 GROUP BY query
		 ORDER BY suggestion_count DESC, last_id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query most suggested: %w", err)
	}
	defer rows.Close()

	var records []MostSuggestedRecord
	for rows.Next() {
		var r MostSuggestedRecord
		var lastSuggested string
		var lastID int64
		if err := rows.Scan(&r.Query, &r.URL, &r.Count, &lastSuggested, &lastID); err != nil {
			return nil, fmt.Errorf("failed to scan most suggested row: %w", err)
		}
		r.LastSuggested = mustParseTimestamp(lastSuggested)
		records = append(records, r)
	}
	return records, rows.Err()
}

var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func parseTimestamp(value string) (time.Time, bool) {
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func mustParseTimestamp(value string) time.Time {
	t, ok := parseTimestamp(value)
	if !ok {
		log.Warnf("failed to parse timestamp '%s' with all known formats", value)
		return time.Now() // Fall back to now rather than year 1
	}
	return t
}
