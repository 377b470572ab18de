// Package storage is the local SQLite cache of fetched time entries.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Tiliavir/ticket-timer/internal/model"
)

const dayLayout = "2006-01-02"

// Store is a cache database. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Day is one cached fetch of a source's entries.
type Day struct {
	Entries   []model.TimeEntry
	FetchedAt time.Time
}

// Open opens or creates the cache at path and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("storage error creating directories: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("storage error opening %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage error opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func migrations() []string {
	return []string{
		// entry_id is the position within the fetched day.
		`CREATE TABLE IF NOT EXISTS time_entries (
			source     TEXT    NOT NULL,
			agent      TEXT    NOT NULL,
			ticket     TEXT    NOT NULL,
			day        TEXT    NOT NULL,
			entry_id   INTEGER NOT NULL,
			url        TEXT    NOT NULL,
			billable   INTEGER NOT NULL DEFAULT 0,
			duration   INTEGER NOT NULL,
			note       TEXT    NOT NULL DEFAULT '',
			start      TEXT,
			updated_at TEXT,
			PRIMARY KEY (source, agent, ticket, day, entry_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_time_entries_day ON time_entries(source, agent, day)`,

		`CREATE TABLE IF NOT EXISTS fetches (
			source     TEXT NOT NULL,
			agent      TEXT NOT NULL,
			day        TEXT NOT NULL,
			fetched_at TEXT NOT NULL,
			PRIMARY KEY (source, agent, day)
		)`,
	}
}

func (s *Store) migrate() error {
	for _, m := range migrations() {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("storage error migrating schema: %w", err)
		}
	}
	return nil
}

// SaveDay replaces the snapshot of one source's day and records fetchedAt.
func (s *Store) SaveDay(ctx context.Context, source model.Source, agent string, day time.Time, entries []model.TimeEntry, fetchedAt time.Time) error {
	key := day.Format(dayLayout)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage error: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM time_entries WHERE source = ? AND agent = ? AND day = ?`,
		string(source), agent, key); err != nil {
		return fmt.Errorf("storage error clearing %s %s: %w", source, key, err)
	}
	for i, e := range entries {
		billable := 0
		if e.Billable {
			billable = 1
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO time_entries (source, agent, ticket, day, entry_id, url, billable, duration, note, start, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(source), agent, e.Ticket, key, i, e.URL, billable, int64(e.Duration), e.Note,
			formatTime(e.Start), formatTime(e.UpdatedAt)); err != nil {
			return fmt.Errorf("storage error saving %s %s: %w", source, key, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO fetches (source, agent, day, fetched_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(source, agent, day) DO UPDATE SET fetched_at = excluded.fetched_at`,
		string(source), agent, key, formatTime(fetchedAt)); err != nil {
		return fmt.Errorf("storage error recording fetch of %s %s: %w", source, key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage error: %w", err)
	}
	return nil
}

// LoadDay returns the cached snapshot of one source's day. The bool is false
// when the day was never fetched.
func (s *Store) LoadDay(ctx context.Context, source model.Source, agent string, day time.Time) (Day, bool, error) {
	key := day.Format(dayLayout)
	var fetched string
	err := s.db.QueryRowContext(ctx,
		`SELECT fetched_at FROM fetches WHERE source = ? AND agent = ? AND day = ?`,
		string(source), agent, key).Scan(&fetched)
	if err == sql.ErrNoRows {
		return Day{}, false, nil
	}
	if err != nil {
		return Day{}, false, fmt.Errorf("storage error reading %s %s: %w", source, key, err)
	}
	d := Day{FetchedAt: parseTime(fetched)}

	rows, err := s.db.QueryContext(ctx,
		`SELECT ticket, url, billable, duration, note, start, updated_at
		 FROM time_entries WHERE source = ? AND agent = ? AND day = ?
		 ORDER BY entry_id`,
		string(source), agent, key)
	if err != nil {
		return Day{}, false, fmt.Errorf("storage error reading %s %s: %w", source, key, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e              model.TimeEntry
			billable       int
			duration       int64
			start, updated sql.NullString
		)
		if err := rows.Scan(&e.Ticket, &e.URL, &billable, &duration, &e.Note, &start, &updated); err != nil {
			return Day{}, false, fmt.Errorf("storage error scanning %s %s: %w", source, key, err)
		}
		e.Source = source
		e.Agent = agent
		e.Billable = billable == 1
		e.Duration = time.Duration(duration)
		e.Start = parseTime(start.String)
		e.UpdatedAt = parseTime(updated.String)
		d.Entries = append(d.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return Day{}, false, fmt.Errorf("storage error reading %s %s: %w", source, key, err)
	}
	return d, true, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
