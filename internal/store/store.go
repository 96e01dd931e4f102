// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists conversion records in SQLite for later statistics,
// export, and cleanup. The conversion engine never depends on it; callers
// feed it the entries produced by the audit log.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/docprep/pkg/types"
)

const (
	dbFile = "docprep.db"

	// timeLayout is fixed-width so that stored timestamps sort as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Store manages the document store SQLite database.
type Store struct {
	db  *sql.DB
	dir string
}

// Open opens or creates the database at cfg.Dir/docprep.db and creates the
// schema if it does not exist.
func Open(cfg types.StoreConfig) (*Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, dbFile)+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dir: dir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, dbFile)
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversions (
			id TEXT PRIMARY KEY,
			unit TEXT NOT NULL,
			cycle INTEGER NOT NULL,
			protocol_date TEXT NOT NULL,
			file TEXT NOT NULL,
			from_type TEXT NOT NULL,
			to_type TEXT,
			sha256 TEXT,
			success INTEGER NOT NULL,
			simulated INTEGER NOT NULL,
			error TEXT,
			timestamp TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversions_unit ON conversions(unit)`,
		`CREATE INDEX IF NOT EXISTS idx_conversions_date ON conversions(protocol_date)`,
		`CREATE INDEX IF NOT EXISTS idx_conversions_timestamp ON conversions(timestamp)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// IngestSummary holds counts from an ingest run.
type IngestSummary struct {
	Inserted  int
	Duplicate int
	Failed    int
}

// Total returns the number of entries processed.
func (s IngestSummary) Total() int {
	return s.Inserted + s.Duplicate + s.Failed
}

// Ingest inserts entries in one transaction. Entries already present (same
// ID) are counted as duplicates and left unchanged, so re-ingesting an
// audit log is harmless. Entries without an ID are rejected.
func (s *Store) Ingest(ctx context.Context, entries []types.StoreEntry, w io.Writer) (IngestSummary, error) {
	var summary IngestSummary

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return summary, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO conversions
			(id, unit, cycle, protocol_date, file, from_type, to_type, sha256, success, simulated, error, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return summary, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if e.ID == "" {
			fmt.Fprintf(w, "failed  %s: missing id\n", e.File)
			summary.Failed++
			continue
		}
		res, err := stmt.ExecContext(ctx,
			e.ID, e.Unit, e.Cycle, e.ProtocolDate, e.File,
			string(e.FromType), string(e.ToType), e.SHA256,
			e.Success, e.Simulated, e.Error, formatTime(e.Timestamp),
		)
		if err != nil {
			return summary, fmt.Errorf("inserting %s: %w", e.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			summary.Duplicate++
			continue
		}
		summary.Inserted++
	}

	if err := tx.Commit(); err != nil {
		return IngestSummary{}, fmt.Errorf("committing ingest: %w", err)
	}

	fmt.Fprintf(w, "inserted: %d, duplicate: %d, failed: %d\n",
		summary.Inserted, summary.Duplicate, summary.Failed)
	return summary, nil
}

// Get returns the entry with the given ID.
func (s *Store) Get(ctx context.Context, id string) (types.StoreEntry, error) {
	rows, err := s.db.QueryContext(ctx, selectEntries+` WHERE id = ?`, id)
	if err != nil {
		return types.StoreEntry{}, fmt.Errorf("querying %s: %w", id, err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return types.StoreEntry{}, err
	}
	if len(entries) == 0 {
		return types.StoreEntry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return entries[0], nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}
