// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/docprep/pkg/types"
)

const selectEntries = `SELECT id, unit, cycle, protocol_date, file, from_type, to_type,
	sha256, success, simulated, error, timestamp FROM conversions`

// Filter narrows queries, statistics, and exports. Zero fields match
// everything.
type Filter struct {
	Unit         string
	Cycle        int
	ProtocolDate string

	// FailedOnly keeps attempts that ran and did not succeed.
	FailedOnly bool

	// Limit caps the number of rows. Zero means no limit.
	Limit int
}

func (f Filter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.Unit != "" {
		clauses = append(clauses, "unit = ?")
		args = append(args, f.Unit)
	}
	if f.Cycle > 0 {
		clauses = append(clauses, "cycle = ?")
		args = append(args, f.Cycle)
	}
	if f.ProtocolDate != "" {
		clauses = append(clauses, "protocol_date = ?")
		args = append(args, f.ProtocolDate)
	}
	if f.FailedOnly {
		clauses = append(clauses, "success = 0 AND simulated = 0")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Query returns matching entries ordered by timestamp, then ID.
func (s *Store) Query(ctx context.Context, f Filter) ([]types.StoreEntry, error) {
	where, args := f.where()
	q := selectEntries + where + ` ORDER BY timestamp, id`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying conversions: %w", err)
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]types.StoreEntry, error) {
	defer rows.Close()

	var out []types.StoreEntry
	for rows.Next() {
		var (
			e       types.StoreEntry
			from    string
			to      sql.NullString
			sha     sql.NullString
			errText sql.NullString
			stamp   string
		)
		if err := rows.Scan(&e.ID, &e.Unit, &e.Cycle, &e.ProtocolDate, &e.File,
			&from, &to, &sha, &e.Success, &e.Simulated, &errText, &stamp); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		e.FromType = types.DocType(from)
		e.ToType = types.DocType(to.String)
		e.SHA256 = sha.String
		e.Error = errText.String
		ts, err := time.Parse(timeLayout, stamp)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp of %s: %w", e.ID, err)
		}
		e.Timestamp = ts
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}
