// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CleanupOptions selects entries to delete. At least one criterion is
// required; criteria combine with AND.
type CleanupOptions struct {
	// ProtocolDate deletes entries of one protocol date.
	ProtocolDate string

	// Before deletes entries recorded before this instant.
	Before time.Time

	// SimulatedOnly restricts deletion to dry-run records.
	SimulatedOnly bool

	// DryRun counts matching entries without deleting them.
	DryRun bool
}

// Cleanup deletes matching entries and returns how many matched.
func (s *Store) Cleanup(ctx context.Context, opts CleanupOptions) (int64, error) {
	var (
		clauses []string
		args    []any
	)
	if opts.ProtocolDate != "" {
		clauses = append(clauses, "protocol_date = ?")
		args = append(args, opts.ProtocolDate)
	}
	if !opts.Before.IsZero() {
		clauses = append(clauses, "timestamp < ?")
		args = append(args, formatTime(opts.Before))
	}
	if opts.SimulatedOnly {
		clauses = append(clauses, "simulated = 1")
	}
	if len(clauses) == 0 {
		return 0, errors.New("cleanup needs a protocol date, a cutoff time, or simulated-only")
	}
	where := " WHERE " + strings.Join(clauses, " AND ")

	if opts.DryRun {
		var n int64
		if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM conversions`+where, args...).Scan(&n); err != nil {
			return 0, fmt.Errorf("counting cleanup candidates: %w", err)
		}
		return n, nil
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM conversions`+where, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting conversions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted rows: %w", err)
	}
	return n, nil
}
