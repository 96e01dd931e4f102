// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pdiddy/docprep/pkg/types"
)

// TypeStats counts outcomes for one from→to pair.
type TypeStats struct {
	From      types.DocType `json:"from" yaml:"from"`
	To        types.DocType `json:"to" yaml:"to"`
	Succeeded int           `json:"succeeded" yaml:"succeeded"`
	Failed    int           `json:"failed" yaml:"failed"`
	Simulated int           `json:"simulated" yaml:"simulated"`
}

// Stats summarizes stored conversions.
type Stats struct {
	Total     int         `json:"total" yaml:"total"`
	Succeeded int         `json:"succeeded" yaml:"succeeded"`
	Failed    int         `json:"failed" yaml:"failed"`
	Simulated int         `json:"simulated" yaml:"simulated"`
	Units     int         `json:"units" yaml:"units"`
	First     time.Time   `json:"first,omitzero" yaml:"first,omitempty"`
	Last      time.Time   `json:"last,omitzero" yaml:"last,omitempty"`
	ByType    []TypeStats `json:"by_type" yaml:"by_type"`
}

// SuccessRate returns the share of executed conversions that succeeded.
// Simulated records are not executed and do not count.
func (s Stats) SuccessRate() float64 {
	ran := s.Succeeded + s.Failed
	if ran == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(ran)
}

// Stats aggregates the entries matching f. Limit is ignored.
func (s *Store) Stats(ctx context.Context, f Filter) (Stats, error) {
	f.Limit = 0
	where, args := f.where()

	var (
		st          Stats
		first, last *string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*),
			coalesce(sum(success), 0),
			coalesce(sum(CASE WHEN success = 0 AND simulated = 0 THEN 1 ELSE 0 END), 0),
			coalesce(sum(simulated), 0),
			count(DISTINCT unit),
			min(timestamp), max(timestamp)
		FROM conversions`+where, args...,
	).Scan(&st.Total, &st.Succeeded, &st.Failed, &st.Simulated, &st.Units, &first, &last)
	if err != nil {
		return Stats{}, fmt.Errorf("aggregating conversions: %w", err)
	}
	if first != nil {
		st.First, _ = time.Parse(timeLayout, *first)
	}
	if last != nil {
		st.Last, _ = time.Parse(timeLayout, *last)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT from_type, coalesce(to_type, ''),
			sum(success),
			sum(CASE WHEN success = 0 AND simulated = 0 THEN 1 ELSE 0 END),
			sum(simulated)
		FROM conversions`+where+`
		GROUP BY from_type, to_type
		ORDER BY from_type, to_type`, args...)
	if err != nil {
		return Stats{}, fmt.Errorf("grouping conversions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ts       TypeStats
			from, to string
		)
		if err := rows.Scan(&from, &to, &ts.Succeeded, &ts.Failed, &ts.Simulated); err != nil {
			return Stats{}, fmt.Errorf("scanning type stats: %w", err)
		}
		ts.From, ts.To = types.DocType(from), types.DocType(to)
		st.ByType = append(st.ByType, ts)
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("iterating type stats: %w", err)
	}
	return st, nil
}
