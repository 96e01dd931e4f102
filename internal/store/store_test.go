// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/docprep/pkg/types"
)

// --- test helpers ---

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(types.StoreConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var baseTime = time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

func entry(id, unit, date string, from, to types.DocType, success, simulated bool, offset time.Duration) types.StoreEntry {
	e := types.StoreEntry{
		ID:           id,
		Unit:         unit,
		Cycle:        1,
		ProtocolDate: date,
		File:         "/units/" + unit + "/" + id + "." + string(from),
		FromType:     from,
		ToType:       to,
		SHA256:       "deadbeef",
		Success:      success,
		Simulated:    simulated,
		Timestamp:    baseTime.Add(offset),
	}
	if !success && !simulated {
		e.Error = "soffice exited 1"
	}
	return e
}

func sampleEntries() []types.StoreEntry {
	return []types.StoreEntry{
		entry("r1", "u1", "2024-03-15", types.TypeDOC, types.TypeDOCX, true, false, 0),
		entry("r2", "u1", "2024-03-15", types.TypeDOC, types.TypeDOCX, false, false, time.Minute),
		entry("r3", "u2", "2024-03-15", types.TypeXLS, types.TypeXLSX, true, false, 2*time.Minute),
		entry("r4", "u3", "2024-04-01", types.TypePPT, types.TypePPTX, false, true, 48*time.Hour),
	}
}

func ingest(t *testing.T, s *Store, entries []types.StoreEntry) IngestSummary {
	t.Helper()
	var log bytes.Buffer
	sum, err := s.Ingest(context.Background(), entries, &log)
	require.NoError(t, err)
	return sum
}

// --- tests ---

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(types.StoreConfig{Dir: dir})
	require.NoError(t, err)
	assert.FileExists(t, s.Path())
	require.NoError(t, s.Close())

	// Reopening an existing database keeps the schema.
	s, err = Open(types.StoreConfig{Dir: dir})
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Query(context.Background(), Filter{})
	assert.NoError(t, err)
}

func TestIngest(t *testing.T) {
	s := testStore(t)

	sum := ingest(t, s, sampleEntries())
	assert.Equal(t, IngestSummary{Inserted: 4}, sum)

	again := ingest(t, s, sampleEntries())
	assert.Equal(t, IngestSummary{Duplicate: 4}, again, "re-ingesting is harmless")

	var log bytes.Buffer
	noID := entry("", "u9", "2024-03-15", types.TypeDOC, types.TypeDOCX, true, false, 0)
	sum, err := s.Ingest(context.Background(), []types.StoreEntry{noID}, &log)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	assert.Contains(t, log.String(), "missing id")
	assert.Equal(t, 1, sum.Total())
}

func TestGet(t *testing.T) {
	s := testStore(t)
	ingest(t, s, sampleEntries())

	got, err := s.Get(context.Background(), "r2")
	require.NoError(t, err)
	want := sampleEntries()[1]
	assert.Equal(t, want, got, "round trip through SQLite preserves every field")

	_, err = s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQuery_Filters(t *testing.T) {
	s := testStore(t)
	ingest(t, s, sampleEntries())

	tests := []struct {
		name    string
		filter  Filter
		wantIDs []string
	}{
		{"all in time order", Filter{}, []string{"r1", "r2", "r3", "r4"}},
		{"by unit", Filter{Unit: "u1"}, []string{"r1", "r2"}},
		{"by date", Filter{ProtocolDate: "2024-04-01"}, []string{"r4"}},
		{"by cycle", Filter{Cycle: 2}, nil},
		{"failed only excludes simulated", Filter{FailedOnly: true}, []string{"r2"}},
		{"limit", Filter{Limit: 2}, []string{"r1", "r2"}},
		{"combined", Filter{Unit: "u1", FailedOnly: true}, []string{"r2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Query(context.Background(), tt.filter)
			require.NoError(t, err)
			var ids []string
			for _, e := range got {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestStats(t *testing.T) {
	s := testStore(t)

	empty, err := s.Stats(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.Zero(t, empty.SuccessRate())
	assert.True(t, empty.First.IsZero())

	ingest(t, s, sampleEntries())
	st, err := s.Stats(context.Background(), Filter{})
	require.NoError(t, err)

	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 2, st.Succeeded)
	assert.Equal(t, 1, st.Failed)
	assert.Equal(t, 1, st.Simulated)
	assert.Equal(t, 3, st.Units)
	assert.InDelta(t, 2.0/3.0, st.SuccessRate(), 1e-9)
	assert.Equal(t, baseTime, st.First)
	assert.Equal(t, baseTime.Add(48*time.Hour), st.Last)

	assert.Equal(t, []TypeStats{
		{From: types.TypeDOC, To: types.TypeDOCX, Succeeded: 1, Failed: 1},
		{From: types.TypePPT, To: types.TypePPTX, Simulated: 1},
		{From: types.TypeXLS, To: types.TypeXLSX, Succeeded: 1},
	}, st.ByType)

	byDate, err := s.Stats(context.Background(), Filter{ProtocolDate: "2024-03-15"})
	require.NoError(t, err)
	assert.Equal(t, 3, byDate.Total)
	assert.Equal(t, 2, byDate.Units)
}

func TestExport(t *testing.T) {
	s := testStore(t)
	ingest(t, s, sampleEntries())

	var jsonBuf bytes.Buffer
	require.NoError(t, s.ExportJSON(context.Background(), Filter{Unit: "u1"}, &jsonBuf))
	var fromJSON Export
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &fromJSON))
	require.Len(t, fromJSON.Entries, 2)
	assert.Equal(t, "r1", fromJSON.Entries[0].ID)
	assert.Equal(t, 2, fromJSON.Stats.Total)

	var yamlBuf bytes.Buffer
	require.NoError(t, s.ExportYAML(context.Background(), Filter{}, &yamlBuf))
	var fromYAML Export
	require.NoError(t, yaml.Unmarshal(yamlBuf.Bytes(), &fromYAML))
	assert.Len(t, fromYAML.Entries, 4)
	assert.Equal(t, types.TypePPTX, fromYAML.Entries[3].ToType)

	var emptyBuf bytes.Buffer
	require.NoError(t, s.ExportJSON(context.Background(), Filter{Unit: "nobody"}, &emptyBuf))
	assert.Contains(t, emptyBuf.String(), `"entries": []`)
}

func TestCleanup(t *testing.T) {
	tests := []struct {
		name      string
		opts      CleanupOptions
		wantN     int64
		remaining int
	}{
		{"by protocol date", CleanupOptions{ProtocolDate: "2024-03-15"}, 3, 1},
		{"before cutoff", CleanupOptions{Before: baseTime.Add(90 * time.Second)}, 2, 2},
		{"simulated only", CleanupOptions{SimulatedOnly: true}, 1, 3},
		{"dry run counts only", CleanupOptions{ProtocolDate: "2024-03-15", DryRun: true}, 3, 4},
		{"combined criteria", CleanupOptions{ProtocolDate: "2024-03-15", Before: baseTime.Add(30 * time.Second)}, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testStore(t)
			ingest(t, s, sampleEntries())

			n, err := s.Cleanup(context.Background(), tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.wantN, n)

			left, err := s.Query(context.Background(), Filter{})
			require.NoError(t, err)
			assert.Len(t, left, tt.remaining)
		})
	}
}

func TestCleanup_RequiresCriterion(t *testing.T) {
	s := testStore(t)
	ingest(t, s, sampleEntries())

	_, err := s.Cleanup(context.Background(), CleanupOptions{DryRun: true})
	assert.Error(t, err)

	left, err := s.Query(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, left, 4)
}
