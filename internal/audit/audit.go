// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package audit keeps the append-only trail of conversion attempts. The
// logger is safe for concurrent use; appends are serialized and every read
// returns a consistent snapshot.
package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/docprep/pkg/types"
)

// Logger accumulates ConversionRecords in the order they were recorded.
type Logger struct {
	mu      sync.Mutex
	records []types.ConversionRecord

	log *zap.Logger
	now func() time.Time
}

// Option configures a Logger.
type Option func(*Logger)

// WithZap mirrors every recorded attempt to a structured logger.
func WithZap(l *zap.Logger) Option {
	return func(a *Logger) {
		if l != nil {
			a.log = l
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Logger) {
		if now != nil {
			a.now = now
		}
	}
}

// New returns an empty Logger.
func New(opts ...Option) *Logger {
	a := &Logger{
		log: zap.NewNop(),
		now: time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Record appends rec and returns it as stored. A missing ID is filled with
// a UUIDv7, a zero Timestamp with the current UTC time.
func (a *Logger) Record(rec types.ConversionRecord) types.ConversionRecord {
	if rec.ID == "" {
		rec.ID = newID()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = a.now().UTC()
	}

	a.mu.Lock()
	a.records = append(a.records, rec)
	a.mu.Unlock()

	fields := []zap.Field{
		zap.String("id", rec.ID),
		zap.String("unit", rec.Unit),
		zap.String("source", rec.SourcePath),
		zap.String("from", string(rec.FromType)),
		zap.String("to", string(rec.ToType)),
		zap.Bool("simulated", rec.Simulated),
		zap.Duration("duration", rec.Duration),
	}
	if rec.Success || rec.Simulated {
		a.log.Info("conversion recorded", fields...)
	} else {
		a.log.Warn("conversion failed", append(fields, zap.String("error", rec.Error))...)
	}
	return rec
}

// Records returns a copy of every record in insertion order.
func (a *Logger) Records() []types.ConversionRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.records)
}

// All iterates over a snapshot taken when iteration starts.
func (a *Logger) All() iter.Seq[types.ConversionRecord] {
	return func(yield func(types.ConversionRecord) bool) {
		for _, r := range a.Records() {
			if !yield(r) {
				return
			}
		}
	}
}

// Len returns the number of records.
func (a *Logger) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}

// Failures returns the records of attempts that ran and did not succeed.
func (a *Logger) Failures() []types.ConversionRecord {
	var out []types.ConversionRecord
	for r := range a.All() {
		if !r.Success && !r.Simulated {
			out = append(out, r)
		}
	}
	return out
}

// Entries flattens the trail into the stream consumed by the document store.
func (a *Logger) Entries() []types.StoreEntry {
	recs := a.Records()
	out := make([]types.StoreEntry, len(recs))
	for i, r := range recs {
		out[i] = r.Entry()
	}
	return out
}

// WriteJSONL writes one JSON object per record.
func (a *Logger) WriteJSONL(w io.Writer) error {
	enc := json.NewEncoder(w)
	for r := range a.All() {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding audit record %s: %w", r.ID, err)
		}
	}
	return nil
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
