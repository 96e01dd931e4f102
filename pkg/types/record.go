// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ConversionRecord is one conversion attempt (real or simulated). Records
// are append-only once handed to the audit logger.
type ConversionRecord struct {
	// ID is a UUIDv7 assigned by the audit logger when empty.
	ID string `json:"id" yaml:"id"`

	// Unit is the unit directory name.
	Unit string `json:"unit" yaml:"unit"`

	// Cycle is the processing round.
	Cycle int `json:"cycle" yaml:"cycle"`

	// ProtocolDate is the YYYY-MM-DD date of the cycle.
	ProtocolDate string `json:"protocol_date" yaml:"protocol_date"`

	// SourcePath is the file that was (or would be) converted.
	SourcePath string `json:"source_path" yaml:"source_path"`

	// TargetPath is the produced file. Empty when simulated or failed.
	TargetPath string `json:"target_path,omitempty" yaml:"target_path,omitempty"`

	FromType DocType `json:"from_type" yaml:"from_type"`
	ToType   DocType `json:"to_type" yaml:"to_type"`

	// SHA256 is the digest of the source content at detection time.
	SHA256 string `json:"sha256" yaml:"sha256"`

	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	// Success is true only for conversions that actually produced output.
	Success bool `json:"success" yaml:"success"`

	// Simulated marks dry-run records; the backend was not invoked.
	Simulated bool `json:"simulated,omitempty" yaml:"simulated,omitempty"`

	// Error holds the captured failure. Empty when none.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// Duration is the wall time spent in the backend.
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// StoreEntry is the flattened form of a ConversionRecord consumed by the
// document store.
type StoreEntry struct {
	ID           string    `json:"id" yaml:"id"`
	Unit         string    `json:"unit" yaml:"unit"`
	Cycle        int       `json:"cycle" yaml:"cycle"`
	ProtocolDate string    `json:"protocol_date" yaml:"protocol_date"`
	File         string    `json:"file" yaml:"file"`
	FromType     DocType   `json:"from_type" yaml:"from_type"`
	ToType       DocType   `json:"to_type" yaml:"to_type"`
	SHA256       string    `json:"sha256" yaml:"sha256"`
	Success      bool      `json:"success" yaml:"success"`
	Simulated    bool      `json:"simulated" yaml:"simulated"`
	Error        string    `json:"error,omitempty" yaml:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp" yaml:"timestamp"`
}

// Entry flattens r for the document store.
func (r ConversionRecord) Entry() StoreEntry {
	return StoreEntry{
		ID:           r.ID,
		Unit:         r.Unit,
		Cycle:        r.Cycle,
		ProtocolDate: r.ProtocolDate,
		File:         r.SourcePath,
		FromType:     r.FromType,
		ToType:       r.ToType,
		SHA256:       r.SHA256,
		Success:      r.Success,
		Simulated:    r.Simulated,
		Error:        r.Error,
		Timestamp:    r.Timestamp,
	}
}

// UnitConversionResult summarizes one ConvertUnit call.
type UnitConversionResult struct {
	UnitPath string `json:"unit_path" yaml:"unit_path"`

	// FilesConverted counts conversions actually performed. Always 0 on a
	// dry run.
	FilesConverted int `json:"files_converted" yaml:"files_converted"`

	// FilesFailed counts files whose conversion or detection failed.
	FilesFailed int `json:"files_failed" yaml:"files_failed"`

	// FilesSkipped counts files that needed no conversion.
	FilesSkipped int `json:"files_skipped" yaml:"files_skipped"`

	// MovedTo is the destination directory for the unit. It is computed
	// whether or not anything was converted.
	MovedTo string `json:"moved_to" yaml:"moved_to"`

	DryRun bool `json:"dry_run" yaml:"dry_run"`

	// Records lists conversion attempts in file processing order.
	Records []ConversionRecord `json:"records" yaml:"records"`

	// Detections lists every scanned file in processing order.
	Detections []FileDetectionResult `json:"detections" yaml:"detections"`
}

// Total returns the number of files accounted for.
func (r UnitConversionResult) Total() int {
	return r.FilesConverted + r.FilesFailed + r.FilesSkipped + r.simulatedCount()
}

// HasFailures reports whether any file failed.
func (r UnitConversionResult) HasFailures() bool {
	return r.FilesFailed > 0
}

// Failures returns the failed records in processing order.
func (r UnitConversionResult) Failures() []ConversionRecord {
	var out []ConversionRecord
	for _, rec := range r.Records {
		if !rec.Success && !rec.Simulated {
			out = append(out, rec)
		}
	}
	return out
}

func (r UnitConversionResult) simulatedCount() int {
	n := 0
	for _, rec := range r.Records {
		if rec.Simulated {
			n++
		}
	}
	return n
}
