// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/docprep/pkg/types"
)

// Export is the document written by ExportYAML and ExportJSON.
type Export struct {
	GeneratedAt time.Time          `json:"generated_at" yaml:"generated_at"`
	Stats       Stats              `json:"stats" yaml:"stats"`
	Entries     []types.StoreEntry `json:"entries" yaml:"entries"`
}

func (s *Store) export(ctx context.Context, f Filter) (Export, error) {
	entries, err := s.Query(ctx, f)
	if err != nil {
		return Export{}, fmt.Errorf("querying for export: %w", err)
	}
	st, err := s.Stats(ctx, f)
	if err != nil {
		return Export{}, err
	}
	if entries == nil {
		entries = []types.StoreEntry{}
	}
	return Export{GeneratedAt: time.Now().UTC(), Stats: st, Entries: entries}, nil
}

// ExportYAML writes the entries matching f, with their statistics, as YAML.
func (s *Store) ExportYAML(ctx context.Context, f Filter, w io.Writer) error {
	doc, err := s.export(ctx, f)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// ExportJSON writes the entries matching f, with their statistics, as
// indented JSON.
func (s *Store) ExportJSON(ctx context.Context, f Filter, w io.Writer) error {
	doc, err := s.export(ctx, f)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return nil
}
