// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/docprep/internal/convert"
	"github.com/pdiddy/docprep/internal/store"
	"github.com/pdiddy/docprep/pkg/types"
)

// maxAuditLine bounds one JSON line of an audit log.
const maxAuditLine = 1 << 20

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage the conversion record store",
	Long: `Store keeps conversion records in a SQLite database (docprep.db under
--store-dir). Records come from audit logs written by convert --audit-log or
directly from convert --ingest, and can be summarized, exported as YAML or
JSON, and cleaned up by protocol date or age.`,
}

var storeIngestCmd = &cobra.Command{
	Use:   "ingest [audit-logs...]",
	Short: "Ingest JSON-lines audit logs into the store",
	RunE:  runStoreIngest,
}

var storeStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize stored conversions",
	RunE:  runStoreStats,
}

var storeExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored conversions as YAML or JSON",
	RunE:  runStoreExport,
}

var storeCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete stored conversions by date, age, or simulation",
	RunE:  runStoreCleanup,
}

func init() {
	for _, c := range []*cobra.Command{storeStatsCmd, storeExportCmd} {
		c.Flags().String("unit", "", "filter by unit name")
		c.Flags().Int("cycle", 0, "filter by cycle")
		c.Flags().String("date", "", "filter by protocol date")
		c.Flags().Bool("failed", false, "only failed conversions")
	}
	storeStatsCmd.Flags().Bool("json", false, "print statistics as JSON")
	storeExportCmd.Flags().String("format", "yaml", "output format: yaml or json")
	storeExportCmd.Flags().StringP("output", "o", "", "write to file instead of stdout")
	storeExportCmd.Flags().Int("limit", 0, "maximum number of entries")

	storeCleanupCmd.Flags().String("date", "", "delete records of this protocol date")
	storeCleanupCmd.Flags().String("before", "", "delete records recorded before this date (YYYY-MM-DD)")
	storeCleanupCmd.Flags().Bool("simulated", false, "only delete dry-run records")
	storeCleanupCmd.Flags().Bool("dry-run", false, "count matching records without deleting")

	storeCmd.AddCommand(storeIngestCmd, storeStatsCmd, storeExportCmd, storeCleanupCmd)
	rootCmd.AddCommand(storeCmd)
}

func openStore() (*store.Store, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.Store)
}

func filterFlags(cmd *cobra.Command) store.Filter {
	var f store.Filter
	f.Unit, _ = cmd.Flags().GetString("unit")
	f.Cycle, _ = cmd.Flags().GetInt("cycle")
	f.ProtocolDate, _ = cmd.Flags().GetString("date")
	f.FailedOnly, _ = cmd.Flags().GetBool("failed")
	return f
}

func runStoreIngest(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more audit log files")
	}
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	for _, path := range args {
		entries, err := readAuditFile(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d record(s)\n", path, len(entries))
		if _, err := s.Ingest(cmd.Context(), entries, cmd.OutOrStdout()); err != nil {
			return err
		}
	}
	return nil
}

func readAuditFile(path string) ([]types.StoreEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()
	entries, err := readAuditLog(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// readAuditLog decodes one ConversionRecord per line. Blank lines are
// ignored.
func readAuditLog(r io.Reader) ([]types.StoreEntry, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxAuditLine)

	var (
		entries []types.StoreEntry
		line    int
	)
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec types.ConversionRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		entries = append(entries, rec.Entry())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}
	return entries, nil
}

func runStoreStats(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := s.Stats(cmd.Context(), filterFlags(cmd))
	if err != nil {
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	renderStats(cmd.OutOrStdout(), st)
	return nil
}

func runStoreExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "yaml" && format != "json" {
		return fmt.Errorf("unknown format %q (want yaml or json)", format)
	}
	f := filterFlags(cmd)
	f.Limit, _ = cmd.Flags().GetInt("limit")

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	w := cmd.OutOrStdout()
	if out, _ := cmd.Flags().GetString("output"); out != "" {
		file, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("creating %s: %w", out, err)
		}
		defer file.Close()
		w = file
	}

	if format == "json" {
		return s.ExportJSON(cmd.Context(), f, w)
	}
	return s.ExportYAML(cmd.Context(), f, w)
}

func runStoreCleanup(cmd *cobra.Command, args []string) error {
	var opts store.CleanupOptions
	opts.ProtocolDate, _ = cmd.Flags().GetString("date")
	opts.SimulatedOnly, _ = cmd.Flags().GetBool("simulated")
	opts.DryRun, _ = cmd.Flags().GetBool("dry-run")
	if before, _ := cmd.Flags().GetString("before"); before != "" {
		t, err := time.Parse(convert.DateLayout, before)
		if err != nil {
			return fmt.Errorf("parsing --before: %w", err)
		}
		opts.Before = t
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.Cleanup(cmd.Context(), opts)
	if err != nil {
		return err
	}
	if opts.DryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "would delete %d record(s)\n", n)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %d record(s)\n", n)
	return nil
}
