// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/docprep/internal/convert"
	"github.com/pdiddy/docprep/internal/secrets"
	"github.com/pdiddy/docprep/internal/store"
	"github.com/pdiddy/docprep/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert [units...]",
	Short: "Convert legacy documents in unit directories",
	Long: `Convert scans each unit directory, detects the real type of every file,
and converts legacy office documents (doc, xls, ppt, rtf, odt, ods, odp) to
docx, xlsx, or pptx next to the original. With --dry-run nothing is written;
the run reports what would be converted. With --move, units without failures
are relocated to <dest-root>/cycle_<n>/<date>/<unit>.`,
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().Int("cycle", 0, "processing cycle number (required, >= 1)")
	convertCmd.Flags().String("protocol-date", "", "protocol date YYYY-MM-DD (default today)")
	convertCmd.Flags().Bool("dry-run", false, "report what would be converted without converting")
	convertCmd.Flags().Bool("no-headless", false, "run soffice directly instead of under Xvfb")
	convertCmd.Flags().Bool("move", false, "relocate units without failures to their destination")
	convertCmd.Flags().String("dest-root", "", "root of the destination tree (default processed)")
	convertCmd.Flags().Int("concurrency", 0, "units converted in parallel (default 1)")
	convertCmd.Flags().String("audit-log", "", "append conversion records as JSON lines to this file")
	convertCmd.Flags().Bool("json", false, "print the result as JSON")
	convertCmd.Flags().Bool("ingest", false, "ingest conversion records into the document store")

	_ = viper.BindPFlag("conversion.dest_root", convertCmd.Flags().Lookup("dest-root"))
	_ = viper.BindPFlag("conversion.concurrency", convertCmd.Flags().Lookup("concurrency"))

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more unit directories")
	}

	cycle, _ := cmd.Flags().GetInt("cycle")
	protocolDate, _ := cmd.Flags().GetString("protocol-date")
	if protocolDate == "" {
		protocolDate = time.Now().Format(convert.DateLayout)
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	noHeadless, _ := cmd.Flags().GetBool("no-headless")
	move, _ := cmd.Flags().GetBool("move")
	auditPath, _ := cmd.Flags().GetString("audit-log")
	asJSON, _ := cmd.Flags().GetBool("json")
	ingest, _ := cmd.Flags().GetBool("ingest")

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if noHeadless {
		cfg.Conversion.UseHeadless = false
	}

	log, err := newLogger(cfg.Log.Verbose)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync()

	// Progress goes to stderr when stdout carries JSON.
	progress := cmd.OutOrStdout()
	if asJSON {
		progress = cmd.ErrOrStderr()
	}

	secretsDir, _ := cmd.Flags().GetString("secrets-dir")
	creds, err := secrets.Load(secretsDir, log)
	if err != nil {
		return err
	}
	if keys := creds.Keys(); len(keys) > 0 {
		log.Debug("loaded secrets", zap.Strings("keys", keys))
	}

	conv, err := convert.New(cfg.Conversion,
		convert.WithLogger(log),
		convert.WithProgress(progress),
		convert.WithRemoteToken(creds.Get(secrets.RemoteToken)),
	)
	if err != nil {
		return err
	}
	defer conv.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := convert.BatchRequest{
		Units:        args,
		Cycle:        cycle,
		ProtocolDate: protocolDate,
		DryRun:       dryRun,
		Move:         move,
	}
	result, runErr := convert.RunBatch(ctx, conv, req, progress)

	if auditPath != "" {
		if err := appendAuditLog(auditPath, conv); err != nil {
			return err
		}
	}
	if ingest {
		if err := ingestRecords(context.WithoutCancel(ctx), cfg.Store, conv, progress); err != nil {
			return err
		}
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(newBatchReport(args, result)); err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
	} else {
		renderBatch(cmd.OutOrStdout(), args, result)
	}

	if runErr != nil {
		return runErr
	}
	if result.HasFailures() {
		return fmt.Errorf("%d file(s) and %d unit(s) failed conversion", result.Failed, len(result.UnitErrors))
	}
	return nil
}

func appendAuditLog(path string, conv *convert.Converter) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	if err := conv.Audit().WriteJSONL(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func ingestRecords(ctx context.Context, cfg types.StoreConfig, conv *convert.Converter, w io.Writer) error {
	s, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	_, err = s.Ingest(ctx, conv.Audit().Entries(), w)
	return err
}
