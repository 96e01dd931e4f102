// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/docprep/internal/sniff"
	"github.com/pdiddy/docprep/pkg/types"
)

var detectCmd = &cobra.Command{
	Use:   "detect [files...]",
	Short: "Report the content type of files",
	Long: `Detect reads each file's leading bytes and reports what it actually
contains, regardless of its extension, along with its size. HTML saved with
an office extension is reported as html; zip archives renamed to .doc, .xls,
or .ppt are flagged.`,
	RunE: runDetect,
}

func init() {
	detectCmd.Flags().Bool("json", false, "print results as JSON")

	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more files")
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	var (
		results []types.FileDetectionResult
		failed  int
	)
	for _, path := range args {
		res, err := sniff.Detect(path)
		if err != nil {
			failColor.Fprint(cmd.ErrOrStderr(), "failed: ")
			fmt.Fprintf(cmd.ErrOrStderr(), "%s (%v)\n", path, err)
			failed++
			continue
		}
		results = append(results, res)
		if !asJSON {
			renderDetection(cmd.OutOrStdout(), res)
		}
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return fmt.Errorf("encoding results: %w", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d file(s) could not be read", failed)
	}
	return nil
}
