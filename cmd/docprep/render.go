// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"github.com/pdiddy/docprep/internal/convert"
	"github.com/pdiddy/docprep/internal/store"
	"github.com/pdiddy/docprep/pkg/types"
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	failColor = color.New(color.FgRed, color.Bold)
)

// unitReport is the JSON form of one unit's outcome.
type unitReport struct {
	Unit   string                      `json:"unit"`
	Result *types.UnitConversionResult `json:"result,omitempty"`
	Error  string                      `json:"error,omitempty"`
}

// batchReport is the JSON form of a batch run.
type batchReport struct {
	Converted int          `json:"converted"`
	Skipped   int          `json:"skipped"`
	Failed    int          `json:"failed"`
	Simulated int          `json:"simulated"`
	Units     []unitReport `json:"units"`
}

func newBatchReport(units []string, res convert.BatchResult) batchReport {
	r := batchReport{
		Converted: res.Converted,
		Skipped:   res.Skipped,
		Failed:    res.Failed,
		Simulated: res.Simulated,
	}
	for i, u := range units {
		ur := unitReport{Unit: u}
		if i < len(res.Results) {
			ur.Result = res.Results[i]
		}
		if err := res.UnitErrors[u]; err != nil {
			ur.Error = err.Error()
		}
		r.Units = append(r.Units, ur)
	}
	return r
}

// renderBatch prints one status line per unit followed by every failed
// file, so failures stay visible after long progress output.
func renderBatch(w io.Writer, units []string, res convert.BatchResult) {
	fmt.Fprintln(w)
	for i, u := range units {
		if err := res.UnitErrors[u]; err != nil {
			failColor.Fprint(w, "FAIL ")
			fmt.Fprintf(w, "%s: %v\n", u, err)
			continue
		}
		r := res.Results[i]
		switch {
		case r == nil:
			continue
		case r.HasFailures():
			failColor.Fprint(w, "FAIL ")
		case r.DryRun:
			warnColor.Fprint(w, "DRY  ")
		default:
			okColor.Fprint(w, "OK   ")
		}
		fmt.Fprintf(w, "%s → %s (%d converted, %d skipped, %d failed)\n",
			u, r.MovedTo, r.FilesConverted, r.FilesSkipped, r.FilesFailed)
		for _, rec := range r.Failures() {
			fmt.Fprintf(w, "       %s: %s\n", rec.SourcePath, rec.Error)
		}
	}
}

// renderDetection prints one detection line, flagging disguised archives.
func renderDetection(w io.Writer, d types.FileDetectionResult) {
	fmt.Fprintf(w, "%-12s %-10d %s", d.DetectedType, d.Size, d.Path)
	if d.IsFakeDoc {
		warnColor.Fprintf(w, "  (archive posing as .%s)", d.Extension)
	}
	fmt.Fprintln(w)
}

// renderStats prints store statistics as aligned text.
func renderStats(w io.Writer, st store.Stats) {
	fmt.Fprintf(w, "Conversions: %d (%d succeeded, %d failed, %d simulated)\n",
		st.Total, st.Succeeded, st.Failed, st.Simulated)
	fmt.Fprintf(w, "Units:       %d\n", st.Units)
	rate := fmt.Sprintf("%.1f%%", 100*st.SuccessRate())
	if st.Failed > 0 {
		warnColor.Fprintf(w, "Success:     %s\n", rate)
	} else {
		fmt.Fprintf(w, "Success:     %s\n", rate)
	}
	if !st.First.IsZero() {
		fmt.Fprintf(w, "Range:       %s .. %s\n",
			st.First.Format("2006-01-02 15:04:05"), st.Last.Format("2006-01-02 15:04:05"))
	}
	if len(st.ByType) == 0 {
		return
	}

	byType := append([]store.TypeStats(nil), st.ByType...)
	sort.SliceStable(byType, func(i, j int) bool {
		return byType[i].Succeeded+byType[i].Failed > byType[j].Succeeded+byType[j].Failed
	})
	fmt.Fprintln(w)
	for _, ts := range byType {
		fmt.Fprintf(w, "  %-5s → %-5s %6d ok %6d failed %6d simulated\n",
			ts.From, ts.To, ts.Succeeded, ts.Failed, ts.Simulated)
	}
}
