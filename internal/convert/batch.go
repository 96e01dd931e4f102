// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/docprep/pkg/types"
)

// BatchRequest describes a run over several units of one cycle.
type BatchRequest struct {
	Units        []string
	Cycle        int
	ProtocolDate string
	DryRun       bool

	// Move relocates each unit to its destination after conversion.
	Move bool
}

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	Converted int
	Skipped   int
	Failed    int
	Simulated int

	// Results holds one entry per unit in request order; nil where the
	// unit failed a precondition.
	Results []*types.UnitConversionResult

	// UnitErrors maps a unit path to its unit-level error.
	UnitErrors map[string]error
}

// Total returns the total number of files processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed + r.Simulated
}

// HasFailures reports whether any file or unit failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0 || len(r.UnitErrors) > 0
}

// RunBatch converts req.Units with at most cfg.Concurrency units in flight,
// writing a summary line to w. A unit-level error is captured per unit and
// never stops the others; only cancellation of ctx ends the run early.
func RunBatch(ctx context.Context, c *Converter, req BatchRequest, w io.Writer) (BatchResult, error) {
	results := make([]*types.UnitConversionResult, len(req.Units))
	errs := make([]error, len(req.Units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, unit := range req.Units {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := c.ConvertUnit(gctx, unit, req.Cycle, req.ProtocolDate, req.DryRun)
			if err != nil {
				errs[i] = err
				c.progress("failed:  %s (%v)\n", unit, err)
				return nil
			}
			if req.Move && !res.HasFailures() {
				if err := c.Relocate(res); err != nil {
					errs[i] = err
					c.progress("failed:  %s (%v)\n", unit, err)
				}
			}
			results[i] = res
			return nil
		})
	}
	waitErr := g.Wait()

	var out BatchResult
	out.Results = results
	for i, res := range results {
		if errs[i] != nil {
			if out.UnitErrors == nil {
				out.UnitErrors = make(map[string]error)
			}
			out.UnitErrors[req.Units[i]] = errs[i]
		}
		if res == nil {
			continue
		}
		out.Converted += res.FilesConverted
		out.Skipped += res.FilesSkipped
		out.Failed += res.FilesFailed
		out.Simulated += len(res.Records) - res.FilesConverted - res.FilesFailed
	}

	fmt.Fprintf(w, "\nBatch summary: %d converted, %d skipped, %d failed, %d simulated (total: %d, units: %d, unit errors: %d)\n",
		out.Converted, out.Skipped, out.Failed, out.Simulated, out.Total(), len(req.Units), len(out.UnitErrors))

	if waitErr != nil {
		return out, fmt.Errorf("batch interrupted: %w", waitErr)
	}
	return out, nil
}
