// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert orchestrates conversion of one unit directory: every file
// is sniffed, looked up in the conversion map by its detected type, and
// handed to a backend under a size-scaled timeout. Per-file outcomes are
// recorded in the audit log and aggregated into a UnitConversionResult;
// only unit-level precondition failures are returned as errors.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/docprep/internal/audit"
	"github.com/pdiddy/docprep/internal/backend"
	"github.com/pdiddy/docprep/internal/integrity"
	"github.com/pdiddy/docprep/internal/sniff"
	"github.com/pdiddy/docprep/pkg/types"
)

var (
	// ErrUnitNotFound is returned when the unit directory does not exist.
	ErrUnitNotFound = errors.New("unit not found")

	// ErrInvalidArgument is returned for malformed arguments or settings.
	ErrInvalidArgument = errors.New("invalid argument")
)

// DateLayout is the format of protocol dates.
const DateLayout = "2006-01-02"

const mib = 1 << 20

// bookkeeping names files that belong to the pipeline, not to the unit's
// documents.
var bookkeeping = map[string]bool{
	"manifest.json":   true,
	"audit.log.jsonl": true,
}

// Converter converts units. It is safe for concurrent use by RunBatch;
// detection is stateless and audit appends are serialized by the logger.
type Converter struct {
	cfg      types.ConversionConfig
	cmap     ConversionMap
	backend  backend.Backend
	headless *backend.Headless
	token    string
	audit    *audit.Logger
	log      *zap.Logger

	outMu sync.Mutex
	out   io.Writer
}

// Option configures a Converter.
type Option func(*Converter)

// WithBackend replaces the backend selected from the configuration. No
// headless resources are allocated when a backend is supplied.
func WithBackend(b backend.Backend) Option {
	return func(c *Converter) { c.backend = b }
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Converter) {
		if l != nil {
			c.log = l
		}
	}
}

// WithAudit sets the audit logger that receives every record.
func WithAudit(a *audit.Logger) Option {
	return func(c *Converter) {
		if a != nil {
			c.audit = a
		}
	}
}

// WithProgress sets the writer for human-readable progress lines.
func WithProgress(w io.Writer) Option {
	return func(c *Converter) {
		if w != nil {
			c.out = w
		}
	}
}

// WithRemoteToken sets the bearer token for the remote backend. It has no
// effect on other backends.
func WithRemoteToken(token string) Option {
	return func(c *Converter) { c.token = token }
}

// WithConversionMap replaces the default conversion map.
func WithConversionMap(cm ConversionMap) Option {
	return func(c *Converter) { c.cmap = cm }
}

// New builds a Converter. Unless WithBackend is given, the backend follows
// cfg: remote uses the HTTP service at cfg.RemoteURL; libreoffice runs
// soffice directly, or under an Xvfb display pool when cfg.UseHeadless is
// set.
func New(cfg types.ConversionConfig, opts ...Option) (*Converter, error) {
	cfg.Defaults()
	switch cfg.OriginalPolicy {
	case types.OriginalsPreserve, types.OriginalsRemove:
	default:
		return nil, fmt.Errorf("%w: original policy %q", ErrInvalidArgument, cfg.OriginalPolicy)
	}

	c := &Converter{
		cfg:  cfg,
		cmap: DefaultConversionMap(),
		log:  zap.NewNop(),
		out:  io.Discard,
	}
	for _, o := range opts {
		o(c)
	}
	if c.audit == nil {
		c.audit = audit.New(audit.WithZap(c.log))
	}

	if c.backend == nil {
		b, err := c.newBackend()
		if err != nil {
			return nil, err
		}
		c.backend = b
	}
	return c, nil
}

func (c *Converter) newBackend() (backend.Backend, error) {
	switch c.cfg.Backend {
	case types.BackendRemote:
		r, err := backend.NewRemote(c.cfg.RemoteURL, nil, c.log)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		r.SetToken(c.token)
		return r, nil
	case types.BackendLibreOffice:
		lo := backend.NewLibreOffice(c.cfg.SofficePath, c.log)
		if !c.cfg.UseHeadless {
			return lo, nil
		}
		c.headless = backend.NewHeadless(lo, backend.NewDisplayPool(c.cfg.XvfbPath, c.cfg.MaxDisplays, c.log))
		return c.headless, nil
	default:
		return nil, fmt.Errorf("%w: backend %q", ErrInvalidArgument, c.cfg.Backend)
	}
}

// Audit returns the audit logger shared by every ConvertUnit call.
func (c *Converter) Audit() *audit.Logger { return c.audit }

// Backend returns the backend in use.
func (c *Converter) Backend() backend.Backend { return c.backend }

// Config returns the effective configuration.
func (c *Converter) Config() types.ConversionConfig { return c.cfg }

// Close releases headless resources, if any were allocated.
func (c *Converter) Close() error {
	if c.headless != nil {
		return c.headless.Close()
	}
	return nil
}

// Destination returns <DestRoot>/cycle_<cycle>/<protocolDate>/<unit>, with
// the unit name sanitized to a single path element.
func (c *Converter) Destination(cycle int, protocolDate, unit string) string {
	return filepath.Join(c.cfg.DestRoot, fmt.Sprintf("cycle_%d", cycle), protocolDate, integrity.SanitizeFilename(unit))
}

// ConvertUnit converts every eligible file directly under unitPath. With
// dryRun set, nothing is converted or written; convertible files produce
// simulated records instead.
func (c *Converter) ConvertUnit(ctx context.Context, unitPath string, cycle int, protocolDate string, dryRun bool) (*types.UnitConversionResult, error) {
	if err := validateCycle(cycle, protocolDate); err != nil {
		return nil, err
	}
	files, err := listUnit(unitPath)
	if err != nil {
		return nil, err
	}

	unit := filepath.Base(filepath.Clean(unitPath))
	res := &types.UnitConversionResult{
		UnitPath: unitPath,
		MovedTo:  c.Destination(cycle, protocolDate, unit),
		DryRun:   dryRun,
	}
	job := unitJob{unit: unit, cycle: cycle, date: protocolDate, dryRun: dryRun, claimed: make(map[string]bool)}

	c.log.Info("converting unit",
		zap.String("unit", unitPath),
		zap.Int("files", len(files)),
		zap.Int("cycle", cycle),
		zap.String("protocol_date", protocolDate),
		zap.Bool("dry_run", dryRun))

	for _, path := range files {
		c.convertFile(ctx, job, path, res)
	}

	c.progress("Unit %s: %d converted, %d skipped, %d failed, %d simulated → %s\n",
		unit, res.FilesConverted, res.FilesSkipped, res.FilesFailed, len(res.Records)-res.FilesConverted-res.FilesFailed, res.MovedTo)
	return res, nil
}

type unitJob struct {
	unit   string
	cycle  int
	date   string
	dryRun bool

	// claimed holds the lowercased output paths placed in this unit.
	claimed map[string]bool
}

func (c *Converter) convertFile(ctx context.Context, job unitJob, path string, res *types.UnitConversionResult) {
	name := filepath.Base(path)
	rec := types.ConversionRecord{
		Unit:         job.unit,
		Cycle:        job.cycle,
		ProtocolDate: job.date,
		SourcePath:   path,
		FromType:     types.TypeUnknown,
	}

	det, err := sniff.Detect(path)
	res.Detections = append(res.Detections, det)
	if err != nil {
		rec.Error = err.Error()
		res.Records = append(res.Records, c.audit.Record(rec))
		res.FilesFailed++
		c.progress("failed:  %s (%v)\n", name, err)
		return
	}
	rec.FromType = det.DetectedType
	rec.SHA256 = det.SHA256

	target, ok := c.cmap.Target(det.DetectedType)
	if !ok {
		res.FilesSkipped++
		c.log.Debug("no conversion needed",
			zap.String("file", path),
			zap.String("type", string(det.DetectedType)),
			zap.Bool("fake_doc", det.IsFakeDoc))
		c.progress("skipped: %s (%s)\n", name, det.DetectedType)
		return
	}
	rec.ToType = target

	if job.dryRun {
		rec.Simulated = true
		res.Records = append(res.Records, c.audit.Record(rec))
		c.progress("would convert: %s (%s → %s)\n", name, det.DetectedType, target)
		return
	}

	start := time.Now()
	out, err := c.runBackend(ctx, path, target, det.Size)
	if err == nil {
		out, err = c.finishOutput(path, out, target, job.claimed)
	}
	rec.Duration = time.Since(start)
	if err != nil {
		rec.Error = err.Error()
		res.Records = append(res.Records, c.audit.Record(rec))
		res.FilesFailed++
		c.progress("failed:  %s (%v)\n", name, err)
		return
	}

	rec.Success = true
	rec.TargetPath = out
	res.Records = append(res.Records, c.audit.Record(rec))
	res.FilesConverted++
	c.progress("converted: %s → %s\n", name, filepath.Base(out))

	if c.cfg.OriginalPolicy == types.OriginalsRemove && !sameFile(out, path) {
		if err := os.Remove(path); err != nil {
			c.log.Warn("removing original failed", zap.String("file", path), zap.Error(err))
		}
	}
}

// runBackend calls the backend under a per-file deadline. A backend that
// ignores its context is abandoned when the deadline passes; its goroutine
// finishes on its own once the call returns and discards any late output.
func (c *Converter) runBackend(ctx context.Context, path string, target types.DocType, size int64) (string, error) {
	timeout := c.FileTimeout(size)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		path string
		err  error
	}
	var (
		mu        sync.Mutex
		abandoned bool
	)
	done := make(chan outcome, 1)
	go func() {
		p, err := c.backend.Convert(ctx, path, target)
		mu.Lock()
		defer mu.Unlock()
		if abandoned {
			if err == nil && !sameFile(p, path) {
				discard(p)
			}
			return
		}
		done <- outcome{p, err}
	}()

	select {
	case o := <-done:
		if o.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(o.err, backend.ErrTimeout) {
			return "", fmt.Errorf("%w after %s: %w", backend.ErrTimeout, timeout, o.err)
		}
		return o.path, o.err
	case <-ctx.Done():
		mu.Lock()
		abandoned = true
		mu.Unlock()
		// The call may have finished while the deadline fired.
		select {
		case o := <-done:
			if o.err == nil && !sameFile(o.path, path) {
				discard(o.path)
			}
		default:
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.log.Warn("abandoning conversion", zap.String("file", path), zap.Duration("timeout", timeout))
			return "", fmt.Errorf("%w after %s", backend.ErrTimeout, timeout)
		}
		return "", fmt.Errorf("conversion cancelled: %w", ctx.Err())
	}
}

// FileTimeout scales the per-file deadline with size: base plus perMB for
// every MiB, capped at max.
func (c *Converter) FileTimeout(size int64) time.Duration {
	d := c.cfg.TimeoutBase + time.Duration(float64(c.cfg.TimeoutPerMB)*float64(size)/mib)
	return min(d, c.cfg.TimeoutMax)
}

func (c *Converter) progress(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func validateCycle(cycle int, protocolDate string) error {
	if cycle <= 0 {
		return fmt.Errorf("%w: cycle must be positive, got %d", ErrInvalidArgument, cycle)
	}
	if _, err := time.Parse(DateLayout, protocolDate); err != nil {
		return fmt.Errorf("%w: protocol date %q: %w", ErrInvalidArgument, protocolDate, err)
	}
	return nil
}

// listUnit returns the regular files directly under unitPath, sorted by
// name, without bookkeeping files.
func listUnit(unitPath string) ([]string, error) {
	info, err := os.Stat(unitPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", ErrUnitNotFound, unitPath)
	case err != nil:
		return nil, fmt.Errorf("stat unit %s: %w", unitPath, err)
	case !info.IsDir():
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidArgument, unitPath)
	}

	entries, err := os.ReadDir(unitPath)
	if err != nil {
		return nil, fmt.Errorf("reading unit %s: %w", unitPath, err)
	}
	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || bookkeeping[e.Name()] {
			continue
		}
		files = append(files, filepath.Join(unitPath, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
