// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/docprep/pkg/types"
)

// FirstDisplay is the lowest X display number handed out by a pool.
const FirstDisplay = 99

// xvfbStartDelay gives a freshly started Xvfb time to accept connections.
var xvfbStartDelay = 500 * time.Millisecond

// DisplayPool hands out Xvfb display numbers. Each number is held by at
// most one conversion at a time; the Xvfb server behind it is started on
// first use and kept running until Close.
type DisplayPool struct {
	xvfb string
	exec executor
	log  *zap.Logger
	free chan int

	mu      sync.Mutex
	running map[int]process
	closed  bool
}

// NewDisplayPool returns a pool of size displays starting at FirstDisplay.
// No Xvfb process is started until a display is first used.
func NewDisplayPool(xvfbPath string, size int, log *zap.Logger) *DisplayPool {
	return newDisplayPool(xvfbPath, size, log, defaultExec)
}

func newDisplayPool(xvfbPath string, size int, log *zap.Logger, exec executor) *DisplayPool {
	if xvfbPath == "" {
		xvfbPath = types.DefaultXvfbPath
	}
	if size <= 0 {
		size = types.DefaultMaxDisplays
	}
	if log == nil {
		log = zap.NewNop()
	}
	p := &DisplayPool{
		xvfb:    xvfbPath,
		exec:    exec,
		log:     log,
		free:    make(chan int, size),
		running: make(map[int]process),
	}
	for i := range size {
		p.free <- FirstDisplay + i
	}
	return p
}

// Size returns the number of displays in the pool.
func (p *DisplayPool) Size() int { return cap(p.free) }

// Acquire blocks until a display is free or ctx is done.
func (p *DisplayPool) Acquire(ctx context.Context) (int, error) {
	select {
	case n := <-p.free:
		return n, nil
	case <-ctx.Done():
		return 0, timeoutErr(ctx, fmt.Errorf("waiting for a free display: %w", ctx.Err()))
	}
}

// Release returns a display to the pool.
func (p *DisplayPool) Release(n int) {
	p.free <- n
}

// ensure starts Xvfb on display n unless it is already running.
func (p *DisplayPool) ensure(n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("display pool is closed")
	}
	if _, ok := p.running[n]; ok {
		return nil
	}

	display := ":" + strconv.Itoa(n)
	proc, err := p.exec.Start(p.xvfb, display, "-screen", "0", "1280x1024x24", "-nolisten", "tcp")
	if err != nil {
		return fmt.Errorf("start xvfb on %s: %w", display, err)
	}
	p.running[n] = proc
	time.Sleep(xvfbStartDelay)

	p.log.Info("xvfb started", zap.String("display", display), zap.Int("pid", proc.Pid()))
	return nil
}

// Running returns the number of live Xvfb servers.
func (p *DisplayPool) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.running)
}

// Close stops every Xvfb server started by the pool.
func (p *DisplayPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true

	var errs []error
	for n, proc := range p.running {
		if err := proc.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop xvfb :%d: %w", n, err))
		}
		delete(p.running, n)
		p.log.Info("xvfb stopped", zap.Int("display", n))
	}
	return errors.Join(errs...)
}

// Headless runs LibreOffice under a virtual X display taken from a pool.
// Every display gets its own LibreOffice user profile so that concurrent
// conversions do not contend for the profile lock.
type Headless struct {
	lo         *LibreOffice
	pool       *DisplayPool
	profileDir string
}

// NewHeadless wraps lo with displays from pool. Profiles are created under
// the system temporary directory.
func NewHeadless(lo *LibreOffice, pool *DisplayPool) *Headless {
	return &Headless{
		lo:         lo,
		pool:       pool,
		profileDir: filepath.Join(os.TempDir(), "docprep-lo"),
	}
}

// Name returns "libreoffice-headless".
func (h *Headless) Name() string { return h.lo.Name() + "-headless" }

// Pool exposes the display pool.
func (h *Headless) Pool() *DisplayPool { return h.pool }

// Convert acquires a display, ensures Xvfb is serving it, and runs the
// conversion with DISPLAY pointing at it. The display is always released.
func (h *Headless) Convert(ctx context.Context, sourcePath string, target types.DocType) (string, error) {
	n, err := h.pool.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer h.pool.Release(n)

	if err := h.pool.ensure(n); err != nil {
		return "", err
	}

	env := []string{"DISPLAY=:" + strconv.Itoa(n)}
	profile := "-env:UserInstallation=file://" + filepath.ToSlash(filepath.Join(h.profileDir, strconv.Itoa(n)))
	return h.lo.convert(ctx, sourcePath, target, env, []string{profile})
}

// Close stops the Xvfb servers.
func (h *Headless) Close() error {
	return h.pool.Close()
}
