// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package backend implements the external converters that turn legacy
// documents into their modern equivalents. The engine never converts bytes
// itself; it hands a source path and a target type to a Backend and gets
// back the path of the produced file.
package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/docprep/pkg/types"
)

var (
	// ErrTimeout is returned when a conversion exceeds its deadline.
	ErrTimeout = errors.New("conversion timed out")

	// ErrUnsupported is returned for target types the backend cannot produce.
	ErrUnsupported = errors.New("unsupported conversion target")

	// ErrNoOutput is returned when the converter exits cleanly but the
	// expected output file is missing.
	ErrNoOutput = errors.New("converter produced no output")
)

// Backend converts one file. Output is written into a fresh stage
// directory beside the source (see NewStage), so a backend never replaces
// an existing file; the caller moves the output to its final name and
// removes the stage. On error the backend removes its stage itself.
type Backend interface {
	// Name identifies the backend in logs and records.
	Name() string

	// Convert converts sourcePath to target and returns the output path.
	// Implementations must honor ctx cancellation.
	Convert(ctx context.Context, sourcePath string, target types.DocType) (string, error)
}

// StagePrefix starts the name of every stage directory.
const StagePrefix = ".docprep-stage-"

// NewStage creates an empty stage directory next to sourcePath. Staying on
// the source's filesystem lets the caller rename the output into place.
func NewStage(sourcePath string) (string, error) {
	dir, err := os.MkdirTemp(filepath.Dir(sourcePath), StagePrefix)
	if err != nil {
		return "", fmt.Errorf("creating stage for %s: %w", filepath.Base(sourcePath), err)
	}
	return dir, nil
}

// IsStage reports whether dir was created by NewStage.
func IsStage(dir string) bool {
	return strings.HasPrefix(filepath.Base(dir), StagePrefix)
}

// supportedTargets lists the formats the office backends can emit.
var supportedTargets = map[types.DocType]bool{
	types.TypeDOCX: true,
	types.TypeXLSX: true,
	types.TypePPTX: true,
}

// Supports reports whether target is a type the office backends produce.
func Supports(target types.DocType) bool {
	return supportedTargets[target]
}

// timeoutErr maps a context deadline to ErrTimeout and leaves other errors
// untouched.
func timeoutErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrTimeout, err)
	}
	return err
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)

	// Run executes name with args, extra environment entries appended to
	// the current environment, and returns combined output.
	Run(ctx context.Context, env []string, name string, args ...string) ([]byte, error)

	// Start launches a long-lived process.
	Start(name string, args ...string) (process, error)
}

// process is a started long-lived command.
type process interface {
	Pid() int
	Stop() error
}

// waitDelay bounds how long Run waits for a killed converter's children to
// release its output pipes.
const waitDelay = 5 * time.Second

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) Run(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	cmd.WaitDelay = waitDelay
	return cmd.CombinedOutput()
}

func (o *osExecutor) Start(name string, args ...string) (process, error) {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &osProcess{cmd: cmd}, nil
}

type osProcess struct {
	cmd *exec.Cmd
}

func (p *osProcess) Pid() int { return p.cmd.Process.Pid }

func (p *osProcess) Stop() error {
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	p.cmd.Wait()
	return nil
}

var defaultExec executor = &osExecutor{}
