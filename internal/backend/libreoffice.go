// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/docprep/pkg/types"
)

// maxStderr bounds the converter output quoted in error messages.
const maxStderr = 200

// LibreOffice converts documents by running soffice in headless mode:
//
//	soffice --headless --convert-to <ext> --outdir <dir> <file>
type LibreOffice struct {
	bin  string
	exec executor
	log  *zap.Logger
}

// NewLibreOffice returns a backend that runs the soffice binary at bin (a
// name on PATH or an absolute path). A nil logger disables logging.
func NewLibreOffice(bin string, log *zap.Logger) *LibreOffice {
	return newLibreOffice(bin, log, defaultExec)
}

func newLibreOffice(bin string, log *zap.Logger, exec executor) *LibreOffice {
	if bin == "" {
		bin = types.DefaultSofficePath
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LibreOffice{bin: bin, exec: exec, log: log}
}

// Name returns "libreoffice".
func (l *LibreOffice) Name() string { return string(types.BackendLibreOffice) }

// Available reports whether the soffice binary can be found.
func (l *LibreOffice) Available() error {
	if _, err := l.exec.LookPath(l.bin); err != nil {
		return fmt.Errorf("libreoffice binary %s not found: %w", l.bin, err)
	}
	return nil
}

// Convert runs soffice for sourcePath and returns the produced file.
func (l *LibreOffice) Convert(ctx context.Context, sourcePath string, target types.DocType) (string, error) {
	return l.convert(ctx, sourcePath, target, nil, nil)
}

// convert runs soffice with extra environment entries and soffice flags.
func (l *LibreOffice) convert(ctx context.Context, sourcePath string, target types.DocType, env, extraArgs []string) (string, error) {
	if !Supports(target) {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, target)
	}

	outDir, err := NewStage(sourcePath)
	if err != nil {
		return "", err
	}
	args := make([]string, 0, len(extraArgs)+6)
	args = append(args, extraArgs...)
	args = append(args, "--headless", "--convert-to", string(target), "--outdir", outDir, sourcePath)

	l.log.Debug("running soffice",
		zap.String("bin", l.bin),
		zap.Strings("args", args),
		zap.Strings("env", env))

	start := time.Now()
	out, err := l.exec.Run(ctx, env, l.bin, args...)
	if err != nil {
		os.RemoveAll(outDir)
		return "", timeoutErr(ctx, fmt.Errorf("soffice %s: %w%s", filepath.Base(sourcePath), err, quoteOutput(out)))
	}

	produced, err := findOutput(sourcePath, outDir, string(target))
	if err != nil {
		os.RemoveAll(outDir)
		return "", err
	}
	l.log.Debug("soffice finished",
		zap.String("output", produced),
		zap.Duration("elapsed", time.Since(start)))
	return produced, nil
}

// findOutput locates the converted file in outDir. soffice normally writes
// <stem>.<ext>, but the case of the extension can differ.
func findOutput(sourcePath, outDir, ext string) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	expected := filepath.Join(outDir, stem+"."+ext)
	if info, err := os.Stat(expected); err == nil && info.Mode().IsRegular() {
		return expected, nil
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return "", fmt.Errorf("reading output directory %s: %w", outDir, err)
	}
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.HasPrefix(name, stem+".") {
			continue
		}
		if strings.EqualFold(strings.TrimPrefix(filepath.Ext(name), "."), ext) && name != filepath.Base(sourcePath) {
			return filepath.Join(outDir, name), nil
		}
	}
	return "", fmt.Errorf("%w: %s not found in %s", ErrNoOutput, stem+"."+ext, outDir)
}

func quoteOutput(out []byte) string {
	s := strings.TrimSpace(string(out))
	if s == "" {
		return ""
	}
	if len(s) > maxStderr {
		s = s[:maxStderr] + "..."
	}
	return ": " + s
}
