//go:build mage

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main contains Mage build targets for docprep developer tooling.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/magefile/mage/sh"

	"github.com/pdiddy/docprep/internal/convert"
	"github.com/pdiddy/docprep/internal/sniff"
	"github.com/pdiddy/docprep/internal/store"
	"github.com/pdiddy/docprep/pkg/types"
)

// projectDirs lists the working directories docprep expects: incoming
// units, the relocation root, and the record store.
var projectDirs = []string{
	unitsDir,
	"processed",
	storeDir,
}

const storeDir = "store"

// Init creates the project directory structure.
func Init() error {
	for _, dir := range projectDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}
	fmt.Println("Project directories initialized.")
	return nil
}

const (
	binDir  = "bin"
	binName = "docprep"
	cmdPkg  = "./cmd/docprep"
)

// Build compiles the CLI binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	if err := sh.RunV("go", "build", "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Test runs the unit tests with the race detector.
func Test() error {
	if err := sh.RunV("go", "test", "-race", "-count=1", "./..."); err != nil {
		return fmt.Errorf("go test: %w", err)
	}
	return nil
}

// Stats prints what is waiting under units/ by detected type, the totals
// of the record store, and the Go line counts of the module.
func Stats() error {
	if err := unitStats(); err != nil {
		return err
	}
	if err := storeStats(); err != nil {
		return err
	}

	prod, tests, err := countGoLines(".")
	if err != nil {
		return err
	}
	fmt.Printf("Go lines: %d production, %d test\n", prod, tests)
	return nil
}

// unitStats sniffs the top-level files of every unit the way convert does.
func unitStats() error {
	entries, err := os.ReadDir(unitsDir)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Printf("Units: none (%s/ missing)\n", unitsDir)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", unitsDir, err)
	}

	var units, files int
	byType := make(map[types.DocType]int)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		units++
		unit := filepath.Join(unitsDir, e.Name())
		inner, err := os.ReadDir(unit)
		if err != nil {
			return fmt.Errorf("reading %s: %w", unit, err)
		}
		for _, f := range inner {
			if !f.Type().IsRegular() {
				continue
			}
			det, err := sniff.Detect(filepath.Join(unit, f.Name()))
			if err != nil {
				return err
			}
			files++
			byType[det.DetectedType]++
		}
	}

	fmt.Printf("Units: %d (%d files)\n", units, files)
	cm := convert.DefaultConversionMap()
	for _, t := range slices.Sorted(maps.Keys(byType)) {
		line := fmt.Sprintf("  %-12s %d", t, byType[t])
		if to, ok := cm.Target(t); ok {
			line += fmt.Sprintf(" (→ %s)", to)
		}
		fmt.Println(line)
	}
	return nil
}

// storeStats reports the record store without creating it.
func storeStats() error {
	if _, err := os.Stat(filepath.Join(storeDir, "docprep.db")); err != nil {
		fmt.Println("Records: no store yet")
		return nil
	}
	st, err := store.Open(types.StoreConfig{Dir: storeDir})
	if err != nil {
		return err
	}
	defer st.Close()

	s, err := st.Stats(context.Background(), store.Filter{})
	if err != nil {
		return err
	}
	fmt.Printf("Records: %d (%d succeeded, %d failed, %d simulated) across %d units\n",
		s.Total, s.Succeeded, s.Failed, s.Simulated, s.Units)
	return nil
}

// countGoLines counts non-blank lines in the module's Go files, skipping
// directories the go tool ignores.
func countGoLines(root string) (prod, tests int, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (strings.HasPrefix(d.Name(), "_") || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		n := 0
		for line := range bytes.Lines(data) {
			if len(bytes.TrimSpace(line)) > 0 {
				n++
			}
		}
		if strings.HasSuffix(path, "_test.go") {
			tests += n
		} else {
			prod += n
		}
		return nil
	})
	return prod, tests, err
}
