//go:build mage

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const unitsDir = "units"

// DryRun builds the CLI and reports what converting every unit under units/
// would do, without touching any file.
func DryRun() error {
	mg.Deps(Build)

	entries, err := os.ReadDir(unitsDir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", unitsDir, err)
	}
	var units []string
	for _, e := range entries {
		if e.IsDir() {
			units = append(units, filepath.Join(unitsDir, e.Name()))
		}
	}
	if len(units) == 0 {
		fmt.Printf("[dry-run] No units under %s/.\n", unitsDir)
		return nil
	}

	args := append([]string{"convert", "--dry-run", "--no-headless",
		"--cycle", "1", "--protocol-date", time.Now().Format("2006-01-02")}, units...)
	if err := sh.RunV(filepath.Join(binDir, binName), args...); err != nil {
		return fmt.Errorf("docprep convert: %w", err)
	}
	return nil
}
