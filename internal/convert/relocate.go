// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/pdiddy/docprep/pkg/types"
)

// ErrDestinationExists is returned by Relocate when MovedTo is occupied.
var ErrDestinationExists = errors.New("destination already exists")

// Relocate moves a converted unit to res.MovedTo. It is a separate step from
// ConvertUnit and does nothing for dry-run results. Moves across filesystems
// fall back to copy and remove.
func (c *Converter) Relocate(res *types.UnitConversionResult) error {
	if res == nil || res.DryRun {
		return nil
	}
	if _, err := os.Lstat(res.MovedTo); err == nil {
		return fmt.Errorf("%w: %s", ErrDestinationExists, res.MovedTo)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking destination %s: %w", res.MovedTo, err)
	}
	if err := os.MkdirAll(filepath.Dir(res.MovedTo), 0o755); err != nil {
		return fmt.Errorf("creating destination parent: %w", err)
	}

	err := os.Rename(res.UnitPath, res.MovedTo)
	if errors.Is(err, syscall.EXDEV) {
		err = moveAcross(res.UnitPath, res.MovedTo)
	}
	if err != nil {
		return fmt.Errorf("moving %s to %s: %w", res.UnitPath, res.MovedTo, err)
	}

	c.log.Info("unit relocated", zap.String("from", res.UnitPath), zap.String("to", res.MovedTo))
	c.progress("moved: %s → %s\n", filepath.Base(res.UnitPath), res.MovedTo)
	return nil
}

// moveAcross copies src into dst and removes src once the copy is complete.
func moveAcross(src, dst string) error {
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		case d.Type().IsRegular():
			return copyFile(path, target)
		default:
			return nil
		}
	})
	if err != nil {
		os.RemoveAll(dst)
		return err
	}
	return os.RemoveAll(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
