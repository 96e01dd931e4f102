// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/docprep/internal/backend"
	"github.com/pdiddy/docprep/internal/sniff"
	"github.com/pdiddy/docprep/pkg/types"
)

// ErrInvalidOutput is returned when a backend reports success but its
// output is not a document of the requested type.
var ErrInvalidOutput = errors.New("invalid conversion output")

// maxOutputNames bounds the search for a free output name.
const maxOutputNames = 100

// finishOutput checks the staged output of src and moves it to its final
// name. On any error the staged output is removed and src is untouched.
func (c *Converter) finishOutput(src, staged string, target types.DocType, claimed map[string]bool) (string, error) {
	if sameFile(staged, src) {
		return "", fmt.Errorf("%w: backend wrote over the source", ErrInvalidOutput)
	}
	if err := verifyOutput(staged, target); err != nil {
		discard(staged)
		return "", err
	}
	dest, err := outputPath(src, target, claimed)
	if err != nil {
		discard(staged)
		return "", err
	}
	if err := os.Rename(staged, dest); err != nil {
		discard(staged)
		return "", fmt.Errorf("placing %s: %w", filepath.Base(dest), err)
	}
	removeStage(staged)
	claimed[strings.ToLower(dest)] = true
	return dest, nil
}

// verifyOutput re-detects a produced file. soffice can exit 0 without
// writing a usable document.
func verifyOutput(path string, target types.DocType) error {
	det, err := sniff.Detect(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOutput, err)
	}
	if det.DetectedType != target {
		return fmt.Errorf("%w: %s holds %s, want %s", ErrInvalidOutput, filepath.Base(path), det.DetectedType, target)
	}
	return nil
}

// outputPath picks the final name for the converted form of src:
// <stem>.<target>, or <stem>.converted.<target>, <stem>.converted-2.<target>
// and so on when the plain name is the source itself, an existing file, or
// an output already placed in this unit. Names are compared without case so
// that a unit stays valid on case-insensitive filesystems.
func outputPath(src string, target types.DocType, claimed map[string]bool) (string, error) {
	dir := filepath.Dir(src)
	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	ext := "." + string(target)

	for i := range maxOutputNames {
		var name string
		switch i {
		case 0:
			name = stem + ext
		case 1:
			name = stem + ".converted" + ext
		default:
			name = fmt.Sprintf("%s.converted-%d%s", stem, i, ext)
		}
		p := filepath.Join(dir, name)
		if sameFile(p, src) || claimed[strings.ToLower(p)] {
			continue
		}
		if _, err := os.Lstat(p); !errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return p, nil
	}
	return "", fmt.Errorf("%w: no free output name for %s", ErrInvalidOutput, filepath.Base(src))
}

func sameFile(a, b string) bool {
	return strings.EqualFold(filepath.Clean(a), filepath.Clean(b))
}

// discard removes a staged output and its stage directory.
func discard(staged string) {
	os.Remove(staged)
	removeStage(staged)
}

func removeStage(staged string) {
	if dir := filepath.Dir(staged); backend.IsStage(dir) {
		os.RemoveAll(dir)
	}
}
