// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package integrity provides content hashing, file sizing, and filename
// sanitization used by detection and destination-path computation.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// chunkSize bounds the memory used while hashing.
	chunkSize = 64 * 1024

	// maxNameBytes matches the common filesystem limit for one path element.
	maxNameBytes = 255

	fallbackName = "unnamed_file"
)

var dotRun = regexp.MustCompile(`\.{2,}`)

// CalculateSHA256 streams the file at path and returns its lowercase hex
// SHA-256 digest.
func CalculateSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FileSize returns the byte length of the regular file at path.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	return info.Size(), nil
}

// SanitizeFilename turns name into a single safe path element. Separators
// and control characters become underscores, runs of two or more dots
// collapse to one underscore, and surrounding whitespace is trimmed. The
// result is never empty, never "." and never contains "..", so joining it
// to a base directory cannot leave that directory. The function is
// idempotent.
func SanitizeFilename(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':':
			return '_'
		case r == utf8.RuneError, unicode.IsControl(r):
			return '_'
		}
		return r
	}, name)

	mapped = dotRun.ReplaceAllString(mapped, "_")
	mapped = truncateBytes(mapped, maxNameBytes)
	mapped = strings.TrimSpace(mapped)

	if mapped == "" || mapped == "." {
		return fallbackName
	}
	return mapped
}

// SafeJoin joins a sanitized name onto base.
func SafeJoin(base, name string) string {
	return filepath.Join(base, SanitizeFilename(name))
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
