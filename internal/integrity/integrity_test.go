// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package integrity

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateSHA256(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.bin", "hello world")
	b := writeFile(t, dir, "copy-of-a.doc", "hello world")
	empty := writeFile(t, dir, "empty", "")

	got1, err := CalculateSHA256(a)
	require.NoError(t, err)
	got2, err := CalculateSHA256(a)
	require.NoError(t, err)
	got3, err := CalculateSHA256(b)
	require.NoError(t, err)

	const want = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	assert.Equal(t, want, got1)
	assert.Equal(t, got1, got2, "repeated hashing must be deterministic")
	assert.Equal(t, got1, got3, "same bytes at different paths must hash equally")
	assert.Len(t, got1, 64)
	assert.Equal(t, strings.ToLower(got1), got1)

	gotEmpty, err := CalculateSHA256(empty)
	require.NoError(t, err)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", gotEmpty)
}

func TestCalculateSHA256_LargerThanChunk(t *testing.T) {
	dir := t.TempDir()
	content := strings.Repeat("x", chunkSize*3+17)
	p1 := writeFile(t, dir, "big1", content)
	p2 := writeFile(t, dir, "big2", content)

	h1, err := CalculateSHA256(p1)
	require.NoError(t, err)
	h2, err := CalculateSHA256(p2)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestCalculateSHA256_Missing(t *testing.T) {
	_, err := CalculateSHA256(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestFileSize(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "f.txt", "12345")

	n, err := FileSize(p)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	_, err = FileSize(dir)
	assert.Error(t, err, "directories have no file size")

	_, err = FileSize(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "report.doc", "report.doc"},
		{"parent dir prefix", "../file.txt", "__file.txt"},
		{"nested traversal", "../../etc/passwd", "____etc_passwd"},
		{"windows separators", `..\..\boot.ini`, "____boot.ini"},
		{"control characters", "a\x00b\nc\td", "a_b_c_d"},
		{"dot only", ".", fallbackName},
		{"double dot only", "..", "_"},
		{"empty", "", fallbackName},
		{"whitespace", "   ", fallbackName},
		{"trims spaces", "  unit 42  ", "unit 42"},
		{"triple dots", "a...b", "a_b"},
		{"keeps single dots", "v1.2.3.tar", "v1.2.3.tar"},
		{"unicode kept", "Протокол №5.docx", "Протокол №5.docx"},
		{"drive colon", "C:evil", "C_evil"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeFilename(tt.in)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "..")
			assert.Equal(t, got, SanitizeFilename(got), "must be idempotent")
		})
	}
}

func TestSanitizeFilename_Properties(t *testing.T) {
	inputs := []string{
		"../file.txt", "..", "...", "....//....", "a/../../b", "\x7f\x1b[31m",
		"\xff\xfe invalid utf8", " . ", ". .", "x" + strings.Repeat("é", 200),
		strings.Repeat(".", 300), "nul\x00", "/", `\`, "./.", "name.",
	}
	base := t.TempDir()
	for _, in := range inputs {
		got := SanitizeFilename(in)
		assert.NotEmpty(t, got, "input %q", in)
		assert.NotContains(t, got, "..", "input %q", in)
		assert.NotContains(t, got, "/", "input %q", in)
		assert.NotContains(t, got, `\`, "input %q", in)
		assert.LessOrEqual(t, len(got), maxNameBytes, "input %q", in)
		assert.Equal(t, got, SanitizeFilename(got), "idempotence for %q", in)

		joined := SafeJoin(base, in)
		rel, err := filepath.Rel(base, joined)
		require.NoError(t, err)
		assert.False(t, strings.HasPrefix(rel, ".."), "input %q escaped base: %s", in, joined)
		assert.NotEqual(t, ".", rel, "input %q collapsed to base", in)
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}
