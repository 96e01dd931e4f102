// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sniff determines what a file really contains. Content signatures
// always win over the file extension; the extension is consulted only to
// refine an already-identified family (OLE2 subtypes) and to flag archives
// that pretend to be legacy office documents.
package sniff

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/h2non/filetype"

	"github.com/pdiddy/docprep/internal/integrity"
	"github.com/pdiddy/docprep/pkg/types"
)

// HeaderSize is the number of leading bytes inspected for signatures. It
// covers the full 512-byte OLE2 header.
const HeaderSize = 512

var (
	utf8BOM   = []byte{0xEF, 0xBB, 0xBF}
	magicOLE2 = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	magicPDF  = []byte("%PDF-")
	magicRTF  = []byte(`{\rtf`)
	magicZIP  = [][]byte{
		{'P', 'K', 0x03, 0x04},
		{'P', 'K', 0x05, 0x06}, // empty archive
		{'P', 'K', 0x07, 0x08}, // spanned archive
	}

	prefixDoctypeHTML = []byte("<!doctype html")
	prefixHTML        = []byte("<html")
	prefixXMLDecl     = []byte("<?xml")
)

// Detect inspects the file at path and reports its content type together
// with its digest and size. It fails only when the file cannot be read;
// malformed, truncated, or empty content resolves to a result.
//
// MIMEType comes from the static per-type table, except for image and
// archive content where the table holds only a generic value; there the
// concrete MIME type of the matched signature is reported instead
// (image/png rather than image/*, application/gzip rather than
// application/octet-stream).
func Detect(path string) (types.FileDetectionResult, error) {
	res := types.FileDetectionResult{
		Path:      path,
		Extension: extension(path),
	}

	f, err := os.Open(path)
	if err != nil {
		return res, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return res, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return res, fmt.Errorf("%s is a directory", path)
	}
	res.Size = info.Size()

	header := make([]byte, HeaderSize)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return res, fmt.Errorf("reading header of %s: %w", path, err)
	}
	header = header[:n]

	res.DetectedType, res.IsArchive = classify(f, res.Size, header, res.Extension)
	if res.DetectedType == types.TypeZIPArchive && types.DocType(res.Extension).IsLegacyOffice() {
		res.IsFakeDoc = true
	}
	res.MIMEType = MIMEType(res.DetectedType)
	if res.DetectedType == types.TypeImage || res.DetectedType == types.TypeArchive {
		if kind, err := filetype.Match(header); err == nil && kind != filetype.Unknown {
			res.MIMEType = kind.MIME.Value
		}
	}

	sum, err := integrity.CalculateSHA256(path)
	if err != nil {
		return res, err
	}
	res.SHA256 = sum

	return res, nil
}

// classify applies the signature checks in precedence order: textual
// markup, binary magic, secondary binary signatures, plain text.
func classify(r io.ReaderAt, size int64, header []byte, ext string) (types.DocType, bool) {
	if len(header) == 0 {
		return types.TypeUnknown, false
	}

	if t, ok := classifyMarkup(header); ok {
		return t, false
	}

	switch {
	case bytes.HasPrefix(header, magicOLE2):
		return oleSubtype(r, header, ext), false
	case bytes.HasPrefix(header, magicPDF):
		return types.TypePDF, false
	case bytes.HasPrefix(header, magicRTF):
		return types.TypeRTF, false
	case isZIP(header):
		return zipSubtype(r, size)
	}

	switch {
	case filetype.IsImage(header):
		return types.TypeImage, false
	case filetype.IsArchive(header):
		return types.TypeArchive, true
	}

	if isText(header) {
		return types.TypeText, false
	}
	return types.TypeUnknown, false
}

// classifyMarkup recognizes HTML and XML after stripping a UTF-8 BOM and
// leading whitespace. An XML declaration followed by an HTML doctype or
// root element within the header window is XHTML and reported as html.
func classifyMarkup(header []byte) (types.DocType, bool) {
	text := bytes.TrimPrefix(header, utf8BOM)
	text = bytes.TrimLeft(text, " \t\r\n\f")

	switch {
	case hasPrefixFold(text, prefixDoctypeHTML), hasPrefixFold(text, prefixHTML):
		return types.TypeHTML, true
	case hasPrefixFold(text, prefixXMLDecl):
		lower := bytes.ToLower(text)
		if bytes.Contains(lower, prefixDoctypeHTML) || bytes.Contains(lower, prefixHTML) {
			return types.TypeHTML, true
		}
		return types.TypeXML, true
	}
	return "", false
}

func hasPrefixFold(b, prefix []byte) bool {
	return len(b) >= len(prefix) && bytes.EqualFold(b[:len(prefix)], prefix)
}

func isZIP(header []byte) bool {
	for _, m := range magicZIP {
		if bytes.HasPrefix(header, m) {
			return true
		}
	}
	return false
}

// isText reports whether header looks like UTF-8 text with no control
// characters other than common whitespace. A rune cut off by the header
// window boundary is tolerated.
func isText(header []byte) bool {
	b := bytes.TrimPrefix(header, utf8BOM)
	if len(b) == 0 {
		return false
	}
	if len(header) == HeaderSize {
		b = trimPartialRune(b)
	}
	if !utf8.Valid(b) {
		return false
	}
	for _, c := range b {
		if c < 0x20 && c != '\t' && c != '\n' && c != '\r' && c != '\f' {
			return false
		}
		if c == 0x7F {
			return false
		}
	}
	return true
}

// trimPartialRune drops an incomplete trailing UTF-8 sequence.
func trimPartialRune(b []byte) []byte {
	for i := 1; i <= utf8.UTFMax && i <= len(b); i++ {
		if utf8.RuneStart(b[len(b)-i]) {
			if !utf8.FullRune(b[len(b)-i:]) {
				return b[:len(b)-i]
			}
			break
		}
	}
	return b
}

func extension(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}
