// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sniff

import (
	"archive/zip"
	"encoding/binary"
	"io"
	"strings"
	"unicode/utf16"

	"github.com/pdiddy/docprep/pkg/types"
)

const (
	contentTypesEntry = "[Content_Types].xml"
	odfMimetypeEntry  = "mimetype"
	maxMimetypeLen    = 128

	oleSectorShiftOffset = 0x1E
	oleDirStartOffset    = 0x30
	oleDirEntrySize      = 128
	oleMaxDirRead        = 4096
	oleEndOfChain        = 0xFFFFFFFE
)

// ooxmlParts maps the main document part of an OOXML package to its type.
var ooxmlParts = map[string]types.DocType{
	"word/document.xml":    types.TypeDOCX,
	"xl/workbook.xml":      types.TypeXLSX,
	"ppt/presentation.xml": types.TypePPTX,
}

var odfMimetypes = map[string]types.DocType{
	"application/vnd.oasis.opendocument.text":         types.TypeODT,
	"application/vnd.oasis.opendocument.spreadsheet":  types.TypeODS,
	"application/vnd.oasis.opendocument.presentation": types.TypeODP,
}

// oleStreams maps well-known root stream names to the legacy format that
// owns them.
var oleStreams = map[string]types.DocType{
	"WordDocument":        types.TypeDOC,
	"Workbook":            types.TypeXLS,
	"Book":                types.TypeXLS,
	"PowerPoint Document": types.TypePPT,
}

// oleExtensionHints refine an OLE2 file whose directory could not be read.
var oleExtensionHints = map[string]types.DocType{
	"doc": types.TypeDOC,
	"dot": types.TypeDOC,
	"xls": types.TypeXLS,
	"xlt": types.TypeXLS,
	"ppt": types.TypePPT,
	"pps": types.TypePPT,
	"pot": types.TypePPT,
}

// zipSubtype opens the central directory and looks for OOXML or ODF
// markers. A container that cannot be opened is reported as unknown.
func zipSubtype(r io.ReaderAt, size int64) (types.DocType, bool) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return types.TypeUnknown, false
	}

	var hasContentTypes bool
	var part types.DocType
	var mimetype *zip.File
	for _, f := range zr.File {
		switch name := f.Name; {
		case name == contentTypesEntry:
			hasContentTypes = true
		case name == odfMimetypeEntry:
			mimetype = f
		default:
			if t, ok := ooxmlParts[name]; ok && part == "" {
				part = t
			}
		}
	}

	if hasContentTypes && part != "" {
		return part, false
	}
	if mimetype != nil {
		if t, ok := odfType(mimetype); ok {
			return t, false
		}
	}
	return types.TypeZIPArchive, true
}

func odfType(f *zip.File) (types.DocType, bool) {
	rc, err := f.Open()
	if err != nil {
		return "", false
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxMimetypeLen))
	if err != nil {
		return "", false
	}
	t, ok := odfMimetypes[strings.TrimSpace(string(data))]
	return t, ok
}

// oleSubtype reads the first directory sector of a compound file and maps
// known stream names to doc, xls, or ppt. When the directory is unreadable
// the extension may pick the subtype; otherwise the file is plain ole2.
func oleSubtype(r io.ReaderAt, header []byte, ext string) types.DocType {
	for _, name := range oleDirectoryNames(r, header) {
		if t, ok := oleStreams[name]; ok {
			return t
		}
	}
	if t, ok := oleExtensionHints[ext]; ok {
		return t
	}
	return types.TypeOLE2
}

// oleDirectoryNames returns the entry names of the first directory sector,
// or nil when the header or sector is malformed.
func oleDirectoryNames(r io.ReaderAt, header []byte) []string {
	if len(header) < oleDirStartOffset+4 {
		return nil
	}
	shift := binary.LittleEndian.Uint16(header[oleSectorShiftOffset:])
	if shift != 9 && shift != 12 {
		return nil
	}
	dirStart := binary.LittleEndian.Uint32(header[oleDirStartOffset:])
	if dirStart >= oleEndOfChain {
		return nil
	}

	sectorSize := int64(1) << shift
	length := sectorSize
	if length > oleMaxDirRead {
		length = oleMaxDirRead
	}
	buf := make([]byte, length)
	n, err := r.ReadAt(buf, (int64(dirStart)+1)*sectorSize)
	if err != nil && n == 0 {
		return nil
	}
	buf = buf[:n]

	var names []string
	for off := 0; off+oleDirEntrySize <= len(buf); off += oleDirEntrySize {
		if name := oleEntryName(buf[off : off+oleDirEntrySize]); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// oleEntryName decodes the UTF-16LE name of one 128-byte directory entry.
func oleEntryName(entry []byte) string {
	nameLen := int(binary.LittleEndian.Uint16(entry[0x40:]))
	if nameLen < 2 || nameLen > 64 || nameLen%2 != 0 {
		return ""
	}
	units := make([]uint16, 0, nameLen/2-1)
	for i := 0; i+1 < nameLen-2; i += 2 {
		units = append(units, binary.LittleEndian.Uint16(entry[i:]))
	}
	return string(utf16.Decode(units))
}
