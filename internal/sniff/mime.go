// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sniff

import "github.com/pdiddy/docprep/pkg/types"

const mimeOctetStream = "application/octet-stream"

var mimeTypes = map[types.DocType]string{
	types.TypePDF:        "application/pdf",
	types.TypeDOC:        "application/msword",
	types.TypeXLS:        "application/vnd.ms-excel",
	types.TypePPT:        "application/vnd.ms-powerpoint",
	types.TypeOLE2:       "application/x-ole-storage",
	types.TypeDOCX:       "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	types.TypeXLSX:       "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	types.TypePPTX:       "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	types.TypeODT:        "application/vnd.oasis.opendocument.text",
	types.TypeODS:        "application/vnd.oasis.opendocument.spreadsheet",
	types.TypeODP:        "application/vnd.oasis.opendocument.presentation",
	types.TypeRTF:        "application/rtf",
	types.TypeZIPArchive: "application/zip",
	types.TypeArchive:    mimeOctetStream,
	types.TypeHTML:       "text/html",
	types.TypeXML:        "application/xml",
	types.TypeText:       "text/plain",
	types.TypeImage:      "image/*",
	types.TypeUnknown:    mimeOctetStream,
}

// MIMEType returns the MIME type for t, or application/octet-stream.
func MIMEType(t types.DocType) string {
	if m, ok := mimeTypes[t]; ok {
		return m
	}
	return mimeOctetStream
}
