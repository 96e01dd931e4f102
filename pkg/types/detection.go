// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// DocType is the canonical content type of a file as determined by its bytes.
type DocType string

const (
	TypePDF        DocType = "pdf"
	TypeDOC        DocType = "doc"
	TypeXLS        DocType = "xls"
	TypePPT        DocType = "ppt"
	TypeOLE2       DocType = "ole2"
	TypeDOCX       DocType = "docx"
	TypeXLSX       DocType = "xlsx"
	TypePPTX       DocType = "pptx"
	TypeODT        DocType = "odt"
	TypeODS        DocType = "ods"
	TypeODP        DocType = "odp"
	TypeRTF        DocType = "rtf"
	TypeZIPArchive DocType = "zip_archive"
	TypeArchive    DocType = "archive"
	TypeHTML       DocType = "html"
	TypeXML        DocType = "xml"
	TypeText       DocType = "text"
	TypeImage      DocType = "image"
	TypeUnknown    DocType = "unknown"
)

// KnownDocTypes lists every DocType the sniffer can produce.
var KnownDocTypes = []DocType{
	TypePDF, TypeDOC, TypeXLS, TypePPT, TypeOLE2,
	TypeDOCX, TypeXLSX, TypePPTX, TypeODT, TypeODS, TypeODP,
	TypeRTF, TypeZIPArchive, TypeArchive, TypeHTML, TypeXML,
	TypeText, TypeImage, TypeUnknown,
}

// Valid reports whether t is one of KnownDocTypes.
func (t DocType) Valid() bool {
	for _, k := range KnownDocTypes {
		if t == k {
			return true
		}
	}
	return false
}

// IsLegacyOffice reports whether t is a pre-OOXML office format.
func (t DocType) IsLegacyOffice() bool {
	switch t {
	case TypeDOC, TypeXLS, TypePPT, TypeRTF:
		return true
	}
	return false
}

// FileDetectionResult describes what a file actually contains. It is
// recomputed on every scan and never cached.
type FileDetectionResult struct {
	// Path is the scanned file path as given to the sniffer.
	Path string `json:"path" yaml:"path"`

	// Extension is the lowercased extension without the dot ("" if none).
	Extension string `json:"extension" yaml:"extension"`

	// DetectedType is derived from content; the extension is only a hint.
	DetectedType DocType `json:"detected_type" yaml:"detected_type"`

	// MIMEType is looked up from DetectedType.
	MIMEType string `json:"mime_type" yaml:"mime_type"`

	// IsArchive is set for generic archives (zip or otherwise).
	IsArchive bool `json:"is_archive" yaml:"is_archive"`

	// IsFakeDoc is set when the extension claims a legacy office format but
	// the content is a plain archive.
	IsFakeDoc bool `json:"is_fake_doc" yaml:"is_fake_doc"`

	// SHA256 is the lowercase hex digest of the file content.
	SHA256 string `json:"sha256" yaml:"sha256"`

	// Size is the content length in bytes.
	Size int64 `json:"size" yaml:"size"`
}
