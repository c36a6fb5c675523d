package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrUnsupportedFormat indicates the document type has no extractor.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrExtractionFailed indicates the document could not be parsed.
	ErrExtractionFailed = errors.New("document extraction failed")
)

// Format identifies a supported document type.
type Format string

const (
	FormatUnknown Format = ""
	FormatPDF     Format = "pdf"
	FormatDOCX    Format = "docx"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// MIMEType returns the canonical content type for the format.
func (f Format) MIMEType() string {
	switch f {
	case FormatPDF:
		return mimePDF
	case FormatDOCX:
		return mimeDOCX
	default:
		return "application/octet-stream"
	}
}

// Extractor converts raw document bytes into plain text.
type Extractor interface {
	Extract(ctx context.Context, r io.ReaderAt, size int64) (string, error)
}

// DetectFormat sniffs the payload and falls back to the file extension when the
// sniffed type is a bare zip container.
func DetectFormat(data []byte, filename string) Format {
	detected := mimetype.Detect(data)
	ext := strings.ToLower(filepath.Ext(filename))

	switch {
	case detected.Is(mimePDF):
		return FormatPDF
	case detected.Is(mimeDOCX):
		return FormatDOCX
	case detected.Is("application/zip") && ext == ".docx":
		return FormatDOCX
	default:
		return FormatUnknown
	}
}

// ForFormat returns the extractor for a format.
func ForFormat(format Format) (Extractor, error) {
	switch format {
	case FormatPDF:
		return &PDFExtractor{}, nil
	case FormatDOCX:
		return &DOCXExtractor{}, nil
	default:
		return nil, ErrUnsupportedFormat
	}
}

// Text detects the document format and extracts its text. Unsupported documents
// yield an empty string and ErrUnsupportedFormat.
func Text(ctx context.Context, data []byte, filename string) (string, Format, error) {
	format := DetectFormat(data, filename)
	extractor, err := ForFormat(format)
	if err != nil {
		return "", format, err
	}

	text, err := extractor.Extract(ctx, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", format, fmt.Errorf("%w: %s: %v", ErrExtractionFailed, format, err)
	}

	return text, format, nil
}
