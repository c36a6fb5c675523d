package service

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/noah-isme/gema-evaluator/internal/extract"
	"github.com/noah-isme/gema-evaluator/internal/observability"
)

var (
	// ErrUploadMissing indicates the request carried no file.
	ErrUploadMissing = errors.New("file is required")
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the sniffed document type is not accepted.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
	// ErrUploadScanFailed indicates the archive structure looked unsafe to expand.
	ErrUploadScanFailed = errors.New("file scanning failed")
)

// Document is an uploaded file held in memory.
type Document struct {
	Name string
	Data []byte
}

// SubmissionName is the file name without its extension, used in prompts and download names.
func (d Document) SubmissionName() string {
	base := filepath.Base(strings.ReplaceAll(d.Name, "\\", "/"))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// DownloadName is the attachment name of the feedback report.
func (d Document) DownloadName() string {
	name := d.SubmissionName()
	if name == "" {
		name = "documento"
	}
	return "Evaluacion_" + name + ".txt"
}

// UploadPolicy bounds the size of uploaded documents.
type UploadPolicy struct {
	MaxBytes int64
}

// NewUploadPolicy builds a policy capped at maxSizeMB megabytes.
func NewUploadPolicy(maxSizeMB int) UploadPolicy {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return UploadPolicy{MaxBytes: int64(maxSizeMB) * 1024 * 1024}
}

// Read loads a multipart file into memory, enforcing the size limit.
func (p UploadPolicy) Read(file *multipart.FileHeader) (Document, error) {
	if file == nil {
		return Document{}, ErrUploadMissing
	}
	if file.Size > p.MaxBytes {
		observability.UploadsRejected().WithLabelValues("size").Inc()
		return Document{}, fmt.Errorf("%s: %w", file.Filename, ErrUploadTooLarge)
	}

	handle, err := file.Open()
	if err != nil {
		return Document{}, fmt.Errorf("open upload: %w", err)
	}
	defer handle.Close()

	return p.ReadFrom(file.Filename, handle)
}

// ReadFrom loads a named document from r, enforcing the size limit.
func (p UploadPolicy) ReadFrom(name string, r io.Reader) (Document, error) {
	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(r, p.MaxBytes+1)); err != nil {
		return Document{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(buf.Len()) > p.MaxBytes {
		observability.UploadsRejected().WithLabelValues("size").Inc()
		return Document{}, fmt.Errorf("%s: %w", name, ErrUploadTooLarge)
	}

	return Document{Name: strings.TrimSpace(name), Data: buf.Bytes()}, nil
}

// ReadAll loads every file, failing on the first violation so no work starts on a bad batch.
func (p UploadPolicy) ReadAll(files []*multipart.FileHeader) ([]Document, error) {
	if len(files) == 0 {
		return nil, ErrUploadMissing
	}

	documents := make([]Document, 0, len(files))
	for _, file := range files {
		doc, err := p.Read(file)
		if err != nil {
			return nil, err
		}
		documents = append(documents, doc)
	}
	return documents, nil
}

// Scan rejects DOCX containers whose uncompressed size is out of proportion to the limit.
func (p UploadPolicy) Scan(doc Document, format extract.Format) error {
	if format != extract.FormatDOCX {
		return nil
	}

	reader, err := zip.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return ErrUploadScanFailed
	}
	var totalUncompressed uint64
	for _, f := range reader.File {
		totalUncompressed += f.UncompressedSize64
		if totalUncompressed > uint64(p.MaxBytes*20) {
			observability.UploadsRejected().WithLabelValues("scan").Inc()
			return fmt.Errorf("docx uncompressed size too large: %w", ErrUploadScanFailed)
		}
	}
	return nil
}

func sanitizeFileName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = "report"
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".txt"
	}
	return base + ext
}
