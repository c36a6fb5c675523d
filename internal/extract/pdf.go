package extract

import (
	"context"
	"fmt"
	"io"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// PDFExtractor reads the plain text of every page of a PDF document.
type PDFExtractor struct{}

// Extract returns the page text in page order. The pdf library panics on malformed
// objects, so those panics are returned as errors.
func (e *PDFExtractor) Extract(ctx context.Context, r io.ReaderAt, size int64) (text string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			text, err = "", fmt.Errorf("read pdf: %v", recovered)
		}
	}()

	reader, err := pdflib.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var buf strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(pageText)
	}

	return buf.String(), nil
}
