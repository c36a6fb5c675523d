package extract

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fumiama/go-docx"
)

// DOCXExtractor reads the body paragraphs of a Word document.
type DOCXExtractor struct{}

func (e *DOCXExtractor) Extract(ctx context.Context, r io.ReaderAt, size int64) (text string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			text, err = "", fmt.Errorf("read docx: %v", recovered)
		}
	}()

	doc, err := docx.Parse(r, size)
	if err != nil {
		return "", fmt.Errorf("parse docx: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	paragraphs := make([]string, 0, len(doc.Document.Body.Items))
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		paragraphs = append(paragraphs, paragraphText(para))
	}

	return strings.Join(paragraphs, "\n"), nil
}

func paragraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			switch node := rc.(type) {
			case *docx.Text:
				buf.WriteString(node.Text)
			case *docx.Tab:
				buf.WriteString("\t")
			}
		}
	}
	return buf.String()
}
