package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Markdown renders model feedback into sanitized HTML.
type Markdown struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewMarkdown builds a renderer with GitHub flavoured tables and lists.
func NewMarkdown() *Markdown {
	return &Markdown{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy: bluemonday.UGCPolicy(),
	}
}

// HTML converts feedback markdown into HTML safe for embedding in a page.
func (m *Markdown) HTML(source string) (string, error) {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return m.policy.Sanitize(buf.String()), nil
}

// Sections lists the headings and bold-only paragraphs the feedback is organised under.
func (m *Markdown) Sections(source string) []string {
	src := []byte(source)
	doc := m.md.Parser().Parse(text.NewReader(src))

	sections := make([]string, 0)
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			if title := nodeText(node, src); title != "" {
				sections = append(sections, title)
			}
		case *ast.Paragraph:
			if emph, ok := node.FirstChild().(*ast.Emphasis); ok && emph.Level == 2 && emph.NextSibling() == nil {
				if title := nodeText(emph, src); title != "" {
					sections = append(sections, title)
				}
			}
		case *ast.List:
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				block := item.FirstChild()
				if block == nil {
					continue
				}
				if emph, ok := block.FirstChild().(*ast.Emphasis); ok && emph.Level == 2 {
					if title := nodeText(emph, src); title != "" {
						sections = append(sections, title)
					}
				}
			}
		}
	}
	return sections
}

func nodeText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := child.(*ast.Text); ok {
			buf.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(strings.TrimRight(buf.String(), ":"))
}
