package parser

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser passes Markdown through, reading the title and structure
// counts from the parsed document.
type MarkdownParser struct{}

func (p *MarkdownParser) SupportedFormats() []string { return []string{"md", "markdown"} }

func (p *MarkdownParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading markdown file: %w", err)
	}
	src, _ := decodeText(data)
	src = normalizeText(src)

	title, headings, tables := markdownOutline([]byte(src))
	return &ParseResult{
		Markdown:  src,
		Title:     title,
		PageCount: 1,
		Method:    "native",
		Metadata: map[string]string{
			"heading_count": fmt.Sprintf("%d", headings),
			"table_count":   fmt.Sprintf("%d", tables),
		},
	}, nil
}

var markdownReader = goldmark.New(goldmark.WithExtensions(extension.GFM)).Parser()

// markdownOutline returns the text of the first top-level heading (or the
// first heading of any level) and the heading and table counts.
func markdownOutline(src []byte) (title string, headings, tables int) {
	doc := markdownReader.Parse(text.NewReader(src))
	best := 0
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			headings++
			if best == 0 || node.Level < best {
				best = node.Level
				title = strings.TrimSpace(string(headingText(node, src)))
			}
			return ast.WalkSkipChildren, nil
		case *east.Table:
			tables++
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return title, headings, tables
}

func headingText(h *ast.Heading, src []byte) []byte {
	var out []byte
	lines := h.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		out = append(out, seg.Value(src)...)
	}
	return out
}
