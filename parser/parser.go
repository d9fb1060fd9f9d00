package parser

import (
	"context"
	"errors"
)

// ErrUnsupportedFormat is returned when no parser handles a format, or a
// parser was built without the backend a format needs.
var ErrUnsupportedFormat = errors.New("unsupported format")

// ParseResult is what a parser produces from a document file.
type ParseResult struct {
	Markdown  string
	Title     string
	PageCount int
	Method    string // "layout", "native", "ocr", "llamaparse"
	Metadata  map[string]string
}

// Parser can parse a specific document format.
type Parser interface {
	Parse(ctx context.Context, path string) (*ParseResult, error)
	SupportedFormats() []string
}
