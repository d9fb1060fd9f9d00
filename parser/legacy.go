package parser

import (
	"context"
	"fmt"
)

// LegacyParser stands in for legacy binary formats until an external
// converter is configured.
type LegacyParser struct{}

func (p *LegacyParser) SupportedFormats() []string { return []string{"doc", "xls", "ppt"} }

func (p *LegacyParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	return nil, fmt.Errorf("%w: legacy format requires external parser (LlamaParse); configure llamaparse in config", ErrUnsupportedFormat)
}
