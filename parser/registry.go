package parser

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yosbelms/mdize/layout"
)

type LlamaParseConfig struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
}

// Options configures the built-in parsers.
type Options struct {
	Layout       layout.Options
	Readability  bool     // extract the main article from HTML pages
	OCRLanguages []string // tesseract language codes, e.g. "eng"
}

type Registry struct {
	parsers    map[string]Parser
	llamaParse *LlamaParseConfig
}

func NewRegistry(opts Options) *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	// Register built-in parsers
	builtin := []Parser{
		&PDFParser{Layout: opts.Layout},
		&ImageParser{Layout: opts.Layout, Languages: opts.OCRLanguages},
		&DOCXParser{},
		&PPTXParser{},
		&XLSXParser{},
		&HTMLParser{Readability: opts.Readability},
		&MarkdownParser{},
		&TextParser{},
		&LegacyParser{},
	}
	for _, p := range builtin {
		for _, f := range p.SupportedFormats() {
			r.parsers[f] = p
		}
	}
	return r
}

func (r *Registry) SetLlamaParse(cfg LlamaParseConfig) {
	r.llamaParse = &cfg
	lp := NewLlamaParseParser(cfg)
	// Register legacy formats
	for _, f := range lp.SupportedFormats() {
		r.parsers[f] = lp
	}
}

func (r *Registry) Get(format string) (Parser, error) {
	p, ok := r.parsers[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return p, nil
}

func (r *Registry) Register(format string, p Parser) {
	r.parsers[strings.ToLower(format)] = p
}

// Formats lists every registered format in sorted order.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.parsers))
	for f := range r.parsers {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// FormatFromPath returns the lowercased extension of path without the dot.
func FormatFromPath(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}
