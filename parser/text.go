package parser

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding/htmlindex"
)

// TextParser handles plain text and delimited files. Input in a legacy
// charset is detected and decoded to UTF-8.
type TextParser struct{}

func (p *TextParser) SupportedFormats() []string { return []string{"txt", "text", "csv", "tsv"} }

func (p *TextParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}

	text, charset := decodeText(data)
	meta := map[string]string{"charset": charset}

	var md string
	switch FormatFromPath(path) {
	case "csv":
		md, err = delimitedToMarkdown(text, ',')
	case "tsv":
		md, err = delimitedToMarkdown(text, '\t')
	default:
		md = normalizeText(text)
	}
	if err != nil {
		return nil, err
	}

	return &ParseResult{
		Markdown:  md,
		PageCount: 1,
		Method:    "native",
		Metadata:  meta,
	}, nil
}

// decodeText returns data as UTF-8 along with the charset it was read as.
func decodeText(data []byte) (string, string) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data), "UTF-8"
	}

	res, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil {
		slog.Debug("text: charset detection failed", "error", err)
		return strings.ToValidUTF8(string(data), "�"), "unknown"
	}
	enc, err := htmlindex.Get(res.Charset)
	if err != nil {
		slog.Debug("text: unsupported charset", "charset", res.Charset, "error", err)
		return strings.ToValidUTF8(string(data), "�"), res.Charset
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "�"), res.Charset
	}
	return string(out), res.Charset
}

var blankRunRe = regexp.MustCompile(`\n{3,}`)

// normalizeText unifies line endings, strips trailing spaces and collapses
// runs of blank lines.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	s = blankRunRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(s)
}

func delimitedToMarkdown(text string, comma rune) (string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return "", fmt.Errorf("reading delimited text: %w", err)
	}
	return pipeTable(trimEmptyRows(rows)), nil
}
