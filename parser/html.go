package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

// HTMLParser converts saved web pages. With Readability set, only the main
// article is kept.
type HTMLParser struct {
	Readability bool
}

func (p *HTMLParser) SupportedFormats() []string { return []string{"html", "htm", "xhtml"} }

func (p *HTMLParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading HTML file: %w", err)
	}
	raw, _ := decodeText(data)

	meta := map[string]string{}
	title := ""
	body := raw
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw)); err == nil {
		title = strings.TrimSpace(doc.Find("title").First().Text())
		if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok && desc != "" {
			meta["description"] = strings.TrimSpace(desc)
		}
		if lang, ok := doc.Find("html").Attr("lang"); ok && lang != "" {
			meta["lang"] = lang
		}
		if inner, err := doc.Find("body").First().Html(); err == nil && strings.TrimSpace(inner) != "" {
			body = inner
		}
	}

	if p.Readability {
		if article, err := extractArticle(raw, path); err != nil {
			slog.Debug("html: readability failed, using full page", "path", path, "error", err)
		} else if strings.TrimSpace(article.Content) != "" {
			body = article.Content
			if title == "" {
				title = strings.TrimSpace(article.Title)
			}
			if article.Byline != "" {
				meta["byline"] = article.Byline
			}
			if article.SiteName != "" {
				meta["site_name"] = article.SiteName
			}
		}
	}

	md, err := htmlToMarkdown(body)
	if err != nil {
		return nil, err
	}

	return &ParseResult{
		Markdown:  md,
		Title:     title,
		PageCount: 1,
		Method:    "native",
		Metadata:  meta,
	}, nil
}

func extractArticle(html, path string) (readability.Article, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	pageURL := &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	parser := readability.NewParser()
	return parser.Parse(strings.NewReader(html), pageURL)
}

var (
	htmlPolicy    = bluemonday.UGCPolicy()
	htmlConverter = converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
)

// htmlToMarkdown sanitizes markup before converting it, so scripts, styles
// and event handlers never reach the output.
func htmlToMarkdown(html string) (string, error) {
	clean := htmlPolicy.Sanitize(html)
	md, err := htmlConverter.ConvertString(clean)
	if err != nil {
		return "", fmt.Errorf("converting HTML: %w", err)
	}
	return strings.TrimSpace(md), nil
}
