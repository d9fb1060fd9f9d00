package parser

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"github.com/yosbelms/mdize/layout"
)

// PDFParser extracts positioned words from every page and hands them to
// the layout core.
type PDFParser struct {
	Layout layout.Options
}

func (p *PDFParser) SupportedFormats() []string { return []string{"pdf"} }

func (p *PDFParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	totalPages := reader.NumPage()
	pages := make([]layout.Page, 0, totalPages)
	skipped := 0

	for i := 1; i <= totalPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		lp, err := extractPDFPage(page, i)
		if err != nil {
			// Skip pages that fail to extract
			slog.Debug("pdf: skipping page", "page", i, "error", err)
			skipped++
			continue
		}
		pages = append(pages, lp)
	}

	md, err := layout.ConvertDocument(ctx, pages, p.Layout)
	if err != nil {
		return nil, err
	}

	meta := map[string]string{}
	if skipped > 0 {
		meta["skipped_pages"] = fmt.Sprintf("%d", skipped)
	}
	return &ParseResult{
		Markdown:  md,
		Title:     pdfTitle(reader),
		PageCount: totalPages,
		Method:    "layout",
		Metadata:  meta,
	}, nil
}

// extractPDFPage converts one page's glyph runs into layout words. The pdf
// library panics on some malformed content streams, so the panic is turned
// into an error for the page.
func extractPDFPage(page pdf.Page, num int) (lp layout.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", num, r)
		}
	}()

	width, height := mediaBox(page)
	lp = layout.Page{Number: num, Width: width, Height: height}
	lp.Words = glyphsToWords(page.Content().Text, height)
	lp.Links = pageLinks(page)
	return lp, nil
}

// glyphsToWords joins consecutive glyphs into words. A word ends at
// whitespace, at a horizontal jump wider than 0.15 of the font size, when the
// baseline moves, or when the text runs backwards.
func glyphsToWords(glyphs []pdf.Text, pageHeight float64) []layout.Word {
	var words []layout.Word
	var cur strings.Builder
	var w layout.Word
	var lastX1, lastY float64

	flush := func() {
		if cur.Len() > 0 {
			w.Text = cur.String()
			words = append(words, w)
			cur.Reset()
		}
	}

	for _, g := range glyphs {
		if strings.TrimFunc(g.S, unicode.IsSpace) == "" {
			flush()
			continue
		}
		size := g.FontSize
		if size <= 0 {
			size = 1
		}
		if cur.Len() > 0 {
			jump := g.X - lastX1
			if jump > 0.15*size || jump < -0.5*size || math.Abs(g.Y-lastY) > 0.5*size {
				flush()
			}
		}
		if cur.Len() == 0 {
			w = layout.Word{
				X0:       g.X,
				Top:      pageHeight - g.Y - g.FontSize,
				FontName: g.Font,
				FontSize: g.FontSize,
			}
		}
		cur.WriteString(g.S)
		lastX1 = g.X + g.W
		lastY = g.Y
		w.X1 = lastX1
	}
	flush()
	return words
}

// mediaBox returns the page size, following inherited MediaBox entries up
// the page tree. Letter size is assumed when none is found.
func mediaBox(page pdf.Page) (float64, float64) {
	for v := page.V; !v.IsNull(); v = v.Key("Parent") {
		box := v.Key("MediaBox")
		if box.Len() == 4 {
			w := math.Abs(box.Index(2).Float64() - box.Index(0).Float64())
			h := math.Abs(box.Index(3).Float64() - box.Index(1).Float64())
			if w > 0 && h > 0 {
				return w, h
			}
		}
	}
	return 612, 792
}

// pageLinks collects the URI link annotations of a page.
func pageLinks(page pdf.Page) []layout.Link {
	annots := page.V.Key("Annots")
	var links []layout.Link
	for i := 0; i < annots.Len(); i++ {
		a := annots.Index(i)
		if a.Key("Subtype").Name() != "Link" {
			continue
		}
		uri := a.Key("A").Key("URI").RawString()
		rect := a.Key("Rect")
		if uri == "" || rect.Len() != 4 {
			continue
		}
		var l layout.Link
		l.URL = uri
		for k := 0; k < 4; k++ {
			l.Rect[k] = rect.Index(k).Float64()
		}
		links = append(links, l)
	}
	return links
}

func pdfTitle(reader *pdf.Reader) string {
	return strings.TrimSpace(reader.Trailer().Key("Info").Key("Title").Text())
}
