// Package layout rebuilds document structure (paragraphs, headings, lists
// and tables) from positioned words extracted from fixed-layout pages and
// renders it as Markdown.
//
// The input is what a PDF text extractor or an OCR engine produces: words
// with coordinates and no structural hints. Everything derived from a page
// (rows, gap thresholds, columns, body font size) is computed per page and
// discarded once the page's Markdown is emitted.
package layout

import (
	"math"
	"sort"
	"strings"
)

// Word is a positioned text fragment in page units, origin top-left.
// FontName and FontSize are optional run attributes; they only feed the
// heading and emphasis heuristics.
type Word struct {
	Text     string  `json:"text"`
	X0       float64 `json:"x0"`
	X1       float64 `json:"x1"`
	Top      float64 `json:"top"`
	FontName string  `json:"font_name,omitempty"`
	FontSize float64 `json:"font_size,omitempty"`
}

// Link is a hyperlink area. Rect is [x0, y0, x1, y1] with a bottom-left
// origin, as PDF annotations store it.
type Link struct {
	URL  string     `json:"url"`
	Rect [4]float64 `json:"rect"`
}

// Page is one fixed-layout page handed over by an extraction collaborator.
type Page struct {
	Number int     `json:"number"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Words  []Word  `json:"words"`
	Links  []Link  `json:"links,omitempty"`
}

// width returns the page width, falling back to the right-most word edge
// when the collaborator did not provide one.
func (p Page) width() float64 {
	if p.Width > 0 {
		return p.Width
	}
	var w float64
	for _, wd := range p.Words {
		w = math.Max(w, wd.X1)
	}
	return w
}

// Row is a horizontal band of words sharing one vertical bucket, sorted by x0.
type Row struct {
	Top   float64
	Words []Word
}

// Text joins the row's words with single spaces.
func (r Row) Text() string {
	parts := make([]string, len(r.Words))
	for i, w := range r.Words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

// Span is the horizontal extent from the first word's x0 to the last word's x1.
func (r Row) Span() float64 {
	if len(r.Words) == 0 {
		return 0
	}
	return r.Words[len(r.Words)-1].X1 - r.Words[0].X0
}

// gaps returns the horizontal distances between adjacent words.
func (r Row) gaps() []float64 {
	if len(r.Words) < 2 {
		return nil
	}
	out := make([]float64, 0, len(r.Words)-1)
	for i := 1; i < len(r.Words); i++ {
		out = append(out, r.Words[i].X0-r.Words[i-1].X1)
	}
	return out
}

// segments counts the runs of words separated by gaps wider than gap. On
// a table row each run is one cell.
func (r Row) segments(gap float64) int {
	if len(r.Words) == 0 {
		return 0
	}
	n := 1
	for _, g := range r.gaps() {
		if g > gap {
			n++
		}
	}
	return n
}

// GroupRows buckets words by round(top/yTol)*yTol and returns the buckets
// top to bottom, each sorted by x0. Every word lands in exactly one row.
func GroupRows(words []Word, yTol float64) []Row {
	if len(words) == 0 {
		return nil
	}
	if yTol <= 0 {
		yTol = DefaultOptions().YTolerance
	}

	buckets := make(map[float64][]Word)
	for _, w := range words {
		key := math.Round(w.Top/yTol) * yTol
		buckets[key] = append(buckets[key], w)
	}

	keys := make([]float64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Float64s(keys)

	rows := make([]Row, 0, len(keys))
	for _, k := range keys {
		ws := buckets[k]
		sort.SliceStable(ws, func(i, j int) bool { return ws[i].X0 < ws[j].X0 })
		rows = append(rows, Row{Top: k, Words: ws})
	}
	return rows
}
