package layout

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// LineKind is the semantic role of a line on a page without tables.
type LineKind int

const (
	KindParagraph LineKind = iota
	KindHeading
	KindBullet
	KindOrdered
)

func (k LineKind) String() string {
	switch k {
	case KindHeading:
		return "heading"
	case KindBullet:
		return "bullet"
	case KindOrdered:
		return "ordered"
	default:
		return "paragraph"
	}
}

// Line is a row annotated with typographic attributes. Bold and Italic hold
// only when every run of the line carries the style.
type Line struct {
	Row
	FontSize float64
	Bold     bool
	Italic   bool
	Link     string
}

// ClassifiedLine is a Line with its semantic role. Text has list markers
// stripped; Level is set for headings only.
type ClassifiedLine struct {
	Line
	Kind  LineKind
	Level int
	Text  string
}

const (
	headingMinRatio = 1.15
	headingMaxChars = 120
)

var (
	bulletRe  = regexp.MustCompile(`^(?:[•●○▪■→]\s*|[-*]\s+)(\S.*)$`)
	orderedRe = regexp.MustCompile(`^(?:\d+[.)]|[a-z][.)]|\([[:alnum:]]+\))\s+(\S.*)$`)
)

// buildLines groups the page's words into lines and computes their
// character-weighted font size, combined emphasis and link target.
func buildLines(page Page, opts Options) []Line {
	rows := GroupRows(page.Words, opts.YTolerance)
	lines := make([]Line, 0, len(rows))
	for _, r := range rows {
		l := Line{Row: r, Bold: true, Italic: true}
		var weighted, chars float64
		for _, w := range r.Words {
			n := float64(utf8.RuneCountInString(w.Text))
			if w.FontSize > 0 {
				weighted += w.FontSize * n
				chars += n
			}
			l.Bold = l.Bold && opts.IsBold(w.FontName)
			l.Italic = l.Italic && opts.IsItalic(w.FontName)
			if l.Link == "" {
				l.Link = linkAt(page, w)
			}
		}
		if chars > 0 {
			l.FontSize = weighted / chars
		}
		lines = append(lines, l)
	}
	return lines
}

// linkAt returns the first link whose rectangle contains the centre of w.
func linkAt(page Page, w Word) string {
	if len(page.Links) == 0 || page.Height <= 0 {
		return ""
	}
	x := (w.X0 + w.X1) / 2
	y := page.Height - (w.Top + w.FontSize/2)
	for _, l := range page.Links {
		r := l.Rect
		x0, x1 := math.Min(r[0], r[2]), math.Max(r[0], r[2])
		y0, y1 := math.Min(r[1], r[3]), math.Max(r[1], r[3])
		if x >= x0 && x <= x1 && y >= y0 && y <= y1 {
			return l.URL
		}
	}
	return ""
}

// BodyFontSize returns the 0.5-rounded font size carrying the most
// characters on the page, or 0 when no size information is available.
func BodyFontSize(words []Word) float64 {
	counts := make(map[float64]int)
	for _, w := range words {
		if w.FontSize <= 0 {
			continue
		}
		bucket := math.Round(w.FontSize*2) / 2
		counts[bucket] += utf8.RuneCountInString(w.Text)
	}
	var body float64
	best := -1
	for size, n := range counts {
		if n > best || (n == best && size < body) {
			body, best = size, n
		}
	}
	return body
}

// classifyLine assigns a kind to one line given the page's body size.
func classifyLine(l Line, bodySize float64) ClassifiedLine {
	text := l.Text()
	cl := ClassifiedLine{Line: l, Kind: KindParagraph, Text: text}

	if bodySize > 0 && l.FontSize > 0 {
		ratio := l.FontSize / bodySize
		if ratio >= headingMinRatio && utf8.RuneCountInString(text) <= headingMaxChars {
			cl.Kind = KindHeading
			switch {
			case ratio >= 1.8:
				cl.Level = 1
			case ratio >= 1.5:
				cl.Level = 2
			default:
				cl.Level = 3
			}
			return cl
		}
	}
	if m := bulletRe.FindStringSubmatch(text); m != nil {
		cl.Kind = KindBullet
		cl.Text = m[1]
		return cl
	}
	if m := orderedRe.FindStringSubmatch(text); m != nil {
		cl.Kind = KindOrdered
		cl.Text = m[1]
		return cl
	}
	return cl
}

// ClassifyPage renders a page without table regions: headings by relative
// font size, bullet and ordered lists by prefix, everything else as
// paragraph text. An empty page yields "".
func ClassifyPage(page Page, opts Options) string {
	opts = opts.withDefaults()
	lines := buildLines(page, opts)
	if len(lines) == 0 {
		return ""
	}
	body := BodyFontSize(page.Words)

	classified := make([]ClassifiedLine, len(lines))
	for i, l := range lines {
		classified[i] = classifyLine(l, body)
	}
	return renderLines(classified)
}

func renderLines(lines []ClassifiedLine) string {
	var blocks []string
	var cur []string
	curKind := LineKind(-1)
	ordinal := 0

	flush := func() {
		if len(cur) > 0 {
			blocks = append(blocks, strings.Join(cur, "\n"))
			cur = nil
		}
	}

	for _, l := range lines {
		if l.Text == "" {
			continue
		}
		isList := l.Kind == KindBullet || l.Kind == KindOrdered
		wasList := curKind == KindBullet || curKind == KindOrdered
		if l.Kind == KindHeading || (l.Kind != curKind && !(isList && wasList)) {
			flush()
			ordinal = 0
		}
		curKind = l.Kind

		switch l.Kind {
		case KindHeading:
			cur = append(cur, strings.Repeat("#", l.Level)+" "+wrapLink(l.Text, l.Link))
		case KindBullet:
			cur = append(cur, "- "+inline(l))
		case KindOrdered:
			ordinal++
			cur = append(cur, strconv.Itoa(ordinal)+". "+inline(l))
		default:
			cur = append(cur, inline(l))
		}
	}
	flush()
	return strings.Join(blocks, "\n\n")
}

// inline wraps a line's text in its emphasis and link markup.
func inline(l ClassifiedLine) string {
	text := l.Text
	switch {
	case l.Bold && l.Italic:
		text = "***" + text + "***"
	case l.Bold:
		text = "**" + text + "**"
	case l.Italic:
		text = "*" + text + "*"
	}
	return wrapLink(text, l.Link)
}

func wrapLink(text, url string) string {
	if url == "" {
		return text
	}
	return "[" + text + "](" + url + ")"
}
