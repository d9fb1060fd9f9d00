package parser

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

type DOCXParser struct{}

func (p *DOCXParser) SupportedFormats() []string { return []string{"docx"} }

func (p *DOCXParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening DOCX: %w", err)
	}
	defer r.Close()

	// Build file index for quick lookup
	fileIndex := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		fileIndex[f.Name] = f
	}

	data, err := readZipFile(fileIndex, "word/document.xml")
	if err != nil {
		return nil, fmt.Errorf("reading document.xml: %w", err)
	}

	// Relationships resolve hyperlink targets
	rels := parseRels(fileIndex, "word/_rels/document.xml.rels")

	doc, err := renderDocx(data, rels)
	if err != nil {
		return nil, fmt.Errorf("parsing DOCX XML: %w", err)
	}

	title := doc.title
	if title == "" {
		title = coreTitle(fileIndex)
	}

	return &ParseResult{
		Markdown: doc.markdown,
		Title:    title,
		Method:   "native",
		Metadata: map[string]string{
			"table_count":   fmt.Sprintf("%d", doc.tables),
			"heading_count": fmt.Sprintf("%d", doc.headings),
		},
	}, nil
}

// readZipFile returns the contents of a named archive member.
func readZipFile(fileIndex map[string]*zip.File, name string) ([]byte, error) {
	f := fileIndex[name]
	if f == nil {
		return nil, fmt.Errorf("%s not found in archive", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// parseRels reads an OOXML .rels part and returns a map of rId -> target.
func parseRels(fileIndex map[string]*zip.File, relsPath string) map[string]string {
	data, err := readZipFile(fileIndex, relsPath)
	if err != nil {
		return nil
	}

	var rels ooxmlRelationships
	if err := xml.Unmarshal(data, &rels); err != nil {
		slog.Debug("ooxml: unreadable relationships", "path", relsPath, "error", err)
		return nil
	}

	result := make(map[string]string, len(rels.Rels))
	for _, rel := range rels.Rels {
		result[rel.ID] = rel.Target
	}
	return result
}

// coreTitle reads dc:title from docProps/core.xml.
func coreTitle(fileIndex map[string]*zip.File) string {
	data, err := readZipFile(fileIndex, "docProps/core.xml")
	if err != nil {
		return ""
	}
	var core struct {
		Title string `xml:"title"`
	}
	if err := xml.Unmarshal(data, &core); err != nil {
		return ""
	}
	return strings.TrimSpace(core.Title)
}

// ooxmlRelationships represents the .rels XML structure.
type ooxmlRelationships struct {
	XMLName xml.Name            `xml:"Relationships"`
	Rels    []ooxmlRelationship `xml:"Relationship"`
}

type ooxmlRelationship struct {
	ID     string `xml:"Id,attr"`
	Target string `xml:"Target,attr"`
	Type   string `xml:"Type,attr"`
}

// DOCX XML structures (simplified). Body children are kept in document
// order so tables stay where they appear.
type docxDocument struct {
	XMLName xml.Name `xml:"document"`
	Body    struct {
		Blocks []docxBlock `xml:",any"`
	} `xml:"body"`
}

// docxBlock is a w:p or w:tbl element.
type docxBlock struct {
	XMLName xml.Name
	PPr     *docxParaPr  `xml:"pPr"`
	Inlines []docxInline `xml:",any"`
	Rows    []docxRow    `xml:"tr"`
}

type docxParaPr struct {
	PStyle *docxVal  `xml:"pStyle"`
	NumPr  *struct{} `xml:"numPr"`
}

type docxVal struct {
	Val string `xml:"val,attr"`
}

// docxInline is a w:r run or a w:hyperlink wrapping runs.
type docxInline struct {
	XMLName xml.Name
	ID      string     `xml:"id,attr"`
	RPr     *docxRunPr `xml:"rPr"`
	Text    []string   `xml:"t"`
	Runs    []docxRun  `xml:"r"`
}

type docxRun struct {
	RPr  *docxRunPr `xml:"rPr"`
	Text []string   `xml:"t"`
}

type docxRunPr struct {
	B *docxVal `xml:"b"`
	I *docxVal `xml:"i"`
}

type docxRow struct {
	Cells []docxCell `xml:"tc"`
}

type docxCell struct {
	Paras []docxBlock `xml:"p"`
}

type docxRendered struct {
	markdown string
	title    string
	tables   int
	headings int
}

func renderDocx(data []byte, rels map[string]string) (docxRendered, error) {
	var doc docxDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return docxRendered{}, err
	}

	var out docxRendered
	var blocks []string
	var list []string
	flushList := func() {
		if len(list) > 0 {
			blocks = append(blocks, strings.Join(list, "\n"))
			list = nil
		}
	}

	for _, b := range doc.Body.Blocks {
		switch b.XMLName.Local {
		case "p":
			text := strings.TrimSpace(paraMarkdown(b, rels))
			if text == "" {
				continue
			}
			style := ""
			if b.PPr != nil && b.PPr.PStyle != nil {
				style = b.PPr.PStyle.Val
			}
			switch {
			case isHeadingStyle(style):
				flushList()
				plain := strings.TrimSpace(paraText(b))
				if out.title == "" && strings.Contains(strings.ToLower(style), "title") {
					out.title = plain
				}
				out.headings++
				blocks = append(blocks, strings.Repeat("#", headingStyleLevel(style))+" "+plain)
			case b.PPr != nil && (b.PPr.NumPr != nil || strings.EqualFold(style, "ListParagraph")):
				list = append(list, "- "+text)
			default:
				flushList()
				blocks = append(blocks, text)
			}
		case "tbl":
			flushList()
			if md := docxTable(b); md != "" {
				out.tables++
				blocks = append(blocks, md)
			}
		}
	}
	flushList()
	out.markdown = strings.Join(blocks, "\n\n")
	return out, nil
}

func docxTable(tbl docxBlock) string {
	rows := make([][]string, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		cells := make([]string, 0, len(row.Cells))
		for _, cell := range row.Cells {
			var parts []string
			for _, p := range cell.Paras {
				if t := strings.TrimSpace(paraText(p)); t != "" {
					parts = append(parts, t)
				}
			}
			cells = append(cells, strings.Join(parts, " "))
		}
		rows = append(rows, cells)
	}
	return pipeTable(rows)
}

// paraText is the plain text of a paragraph.
func paraText(p docxBlock) string {
	var b strings.Builder
	for _, in := range p.Inlines {
		switch in.XMLName.Local {
		case "r":
			b.WriteString(strings.Join(in.Text, ""))
		case "hyperlink":
			for _, r := range in.Runs {
				b.WriteString(strings.Join(r.Text, ""))
			}
		}
	}
	return b.String()
}

// paraMarkdown renders a paragraph with run emphasis and hyperlinks.
func paraMarkdown(p docxBlock, rels map[string]string) string {
	var b strings.Builder
	for _, in := range p.Inlines {
		switch in.XMLName.Local {
		case "r":
			b.WriteString(emphasize(strings.Join(in.Text, ""), in.RPr))
		case "hyperlink":
			var text strings.Builder
			for _, r := range in.Runs {
				text.WriteString(emphasize(strings.Join(r.Text, ""), r.RPr))
			}
			if target := rels[in.ID]; target != "" && text.Len() > 0 {
				b.WriteString("[" + text.String() + "](" + target + ")")
			} else {
				b.WriteString(text.String())
			}
		}
	}
	return b.String()
}

func emphasize(text string, rpr *docxRunPr) string {
	if strings.TrimSpace(text) == "" || rpr == nil {
		return text
	}
	bold, italic := toggleOn(rpr.B), toggleOn(rpr.I)
	switch {
	case bold && italic:
		return "***" + text + "***"
	case bold:
		return "**" + text + "**"
	case italic:
		return "*" + text + "*"
	}
	return text
}

// toggleOn reports whether an OOXML on/off property is set.
func toggleOn(v *docxVal) bool {
	return v != nil && v.Val != "0" && v.Val != "false"
}

func isHeadingStyle(style string) bool {
	lower := strings.ToLower(style)
	return strings.HasPrefix(lower, "heading") || strings.HasPrefix(lower, "title")
}

func headingStyleLevel(style string) int {
	lower := strings.ToLower(style)
	if strings.Contains(lower, "title") {
		return 1
	}
	// Extract number from "Heading1", "Heading2", etc.
	for i := 1; i <= 6; i++ {
		if strings.Contains(lower, fmt.Sprintf("%d", i)) {
			return i
		}
	}
	return 1
}
