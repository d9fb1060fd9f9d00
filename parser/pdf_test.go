package parser

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

// textOp positions a single run of text on a page.
type textOp struct {
	x, y, size float64
	text       string
}

func (op textOp) stream() string {
	escaped := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`).Replace(op.text)
	return fmt.Sprintf("BT\n/F1 %g Tf\n%g %g Td\n(%s) Tj\nET\n", op.size, op.x, op.y, escaped)
}

// testPDFPage holds the content and link annotations of one page.
type testPDFPage struct {
	ops    []textOp
	annots string
}

// buildTestPDF writes a PDF with proper xref offsets. Every glyph of the
// Helvetica font is 500 units wide, so a 12pt run advances 6pt per rune.
func buildTestPDF(title string, pages ...testPDFPage) []byte {
	var objects []string
	objects = append(objects, "<< /Type /Catalog /Pages 2 0 R >>")
	var kids []string
	for i := range pages {
		kids = append(kids, fmt.Sprintf("%d 0 R", 5+2*i))
	}
	objects = append(objects, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 612 792] >>",
		strings.Join(kids, " "), len(pages)))
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /FirstChar 32 /LastChar 126 /Widths ["+
		strings.TrimSpace(strings.Repeat("500 ", 95))+"] >>")
	objects = append(objects, fmt.Sprintf("<< /Title (%s) >>", title))

	for i, p := range pages {
		var content strings.Builder
		for _, op := range p.ops {
			content.WriteString(op.stream())
		}
		page := fmt.Sprintf("<< /Type /Page /Parent 2 0 R /Contents %d 0 R /Resources << /Font << /F1 3 0 R >> >>", 6+2*i)
		if p.annots != "" {
			page += " /Annots [" + p.annots + "]"
		}
		objects = append(objects, page+" >>")
		objects = append(objects, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()))
	}

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects)+1)
	for i, obj := range objects {
		offsets[i+1] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xrefOffset := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objects)+1)
	b.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(objects); i++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R /Info 4 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefOffset)
	return []byte(b.String())
}

// cells lays out one table row: each text starts at the matching x.
func cells(y float64, xs []float64, texts ...string) []textOp {
	ops := make([]textOp, len(texts))
	for i, t := range texts {
		ops[i] = textOp{x: xs[i], y: y, size: 12, text: t}
	}
	return ops
}

// ---------------------------------------------------------------------------
// Glyph grouping
// ---------------------------------------------------------------------------

func TestPDFParserHeadingsAndLinks(t *testing.T) {
	page := testPDFPage{
		ops: []textOp{
			{x: 72, y: 740, size: 24, text: "Quarterly Report"},
			{x: 72, y: 700, size: 12, text: "Revenue grew in every region this quarter."},
			{x: 72, y: 685, size: 12, text: "Costs fell slightly after the restructuring."},
		},
		annots: "<< /Type /Annot /Subtype /Link /Rect [70 735 270 770] /A << /S /URI /URI (https://example.com) >> >>",
	}
	path := writeFile(t, "report.pdf", buildTestPDF("Quarterly Report", page))

	res, err := (&PDFParser{}).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.PageCount != 1 {
		t.Errorf("PageCount = %d, want 1", res.PageCount)
	}
	if res.Title != "Quarterly Report" {
		t.Errorf("Title = %q", res.Title)
	}
	if res.Method != "layout" {
		t.Errorf("Method = %q, want layout", res.Method)
	}
	for _, want := range []string{
		"# [Quarterly Report](https://example.com)",
		"Revenue grew in every region this quarter.",
		"Costs fell slightly after the restructuring.",
	} {
		if !strings.Contains(res.Markdown, want) {
			t.Errorf("markdown missing %q:\n%s", want, res.Markdown)
		}
	}
}

func TestPDFParserTable(t *testing.T) {
	xs := []float64{72, 272, 472}
	var ops []textOp
	ops = append(ops, cells(700, xs, "Full Name", "Age in whole years", "Home City of Record")...)
	ops = append(ops, cells(680, xs, "Alice Smith", "30", "New York City")...)
	ops = append(ops, cells(660, xs, "Bob Jones", "45", "Boston")...)
	path := writeFile(t, "table.pdf", buildTestPDF("People", testPDFPage{ops: ops}))

	res, err := (&PDFParser{}).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := "| Full Name | Age in whole years | Home City of Record |\n" +
		"| --- | --- | --- |\n" +
		"| Alice Smith | 30 | New York City |\n" +
		"| Bob Jones | 45 | Boston |"
	if res.Markdown != want {
		t.Errorf("markdown:\n%s\nwant:\n%s", res.Markdown, want)
	}
}

func TestPDFParserMultiplePages(t *testing.T) {
	path := writeFile(t, "pages.pdf", buildTestPDF("Pages",
		testPDFPage{ops: []textOp{{x: 72, y: 700, size: 12, text: "First page text"}}},
		testPDFPage{ops: []textOp{{x: 72, y: 700, size: 12, text: "Second page text"}}},
	))

	res, err := (&PDFParser{}).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.PageCount != 2 {
		t.Errorf("PageCount = %d, want 2", res.PageCount)
	}
	if res.Markdown != "First page text\n\nSecond page text" {
		t.Errorf("markdown = %q", res.Markdown)
	}
}

func TestPDFParserInvalidFile(t *testing.T) {
	path := writeFile(t, "broken.pdf", []byte("not a pdf"))
	if _, err := (&PDFParser{}).Parse(context.Background(), path); err == nil {
		t.Error("expected error for invalid PDF")
	}
}

func TestPDFParserCancelled(t *testing.T) {
	path := writeFile(t, "c.pdf", buildTestPDF("C", testPDFPage{ops: []textOp{{x: 72, y: 700, size: 12, text: "text"}}}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (&PDFParser{}).Parse(ctx, path); err == nil {
		t.Error("expected error for cancelled context")
	}
}
