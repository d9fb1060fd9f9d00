package parser

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
)

type PPTXParser struct{}

func (p *PPTXParser) SupportedFormats() []string { return []string{"pptx"} }

func (p *PPTXParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening PPTX: %w", err)
	}
	defer r.Close()

	// Collect slide files (ppt/slides/slide1.xml, slide2.xml, ...)
	slideFiles := make(map[int]*zip.File)
	for _, f := range r.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
			num := extractSlideNumber(f.Name)
			if num > 0 {
				slideFiles[num] = f
			}
		}
	}

	// Sort by slide number
	nums := make([]int, 0, len(slideFiles))
	for n := range slideFiles {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	var blocks []string
	var title string
	for _, num := range nums {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f := slideFiles[num]
		rc, err := f.Open()
		if err != nil {
			slog.Debug("pptx: skipping slide", "slide", num, "error", err)
			continue
		}

		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			slog.Debug("pptx: skipping slide", "slide", num, "error", err)
			continue
		}

		slideTitle, body := renderPPTXSlide(data)
		if slideTitle == "" && body == "" {
			continue
		}
		if title == "" {
			title = slideTitle
		}

		heading := fmt.Sprintf("## Slide %d", num)
		if slideTitle != "" {
			heading += ": " + slideTitle
		}
		block := heading
		if body != "" {
			block += "\n\n" + body
		}
		blocks = append(blocks, block)
	}

	if len(blocks) == 0 {
		return nil, fmt.Errorf("no text found in PPTX")
	}

	return &ParseResult{
		Markdown:  strings.Join(blocks, "\n\n"),
		Title:     title,
		PageCount: len(nums),
		Method:    "native",
	}, nil
}

// pptxSlide simplified XML structure
type pptxSlide struct {
	CSld struct {
		SpTree struct {
			SPs    []pptxSP    `xml:"sp"`
			Frames []pptxFrame `xml:"graphicFrame"`
		} `xml:"spTree"`
	} `xml:"cSld"`
}

type pptxSP struct {
	NvSpPr struct {
		NvPr struct {
			Ph *struct {
				Type string `xml:"type,attr"`
			} `xml:"ph"`
		} `xml:"nvPr"`
	} `xml:"nvSpPr"`
	TxBody *pptxTxBody `xml:"txBody"`
}

type pptxFrame struct {
	Graphic struct {
		Data struct {
			Tbl *struct {
				Rows []struct {
					Cells []struct {
						TxBody pptxTxBody `xml:"txBody"`
					} `xml:"tc"`
				} `xml:"tr"`
			} `xml:"tbl"`
		} `xml:"graphicData"`
	} `xml:"graphic"`
}

type pptxTxBody struct {
	Paras []pptxAPara `xml:"p"`
}

type pptxAPara struct {
	PPr *struct {
		Lvl int `xml:"lvl,attr"`
	} `xml:"pPr"`
	Runs []pptxARun `xml:"r"`
}

type pptxARun struct {
	Text string `xml:"t"`
}

func (b pptxTxBody) lines() []string {
	var out []string
	for _, para := range b.Paras {
		var line strings.Builder
		for _, run := range para.Runs {
			line.WriteString(run.Text)
		}
		if t := strings.TrimSpace(line.String()); t != "" {
			if para.PPr != nil && para.PPr.Lvl > 0 {
				t = strings.Repeat("  ", para.PPr.Lvl-1) + "- " + t
			}
			out = append(out, t)
		}
	}
	return out
}

// renderPPTXSlide returns the slide's title placeholder text and the
// Markdown of everything else on it.
func renderPPTXSlide(data []byte) (string, string) {
	var slide pptxSlide
	if err := xml.Unmarshal(data, &slide); err != nil {
		return "", ""
	}

	var title string
	var parts []string
	for _, sp := range slide.CSld.SpTree.SPs {
		if sp.TxBody == nil {
			continue
		}
		lines := sp.TxBody.lines()
		if ph := sp.NvSpPr.NvPr.Ph; ph != nil && (ph.Type == "title" || ph.Type == "ctrTitle") && title == "" {
			title = strings.Join(lines, " ")
			continue
		}
		if len(lines) > 0 {
			parts = append(parts, strings.Join(lines, "\n"))
		}
	}
	for _, fr := range slide.CSld.SpTree.Frames {
		tbl := fr.Graphic.Data.Tbl
		if tbl == nil {
			continue
		}
		rows := make([][]string, 0, len(tbl.Rows))
		for _, row := range tbl.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, c := range row.Cells {
				cells = append(cells, strings.Join(c.TxBody.lines(), " "))
			}
			rows = append(rows, cells)
		}
		if md := pipeTable(rows); md != "" {
			parts = append(parts, md)
		}
	}
	return title, strings.Join(parts, "\n\n")
}

func extractSlideNumber(name string) int {
	// Extract number from "ppt/slides/slide1.xml"
	name = strings.TrimPrefix(name, "ppt/slides/slide")
	name = strings.TrimSuffix(name, ".xml")
	var num int
	fmt.Sscanf(name, "%d", &num)
	return num
}
