package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"
)

type XLSXParser struct{}

func (p *XLSXParser) SupportedFormats() []string { return []string{"xlsx", "xlsm"} }

func (p *XLSXParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	var blocks []string
	meta := map[string]string{}
	sheets := f.GetSheetList()

	for _, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			slog.Debug("xlsx: skipping sheet", "sheet", sheet, "error", err)
			continue
		}

		rows = trimEmptyRows(rows)
		if len(rows) == 0 {
			continue
		}

		blocks = append(blocks, "## "+sheet+"\n\n"+pipeTable(rows))
		meta["rows:"+sheet] = fmt.Sprintf("%d", len(rows))
	}

	if len(blocks) == 0 {
		return nil, fmt.Errorf("no data found in XLSX")
	}

	var title string
	if props, err := f.GetDocProps(); err == nil && props != nil {
		title = props.Title
	}

	return &ParseResult{
		Markdown:  strings.Join(blocks, "\n\n"),
		Title:     title,
		PageCount: len(sheets),
		Method:    "native",
		Metadata:  meta,
	}, nil
}

// trimEmptyRows drops rows whose cells are all blank.
func trimEmptyRows(rows [][]string) [][]string {
	out := rows[:0]
	for _, r := range rows {
		for _, c := range r {
			if strings.TrimSpace(c) != "" {
				out = append(out, r)
				break
			}
		}
	}
	return out
}
