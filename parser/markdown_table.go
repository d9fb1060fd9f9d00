package parser

import (
	"strings"

	"github.com/yosbelms/mdize/layout"
)

// pipeTable renders rows as a GFM pipe table with the first row as header.
// Cell text is flattened to one line and short rows are padded.
func pipeTable(rows [][]string) string {
	clean := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells := make([]string, len(r))
		for i, c := range r {
			cells[i] = strings.Join(strings.Fields(c), " ")
		}
		clean = append(clean, cells)
	}
	return layout.PipeTable(clean)
}
