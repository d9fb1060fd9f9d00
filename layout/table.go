package layout

import (
	"math"
	"strings"
)

// TableRegion is a maximal run of consecutive table rows.
type TableRegion struct {
	Rows []ClassifiedRow
}

// DetectTable attempts to render the page with its table regions as pipe
// tables. The boolean is false when any validation gate fails: no seed rows,
// an unusable column skeleton, or too low a density of table rows. Rows
// outside the regions are emitted as plain text lines.
func DetectTable(page Page, opts Options) (string, bool) {
	opts = opts.withDefaults()
	rows := GroupRows(page.Words, opts.YTolerance)
	if len(rows) == 0 {
		return "", false
	}

	gaps := EstimateGaps(rows).override(opts)
	classified := classifyRows(rows, page.width(), gaps)

	cols, ok := globalColumns(classified, gaps, opts.MaxColumns)
	if !ok {
		return "", false
	}
	grid := tableGrid{gaps: gaps, columns: cols}

	tableRows := markTableRows(classified, grid)
	if tableRows == 0 || float64(tableRows)/float64(len(classified)) < opts.MinTableDensity {
		return "", false
	}

	return renderRegions(classified, grid), true
}

// renderRegions walks the rows in order, turning each run of table rows into
// a pipe table and passing every other row through as text.
func renderRegions(rows []ClassifiedRow, grid tableGrid) string {
	var blocks []string
	var text []string
	flushText := func() {
		if len(text) > 0 {
			blocks = append(blocks, strings.Join(text, "\n"))
			text = nil
		}
	}

	for i := 0; i < len(rows); {
		if !rows[i].IsTableRow {
			if t := rows[i].Text(); t != "" {
				text = append(text, t)
			}
			i++
			continue
		}
		j := i
		for j < len(rows) && rows[j].IsTableRow {
			j++
		}
		flushText()
		region := TableRegion{Rows: rows[i:j]}
		blocks = append(blocks, region.markdown(grid))
		i = j
	}
	flushText()
	return strings.Join(blocks, "\n\n")
}

func (t TableRegion) markdown(grid tableGrid) string {
	colBuffer := math.Max(grid.gaps.GlobalColumnGap*0.5, 4)
	physical := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		physical = append(physical, assignCells(r.Words, grid.columns, colBuffer))
	}
	return renderPipeTable(mergeLogicalRows(physical))
}

// assignCells places each word into the first column c with
// x0 < columns[c+1]-colBuffer, or the last column.
func assignCells(words []Word, columns []float64, colBuffer float64) []string {
	cells := make([]string, len(columns))
	for _, w := range words {
		c := len(columns) - 1
		for k := 0; k < len(columns)-1; k++ {
			if w.X0 < columns[k+1]-colBuffer {
				c = k
				break
			}
		}
		cells[c] = joinCell(cells[c], w.Text)
	}
	return cells
}

// mergeLogicalRows folds physical rows produced by wrapped cell text into
// the logical row they continue. A row is folded into the buffered row when
// it shares no filled cell with it, or fills fewer than half as many cells.
func mergeLogicalRows(physical [][]string) [][]string {
	var out [][]string
	var buf []string
	for _, row := range physical {
		if buf == nil {
			buf = append([]string(nil), row...)
			continue
		}
		if overlap(buf, row) == 0 || 2*filled(row) < filled(buf) {
			for c, v := range row {
				if v != "" {
					buf[c] = joinCell(buf[c], v)
				}
			}
			continue
		}
		out = append(out, buf)
		buf = append([]string(nil), row...)
	}
	if buf != nil {
		out = append(out, buf)
	}
	return out
}

func filled(cells []string) int {
	n := 0
	for _, c := range cells {
		if c != "" {
			n++
		}
	}
	return n
}

func overlap(a, b []string) int {
	n := 0
	for i := range a {
		if a[i] != "" && b[i] != "" {
			n++
		}
	}
	return n
}

func joinCell(cell, text string) string {
	if cell == "" {
		return text
	}
	return cell + " " + text
}

// PipeTable renders rows as a pipe table with the first row as header.
// Rows shorter than the widest one are padded with empty cells; trailing
// rows that are entirely empty are dropped.
func PipeTable(rows [][]string) string {
	for len(rows) > 0 && filled(rows[len(rows)-1]) == 0 {
		rows = rows[:len(rows)-1]
	}
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	if width == 0 {
		return ""
	}
	padded := make([][]string, len(rows))
	for i, r := range rows {
		padded[i] = make([]string, width)
		copy(padded[i], r)
	}
	return renderPipeTable(padded)
}

// renderPipeTable emits the first row as header, a separator row, then the
// remaining rows. All rows must have the same width.
func renderPipeTable(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	var sb strings.Builder
	writeRow := func(cells []string) {
		sb.WriteString("|")
		for _, c := range cells {
			sb.WriteString(" ")
			sb.WriteString(escapeCell(c))
			sb.WriteString(" |")
		}
		sb.WriteString("\n")
	}

	writeRow(rows[0])
	sep := make([]string, len(rows[0]))
	for i := range sep {
		sep[i] = "---"
	}
	writeRow(sep)
	for _, r := range rows[1:] {
		writeRow(r)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
