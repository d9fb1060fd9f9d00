package layout

import (
	"math"
	"unicode/utf8"
)

// ClassifiedRow is a row together with the flags the table detector derives
// for it. It only lives for one page pass.
type ClassifiedRow struct {
	Row
	IsParagraph      bool
	IsSeed           bool
	PartialNumbering bool
	IsTableRow       bool
	AlignedCount     int
	NumColumns       int
}

// tableGrid is the per-page state shared by classification and assembly.
type tableGrid struct {
	gaps    GapStats
	columns []float64
}

const (
	paragraphSpanRatio = 0.55
	paragraphMinChars  = 60
	seedMinColumns     = 3
	gapFillWindow      = 3
)

// classifyRows runs stage 1: flags that need no global columns.
func classifyRows(rows []Row, pageWidth float64, gaps GapStats) []ClassifiedRow {
	out := make([]ClassifiedRow, len(rows))
	for i, r := range rows {
		cr := ClassifiedRow{Row: r}
		if len(r.Words) > 0 && isNumberingFragment(r.Words[0].Text) {
			cr.PartialNumbering = true
			out[i] = cr
			continue
		}
		cr.IsParagraph = isParagraphRow(r, pageWidth, gaps.ColumnGap)
		cr.NumColumns = r.segments(gaps.GlobalColumnGap)
		cr.IsSeed = !cr.IsParagraph && cr.NumColumns >= seedMinColumns
		out[i] = cr
	}
	return out
}

// isParagraphRow reports prose: a wide, long row whose word spacing is
// near-uniform.
func isParagraphRow(r Row, pageWidth, colGap float64) bool {
	if pageWidth <= 0 || r.Span() <= paragraphSpanRatio*pageWidth {
		return false
	}
	if utf8.RuneCountInString(r.Text()) <= paragraphMinChars {
		return false
	}
	if len(r.Words) <= 2 {
		return true
	}
	gaps := r.gaps()
	lo, hi := gaps[0], gaps[0]
	for _, g := range gaps[1:] {
		lo = math.Min(lo, g)
		hi = math.Max(hi, g)
	}
	return hi-lo < math.Max(colGap*0.25, 10)
}

// globalColumns runs stage 2. Only x0 values recurring across at least
// max(ceil(0.3*seeds), 2) seed rows are clustered, so a one-off header word
// cannot bridge two real columns. ok is false when the page has no usable
// column skeleton.
func globalColumns(rows []ClassifiedRow, gaps GapStats, maxColumns int) ([]float64, bool) {
	var seeds []ClassifiedRow
	for _, r := range rows {
		if r.IsSeed {
			seeds = append(seeds, r)
		}
	}
	if len(seeds) == 0 {
		return nil, false
	}

	// Each seed row contributes the set of integer x buckets its words
	// start in; a value's frequency is the number of rows with a bucket
	// within one unit of it.
	rowKeys := make([]map[int]bool, len(seeds))
	for i, r := range seeds {
		rowKeys[i] = make(map[int]bool, len(r.Words))
		for _, w := range r.Words {
			rowKeys[i][int(math.Round(w.X0))] = true
		}
	}

	minFreq := int(math.Max(math.Ceil(0.3*float64(len(seeds))), 2))
	var kept []float64
	for _, r := range seeds {
		for _, w := range r.Words {
			if xFrequency(rowKeys, w.X0) >= minFreq {
				kept = append(kept, w.X0)
			}
		}
	}
	if len(kept) == 0 {
		return nil, false
	}

	cols := ClusterColumns(kept, gaps.GlobalColumnGap)
	if len(cols) < 2 || len(cols) > maxColumns {
		return nil, false
	}
	return cols, true
}

// xFrequency is the number of seed rows with a word whose x0 rounds to
// within one unit of x.
func xFrequency(rowKeys []map[int]bool, x float64) int {
	k := int(math.Round(x))
	n := 0
	for _, keys := range rowKeys {
		if keys[k-1] || keys[k] || keys[k+1] {
			n++
		}
	}
	return n
}

// markTableRows runs stages 3 and 4 and returns the number of table rows.
func markTableRows(rows []ClassifiedRow, grid tableGrid) int {
	need := int(math.Max(2, math.Ceil(0.25*float64(len(grid.columns)))))

	for i := range rows {
		r := &rows[i]
		if r.IsParagraph || r.PartialNumbering {
			continue
		}
		r.AlignedCount = alignedWords(r.Words, grid.columns, grid.gaps.AlignTolerance)
		r.IsTableRow = r.AlignedCount >= need
	}

	// Stage 4 reads a snapshot so that promotions do not cascade.
	stage3 := make([]bool, len(rows))
	for i, r := range rows {
		stage3[i] = r.IsTableRow
	}
	for i := range rows {
		r := &rows[i]
		if r.IsTableRow || r.IsParagraph || r.PartialNumbering || r.AlignedCount < 2 {
			continue
		}
		if tableNeighbour(rows, stage3, i, -1) && tableNeighbour(rows, stage3, i, 1) {
			r.IsTableRow = true
		}
	}

	n := 0
	for _, r := range rows {
		if r.IsTableRow {
			n++
		}
	}
	return n
}

// tableNeighbour scans up to gapFillWindow rows from i in direction dir and
// reports whether a stage-3 table row is reached before any paragraph row.
func tableNeighbour(rows []ClassifiedRow, stage3 []bool, i, dir int) bool {
	for step := 1; step <= gapFillWindow; step++ {
		j := i + dir*step
		if j < 0 || j >= len(rows) {
			return false
		}
		if rows[j].IsParagraph {
			return false
		}
		if stage3[j] {
			return true
		}
	}
	return false
}

func alignedWords(words []Word, columns []float64, tol float64) int {
	n := 0
	for _, w := range words {
		for _, c := range columns {
			if math.Abs(w.X0-c) <= tol {
				n++
				break
			}
		}
	}
	return n
}
