package layout

import (
	"math"
	"sort"
)

// GapStats holds the adaptive horizontal thresholds for one page.
type GapStats struct {
	// ColumnGap separates columns within a single row.
	ColumnGap float64
	// GlobalColumnGap merges x positions into page-wide columns.
	GlobalColumnGap float64
	// AlignTolerance is the largest distance at which a word still counts
	// as aligned to a global column.
	AlignTolerance float64
}

var defaultGapStats = GapStats{ColumnGap: 50, GlobalColumnGap: 30, AlignTolerance: 40}

// EstimateGaps derives gap thresholds from the positive inter-word gaps of
// all rows. Table pages have a bimodal gap distribution (narrow inside a
// cell, wide between columns); the 65th percentile lands between the modes
// whatever the font size.
func EstimateGaps(rows []Row) GapStats {
	var gaps []float64
	for _, r := range rows {
		for _, g := range r.gaps() {
			if g > 0 {
				gaps = append(gaps, g)
			}
		}
	}
	if len(gaps) == 0 {
		return defaultGapStats
	}
	sort.Float64s(gaps)

	colGap := math.Max(percentile(gaps, 0.65)*1.2, 8)
	return derivedGaps(colGap)
}

func derivedGaps(colGap float64) GapStats {
	return GapStats{
		ColumnGap:       colGap,
		GlobalColumnGap: math.Max(colGap*0.6, 6),
		AlignTolerance:  math.Max(colGap*1.5, 15),
	}
}

// override applies explicitly configured thresholds. Values that were not
// configured follow an overridden ColumnGap.
func (g GapStats) override(o Options) GapStats {
	if o.ColumnGap > 0 {
		g = derivedGaps(o.ColumnGap)
	}
	if o.GlobalColumnGap > 0 {
		g.GlobalColumnGap = o.GlobalColumnGap
	}
	if o.AlignTolerance > 0 {
		g.AlignTolerance = o.AlignTolerance
	}
	return g
}

// percentile interpolates linearly between the closest ranks of a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
