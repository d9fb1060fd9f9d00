package layout

import "sort"

// ClusterColumns groups x coordinates into columns: after sorting, a new
// cluster starts whenever two consecutive values are more than gap apart.
// It returns the median of each cluster, in increasing order.
func ClusterColumns(xs []float64, gap float64) []float64 {
	if len(xs) == 0 {
		return nil
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	var cols []float64
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i == len(sorted) || sorted[i]-sorted[i-1] > gap {
			cols = append(cols, median(sorted[start:i]))
			start = i
		}
	}
	return cols
}

// median expects a sorted, non-empty slice.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
