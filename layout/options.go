package layout

import (
	"runtime"
	"strings"
)

// StyleFunc reports whether a font family name denotes a style (bold, italic).
type StyleFunc func(fontName string) bool

// Options tunes the geometric heuristics. Zero values fall back to the
// defaults; gap thresholds left at zero are derived from the page itself.
type Options struct {
	// YTolerance is the height of the vertical bucket used to group words
	// into rows (default 5).
	YTolerance float64

	// ColumnGap, GlobalColumnGap and AlignTolerance override the values the
	// gap estimator derives per page. Zero means "derive".
	ColumnGap       float64
	GlobalColumnGap float64
	AlignTolerance  float64

	// MinTableDensity is the minimum share of table rows on a page before
	// its table regions are trusted (default 0.2).
	MinTableDensity float64

	// MaxColumns abandons table detection on pages that cluster into more
	// global columns than this (default 30).
	MaxColumns int

	// Concurrency bounds the number of pages converted in parallel
	// (default GOMAXPROCS).
	Concurrency int

	IsBold   StyleFunc
	IsItalic StyleFunc
}

// DefaultOptions returns the stock configuration.
func DefaultOptions() Options {
	return Options{
		YTolerance:      5,
		MinTableDensity: 0.2,
		MaxColumns:      30,
		Concurrency:     runtime.GOMAXPROCS(0),
		IsBold:          DefaultIsBold,
		IsItalic:        DefaultIsItalic,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.YTolerance <= 0 {
		o.YTolerance = d.YTolerance
	}
	if o.MinTableDensity <= 0 {
		o.MinTableDensity = d.MinTableDensity
	}
	if o.MaxColumns <= 0 {
		o.MaxColumns = d.MaxColumns
	}
	if o.Concurrency <= 0 {
		o.Concurrency = d.Concurrency
	}
	if o.IsBold == nil {
		o.IsBold = d.IsBold
	}
	if o.IsItalic == nil {
		o.IsItalic = d.IsItalic
	}
	return o
}

// DefaultIsBold matches family names such as "Helvetica-Bold" or "Arial Black".
func DefaultIsBold(fontName string) bool {
	return containsAny(fontName, "Bold", "Black", "Heavy")
}

// DefaultIsItalic matches family names such as "Times-Italic" or "Helvetica-Oblique".
func DefaultIsItalic(fontName string) bool {
	return containsAny(fontName, "Italic", "Oblique")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
