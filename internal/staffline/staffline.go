// Package staffline finds the horizontal line work of a score: the
// individual ruled lines, and their grouping into 5-line staves and
// 6-line tablature.
package staffline

import (
	"image"

	"gonum.org/v1/gonum/stat"

	"score-scan/internal/raster"
)

// Row profile thresholds. A row counts as a line sample when its longest
// black run covers MinRunFraction of the width or its total black
// fraction exceeds MinBlackFraction; the disjunction catches lines
// broken by fret digits printed on top of them.
const (
	MinRunFraction   = 0.3
	MinBlackFraction = 0.4
	mergeGap         = 3
)

// Spacing acceptance windows for the equal-spacing test.
const (
	staffGapMin   = 8.0
	staffGapMax   = 60.0
	staffSpreadCV = 0.15
	tabGapMin     = 5.0
	tabGapMax     = 60.0
	tabSpreadCV   = 0.20
)

// Line is one detected horizontal line.
type Line struct {
	Y        int     // centre row
	Strength float64 // longest-run fraction at detection time
}

// GroupKind discriminates staff and tab line groups.
type GroupKind int

const (
	Staff5 GroupKind = iota
	Tab6
)

// String returns the group kind name.
func (k GroupKind) String() string {
	if k == Tab6 {
		return "tab"
	}
	return "staff"
}

// LineGroup is a run of equally spaced lines forming one staff or tab.
type LineGroup struct {
	Kind    GroupKind
	Lines   []int // ascending y positions
	Spacing float64
	Top     int
	Bottom  int
}

// rowStat holds the per-row scan results.
type rowStat struct {
	maxRun int
	black  int
}

// scanRow computes the longest consecutive black run and the total black
// count of one row in a single pass.
func scanRow(g *image.Gray, y, w int) rowStat {
	var st rowStat
	run := 0
	row := g.Pix[g.PixOffset(0, y) : g.PixOffset(0, y)+w]
	for _, v := range row {
		if v < 128 {
			st.black++
			run++
			if run > st.maxRun {
				st.maxRun = run
			}
		} else {
			run = 0
		}
	}
	return st
}

// DetectLines scans every row for line samples and merges adjacent
// samples (gap <= 3) into single lines at their mean y, keeping the
// strongest sample's strength.
func DetectLines(g *image.Gray) []Line {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	type sample struct {
		y        int
		strength float64
	}
	var samples []sample
	for y := 0; y < h; y++ {
		st := scanRow(g, y, w)
		runFrac := float64(st.maxRun) / float64(w)
		blackFrac := float64(st.black) / float64(w)
		if runFrac > MinRunFraction || blackFrac > MinBlackFraction {
			samples = append(samples, sample{y: y, strength: runFrac})
		}
	}
	if len(samples) == 0 {
		return nil
	}

	var lines []Line
	start := 0
	for i := 1; i <= len(samples); i++ {
		if i < len(samples) && samples[i].y-samples[i-1].y <= mergeGap {
			continue
		}
		group := samples[start:i]
		ySum := 0
		strength := 0.0
		for _, s := range group {
			ySum += s.y
			if s.strength > strength {
				strength = s.strength
			}
		}
		lines = append(lines, Line{Y: ySum / len(group), Strength: strength})
		start = i
	}
	return lines
}

// gapStats returns the mean and population standard deviation of the
// gaps between consecutive line positions in a window.
func gapStats(ys []int) (mean, stddev float64) {
	gaps := make([]float64, len(ys)-1)
	for i := 1; i < len(ys); i++ {
		gaps[i-1] = float64(ys[i] - ys[i-1])
	}
	return stat.Mean(gaps, nil), stat.PopStdDev(gaps, nil)
}

// GroupLines groups detected lines into Tab6 and Staff5 candidates by
// the equal-spacing test. Tab grouping runs first so a 6-line tab is
// never partially consumed as a 5-line staff.
func GroupLines(lines []Line) []LineGroup {
	if len(lines) < 5 {
		return nil
	}
	ys := make([]int, len(lines))
	for i, l := range lines {
		ys[i] = l.Y
	}
	used := make([]bool, len(ys))

	var groups []LineGroup
	groups = append(groups, slideWindow(ys, used, 6, Tab6, tabGapMin, tabGapMax, tabSpreadCV)...)
	groups = append(groups, slideWindow(ys, used, 5, Staff5, staffGapMin, staffGapMax, staffSpreadCV)...)

	// Restore document order across the two passes.
	for i := 1; i < len(groups); i++ {
		for j := i; j > 0 && groups[j].Top < groups[j-1].Top; j-- {
			groups[j], groups[j-1] = groups[j-1], groups[j]
		}
	}
	return groups
}

// slideWindow scans the sorted lines with a fixed window, accepting
// windows whose gaps are uniform enough, and marking their lines used.
func slideWindow(ys []int, used []bool, size int, kind GroupKind, gapMin, gapMax, maxCV float64) []LineGroup {
	var groups []LineGroup
	for i := 0; i+size <= len(ys); i++ {
		window := make([]int, 0, size)
		indices := make([]int, 0, size)
		for j := i; j < len(ys) && len(window) < size; j++ {
			if used[j] {
				break
			}
			window = append(window, ys[j])
			indices = append(indices, j)
		}
		if len(window) < size {
			continue
		}
		mean, stddev := gapStats(window)
		if mean < gapMin || mean > gapMax || stddev >= maxCV*mean {
			continue
		}
		for _, j := range indices {
			used[j] = true
		}
		groups = append(groups, LineGroup{
			Kind:    kind,
			Lines:   window,
			Spacing: mean,
			Top:     window[0],
			Bottom:  window[size-1],
		})
		i = indices[size-1]
	}
	return groups
}

// RemoveLines erases the given horizontal lines from a copy of the
// image. A black pixel within one row of a line is whitened only when
// the pixels two rows above and two rows below are both white, so
// vertical strokes crossing the line survive.
func RemoveLines(g *image.Gray, lineYs []int) *image.Gray {
	out := raster.CloneGray(g)
	b := out.Bounds()
	w, h := b.Dx(), b.Dy()
	for _, lineY := range lineYs {
		for dy := -1; dy <= 1; dy++ {
			y := lineY + dy
			if y < 0 || y >= h {
				continue
			}
			for x := 0; x < w; x++ {
				if !raster.IsBlack(g, x, y) {
					continue
				}
				if raster.IsBlack(g, x, y-2) || raster.IsBlack(g, x, y+2) {
					continue
				}
				out.Pix[out.PixOffset(x, y)] = 255
			}
		}
	}
	return out
}
