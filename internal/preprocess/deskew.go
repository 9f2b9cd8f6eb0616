package preprocess

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"score-scan/internal/raster"
)

// Deskew angle bounds in degrees. Smaller angles are measurement noise;
// larger ones indicate the page is not a near-horizontal score at all.
const (
	deskewMinAngle = 0.3
	deskewMaxAngle = 5.0
)

// deskewRowStep is the row-grid stride used when hunting for long
// horizontal segments.
const deskewRowStep = 4

// EstimateSkewAngle detects long horizontal segments on a sparse row
// grid and returns the median of their slope angles in degrees.
// Positive angles mean lines descend to the right. Returns 0 when no
// segments qualify.
func EstimateSkewAngle(g *image.Gray) float64 {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	minRun := int(float64(w) * 0.3)
	if minRun < 10 {
		return 0
	}

	var angles []float64
	for y := 0; y < h; y += deskewRowStep {
		runStart := -1
		for x := 0; x <= w; x++ {
			black := x < w && raster.IsBlack(g, x, y)
			if black {
				if runStart < 0 {
					runStart = x
				}
				continue
			}
			if runStart >= 0 && x-runStart >= minRun {
				if a, ok := segmentAngle(g, runStart, x-1, y); ok {
					angles = append(angles, a)
				}
			}
			runStart = -1
		}
	}
	if len(angles) == 0 {
		return 0
	}
	return median(angles)
}

// segmentAngle measures a segment's slope by comparing the vertical
// centroid of black pixels at its two ends.
func segmentAngle(g *image.Gray, x0, x1, y int) (float64, bool) {
	const window = 5
	cy0, ok0 := verticalCentroid(g, x0, y, window)
	cy1, ok1 := verticalCentroid(g, x1, y, window)
	if !ok0 || !ok1 || x1 == x0 {
		return 0, false
	}
	return math.Atan2(cy1-cy0, float64(x1-x0)) * 180 / math.Pi, true
}

// verticalCentroid returns the mean y of black pixels in a small
// vertical window around y at column x.
func verticalCentroid(g *image.Gray, x, y, window int) (float64, bool) {
	var sum float64
	var n int
	for dy := -window; dy <= window; dy++ {
		if raster.IsBlack(g, x, y+dy) {
			sum += float64(y + dy)
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Deskew rotates the image to level its horizontal features when the
// estimated skew lies in [deskewMinAngle, deskewMaxAngle] degrees.
// Returns the (possibly untouched) image, the applied angle in degrees
// and whether a rotation happened.
func Deskew(g *image.Gray) (*image.Gray, float64, bool) {
	angle := EstimateSkewAngle(g)
	abs := math.Abs(angle)
	if abs < deskewMinAngle || abs > deskewMaxAngle {
		return g, angle, false
	}

	// imaging rotates counter-clockwise in screen orientation; a line
	// descending to the right (positive measured angle) needs exactly
	// that correction.
	rotated := imaging.Rotate(g, angle, color.White)
	return raster.ToGray(rotated), angle, true
}
