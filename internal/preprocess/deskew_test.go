package preprocess

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// drawSlopedLine draws a 4 px thick line y = y0 + x*tan(angleDeg).
func drawSlopedLine(g *image.Gray, y0 int, angleDeg float64) {
	slope := math.Tan(angleDeg * math.Pi / 180)
	b := g.Bounds()
	for x := 0; x < b.Dx(); x++ {
		yc := y0 + int(math.Round(slope*float64(x)))
		for dy := -1; dy <= 2; dy++ {
			y := yc + dy
			if y >= 0 && y < b.Dy() {
				g.Pix[g.PixOffset(x, y)] = 0
			}
		}
	}
}

func TestEstimateSkewAngleLevel(t *testing.T) {
	g := uniformGray(200, 100, 255)
	for _, y := range []int{20, 40, 60, 80} {
		drawSlopedLine(g, y, 0)
	}
	assert.InDelta(t, 0.0, EstimateSkewAngle(g), 0.2)
}

func TestEstimateSkewAngleSloped(t *testing.T) {
	g := uniformGray(200, 120, 255)
	for _, y := range []int{30, 60, 90} {
		drawSlopedLine(g, y, 2.0)
	}
	angle := EstimateSkewAngle(g)
	assert.InDelta(t, 2.0, angle, 1.0, "median segment angle near the drawn slope")
}

func TestDeskewDeclinesLevelImage(t *testing.T) {
	g := uniformGray(200, 100, 255)
	drawSlopedLine(g, 50, 0)

	out, angle, did := Deskew(g)
	assert.False(t, did)
	assert.InDelta(t, 0.0, angle, 0.3)
	assert.Same(t, g, out, "untouched image passes through")
}

func TestDeskewCorrectsSlopedLines(t *testing.T) {
	g := uniformGray(300, 160, 255)
	for _, y := range []int{40, 80, 120} {
		drawSlopedLine(g, y, 2.0)
	}

	out, angle, did := Deskew(g)
	if !did {
		t.Fatalf("expected a rotation, estimated angle %.2f", angle)
	}
	assert.InDelta(t, 2.0, angle, 1.0)

	// After correction the residual skew falls below the activation floor.
	residual := EstimateSkewAngle(out)
	assert.Less(t, math.Abs(residual), deskewMinAngle+0.3)
}
