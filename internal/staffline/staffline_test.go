package staffline

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"score-scan/internal/raster"
)

func whiteCanvas(w, h int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = 255
	}
	return g
}

func drawHLine(g *image.Gray, y int) {
	b := g.Bounds()
	for x := 0; x < b.Dx(); x++ {
		g.Pix[g.PixOffset(x, y)] = 0
	}
}

func drawVStroke(g *image.Gray, x, y0, y1 int) {
	for y := y0; y <= y1; y++ {
		g.Pix[g.PixOffset(x, y)] = 0
	}
}

func TestDetectLines(t *testing.T) {
	g := whiteCanvas(300, 200)
	for _, y := range []int{40, 60, 80, 100, 120, 140} {
		drawHLine(g, y)
	}

	lines := DetectLines(g)
	require.Len(t, lines, 6)
	assert.Equal(t, []int{40, 60, 80, 100, 120, 140}, lineYs(lines))
	for _, l := range lines {
		assert.Greater(t, l.Strength, 0.9)
	}
}

func TestDetectLinesMergesThickLines(t *testing.T) {
	g := whiteCanvas(200, 100)
	drawHLine(g, 50)
	drawHLine(g, 51)
	drawHLine(g, 52)

	lines := DetectLines(g)
	require.Len(t, lines, 1, "adjacent samples merge into one line")
	assert.Equal(t, 51, lines[0].Y, "merged at the mean y")
}

func TestDetectLinesBrokenByDigits(t *testing.T) {
	// A tab line with digits printed on it loses its long run but keeps a
	// high total black fraction.
	g := whiteCanvas(200, 100)
	drawHLine(g, 50)
	for x := 40; x < 60; x++ {
		g.Pix[g.PixOffset(x, 50)] = 255 // digit hole
	}
	for x := 90; x < 110; x++ {
		g.Pix[g.PixOffset(x, 50)] = 255
	}

	lines := DetectLines(g)
	require.Len(t, lines, 1)
	assert.Equal(t, 50, lines[0].Y)
}

func TestGroupLinesTab(t *testing.T) {
	lines := makeLines(40, 60, 80, 100, 120, 140)
	groups := GroupLines(lines)
	require.Len(t, groups, 1)
	assert.Equal(t, Tab6, groups[0].Kind)
	assert.Equal(t, 20.0, groups[0].Spacing)
	assert.Equal(t, 40, groups[0].Top)
	assert.Equal(t, 140, groups[0].Bottom)
}

func TestGroupLinesStaff(t *testing.T) {
	lines := makeLines(30, 40, 50, 60, 70)
	groups := GroupLines(lines)
	require.Len(t, groups, 1)
	assert.Equal(t, Staff5, groups[0].Kind)
	assert.Equal(t, 10.0, groups[0].Spacing)
}

func TestGroupLinesStaffThenTab(t *testing.T) {
	// Scenario: staff block then tab block below, tab must win its six
	// lines before the staff pass sees them.
	lines := makeLines(30, 40, 50, 60, 70, 100, 110, 120, 130, 140, 150)
	groups := GroupLines(lines)
	require.Len(t, groups, 2)
	assert.Equal(t, Staff5, groups[0].Kind, "document order restored")
	assert.Equal(t, Tab6, groups[1].Kind)
	assert.Equal(t, []int{100, 110, 120, 130, 140, 150}, groups[1].Lines)
}

func TestGroupLinesRejectsUneven(t *testing.T) {
	lines := makeLines(10, 25, 50, 90, 150)
	assert.Empty(t, GroupLines(lines))
	assert.Nil(t, GroupLines(makeLines(10, 20)), "too few lines")
}

func TestRemoveLinesPreservesCrossingStrokes(t *testing.T) {
	g := whiteCanvas(100, 60)
	drawHLine(g, 30)
	drawVStroke(g, 50, 20, 40) // stroke crossing the line

	out := RemoveLines(g, []int{30})

	assert.False(t, raster.IsBlack(out, 10, 30), "bare line pixels erased")
	assert.False(t, raster.IsBlack(out, 90, 30))
	assert.True(t, raster.IsBlack(out, 50, 30), "crossing stroke survives on the line row")
	assert.True(t, raster.IsBlack(out, 50, 20), "stroke untouched away from the line")

	// Property: any surviving pixel near the line has a black neighbour
	// two rows above or below in the source.
	for x := 0; x < 100; x++ {
		for dy := -1; dy <= 1; dy++ {
			y := 30 + dy
			if raster.IsBlack(out, x, y) {
				assert.True(t, raster.IsBlack(g, x, y-2) || raster.IsBlack(g, x, y+2),
					"pixel %d,%d kept without vertical support", x, y)
			}
		}
	}
}

func TestRemoveLinesKeepsSourceIntact(t *testing.T) {
	g := whiteCanvas(50, 50)
	drawHLine(g, 25)
	_ = RemoveLines(g, []int{25})
	assert.True(t, raster.IsBlack(g, 10, 25), "input image not mutated")
}

func lineYs(lines []Line) []int {
	ys := make([]int, len(lines))
	for i, l := range lines {
		ys[i] = l.Y
	}
	return ys
}

func makeLines(ys ...int) []Line {
	lines := make([]Line, len(ys))
	for i, y := range ys {
		lines[i] = Line{Y: y, Strength: 1}
	}
	return lines
}
