package preprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"score-scan/internal/raster"
)

func TestOpenRemovesSpeckle(t *testing.T) {
	g := uniformGray(20, 20, 255)
	g.Pix[g.PixOffset(10, 10)] = 0 // isolated dot
	for y := 3; y < 8; y++ {       // 5x5 solid block
		for x := 3; x < 8; x++ {
			g.Pix[g.PixOffset(x, y)] = 0
		}
	}

	out := Open(g, 1)
	assert.False(t, raster.IsBlack(out, 10, 10), "speckle removed")
	for y := 3; y < 8; y++ {
		for x := 3; x < 8; x++ {
			assert.True(t, raster.IsBlack(out, x, y), "block pixel %d,%d survives", x, y)
		}
	}
}

func TestErodeDilateShapes(t *testing.T) {
	g := uniformGray(10, 10, 255)
	for y := 2; y < 7; y++ {
		for x := 2; x < 7; x++ {
			g.Pix[g.PixOffset(x, y)] = 0
		}
	}

	eroded := Erode(g, 1)
	assert.True(t, raster.IsBlack(eroded, 4, 4), "interior survives erosion")
	assert.False(t, raster.IsBlack(eroded, 2, 2), "boundary eroded")

	dilated := Dilate(g, 1)
	assert.True(t, raster.IsBlack(dilated, 1, 1), "dilation grows the region")
	assert.False(t, raster.IsBlack(dilated, 0, 0))
}
