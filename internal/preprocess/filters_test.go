package preprocess

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdjustContrastIdentity(t *testing.T) {
	g := patternGray(30, 30)
	assert.Equal(t, g.Pix, AdjustContrast(g, 1).Pix)
}

func TestAdjustContrastStretch(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 3, 1))
	g.Pix[0] = 100
	g.Pix[1] = 200
	g.Pix[2] = 10

	out := AdjustContrast(g, 2)
	assert.Equal(t, uint8(72), out.Pix[0], "(100-128)*2+128")
	assert.Equal(t, uint8(255), out.Pix[1], "clamped high")
	assert.Equal(t, uint8(0), out.Pix[2], "clamped low")
}

func TestSharpenUniformUnchanged(t *testing.T) {
	g := uniformGray(10, 10, 130)
	assert.Equal(t, g.Pix, Sharpen(g).Pix)
}

func TestSharpenRaisesEdgeContrast(t *testing.T) {
	// A dark pixel on a light field gets darker, its neighbours lighter.
	g := uniformGray(9, 9, 200)
	g.Pix[g.PixOffset(4, 4)] = 50

	out := Sharpen(g)
	assert.Equal(t, uint8(0), out.GrayAt(4, 4).Y, "5*50-4*200 clamps to 0")
	assert.Equal(t, uint8(255), out.GrayAt(3, 4).Y, "5*200-3*200-50 clamps to 255")
}

func TestGaussianBlurUniformUnchanged(t *testing.T) {
	g := uniformGray(12, 12, 77)
	assert.Equal(t, g.Pix, GaussianBlur(g, 2).Pix)
}

func TestGaussianBlurSpreadsSpike(t *testing.T) {
	g := uniformGray(11, 11, 255)
	g.Pix[g.PixOffset(5, 5)] = 0

	out := GaussianBlur(g, 1)
	assert.Greater(t, out.GrayAt(5, 5).Y, uint8(0), "spike centre lifts")
	assert.Less(t, out.GrayAt(5, 4).Y, uint8(255), "mass spreads to neighbours")
	assert.Equal(t, uint8(255), out.GrayAt(0, 0).Y, "far corner untouched")
}

func TestGaussianBlurZeroRadiusCopies(t *testing.T) {
	g := patternGray(8, 8)
	out := GaussianBlur(g, 0)
	assert.Equal(t, g.Pix, out.Pix)
	out.Pix[0] = 1
	assert.NotEqual(t, g.Pix[0], out.Pix[0], "copy, not alias")
}
