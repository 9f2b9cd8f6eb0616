package preprocess

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func uniformGray(w, h int, v uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

func TestClassifyQualityScreenshot(t *testing.T) {
	// Two flat intensities, zero sensor noise: a rendered screenshot.
	g := uniformGray(120, 120, 255)
	for y := 40; y < 80; y++ {
		for x := 0; x < 120; x++ {
			g.Pix[g.PixOffset(x, y)] = 0
		}
	}
	assert.Equal(t, Screenshot, ClassifyQuality(g))
}

func TestClassifyQualityPhoto(t *testing.T) {
	// Per-pixel checkerboard has maximal high-frequency noise.
	g := image.NewGray(image.Rect(0, 0, 120, 120))
	for y := 0; y < 120; y++ {
		for x := 0; x < 120; x++ {
			if (x+y)%2 == 0 {
				g.Pix[g.PixOffset(x, y)] = 255
			}
		}
	}
	assert.Equal(t, Photo, ClassifyQuality(g))
}

func TestHistogramEntropy(t *testing.T) {
	var hist [256]int
	hist[0] = 500
	hist[255] = 500
	assert.InDelta(t, 1.0, histogramEntropy(hist), 1e-9, "two equal bins carry one bit")

	var flat [256]int
	for i := range flat {
		flat[i] = 4
	}
	assert.InDelta(t, 8.0, histogramEntropy(flat), 1e-9, "uniform histogram carries eight bits")

	var empty [256]int
	assert.Equal(t, 0.0, histogramEntropy(empty))
}

func TestIsDark(t *testing.T) {
	assert.True(t, IsDark(uniformGray(100, 100, 30)), "brightness 30 everywhere reads as dark")
	assert.False(t, IsDark(uniformGray(100, 100, 200)))

	// Dark border around a light centre: only the centre matters.
	g := uniformGray(100, 100, 10)
	for y := 20; y < 80; y++ {
		for x := 20; x < 80; x++ {
			g.Pix[g.PixOffset(x, y)] = 220
		}
	}
	assert.False(t, IsDark(g))
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 3.0, median([]float64{5, 1, 3, 2, 4}))
	assert.Equal(t, 0.0, median(nil))
}
