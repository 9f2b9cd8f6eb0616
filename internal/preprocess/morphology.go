package preprocess

import (
	"image"

	"score-scan/internal/raster"
)

// Erode shrinks black regions: a pixel stays black only if every pixel
// in its (2r+1)x(2r+1) neighbourhood is black. Pixels beyond the image
// border count as white.
func Erode(g *image.Gray, radius int) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for i := range out.Pix {
		out.Pix[i] = 255
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !raster.IsBlack(g, x, y) {
				continue
			}
			keep := true
			for dy := -radius; dy <= radius && keep; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					if !raster.IsBlack(g, x+dx, y+dy) {
						keep = false
						break
					}
				}
			}
			if keep {
				out.Pix[out.PixOffset(x, y)] = 0
			}
		}
	}
	return out
}

// Dilate grows black regions: a pixel becomes black if any pixel in its
// (2r+1)x(2r+1) neighbourhood is black.
func Dilate(g *image.Gray, radius int) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for i := range out.Pix {
		out.Pix[i] = 255
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			hit := false
			for dy := -radius; dy <= radius && !hit; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					if raster.IsBlack(g, x+dx, y+dy) {
						hit = true
						break
					}
				}
			}
			if hit {
				out.Pix[out.PixOffset(x, y)] = 0
			}
		}
	}
	return out
}

// Open removes black speckle smaller than the structuring element by
// eroding then dilating. Used before jianpu recognition so stray dots do
// not read as octave marks.
func Open(g *image.Gray, radius int) *image.Gray {
	return Dilate(Erode(g, radius), radius)
}
