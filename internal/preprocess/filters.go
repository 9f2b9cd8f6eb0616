package preprocess

import (
	"image"
	"math"

	"score-scan/internal/raster"
)

// GaussianBlur applies a separable Gaussian blur with the given radius
// and sigma = radius/2. Radius 0 returns an untouched copy.
func GaussianBlur(g *image.Gray, radius int) *image.Gray {
	if radius <= 0 {
		return raster.CloneGray(g)
	}
	kernel := gaussianKernel(radius)
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()

	// Horizontal pass into a temp buffer, vertical pass into the output.
	tmp := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := g.Pix[g.PixOffset(0, y) : g.PixOffset(0, y)+w]
		for x := 0; x < w; x++ {
			var sum, weight float64
			for d := -radius; d <= radius; d++ {
				xx := x + d
				if xx < 0 || xx >= w {
					continue
				}
				k := kernel[d+radius]
				sum += k * float64(row[xx])
				weight += k
			}
			tmp[y*w+x] = sum / weight
		}
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum, weight float64
			for d := -radius; d <= radius; d++ {
				yy := y + d
				if yy < 0 || yy >= h {
					continue
				}
				k := kernel[d+radius]
				sum += k * tmp[yy*w+x]
				weight += k
			}
			out.Pix[out.PixOffset(x, y)] = clampByte(sum/weight + 0.5)
		}
	}
	return out
}

func gaussianKernel(radius int) []float64 {
	sigma := float64(radius) / 2
	if sigma <= 0 {
		sigma = 0.5
	}
	kernel := make([]float64, 2*radius+1)
	for d := -radius; d <= radius; d++ {
		kernel[d+radius] = math.Exp(-float64(d*d) / (2 * sigma * sigma))
	}
	return kernel
}

// AdjustContrast stretches intensities linearly around the midpoint 128:
// v' = (v-128)*factor + 128, clamped to 0..255. Factor 1 is identity.
func AdjustContrast(g *image.Gray, factor float64) *image.Gray {
	out := raster.CloneGray(g)
	if factor == 1 {
		return out
	}
	// Precomputed lookup; every pass over the pixels should be O(1) per
	// pixel with no float math in the loop.
	var lut [256]uint8
	for i := range lut {
		lut[i] = clampByte((float64(i)-128)*factor + 128 + 0.5)
	}
	for i, v := range out.Pix {
		out.Pix[i] = lut[v]
	}
	return out
}

// Sharpen convolves with the 3x3 Laplacian kernel
//
//	 0 -1  0
//	-1  5 -1
//	 0 -1  0
//
// Border pixels are copied through unchanged.
func Sharpen(g *image.Gray) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	out := raster.CloneGray(g)
	if w < 3 || h < 3 {
		return out
	}
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			center := int(g.Pix[g.PixOffset(x, y)])
			v := 5*center -
				int(g.Pix[g.PixOffset(x-1, y)]) -
				int(g.Pix[g.PixOffset(x+1, y)]) -
				int(g.Pix[g.PixOffset(x, y-1)]) -
				int(g.Pix[g.PixOffset(x, y+1)])
			out.Pix[out.PixOffset(x, y)] = clampByte(float64(v))
		}
	}
	return out
}

// IsDark decides whether the page is light-on-dark. It samples the
// centre 60% of the image at every third pixel and requires both the
// sample median and the dominant peak of a smoothed mini-histogram to
// fall below the midpoint.
func IsDark(g *image.Gray) bool {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	x0, x1 := w/5, w-w/5
	y0, y1 := h/5, h-h/5
	if x1 <= x0 || y1 <= y0 {
		return false
	}

	var hist [256]int
	samples := make([]float64, 0, ((y1-y0)/3+1)*((x1-x0)/3+1))
	for y := y0; y < y1; y += 3 {
		for x := x0; x < x1; x += 3 {
			v := g.Pix[g.PixOffset(x, y)]
			hist[v]++
			samples = append(samples, float64(v))
		}
	}
	if len(samples) == 0 {
		return false
	}

	smoothed := smoothHistogram(hist)
	peak := 0
	for i, v := range smoothed {
		if v > smoothed[peak] {
			peak = i
		}
	}
	return median(samples) < 128 && peak < 128
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
