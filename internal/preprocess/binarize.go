package preprocess

import (
	"fmt"
	"image"
	"math"
)

// BinarizeMethod selects the thresholding algorithm.
type BinarizeMethod int

const (
	// NoBinarize leaves the greyscale image untouched.
	NoBinarize BinarizeMethod = iota
	// Adaptive picks Otsu for bimodal histograms and Sauvola otherwise.
	Adaptive
	// Otsu applies a single global threshold.
	Otsu
	// Sauvola applies a local window threshold per pixel.
	Sauvola
)

// String returns the method name as accepted by ParseBinarizeMethod.
func (m BinarizeMethod) String() string {
	switch m {
	case Adaptive:
		return "adaptive"
	case Otsu:
		return "otsu"
	case Sauvola:
		return "sauvola"
	}
	return "none"
}

// ParseBinarizeMethod parses a method name as produced by String.
func ParseBinarizeMethod(name string) (BinarizeMethod, error) {
	switch name {
	case "none":
		return NoBinarize, nil
	case "", "adaptive":
		return Adaptive, nil
	case "otsu":
		return Otsu, nil
	case "sauvola":
		return Sauvola, nil
	}
	return Adaptive, fmt.Errorf("unknown binarize method %q", name)
}

// Sauvola parameters. R is the dynamic range of the standard deviation.
const (
	sauvolaK = 0.2
	sauvolaR = 128.0
)

// bimodalPeakGap is the minimum separation between exactly two histogram
// peaks for the adaptive selector to call the histogram bimodal.
const bimodalPeakGap = 60

// Binarize thresholds a greyscale image to pure black and white.
func Binarize(g *image.Gray, method BinarizeMethod) *image.Gray {
	switch method {
	case Otsu:
		return applyThreshold(g, OtsuThreshold(g))
	case Sauvola:
		return sauvolaIntegral(g)
	case Adaptive:
		if isBimodal(g) {
			return applyThreshold(g, OtsuThreshold(g))
		}
		return sauvolaIntegral(g)
	}
	return g
}

// isBimodal reports whether the smoothed histogram has exactly two peaks
// separated by more than bimodalPeakGap intensity units.
func isBimodal(g *image.Gray) bool {
	peaks := findPeaks(smoothHistogram(histogram(g)), 0.005)
	return len(peaks) == 2 && peaks[1]-peaks[0] > bimodalPeakGap
}

// OtsuThreshold computes the global threshold that maximizes the
// inter-class variance of the intensity histogram.
func OtsuThreshold(g *image.Gray) uint8 {
	hist := histogram(g)

	total := 0
	var totalSum float64
	for i, c := range hist {
		total += c
		totalSum += float64(i) * float64(c)
	}
	if total == 0 {
		return 128
	}

	var sumBackground float64
	var weightBackground int
	var maxVariance float64
	var best uint8 = 128

	for t := 0; t < 256; t++ {
		weightBackground += hist[t]
		if weightBackground == 0 {
			continue
		}
		weightForeground := total - weightBackground
		if weightForeground == 0 {
			break
		}
		sumBackground += float64(t) * float64(hist[t])

		meanBackground := sumBackground / float64(weightBackground)
		meanForeground := (totalSum - sumBackground) / float64(weightForeground)
		diff := meanBackground - meanForeground
		variance := float64(weightBackground) * float64(weightForeground) * diff * diff

		if variance > maxVariance {
			maxVariance = variance
			best = uint8(t)
		}
	}
	return best
}

// applyThreshold maps pixels <= t to black and the rest to white.
func applyThreshold(g *image.Gray, t uint8) *image.Gray {
	b := g.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := g.Pix[g.PixOffset(0, y) : g.PixOffset(0, y)+b.Dx()]
		dst := out.Pix[out.PixOffset(0, y) : out.PixOffset(0, y)+b.Dx()]
		for x, v := range src {
			if v <= t {
				dst[x] = 0
			} else {
				dst[x] = 255
			}
		}
	}
	return out
}

// sauvolaWindow returns the local window size: max(15, min(W,H)/8),
// forced odd.
func sauvolaWindow(w, h int) int {
	win := min(w, h) / 8
	if win < 15 {
		win = 15
	}
	return win | 1
}

// integralImages builds summed-area tables of the pixel values and their
// squares, each (w+1)x(h+1) so that rectangle sums need no edge cases.
func integralImages(g *image.Gray) (sum, sqSum []float64, w, h int) {
	b := g.Bounds()
	w, h = b.Dx(), b.Dy()
	stride := w + 1
	sum = make([]float64, (w+1)*(h+1))
	sqSum = make([]float64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		var rowSum, rowSq float64
		src := g.Pix[g.PixOffset(0, y) : g.PixOffset(0, y)+w]
		for x := 0; x < w; x++ {
			v := float64(src[x])
			rowSum += v
			rowSq += v * v
			idx := (y+1)*stride + x + 1
			sum[idx] = sum[idx-stride] + rowSum
			sqSum[idx] = sqSum[idx-stride] + rowSq
		}
	}
	return sum, sqSum, w, h
}

// sauvolaIntegral binarizes with the Sauvola local threshold
// T = mean * (1 + k*(stddev/R - 1)), computed in O(1) per pixel from the
// two integral images.
func sauvolaIntegral(g *image.Gray) *image.Gray {
	sum, sqSum, w, h := integralImages(g)
	stride := w + 1
	win := sauvolaWindow(w, h)
	half := win / 2

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		y0 := max(0, y-half)
		y1 := min(h-1, y+half)
		for x := 0; x < w; x++ {
			x0 := max(0, x-half)
			x1 := min(w-1, x+half)
			area := float64((x1 - x0 + 1) * (y1 - y0 + 1))

			a := (y1+1)*stride + x1 + 1
			b := y0*stride + x1 + 1
			c := (y1+1)*stride + x0
			d := y0*stride + x0

			s := sum[a] - sum[b] - sum[c] + sum[d]
			sq := sqSum[a] - sqSum[b] - sqSum[c] + sqSum[d]

			mean := s / area
			variance := sq/area - mean*mean
			if variance < 0 {
				variance = 0
			}
			threshold := mean * (1 + sauvolaK*(math.Sqrt(variance)/sauvolaR-1))

			if float64(g.Pix[g.PixOffset(x, y)]) <= threshold {
				out.Pix[out.PixOffset(x, y)] = 0
			} else {
				out.Pix[out.PixOffset(x, y)] = 255
			}
		}
	}
	return out
}

// sauvolaNaive is the reference implementation that recomputes the
// window statistics per pixel. It exists to validate the integral-image
// version and is only used by tests.
func sauvolaNaive(g *image.Gray) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	win := sauvolaWindow(w, h)
	half := win / 2

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var s, sq float64
			var n int
			for yy := max(0, y-half); yy <= min(h-1, y+half); yy++ {
				for xx := max(0, x-half); xx <= min(w-1, x+half); xx++ {
					v := float64(g.Pix[g.PixOffset(xx, yy)])
					s += v
					sq += v * v
					n++
				}
			}
			mean := s / float64(n)
			variance := sq/float64(n) - mean*mean
			if variance < 0 {
				variance = 0
			}
			threshold := mean * (1 + sauvolaK*(math.Sqrt(variance)/sauvolaR-1))
			if float64(g.Pix[g.PixOffset(x, y)]) <= threshold {
				out.Pix[out.PixOffset(x, y)] = 0
			} else {
				out.Pix[out.PixOffset(x, y)] = 255
			}
		}
	}
	return out
}

// BlackFraction returns the share of pixels below the binary midpoint.
func BlackFraction(g *image.Gray) float64 {
	b := g.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}
	black := 0
	for y := 0; y < b.Dy(); y++ {
		row := g.Pix[g.PixOffset(0, y) : g.PixOffset(0, y)+b.Dx()]
		for _, v := range row {
			if v < 128 {
				black++
			}
		}
	}
	return float64(black) / float64(total)
}
