package preprocess

import (
	"image"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Quality classifies the input image source, which drives the default
// contrast factor, binarization method and blur decision.
type Quality int

const (
	Scan Quality = iota
	Photo
	Screenshot
)

// String returns the quality class name.
func (q Quality) String() string {
	switch q {
	case Photo:
		return "photo"
	case Screenshot:
		return "screenshot"
	}
	return "scan"
}

// Classification thresholds. Screenshots have few distinct intensities
// and no sensor noise; photos have high noise or a rich, multi-peak
// histogram; everything else is treated as a scan.
const (
	screenshotEntropyMax = 4.0
	screenshotNoiseMax   = 3.0
	photoNoiseMin        = 8.0
	photoEntropyMin      = 5.5
	photoPeaksMin        = 3
)

// ClassifyQuality derives the quality class from histogram entropy, a
// sampled noise estimate and the smoothed-histogram peak count.
func ClassifyQuality(g *image.Gray) Quality {
	hist := histogram(g)
	e := histogramEntropy(hist)
	n := noiseEstimate(g)
	p := countPeaks(smoothHistogram(hist), 0.005)

	switch {
	case e < screenshotEntropyMax && n < screenshotNoiseMax:
		return Screenshot
	case n > photoNoiseMin || (e > photoEntropyMin && p > photoPeaksMin):
		return Photo
	default:
		return Scan
	}
}

// histogram builds the 256-bin intensity histogram.
func histogram(g *image.Gray) [256]int {
	var hist [256]int
	b := g.Bounds()
	for y := 0; y < b.Dy(); y++ {
		row := g.Pix[g.PixOffset(0, y) : g.PixOffset(0, y)+b.Dx()]
		for _, v := range row {
			hist[v]++
		}
	}
	return hist
}

// histogramEntropy computes the Shannon entropy of the intensity
// distribution in bits.
func histogramEntropy(hist [256]int) float64 {
	total := 0
	for _, c := range hist {
		total += c
	}
	if total == 0 {
		return 0
	}
	p := make([]float64, 0, 256)
	for _, c := range hist {
		if c > 0 {
			p = append(p, float64(c)/float64(total))
		}
	}
	return stat.Entropy(p) / math.Ln2
}

// noiseEstimate measures high-frequency noise as the mean absolute
// difference against the 4-neighbourhood, sampled on a 100x100 grid.
func noiseEstimate(g *image.Gray) float64 {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return 0
	}
	stepX := max(1, w/100)
	stepY := max(1, h/100)

	var sum float64
	var count int
	for y := 1; y < h-1; y += stepY {
		for x := 1; x < w-1; x += stepX {
			v := float64(g.Pix[g.PixOffset(x, y)])
			d := math.Abs(v-float64(g.Pix[g.PixOffset(x-1, y)])) +
				math.Abs(v-float64(g.Pix[g.PixOffset(x+1, y)])) +
				math.Abs(v-float64(g.Pix[g.PixOffset(x, y-1)])) +
				math.Abs(v-float64(g.Pix[g.PixOffset(x, y+1)]))
			sum += d / 4
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// smoothHistogram applies a centred moving average of width 5.
func smoothHistogram(hist [256]int) [256]float64 {
	var out [256]float64
	for i := range hist {
		sum := 0.0
		n := 0
		for d := -2; d <= 2; d++ {
			j := i + d
			if j >= 0 && j < 256 {
				sum += float64(hist[j])
				n++
			}
		}
		out[i] = sum / float64(n)
	}
	return out
}

// countPeaks counts local maxima of the smoothed histogram whose mass
// exceeds minFraction of the total.
func countPeaks(smoothed [256]float64, minFraction float64) int {
	total := 0.0
	for _, v := range smoothed {
		total += v
	}
	if total == 0 {
		return 0
	}
	threshold := total * minFraction
	peaks := 0
	for i := 1; i < 255; i++ {
		if smoothed[i] > threshold && smoothed[i] >= smoothed[i-1] && smoothed[i] > smoothed[i+1] {
			peaks++
		}
	}
	return peaks
}

// findPeaks returns the indices of qualifying local maxima, used by the
// adaptive binarization selector to test for bimodality.
func findPeaks(smoothed [256]float64, minFraction float64) []int {
	total := 0.0
	for _, v := range smoothed {
		total += v
	}
	if total == 0 {
		return nil
	}
	threshold := total * minFraction
	var peaks []int
	for i := 1; i < 255; i++ {
		if smoothed[i] > threshold && smoothed[i] >= smoothed[i-1] && smoothed[i] > smoothed[i+1] {
			peaks = append(peaks, i)
		}
	}
	return peaks
}

// median returns the middle value of the samples. The slice is sorted in
// place.
func median(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sort.Float64s(samples)
	return stat.Quantile(0.5, stat.Empirical, samples, nil)
}
