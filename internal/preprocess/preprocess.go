// Package preprocess turns an arbitrary score image into a clean,
// level, binarized raster the detectors can work on.
//
// The pipeline order keeps each pixel touch cheap: scale first so every
// later O(WH) pass runs on the bounded size, then greyscale, quality
// classification, optional inversion/blur/contrast/sharpen, deskew, and
// finally binarization. Only scaling and deskew change the geometry.
package preprocess

import (
	"fmt"
	"image"
	"log"

	"github.com/disintegration/imaging"

	"score-scan/internal/raster"
)

// Toggle is a tri-state switch: Auto defers to the quality-derived
// default, On and Off force the step.
type Toggle int

const (
	Auto Toggle = iota
	On
	Off
)

// enabled resolves the toggle against the automatic default.
func (t Toggle) enabled(auto bool) bool {
	switch t {
	case On:
		return true
	case Off:
		return false
	}
	return auto
}

// Options configures the preprocessing pipeline. The zero value of each
// Toggle means "decide from the image quality class".
type Options struct {
	MaxDim int // downscale bound; 0 disables downscaling
	MinDim int // upscale bound; 0 disables upscaling

	// Contrast is the stretch factor around the midpoint. 0 selects the
	// quality default (1.4 photo, 1.3 scan, 1.1 screenshot); 1 disables.
	Contrast float64

	Blur       Toggle // auto: only for photos
	BlurRadius int    // 0 means radius 1
	Sharpen    Toggle // auto: everything but screenshots
	AutoInvert Toggle // auto: on
	Deskew     Toggle // auto: on
	MorphOpen  Toggle // auto: off; the jianpu path turns it on

	Method BinarizeMethod // NoBinarize leaves greyscale output

	Verbose bool
}

// DefaultOptions returns the standard recognition pipeline settings.
func DefaultOptions() Options {
	return Options{
		MaxDim: raster.MaxDimension,
		MinDim: 500,
		Method: Adaptive,
	}
}

// DisabledOptions returns settings with every step switched off; the
// pipeline then only converts to greyscale. Useful as a baseline and for
// idempotence checks.
func DisabledOptions() Options {
	return Options{
		Contrast:   1,
		Blur:       Off,
		Sharpen:    Off,
		AutoInvert: Off,
		Deskew:     Off,
		MorphOpen:  Off,
		Method:     NoBinarize,
	}
}

// Result carries the preprocessed buffers and what was done to them.
// Original is the greyscale image in final geometry (after scaling and
// deskew) before binarization; tab strip OCR reads digit shapes from it.
// Processed is the binarized buffer the detectors scan.
type Result struct {
	Original    *image.Gray
	Processed   *image.Gray
	Scale       float64
	Quality     Quality
	Inverted    bool
	Deskewed    bool
	DeskewAngle float64
}

// contrastFor returns the default contrast factor per quality class.
func contrastFor(q Quality) float64 {
	switch q {
	case Photo:
		return 1.4
	case Screenshot:
		return 1.1
	}
	return 1.3
}

// Run executes the pipeline on a decoded image.
func Run(src image.Image, opts Options) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("preprocessing failed: %v", r)
		}
	}()

	if src == nil || src.Bounds().Empty() {
		return nil, fmt.Errorf("preprocessing failed: empty input image")
	}

	// Step 1: smart scale. OCR accuracy peaks between the two bounds.
	scaled, scale := smartScale(src, opts.MaxDim, opts.MinDim)

	// Step 2: greyscale.
	g := raster.ToGray(scaled)

	// Step 3: quality classification.
	quality := ClassifyQuality(g)

	result := &Result{Scale: scale, Quality: quality}
	if opts.Verbose {
		log.Printf("preprocess: scale=%.3f quality=%s", scale, quality)
	}

	// Step 4: dark page detection.
	if opts.AutoInvert.enabled(true) && IsDark(g) {
		g = raster.Invert(g)
		result.Inverted = true
		if opts.Verbose {
			log.Printf("preprocess: inverted dark image")
		}
	}

	// Step 5: blur before contrast so speckle is not amplified.
	if opts.Blur.enabled(quality == Photo) {
		radius := opts.BlurRadius
		if radius <= 0 {
			radius = 1
		}
		g = GaussianBlur(g, radius)
	}

	// Step 6: contrast stretch.
	factor := opts.Contrast
	if factor == 0 {
		factor = contrastFor(quality)
	}
	if factor != 1 {
		g = AdjustContrast(g, factor)
	}

	// Step 7: sharpen. Screenshots are already crisp.
	if opts.Sharpen.enabled(quality != Screenshot) {
		g = Sharpen(g)
	}

	// Step 8: deskew.
	if opts.Deskew.enabled(true) {
		deskewed, angle, did := Deskew(g)
		g = deskewed
		result.DeskewAngle = angle
		result.Deskewed = did
		if opts.Verbose && did {
			log.Printf("preprocess: deskewed by %.2f degrees", angle)
		}
	}

	result.Original = g

	// Step 9: binarize.
	processed := g
	if opts.Method != NoBinarize {
		processed = Binarize(g, opts.Method)

		// Step 10: Sauvola can flip unusual inputs to white-on-black.
		if opts.AutoInvert.enabled(true) && IsDark(processed) {
			processed = raster.Invert(processed)
			result.Inverted = true
		}
	} else {
		processed = raster.CloneGray(g)
	}

	// Step 11: morphological open for the jianpu path.
	if opts.MorphOpen.enabled(false) {
		processed = Open(processed, 1)
	}

	result.Processed = processed
	return result, nil
}

// smartScale resizes so the longest side lies within [minDim, maxDim],
// preserving aspect ratio. Returns the image and the applied factor.
func smartScale(src image.Image, maxDim, minDim int) (image.Image, float64) {
	b := src.Bounds()
	longest := max(b.Dx(), b.Dy())
	if longest == 0 {
		return src, 1
	}

	target := 0
	if maxDim > 0 && longest > maxDim {
		target = maxDim
	} else if minDim > 0 && longest < minDim {
		target = minDim
	}
	if target == 0 {
		return src, 1
	}

	scale := float64(target) / float64(longest)
	var out image.Image
	if b.Dx() >= b.Dy() {
		out = imaging.Resize(src, target, 0, imaging.Linear)
	} else {
		out = imaging.Resize(src, 0, target, imaging.Linear)
	}
	return out, scale
}
