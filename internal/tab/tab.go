// Package tab recognizes fret digits on 6-line guitar tablature.
//
// Recognition runs one focused OCR call per string: the strip around a
// string line gives the engine enough horizontal context to judge digit
// shape, and removing the line inside the strip avoids digits gluing to
// it. A cell-grid pass (every string x every column) would cost more
// calls and read worse.
package tab

import (
	"fmt"
	"image"
	"regexp"
	"sort"
	"strconv"
	"strings"

	xdraw "golang.org/x/image/draw"

	"score-scan/internal/music"
	"score-scan/internal/ocr"
	"score-scan/internal/raster"
	"score-scan/internal/staffline"
	"score-scan/pkg/geometry"
)

// minStripHeight is the strip height below which nearest-neighbour
// upscaling kicks in; Tesseract reads small digits poorly.
const minStripHeight = 80

var fretPattern = regexp.MustCompile(`^\d{1,2}$`)

// Recognizer recognizes one tab system at a time.
type Recognizer struct {
	client ocr.Client

	// RemoveLines erases the string line inside each strip so digits do
	// not glue to it.
	RemoveLines bool
}

// New creates a tab recognizer on the given OCR client.
func New(client ocr.Client) *Recognizer {
	return &Recognizer{client: client, RemoveLines: true}
}

// candidate is a recognized fret before global x-ordering.
type candidate struct {
	event music.Event
	x     float64
	str   int
}

// Recognize reads the fret digits of a tab system from the original
// (non-binarized) canvas and returns Note events in left-to-right order
// with indices starting at baseIndex.
func (r *Recognizer) Recognize(original *image.Gray, lines []int, spacing float64, baseIndex int) ([]music.Event, error) {
	if len(lines) != music.NumStrings {
		return nil, fmt.Errorf("tab system has %d lines, want %d", len(lines), music.NumStrings)
	}

	var candidates []candidate
	var lastErr error
	failures := 0

	for s := 0; s < music.NumStrings; s++ {
		found, err := r.recognizeString(original, lines, spacing, s)
		if err != nil {
			lastErr = err
			failures++
			continue
		}
		candidates = append(candidates, found...)
	}
	if failures == music.NumStrings && lastErr != nil {
		return nil, fmt.Errorf("all strings failed: %w", lastErr)
	}

	// Left-to-right playing order; simultaneous digits (a chord shape)
	// tie-break by string index, high string first.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].x != candidates[j].x {
			return candidates[i].x < candidates[j].x
		}
		return candidates[i].str < candidates[j].str
	})

	events := make([]music.Event, len(candidates))
	for i, c := range candidates {
		c.event.Index = baseIndex + i
		events[i] = c.event
	}
	return events, nil
}

// recognizeString crops, cleans and OCRs the strip around one string.
func (r *Recognizer) recognizeString(original *image.Gray, lines []int, spacing float64, s int) ([]candidate, error) {
	b := original.Bounds()
	w, h := b.Dx(), b.Dy()

	top, bottom := stripExtent(lines, spacing, s)
	if top < 0 {
		top = 0
	}
	if bottom > h {
		bottom = h
	}
	if bottom-top < 3 {
		return nil, nil
	}

	strip := raster.Crop(original, geometry.RectInt{X0: 0, Y0: top, X1: w, Y1: bottom})
	if r.RemoveLines {
		strip = staffline.RemoveLines(strip, []int{lines[s] - top})
	}

	factor := 1
	if sh := strip.Bounds().Dy(); sh < minStripHeight {
		factor = (minStripHeight + sh - 1) / sh
		strip = upscaleNearest(strip, factor)
	}

	res, err := r.client.Recognize(strip, ocr.Options{
		Language:  ocr.LangEnglish,
		Mode:      ocr.SingleLine,
		Whitelist: ocr.TabChars,
	})
	if err != nil {
		return nil, fmt.Errorf("string %d OCR: %w", s, err)
	}

	if len(res.Words) > 0 {
		return parseWords(res.Words, factor, s), nil
	}
	return parseTextFallback(res.Text, res.Confidence, w, s), nil
}

// stripExtent returns the vertical range of the OCR strip for string s:
// midway to the neighbouring lines, or half a spacing beyond the outer
// lines.
func stripExtent(lines []int, spacing float64, s int) (top, bottom int) {
	y := lines[s]
	if s == 0 {
		top = y - int(spacing/2)
	} else {
		top = (lines[s-1] + y) / 2
	}
	if s == len(lines)-1 {
		bottom = y + int(spacing/2) + 1
	} else {
		bottom = (y + lines[s+1]) / 2
	}
	return top, bottom
}

// parseWords converts word boxes into fret candidates, undoing the
// upscale factor on x positions.
func parseWords(words []ocr.Word, factor int, s int) []candidate {
	var out []candidate
	for _, word := range words {
		text := strings.TrimSpace(word.Text)
		if !fretPattern.MatchString(text) {
			continue
		}
		fret, _ := strconv.Atoi(text)
		midi, err := music.FretToMIDI(s, fret)
		if err != nil {
			continue
		}
		ev := music.NewNote(midi, music.Quarter, word.Confidence)
		ev.String = s
		ev.Fret = fret
		ev.X = word.CenterX() / float64(factor)
		out = append(out, candidate{event: ev, x: ev.X, str: s})
	}
	return out
}

// parseTextFallback handles engines that return no word boxes: digit
// tokens get proportional x positions across the strip width.
func parseTextFallback(text string, confidence float64, width, s int) []candidate {
	fields := strings.Fields(text)
	var tokens []int
	for _, f := range fields {
		if !fretPattern.MatchString(f) {
			continue
		}
		fret, _ := strconv.Atoi(f)
		if fret > music.MaxFret {
			continue
		}
		tokens = append(tokens, fret)
	}
	var out []candidate
	for i, fret := range tokens {
		midi, err := music.FretToMIDI(s, fret)
		if err != nil {
			continue
		}
		x := float64(width) * (float64(i) + 0.5) / float64(len(tokens))
		ev := music.NewNote(midi, music.Quarter, confidence)
		ev.String = s
		ev.Fret = fret
		ev.X = x
		out = append(out, candidate{event: ev, x: x, str: s})
	}
	return out
}

// upscaleNearest scales by an integer factor with nearest-neighbour
// sampling, preserving hard binarized edges.
func upscaleNearest(g *image.Gray, factor int) *image.Gray {
	b := g.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	xdraw.NearestNeighbor.Scale(out, out.Bounds(), g, b, xdraw.Src, nil)
	return out
}
