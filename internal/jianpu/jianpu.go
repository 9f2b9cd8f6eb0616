// Package jianpu recognizes Chinese numbered notation: digits 1-7 carry
// the scale degree, dots above/below shift the octave, underlines halve
// the duration, 0 is a rest, "-" extends, "|" is a barline.
package jianpu

import (
	"fmt"
	"image"
	"sort"

	"score-scan/internal/layout"
	"score-scan/internal/music"
	"score-scan/internal/ocr"
	"score-scan/internal/raster"
	"score-scan/pkg/geometry"
)

// rowBand quantizes word centres into reading rows.
const rowBand = 30

// Octave dot gates relative to the squared character height.
const (
	dotMinAreaFrac = 0.04
	dotMaxAreaFrac = 0.16
	dotMinAspect   = 0.3
	dotMaxAspect   = 3.0
	maxOctaveShift = 2
)

// Underline scan parameters.
const (
	underlineDepthFactor = 1.2 // rows scanned below the digit, in char heights
	underlineWidenFactor = 0.3 // horizontal widening each side, in char widths
	underlineMinBlack    = 0.5
	underlineMinGap      = 3
)

// Recognizer recognizes one jianpu row region at a time.
type Recognizer struct {
	client ocr.Client

	Key   string
	Scale music.ScaleType

	DetectOctaveDots    bool
	DetectDurationLines bool
	DetectChords        bool
}

// New creates a jianpu recognizer with all detections enabled.
func New(client ocr.Client, key string, scale music.ScaleType) *Recognizer {
	if key == "" {
		key = "C"
	}
	return &Recognizer{
		client:              client,
		Key:                 key,
		Scale:               scale,
		DetectOctaveDots:    true,
		DetectDurationLines: true,
		DetectChords:        true,
	}
}

// Recognize reads one row region from the binarized canvas and returns
// its events in reading order, indexed from baseIndex.
func (r *Recognizer) Recognize(binary *image.Gray, band layout.Band, baseIndex int) ([]music.Event, error) {
	b := binary.Bounds()
	region := raster.Crop(binary, geometry.RectInt{X0: 0, Y0: band.Top, X1: b.Dx(), Y1: band.Bottom})
	if region.Bounds().Empty() {
		return nil, nil
	}

	res, err := r.client.Recognize(region, ocr.Options{
		Language:  ocr.LangJianpu,
		Mode:      ocr.SingleBlock,
		Whitelist: ocr.JianpuChars,
	})
	if err != nil {
		return nil, fmt.Errorf("jianpu OCR: %w", err)
	}

	words := sortReadingOrder(res.Words)

	var chordWords []ocr.Word
	if r.DetectChords {
		for _, w := range words {
			if music.IsChordSymbol(w.Text) {
				chordWords = append(chordWords, w)
			}
		}
	}

	var events []music.Event
	for _, word := range words {
		if music.IsChordSymbol(word.Text) && !isDigitRun(word.Text) {
			continue // consumed as a chord annotation, not as notes
		}
		events = append(events, r.parseWord(region, word, chordWords, res.Confidence)...)
	}

	for i := range events {
		events[i].Index = baseIndex + i
	}
	return events, nil
}

// isDigitRun reports whether a word is only digits and token characters,
// so single digits like "7" are not mistaken for chord symbols.
func isDigitRun(text string) bool {
	for _, c := range text {
		switch {
		case c >= '0' && c <= '9':
		case c == '-' || c == '|' || c == '.' || c == '·' || c == '#' || c == 'b':
		default:
			return false
		}
	}
	return true
}

// sortReadingOrder orders words top-to-bottom in quantized rows, then
// left-to-right.
func sortReadingOrder(words []ocr.Word) []ocr.Word {
	out := make([]ocr.Word, len(words))
	copy(out, words)
	sort.SliceStable(out, func(i, j int) bool {
		ri := int(out[i].CenterY()) / rowBand
		rj := int(out[j].CenterY()) / rowBand
		if ri != rj {
			return ri < rj
		}
		return out[i].CenterX() < out[j].CenterX()
	})
	return out
}

// parseWord walks the characters of one word, emitting an event per
// token.
func (r *Recognizer) parseWord(region *image.Gray, word ocr.Word, chordWords []ocr.Word, fallbackConf float64) []music.Event {
	text := []rune(word.Text)
	charWidth := word.CharWidth()
	charHeight := word.CharHeight()
	conf := word.Confidence
	if conf == 0 {
		conf = fallbackConf
	}

	var events []music.Event
	for i := 0; i < len(text); i++ {
		c := text[i]
		charX0 := float64(word.Box.X0) + float64(i)*charWidth
		charX1 := charX0 + charWidth
		centerX := (charX0 + charX1) / 2

		switch {
		case c == '-':
			ev := music.NewTie()
			ev.X = centerX
			events = append(events, ev)

		case c == '|':
			ev := music.NewBarline()
			ev.X = centerX
			events = append(events, ev)

		case c == '0':
			duration := music.Quarter
			if r.DetectDurationLines {
				duration = underlineDuration(r.countUnderlines(region, word, charX0, charX1, charWidth))
			}
			ev := music.NewRest(duration, conf)
			ev.X = centerX
			events = append(events, ev)

		case c >= '1' && c <= '7':
			degree := int(c - '0')

			accidental := 0
			acc := music.NoAccidental
			if i+1 < len(text) {
				switch text[i+1] {
				case '#', '♯':
					accidental, acc = 1, music.Sharp
					i++
				case 'b', '♭':
					accidental, acc = -1, music.Flat
					i++
				}
			}

			octave := 0
			if r.DetectOctaveDots {
				octave = r.countOctaveDots(region, word, charX0, charX1, charHeight)
			}

			duration := music.Quarter
			if r.DetectDurationLines {
				duration = underlineDuration(r.countUnderlines(region, word, charX0, charX1, charWidth))
			}

			midi, err := music.JianpuMIDI(r.Key, r.Scale, degree, octave, accidental)
			if err != nil {
				continue
			}
			ev := music.NewNote(midi, duration, conf)
			ev.Accidental = acc
			ev.X = centerX
			if chord := nearestChordAbove(chordWords, word, centerX, charWidth); chord != "" {
				ev.Chord = chord
			}
			events = append(events, ev)
		}
	}
	return events
}

// countOctaveDots counts dot-sized blobs above and below the character.
// Dots above raise the octave, dots below lower it; the net shift is
// capped at two octaves either way. The lower search window starts half
// a character below the glyph to skip duration underlines.
func (r *Recognizer) countOctaveDots(region *image.Gray, word ocr.Word, charX0, charX1, charHeight float64) int {
	above := geometry.RectInt{
		X0: int(charX0),
		Y0: word.Box.Y0 - int(charHeight),
		X1: int(charX1),
		Y1: word.Box.Y0,
	}
	below := geometry.RectInt{
		X0: int(charX0),
		Y0: word.Box.Y1 + int(0.5*charHeight),
		X1: int(charX1),
		Y1: word.Box.Y1 + int(0.5*charHeight) + int(0.8*charHeight),
	}

	octave := countDots(region, above, charHeight) - countDots(region, below, charHeight)
	if octave > maxOctaveShift {
		octave = maxOctaveShift
	}
	if octave < -maxOctaveShift {
		octave = -maxOctaveShift
	}
	return octave
}

// countDots flood-fills black regions inside the window and counts those
// whose area and aspect look like octave dots.
func countDots(g *image.Gray, window geometry.RectInt, charHeight float64) int {
	b := g.Bounds()
	window = window.Clamp(b.Dx(), b.Dy())
	if window.Empty() {
		return 0
	}

	minArea := dotMinAreaFrac * charHeight * charHeight
	if minArea < 2 {
		minArea = 2
	}
	maxArea := dotMaxAreaFrac * charHeight * charHeight

	visited := make(map[int]bool)
	count := 0
	for y := window.Y0; y < window.Y1; y++ {
		for x := window.X0; x < window.X1; x++ {
			if visited[y*b.Dx()+x] || !raster.IsBlack(g, x, y) {
				continue
			}
			area, box := floodFill(g, x, y, window, visited)
			aspect := 0.0
			if box.Height() > 0 {
				aspect = float64(box.Width()) / float64(box.Height())
			}
			if float64(area) >= minArea && float64(area) <= maxArea &&
				aspect >= dotMinAspect && aspect <= dotMaxAspect {
				count++
			}
		}
	}
	return count
}

// floodFill visits the 4-connected black region containing x,y bounded
// by the window and returns its area and bounding box.
func floodFill(g *image.Gray, x, y int, window geometry.RectInt, visited map[int]bool) (int, geometry.RectInt) {
	w := g.Bounds().Dx()
	stack := []geometry.PointInt{{X: x, Y: y}}
	visited[y*w+x] = true
	area := 0
	box := geometry.RectInt{X0: x, Y0: y, X1: x + 1, Y1: y + 1}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		area++
		box = box.Union(geometry.RectInt{X0: p.X, Y0: p.Y, X1: p.X + 1, Y1: p.Y + 1})

		for _, d := range [4]geometry.PointInt{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}} {
			nx, ny := p.X+d.X, p.Y+d.Y
			if nx < window.X0 || nx >= window.X1 || ny < window.Y0 || ny >= window.Y1 {
				continue
			}
			if visited[ny*w+nx] || !raster.IsBlack(g, nx, ny) {
				continue
			}
			visited[ny*w+nx] = true
			stack = append(stack, geometry.PointInt{X: nx, Y: ny})
		}
	}
	return area, box
}

// countUnderlines scans the rows below the character for duration
// underlines. The scan widens horizontally to catch beam-like lines
// connecting neighbouring digits; accepted rows must be at least
// underlineMinGap apart.
func (r *Recognizer) countUnderlines(region *image.Gray, word ocr.Word, charX0, charX1, charWidth float64) int {
	b := region.Bounds()
	x0 := max(0, int(charX0-underlineWidenFactor*charWidth))
	x1 := min(b.Dx(), int(charX1+underlineWidenFactor*charWidth))
	if x1 <= x0 {
		return 0
	}
	span := x1 - x0

	yStart := word.Box.Y1 + 1
	yEnd := min(b.Dy(), word.Box.Y1+int(underlineDepthFactor*word.CharHeight()))

	count := 0
	lastY := yStart - underlineMinGap - 1
	for y := yStart; y < yEnd; y++ {
		black := 0
		for x := x0; x < x1; x++ {
			if raster.IsBlack(region, x, y) {
				black++
			}
		}
		if float64(black)/float64(span) > underlineMinBlack && y-lastY >= underlineMinGap {
			count++
			lastY = y
		} else if float64(black)/float64(span) > underlineMinBlack {
			lastY = y
		}
	}
	return count
}

// underlineDuration maps an underline count to a duration: each line
// halves the default quarter.
func underlineDuration(count int) music.Duration {
	switch {
	case count <= 0:
		return music.Quarter
	case count == 1:
		return music.Eighth
	case count == 2:
		return music.Sixteenth
	default:
		return music.ThirtySecond
	}
}

// nearestChordAbove finds a chord word above the digit within 1.5 char
// widths horizontally and returns its normalized symbol.
func nearestChordAbove(chordWords []ocr.Word, digit ocr.Word, centerX, charWidth float64) string {
	bestDist := 1.5 * charWidth
	best := ""
	for _, cw := range chordWords {
		if cw.Box.Y1 > digit.Box.Y0 {
			continue // not above
		}
		dist := abs(cw.CenterX() - centerX)
		if dist <= bestDist {
			bestDist = dist
			best = music.NormalizeChordSymbol(cw.Text)
		}
	}
	return best
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
