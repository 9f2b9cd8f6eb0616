// Package staff recognizes noteheads, accidentals and barlines on
// 5-line staves. Pitch is read from vertical position only; duration
// from head fill (filled vs hollow). Stems, flags and beams are ignored.
package staff

import (
	"fmt"
	"image"
	"math"
	"sort"

	"score-scan/internal/music"
	"score-scan/internal/raster"
	"score-scan/internal/staffline"
	"score-scan/pkg/geometry"
)

// Notehead classification gates relative to the staff line spacing.
const (
	headMinSizeFactor = 0.5
	headMaxSizeFactor = 2.5
	headMinAspect     = 0.5
	headMaxAspect     = 2.5
	headMinCircular   = 0.4
	headMinFill       = 0.3
	headFilledFill    = 0.6
)

// Barline detection: a column is a barline when black pixels cover at
// least barlineCoverage of the staff height, at least barlineMinGap
// pixels right of the previous barline.
const (
	barlineCoverage = 0.7
	barlineMinGap   = 5
)

// ledgerMargin is how far above and below the staff (in spacings) the
// recognizer still looks for noteheads on ledger lines.
const ledgerMargin = 3.0

// Recognizer recognizes one staff system at a time. It is purely
// geometric; no OCR call is involved.
type Recognizer struct {
	clef music.Clef

	// RemoveLines erases the staff lines before component analysis.
	RemoveLines bool
}

// New creates a staff recognizer for the given clef.
func New(clef music.Clef) *Recognizer {
	return &Recognizer{clef: clef, RemoveLines: true}
}

// placed is an event with its x position, pre-interleave.
type placed struct {
	event music.Event
	x     float64
}

// Recognize reads one staff from the binarized canvas and returns note
// and barline events interleaved in x order, indexed from baseIndex.
func (r *Recognizer) Recognize(binary *image.Gray, lines []int, spacing float64, baseIndex int) ([]music.Event, error) {
	if len(lines) != 5 {
		return nil, fmt.Errorf("staff system has %d lines, want 5", len(lines))
	}

	b := binary.Bounds()
	w, h := b.Dx(), b.Dy()
	margin := int(ledgerMargin * spacing)
	top := max(0, lines[0]-margin)
	bottom := min(h, lines[4]+margin+1)

	region := raster.Crop(binary, geometry.RectInt{X0: 0, Y0: top, X1: w, Y1: bottom})
	localLines := make([]int, len(lines))
	for i, y := range lines {
		localLines[i] = y - top
	}
	cleaned := region
	if r.RemoveLines {
		cleaned = staffline.RemoveLines(region, localLines)
	}

	components := FindComponents(cleaned)
	heads, others := classifyHeads(components, spacing)
	heads = reduceChords(heads, spacing)

	var events []placed
	for _, head := range heads {
		position := int(math.Round((float64(localLines[4]) - head.CentroidY) / (spacing / 2)))
		midi := music.StaffPositionToMIDI(r.clef, position)

		accidental := findAccidental(others, head, spacing)
		midi += accidental.Semitones()

		duration := music.Half
		if head.Fill() > headFilledFill {
			duration = music.Quarter
		}

		ev := music.NewNote(midi, duration, headConfidence(head))
		ev.Accidental = accidental
		ev.X = head.CentroidX
		events = append(events, placed{event: ev, x: head.CentroidX})
	}

	for _, x := range findBarlines(cleaned, localLines) {
		ev := music.NewBarline()
		ev.X = float64(x)
		events = append(events, placed{event: ev, x: float64(x)})
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].x < events[j].x })

	out := make([]music.Event, len(events))
	for i, p := range events {
		p.event.Index = baseIndex + i
		out[i] = p.event
	}
	return out, nil
}

// classifyHeads splits components into notehead candidates and the rest
// (accidental candidates, stems, text fragments).
func classifyHeads(components []Component, spacing float64) (heads, others []Component) {
	for _, c := range components {
		minSide := float64(min(c.Width(), c.Height()))
		maxSide := float64(max(c.Width(), c.Height()))
		aspect := c.Aspect()
		fill := c.Fill()

		isHead := minSide >= headMinSizeFactor*spacing &&
			maxSide <= headMaxSizeFactor*spacing &&
			aspect >= headMinAspect && aspect <= headMaxAspect &&
			c.Circularity() >= headMinCircular &&
			fill > headMinFill && fill <= 1

		if isHead {
			heads = append(heads, c)
		} else {
			others = append(others, c)
		}
	}
	sort.Slice(heads, func(i, j int) bool { return heads[i].CentroidX < heads[j].CentroidX })
	return heads, others
}

// reduceChords collapses heads stacked at the same x (closer than half a
// spacing) to the highest-pitched one, i.e. the smallest centroid y.
func reduceChords(heads []Component, spacing float64) []Component {
	if len(heads) < 2 {
		return heads
	}
	var out []Component
	i := 0
	for i < len(heads) {
		best := heads[i]
		j := i + 1
		for j < len(heads) && heads[j].CentroidX-heads[i].CentroidX < spacing/2 {
			if heads[j].CentroidY < best.CentroidY {
				best = heads[j]
			}
			j++
		}
		out = append(out, best)
		i = j
	}
	return out
}

// findAccidental looks for a sharp or flat glyph in the window left of
// the head. Classification is geometric only: tall narrow strokes read
// as sharps, taller narrower ones as flats; naturals are not
// distinguished from sharps.
func findAccidental(others []Component, head Component, spacing float64) music.Accidental {
	x0 := head.CentroidX - 2*spacing
	x1 := head.CentroidX - 0.3*spacing
	y0 := head.CentroidY - spacing
	y1 := head.CentroidY + spacing

	for _, c := range others {
		if c.CentroidX < x0 || c.CentroidX > x1 || c.CentroidY < y0 || c.CentroidY > y1 {
			continue
		}
		aspect := c.Aspect()
		height := float64(c.Height())
		if aspect < 0.6 && height > 1.2*spacing {
			return music.Flat
		}
		if aspect < 0.8 && height > spacing {
			return music.Sharp
		}
	}
	return music.NoAccidental
}

// findBarlines scans columns for near-full-height vertical runs between
// the outer staff lines.
func findBarlines(g *image.Gray, localLines []int) []int {
	b := g.Bounds()
	w := b.Dx()
	topLine := localLines[0]
	bottomLine := localLines[4]
	staffHeight := bottomLine - topLine + 1
	if staffHeight <= 0 {
		return nil
	}
	need := int(barlineCoverage * float64(staffHeight))

	var bars []int
	lastX := -barlineMinGap - 1
	for x := 0; x < w; x++ {
		count := 0
		for y := topLine; y <= bottomLine; y++ {
			if raster.IsBlack(g, x, y) {
				count++
			}
		}
		if count >= need && x-lastX >= barlineMinGap {
			bars = append(bars, x)
			lastX = x
		} else if count >= need {
			lastX = x // extend a thick barline without re-emitting
		}
	}
	return bars
}

// headConfidence maps head geometry to a 0..100 confidence: round,
// well-filled blobs score high.
func headConfidence(c Component) float64 {
	conf := 100 * c.Circularity()
	if conf > 95 {
		conf = 95
	}
	if conf < 30 {
		conf = 30
	}
	return conf
}
